// go-diag
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-diag.
//
// go-diag is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-diag is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-diag; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package frame encodes and decodes KWP6227 link-layer frames.
//
// The format byte differs from KWP2000: its length field counts the payload
// plus the trailing checksum byte, so it is one greater than in KWP2000.
package frame

import (
	"fmt"

	diag "github.com/ZaparooProject/go-diag"
)

// Frame is a decoded wire frame. Payload aliases the raw buffer it was
// decoded from.
type Frame struct {
	Payload  []byte
	Format   byte
	Dest     byte
	Src      byte
	Checksum byte
}

// Header returns the format byte for a payload of n bytes.
func Header(n int) byte {
	return HeaderBase | byte(n+1)
}

// Length returns the total number of bytes on the wire, checksum included,
// of the frame starting with format byte b.
func Length(b byte) int {
	return HeaderLength + int(b&LengthMask)
}

// Encode builds [format][dest][src][payload] without the checksum, which
// the physical layer appends.
func Encode(dest, src byte, payload []byte) ([]byte, error) {
	n := len(payload)
	if n < MinPayloadLength || n > MaxPayloadLength {
		return nil, fmt.Errorf("%w: payload of %d bytes, want %d-%d",
			diag.ErrBadLength, n, MinPayloadLength, MaxPayloadLength)
	}

	buf := make([]byte, 0, HeaderLength+n)
	buf = append(buf, Header(n), dest, src)
	buf = append(buf, payload...)
	return buf, nil
}

// Decode splits a raw received frame, checksum included. The payload is
// always len(raw)-Overhead bytes, whatever the format byte claims.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < Overhead {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d",
			diag.ErrIncompleteData, len(raw), Overhead)
	}

	last := len(raw) - ChecksumLength
	return Frame{
		Format:   raw[0],
		Dest:     raw[1],
		Src:      raw[2],
		Payload:  raw[HeaderLength:last],
		Checksum: raw[last],
	}, nil
}

// DeclaredLength returns the payload length encoded in the format byte.
func (f Frame) DeclaredLength() int {
	return int(f.Format&LengthMask) - ChecksumLength
}

// LengthMatches reports whether the format byte agrees with the payload
// actually received.
func (f Frame) LengthMatches() bool {
	return f.DeclaredLength() == len(f.Payload)
}
