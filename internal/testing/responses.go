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

package testing

import (
	"github.com/ZaparooProject/go-diag/internal/frame"
)

// Addresses used throughout the tests
const (
	TesterAddr = 0x13
	EngineAddr = 0x7A
	ABSAddr    = 0x28
	TargetAddr = 0x10
)

// BuildRawFrame creates a raw received frame, checksum included, as a
// transport with hardware checksum support would return it.
func BuildRawFrame(dest, src byte, payload []byte) []byte {
	raw := []byte{frame.Header(len(payload)), dest, src}
	raw = append(raw, payload...)
	return frame.AppendChecksum(raw)
}

// BuildPositiveReply creates the ECU's positive reply to service: the
// service ID with bit 6 set, followed by data.
func BuildPositiveReply(ecu, tester, service byte, data ...byte) []byte {
	payload := append([]byte{service | 0x40}, data...)
	return BuildRawFrame(tester, ecu, payload)
}

// BuildNegativeReply creates a 7F negative reply to service.
func BuildNegativeReply(ecu, tester, service, code byte) []byte {
	return BuildRawFrame(tester, ecu, []byte{0x7F, service, code})
}
