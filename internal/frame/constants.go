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

package frame

// Format byte layout
const (
	HeaderBase = 0x80 // Top bit of the format byte, always set
	LengthMask = 0x3F // Frame-length field of the format byte
)

// Frame geometry: [format][dest][src][payload...][checksum]
const (
	HeaderLength   = 3 // Format byte + destination + source
	ChecksumLength = 1
	Overhead       = HeaderLength + ChecksumLength

	MinPayloadLength = 1
	MaxPayloadLength = 14
	MaxFrameLength   = HeaderLength + MaxPayloadLength + ChecksumLength
)
