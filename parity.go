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

package diag

// Parity selects the parity of a serial character.
type Parity uint8

const (
	// ParityNone sends no parity bit.
	ParityNone Parity = iota
	// ParityOdd makes the number of set bits odd.
	ParityOdd
	// ParityEven makes the number of set bits even.
	ParityEven
)

// String returns the parity name.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "unknown"
	}
}

// WithParity replaces the most significant bit of c with a parity bit
// computed over the low 7 bits. Only ParityOdd seeds the bit with 1; every
// other mode computes even parity.
func WithParity(c byte, p Parity) byte {
	var bit byte
	if p == ParityOdd {
		bit = 1
	}

	for i := 0; i < 7; i++ {
		bit ^= c
		bit <<= 1
	}

	return (c & 0x7F) | (bit & 0x80)
}
