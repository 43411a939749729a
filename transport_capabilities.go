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

import "strings"

// Capabilities lists what a transport does by itself, so drivers don't
// have to. Each field is checked by value.
type Capabilities struct {
	// FullInit means the transport performs the whole bus initialisation,
	// wake-up pattern and key byte exchange included.
	FullInit bool

	// L2Checksum means the transport appends the link-layer checksum on
	// transmit.
	L2Checksum bool

	// FastInit means the transport can do an ISO 14230 fast init.
	FastInit bool
}

// String lists the set capabilities, e.g. "fullinit,l2cksum".
func (c Capabilities) String() string {
	var names []string
	if c.FullInit {
		names = append(names, "fullinit")
	}
	if c.L2Checksum {
		names = append(names, "l2cksum")
	}
	if c.FastInit {
		names = append(names, "fastinit")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
