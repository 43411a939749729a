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

import "time"

// Clock provides the delays and timestamps drivers need. Tests substitute
// a fake to observe sleeps without waiting.
type Clock interface {
	Sleep(d time.Duration)
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Sleep pauses the calling goroutine for d.
func (SystemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Now returns the current time, with its monotonic reading.
func (SystemClock) Now() time.Time {
	return time.Now()
}
