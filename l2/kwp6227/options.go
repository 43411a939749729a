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

package kwp6227

import (
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/trace"
	"github.com/rs/zerolog"
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for warnings and frame debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Driver) {
		l := logger.With().Str("proto", Name).Logger()
		d.log = &l
	}
}

// WithClock replaces the clock used for protocol delays and receive stamps.
func WithClock(clock diag.Clock) Option {
	return func(d *Driver) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithRecorder records session events to rec.
func WithRecorder(rec trace.Recorder) Option {
	return func(d *Driver) {
		if rec != nil {
			d.recorder = rec
		}
	}
}

// WithRecvPadding sets the margin added to every receive timeout.
func WithRecvPadding(padding time.Duration) Option {
	return func(d *Driver) {
		d.recvPadding = padding
	}
}

// WithStopWait sets how long StopComms waits after an unanswered stop
// request.
func WithStopWait(wait time.Duration) Option {
	return func(d *Driver) {
		d.stopWait = wait
	}
}

// WithStrictKeyBytes makes StartComms fail when the transport cannot
// report the key bytes, instead of assuming D3 B0.
func WithStrictKeyBytes(strict bool) Option {
	return func(d *Driver) {
		d.strictKeyBytes = strict
	}
}
