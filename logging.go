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

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var pkgLog = struct {
	logger zerolog.Logger
	mu     sync.RWMutex
}{
	logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger(),
}

// Logger returns the package logger. Drivers default to it when no logger
// is supplied.
func Logger() zerolog.Logger {
	pkgLog.mu.RLock()
	defer pkgLog.mu.RUnlock()
	return pkgLog.logger
}

// SetLogger replaces the package logger.
func SetLogger(logger zerolog.Logger) {
	pkgLog.mu.Lock()
	defer pkgLog.mu.Unlock()
	pkgLog.logger = logger
}

// SetDebugEnabled switches the package logger between debug and warning
// level.
func SetDebugEnabled(enabled bool) {
	pkgLog.mu.Lock()
	defer pkgLog.mu.Unlock()
	if enabled {
		pkgLog.logger = pkgLog.logger.Level(zerolog.DebugLevel)
	} else {
		pkgLog.logger = pkgLog.logger.Level(zerolog.WarnLevel)
	}
}

func debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}
