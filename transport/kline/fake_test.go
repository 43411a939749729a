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

package kline

import (
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

// fakeLine emulates a K-line port: every written byte is echoed, and
// respond may queue ECU bytes after the echo.
type fakeLine struct {
	respond func(written byte) []byte
	// onReset runs on every ResetInputBuffer, after the buffer is cleared.
	onReset  func(l *fakeLine)
	pin      *fakePin
	rx       []byte
	written  []byte
	breaks   []time.Duration
	timeouts []time.Duration
	modes    []serial.Mode
	mu       sync.Mutex
	noEcho   bool
	closed   bool
}

func (l *fakeLine) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range b {
		l.written = append(l.written, c)
		if !l.noEcho {
			l.rx = append(l.rx, c)
		}
		if l.respond != nil {
			l.rx = append(l.rx, l.respond(c)...)
		}
	}
	return len(b), nil
}

func (l *fakeLine) Read(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(b, l.rx)
	l.rx = l.rx[n:]
	return n, nil
}

func (l *fakeLine) queue(b ...byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rx = append(l.rx, b...)
}

func (l *fakeLine) Close() error {
	l.closed = true
	return nil
}

func (l *fakeLine) SetMode(mode *serial.Mode) error {
	l.modes = append(l.modes, *mode)
	return nil
}

func (l *fakeLine) SetReadTimeout(t time.Duration) error {
	l.timeouts = append(l.timeouts, t)
	return nil
}

func (l *fakeLine) ResetInputBuffer() error {
	l.mu.Lock()
	l.rx = nil
	hook := l.onReset
	l.mu.Unlock()
	if hook != nil {
		hook(l)
	}
	return nil
}

func (l *fakeLine) Break(d time.Duration) error {
	l.breaks = append(l.breaks, d)
	return nil
}

// fakePin records the levels driven on it.
type fakePin struct {
	levels []gpio.Level
}

func (p *fakePin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return nil
}

// woken reports whether a wake-up pattern has been sent.
func (l *fakeLine) woken() bool {
	return len(l.breaks) > 0 || (l.pin != nil && len(l.pin.levels) > 0)
}

// ecuInit makes line answer a 5 baud init of addr with the given key
// bytes once the transport clears its input after the wake-up.
func ecuInit(line *fakeLine, addr, kb1, kb2 byte) {
	line.onReset = func(l *fakeLine) {
		if !l.woken() {
			return
		}
		l.onReset = nil
		l.queue(syncByte, kb1, kb2)
	}
	line.respond = func(written byte) []byte {
		if written == ^kb2 {
			return []byte{^addr}
		}
		return nil
	}
}
