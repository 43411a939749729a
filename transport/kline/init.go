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
	"fmt"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// slowBitPeriod is one bit at 5 baud.
var slowBitPeriod = (5 * physic.Hertz).Period()

// InitBus wakes the bus. A 5 baud init clocks out args.Addr, which must
// already carry its parity bit, then completes the key byte handshake and
// returns the key bytes. A fast init only sends the wake-up pulse; the
// protocol sends its own start message.
func (t *Transport) InitBus(args diag.InitBusArgs) (diag.KeyBytes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.KeyBytes{}, diag.ErrClosed
	}

	switch args.Type {
	case diag.InitBus5Baud:
		return t.slowInit(args.Addr)
	case diag.InitBusFast:
		return diag.KeyBytes{}, t.fastInit()
	default:
		return diag.KeyBytes{}, diag.NewTransportError("InitBus", t.portName,
			fmt.Errorf("%w: %s", diag.ErrInitNotSupported, args.Type), diag.ErrorTypePermanent)
	}
}

func (t *Transport) slowInit(addr byte) (diag.KeyBytes, error) {
	t.clock.Sleep(W5)

	if err := t.sendWakeup(addr); err != nil {
		return diag.KeyBytes{}, t.initError("address", err)
	}
	// Breaks leave framing garbage in the receive buffer.
	_ = t.port.ResetInputBuffer()

	var (
		sb [1]byte
		kb [2]byte
	)
	if err := t.readFull(sb[:], W1); err != nil {
		return diag.KeyBytes{}, t.initError("sync byte", err)
	}
	if sb[0] != syncByte {
		return diag.KeyBytes{}, t.initError("sync byte", fmt.Errorf("got %02X, expecting %02X", sb[0], syncByte))
	}
	if err := t.readFull(kb[:1], W2); err != nil {
		return diag.KeyBytes{}, t.initError("key byte 1", err)
	}
	if err := t.readFull(kb[1:], W2); err != nil {
		return diag.KeyBytes{}, t.initError("key byte 2", err)
	}

	t.clock.Sleep(W4)
	if err := t.writeByte(^kb[1]); err != nil {
		return diag.KeyBytes{}, t.initError("inverted key byte", err)
	}

	var inv [1]byte
	if err := t.readFull(inv[:], W1); err != nil {
		return diag.KeyBytes{}, t.initError("inverted address", err)
	}
	if inv[0] != ^addr {
		return diag.KeyBytes{}, t.initError("inverted address",
			fmt.Errorf("got %02X, expecting %02X", inv[0], ^addr))
	}

	t.log.Debug().
		Str("port", t.portName).
		Msgf("kline 5 baud init of %02X done, key bytes %02X%02X", addr, kb[0], kb[1])
	return diag.KeyBytes{KB1: kb[0], KB2: kb[1], Reported: true}, nil
}

func (t *Transport) initError(step string, err error) error {
	return diag.NewTransportError("InitBus", t.portName,
		fmt.Errorf("%w: %s: %w", diag.ErrBusInit, step, err), diag.ErrorTypeTransient)
}

// sendWakeup clocks out addr at 5 baud: a start bit, eight data bits
// least significant first, and a stop bit.
func (t *Transport) sendWakeup(addr byte) error {
	bits := wakeupBits(addr)
	if t.pin != nil {
		return t.wakeupOnPin(bits)
	}
	return t.wakeupWithBreaks(bits)
}

// wakeupBits returns the line levels of the 5 baud character, true for
// the recessive high level.
func wakeupBits(addr byte) []bool {
	bits := make([]bool, 0, 10)
	bits = append(bits, false)
	for i := 0; i < 8; i++ {
		bits = append(bits, addr&(1<<i) != 0)
	}
	return append(bits, true)
}

func (t *Transport) wakeupOnPin(bits []bool) error {
	for _, high := range bits {
		if err := t.pin.Out(gpio.Level(high)); err != nil {
			return err
		}
		t.clock.Sleep(slowBitPeriod)
	}
	return t.pin.Out(gpio.High)
}

// wakeupWithBreaks holds the line low with a serial break for each run of
// zero bits and idles through runs of ones.
func (t *Transport) wakeupWithBreaks(bits []bool) error {
	for i := 0; i < len(bits); {
		j := i
		for j < len(bits) && bits[j] == bits[i] {
			j++
		}
		d := time.Duration(j-i) * slowBitPeriod
		if bits[i] {
			t.clock.Sleep(d)
		} else if err := t.port.Break(d); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func (t *Transport) fastInit() error {
	t.clock.Sleep(W5)

	if t.pin != nil {
		if err := t.pin.Out(gpio.Low); err != nil {
			return t.initError("wake-up pulse", err)
		}
		t.clock.Sleep(fastInitLow)
		if err := t.pin.Out(gpio.High); err != nil {
			return t.initError("wake-up pulse", err)
		}
	} else if err := t.port.Break(fastInitLow); err != nil {
		return t.initError("wake-up pulse", err)
	}
	t.clock.Sleep(fastInitLow)
	return t.port.ResetInputBuffer()
}
