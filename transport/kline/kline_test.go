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
	"testing"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	diagtest "github.com/ZaparooProject/go-diag/internal/testing"
	"github.com/ZaparooProject/go-diag/l2/kwp6227"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

func newTestTransport(line *fakeLine, opts ...Option) (*Transport, *diagtest.FakeClock) {
	clock := diagtest.NewFakeClock()
	opts = append([]Option{WithClock(clock), WithLogger(zerolog.Nop())}, opts...)
	return NewWithPort(line, "/dev/ttyUSB1", opts...), clock
}

func TestWakeupBits(t *testing.T) {
	t.Parallel()

	// 0x10: start, bits 0-7 LSB first, stop.
	want := []bool{false, false, false, false, false, true, false, false, false, true}
	assert.Equal(t, want, wakeupBits(0x10))
}

func TestSlowBitPeriod(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 200*time.Millisecond, slowBitPeriod)
}

func TestSlowInitWithBreaks(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	ecuInit(line, 0x10, 0xD3, 0xB0)
	tr, clock := newTestTransport(line)

	kb, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBus5Baud, Addr: 0x10})
	require.NoError(t, err)
	assert.Equal(t, diag.KeyBytes{KB1: 0xD3, KB2: 0xB0, Reported: true}, kb)

	// 0x10 is low for the start bit and bits 0-3, high for bit 4, low for
	// bits 5-7, then the stop bit.
	assert.Equal(t, []time.Duration{time.Second, 600 * time.Millisecond}, line.breaks)
	assert.True(t, clock.Slept(W5))
	assert.True(t, clock.Slept(W4))
	assert.Equal(t, []byte{0x4F}, line.written, "inverted KB2")
}

func TestSlowInitOnPin(t *testing.T) {
	t.Parallel()

	pin := &fakePin{}
	line := &fakeLine{pin: pin}
	ecuInit(line, 0xC2, 0xD3, 0xB0)
	tr, clock := newTestTransport(line, WithPin(pin))

	_, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBus5Baud, Addr: 0xC2})
	require.NoError(t, err)

	// Start bit, C2 least significant bit first, stop bit, idle.
	want := []gpio.Level{
		gpio.Low,
		gpio.Low, gpio.High, gpio.Low, gpio.Low,
		gpio.Low, gpio.Low, gpio.High, gpio.High,
		gpio.High,
		gpio.High,
	}
	assert.Equal(t, want, pin.levels)
	assert.Empty(t, line.breaks)

	bitSleeps := 0
	for _, d := range clock.Sleeps() {
		if d == slowBitPeriod {
			bitSleeps++
		}
	}
	assert.Equal(t, 10, bitSleeps)
}

func TestSlowInitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup func(line *fakeLine)
		name  string
	}{
		{name: "no sync", setup: func(*fakeLine) {}},
		{
			name: "wrong sync",
			setup: func(line *fakeLine) {
				line.onReset = func(l *fakeLine) {
					l.onReset = nil
					l.queue(0x00, 0xD3, 0xB0)
				}
			},
		},
		{
			name: "missing key byte",
			setup: func(line *fakeLine) {
				line.onReset = func(l *fakeLine) {
					l.onReset = nil
					l.queue(syncByte, 0xD3)
				}
			},
		},
		{
			name: "wrong inverted address",
			setup: func(line *fakeLine) {
				ecuInit(line, 0x11, 0xD3, 0xB0)
			},
		},
		{
			name: "no inverted address",
			setup: func(line *fakeLine) {
				ecuInit(line, 0x10, 0xD3, 0xB0)
				line.respond = nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			line := &fakeLine{}
			tt.setup(line)
			tr, _ := newTestTransport(line)

			_, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBus5Baud, Addr: 0x10})
			require.ErrorIs(t, err, diag.ErrBusInit)
			assert.True(t, diag.IsRetryable(err))
		})
	}
}

func TestFastInit(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	tr, clock := newTestTransport(line)

	kb, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBusFast})
	require.NoError(t, err)
	assert.False(t, kb.Reported)
	assert.Equal(t, []time.Duration{25 * time.Millisecond}, line.breaks)
	assert.True(t, clock.Slept(25*time.Millisecond))
}

func TestInitBusCARBUnsupported(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(&fakeLine{})
	_, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBusCARB})
	require.ErrorIs(t, err, diag.ErrInitNotSupported)
}

func TestSendAppendsChecksumAndPaces(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	tr, clock := newTestTransport(line)

	require.NoError(t, tr.Send([]byte{0x82, 0x10, 0x13, 0xA1}, 5*time.Millisecond))
	assert.Equal(t, []byte{0x82, 0x10, 0x13, 0xA1, 0x46}, line.written)
	assert.Empty(t, line.rx, "echo must be consumed")

	paced := 0
	for _, d := range clock.Sleeps() {
		if d == 5*time.Millisecond {
			paced++
		}
	}
	assert.Equal(t, 4, paced)
}

func TestSendEchoProblems(t *testing.T) {
	t.Parallel()

	t.Run("no echo", func(t *testing.T) {
		t.Parallel()
		line := &fakeLine{noEcho: true}
		tr, _ := newTestTransport(line)

		err := tr.Send([]byte{0x82, 0x10, 0x13, 0xA1}, 0)
		require.ErrorIs(t, err, diag.ErrTransportWrite)
		assert.Len(t, line.written, 1)
	})

	t.Run("collision", func(t *testing.T) {
		t.Parallel()
		line := &fakeLine{noEcho: true}
		line.respond = func(byte) []byte { return []byte{0xFF} }
		tr, _ := newTestTransport(line)

		err := tr.Send([]byte{0x82, 0x10, 0x13, 0xA1}, 0)
		require.ErrorIs(t, err, diag.ErrTransportWrite)
	})
}

func TestRecv(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	line.queue(diagtest.BuildPositiveReply(0x10, 0x13, 0xA5, 0x01)...)
	tr, _ := newTestTransport(line)

	buf := make([]byte, 18)
	n, err := tr.Recv(buf, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x83, 0x13, 0x10, 0xE5, 0x01, 0x8C}, buf[:n])
	assert.Equal(t, 500*time.Millisecond, line.timeouts[0])
}

func TestRecvFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want error
		name string
		rx   []byte
		size int
	}{
		{name: "nothing", rx: nil, size: 18, want: diag.ErrTimeout},
		{name: "truncated", rx: []byte{0x83, 0x13, 0x10}, size: 18, want: diag.ErrIncompleteData},
		{name: "bad checksum", rx: []byte{0x82, 0x13, 0x10, 0xE1, 0x00}, size: 18, want: diag.ErrChecksumMismatch},
		{name: "too long for buffer", rx: []byte{0x8F}, size: 4, want: diag.ErrBadLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			line := &fakeLine{}
			line.queue(tt.rx...)
			tr, _ := newTestTransport(line)

			_, err := tr.Recv(make([]byte, tt.size), 100*time.Millisecond)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetSpeed(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	tr, _ := newTestTransport(line)

	require.NoError(t, tr.SetSpeed(diag.SerialSettings{
		Speed: 10400, DataBits: diag.DataBits8, StopBits: diag.StopBits1, Parity: diag.ParityNone,
	}))
	require.NoError(t, tr.SetSpeed(diag.SerialSettings{
		Speed: 9600, DataBits: diag.DataBits7, StopBits: diag.StopBits2, Parity: diag.ParityOdd,
	}))
	assert.Equal(t, []serial.Mode{
		{BaudRate: 10400, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		{BaudRate: 9600, DataBits: 7, Parity: serial.OddParity, StopBits: serial.TwoStopBits},
	}, line.modes)

	err := tr.SetSpeed(diag.SerialSettings{Speed: 0})
	require.Error(t, err)
	assert.False(t, diag.IsRetryable(err))
}

func TestCloseTwice(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	tr, _ := newTestTransport(line)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, line.closed)

	require.ErrorIs(t, tr.Send([]byte{0x82, 0x10, 0x13, 0xA1}, 0), diag.ErrClosed)
	_, err := tr.InitBus(diag.InitBusArgs{Type: diag.InitBus5Baud})
	require.ErrorIs(t, err, diag.ErrClosed)
}

func TestKWP6227OverKLine(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	ecuInit(line, 0x10, 0xD3, 0xB0)
	initRespond := line.respond

	// After the handshake the ECU answers each complete request frame.
	var req []byte
	line.respond = func(b byte) []byte {
		if out := initRespond(b); out != nil {
			return out
		}
		req = append(req, b)
		if len(req) < 4 || len(req) < int(req[0]&0x3F)+3 {
			return nil
		}
		service := req[3]
		req = nil
		return diagtest.BuildPositiveReply(0x10, 0x13, service)
	}

	tr, _ := newTestTransport(line)
	driver := kwp6227.New(kwp6227.WithClock(diagtest.NewFakeClock()), kwp6227.WithLogger(zerolog.Nop()))
	conn := diag.NewConnection(tr)

	require.NoError(t, driver.StartComms(conn, diag.InitSlow, 0, 0x10, 0x13))
	assert.Equal(t, byte(0xB0), conn.KB2)

	reply, err := driver.Request(conn, &diag.Message{Data: []byte{0xA6}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE6}, reply.Data)

	require.NoError(t, driver.StopComms(conn))
	assert.Nil(t, conn.ProtoData())
}
