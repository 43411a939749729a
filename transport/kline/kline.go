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

// Package kline provides a transport for a bare K-line transceiver, such
// as an L9637 or a VAG-COM style cable, on a serial port.
//
// The host does all the work an adapter would: the 5 baud wake-up, the
// key byte exchange, the checksum and the echo the half-duplex line
// returns for every transmitted byte.
package kline

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/internal/frame"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ISO 9141 init timing
const (
	// W1 bounds the wait for the sync byte after the address.
	W1 = 300 * time.Millisecond
	// W2 bounds the wait for each key byte.
	W2 = 20 * time.Millisecond
	// W4 is the delay before the inverted key byte is returned.
	W4 = 30 * time.Millisecond
	// W5 is the bus idle time required before a wake-up.
	W5 = 300 * time.Millisecond

	// fastInitLow is the TiniL wake-up pulse of an ISO 14230 fast init.
	fastInitLow = 25 * time.Millisecond

	syncByte = 0x55

	// interByteTimeout bounds the gap between bytes of one frame.
	interByteTimeout = 50 * time.Millisecond
)

// DefaultBaudRate is the bus speed used until SetSpeed is called.
const DefaultBaudRate = 10400

// Port is the part of serial.Port the transport needs.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Break(d time.Duration) error
}

// Pin drives the K-line directly for the wake-up pattern. A gpio.PinIO
// satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// Transport implements diag.Transport on a raw K-line.
type Transport struct {
	port     Port
	pin      Pin
	clock    diag.Clock
	log      zerolog.Logger
	portName string
	pinName  string
	mu       sync.Mutex
	closed   bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithWakeupPin sends the 5 baud address on the named GPIO pin instead of
// with serial breaks.
func WithWakeupPin(name string) Option {
	return func(t *Transport) {
		t.pinName = name
	}
}

// WithPin sends the 5 baud address on pin.
func WithPin(pin Pin) Option {
	return func(t *Transport) {
		t.pin = pin
	}
}

// WithClock sets the clock used for bit timing and delays.
func WithClock(clock diag.Clock) Option {
	return func(t *Transport) {
		t.clock = clock
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = logger
	}
}

// New opens portName at the default bus speed.
func New(portName string, opts ...Option) (*Transport, error) {
	t := newTransport(nil, portName, opts...)

	if t.pinName != "" && t.pin == nil {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
		p := gpioreg.ByName(t.pinName)
		if p == nil {
			return nil, fmt.Errorf("GPIO pin %s not found", t.pinName)
		}
		if err := p.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to drive GPIO pin %s: %w", t.pinName, err)
		}
		t.pin = p
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, diag.NewTransportError("open", portName, err, diag.ErrorTypePermanent)
	}
	t.port = port
	return t, nil
}

// NewWithPort wraps an already open port.
func NewWithPort(port Port, portName string, opts ...Option) *Transport {
	return newTransport(port, portName, opts...)
}

func newTransport(port Port, portName string, opts ...Option) *Transport {
	t := &Transport{
		port:     port,
		portName: portName,
		clock:    diag.SystemClock{},
		log:      diag.Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Capabilities implements diag.Transport. Everything is done in software,
// so the transport can take over the whole init and the checksum.
func (*Transport) Capabilities() diag.Capabilities {
	return diag.Capabilities{FullInit: true, L2Checksum: true, FastInit: true}
}

// SetSpeed implements diag.Transport.
func (t *Transport) SetSpeed(settings diag.SerialSettings) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}

	mode, err := serialMode(settings)
	if err != nil {
		return diag.NewTransportError("SetSpeed", t.portName, err, diag.ErrorTypePermanent)
	}
	if err := t.port.SetMode(mode); err != nil {
		return diag.NewTransportError("SetSpeed", t.portName, err, diag.ErrorTypePermanent)
	}
	return nil
}

func serialMode(settings diag.SerialSettings) (*serial.Mode, error) {
	if settings.Speed == 0 {
		return nil, errors.New("bus speed cannot be zero")
	}

	mode := &serial.Mode{BaudRate: int(settings.Speed), DataBits: int(settings.DataBits)}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch settings.Parity {
	case diag.ParityNone:
		mode.Parity = serial.NoParity
	case diag.ParityOdd:
		mode.Parity = serial.OddParity
	case diag.ParityEven:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %s", settings.Parity)
	}

	switch settings.StopBits {
	case diag.StopBits1, 0:
		mode.StopBits = serial.OneStopBit
	case diag.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", settings.StopBits)
	}
	return mode, nil
}

// FlushInput implements diag.Transport.
func (t *Transport) FlushInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}
	return t.port.ResetInputBuffer()
}

// Send transmits data followed by its checksum, one byte at a time with
// interByte between bytes. Each byte's echo is read back and compared.
func (t *Transport) Send(data []byte, interByte time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}

	out := frame.AppendChecksum(append([]byte(nil), data...))
	for i, b := range out {
		if i > 0 && interByte > 0 {
			t.clock.Sleep(interByte)
		}
		if err := t.writeByte(b); err != nil {
			return err
		}
	}
	t.log.Debug().Str("port", t.portName).Hex("frame", out).Msg("kline tx")
	return nil
}

// writeByte sends b and consumes its echo.
func (t *Transport) writeByte(b byte) error {
	if _, err := t.port.Write([]byte{b}); err != nil {
		return diag.NewTransportError("Send", t.portName, err, diag.ErrorTypeTransient)
	}

	var echo [1]byte
	if err := t.readFull(echo[:], interByteTimeout); err != nil {
		return diag.NewTransportError("Send", t.portName,
			fmt.Errorf("%w: no echo for %02X", diag.ErrTransportWrite, b), diag.ErrorTypeTransient)
	}
	if echo[0] != b {
		return diag.NewTransportError("Send", t.portName,
			fmt.Errorf("%w: sent %02X, line read %02X", diag.ErrTransportWrite, b, echo[0]), diag.ErrorTypeTransient)
	}
	return nil
}

// Recv reads one frame, sized by its format byte, and verifies its
// checksum. The checksum stays in the returned frame.
func (t *Transport) Recv(buf []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, diag.ErrClosed
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty receive buffer", diag.ErrBadLength)
	}

	if err := t.readFull(buf[:1], timeout); err != nil {
		return 0, err
	}

	n := frame.Length(buf[0])
	if n > len(buf) {
		return 0, diag.NewTransportError("Recv", t.portName,
			fmt.Errorf("%w: format byte %02X announces %d bytes", diag.ErrBadLength, buf[0], n),
			diag.ErrorTypeTransient)
	}
	if err := t.readFull(buf[1:n], interByteTimeout); err != nil {
		return 0, diag.NewTransportError("Recv", t.portName, diag.ErrIncompleteData, diag.ErrorTypeTransient)
	}

	if !frame.ValidChecksum(buf[:n]) {
		return 0, diag.NewTransportError("Recv", t.portName, diag.ErrChecksumMismatch, diag.ErrorTypeTransient)
	}
	t.log.Debug().Str("port", t.portName).Hex("frame", buf[:n]).Msg("kline rx")
	return n, nil
}

// readFull fills buf or fails with a timeout error once timeout passes
// without data.
func (t *Transport) readFull(buf []byte, timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return diag.NewTransportError("read", t.portName, err, diag.ErrorTypePermanent)
	}

	for got := 0; got < len(buf); {
		n, err := t.port.Read(buf[got:])
		if err != nil {
			return diag.NewTransportError("read", t.portName, err, diag.ErrorTypeTransient)
		}
		if n == 0 {
			return diag.NewTimeoutError("read", t.portName)
		}
		got += n
	}
	return nil
}

// Type implements diag.Transport.
func (*Transport) Type() diag.TransportType {
	return diag.TransportKLine
}

// Close closes the port. Further calls do nothing.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.port.Close(); err != nil {
		return diag.NewTransportError("close", t.portName, err, diag.ErrorTypePermanent)
	}
	return nil
}

var _ diag.Transport = (*Transport)(nil)
