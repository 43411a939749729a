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

// Package elm327 provides a transport for ELM327 compatible OBD adapters.
//
// The adapter performs the whole ISO 9141 bus initialisation and appends
// the checksum itself, so it declares the full init and checksum
// capabilities KWP6227 requires.
package elm327

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/internal/frame"
	"github.com/ZaparooProject/go-diag/internal/transport"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// Defaults
const (
	DefaultBaudRate       = 38400
	DefaultCommandTimeout = 2 * time.Second
	DefaultRetries        = 2

	readChunkTimeout = 20 * time.Millisecond
	retryDelay       = 50 * time.Millisecond
)

// Port is the part of serial.Port the adapter needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements diag.Transport for an ELM327 adapter.
type Transport struct {
	port       Port
	log        zerolog.Logger
	portName   string
	rx         [][]byte
	header     []byte
	cmdTimeout time.Duration
	baudRate   int
	retries    int
	mu         sync.Mutex
	closed     bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithBaudRate sets the serial speed between host and adapter.
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		t.baudRate = baud
	}
}

// WithCommandTimeout bounds the wait for the adapter prompt.
func WithCommandTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.cmdTimeout = d
	}
}

// WithRetries sets how often a rejected AT command is retried.
func WithRetries(n int) Option {
	return func(t *Transport) {
		t.retries = n
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = logger
	}
}

// New opens the adapter on portName and resets it.
func New(portName string, opts ...Option) (*Transport, error) {
	t := newTransport(nil, portName, opts...)

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, diag.NewTransportError("open", portName, err, diag.ErrorTypePermanent)
	}
	t.port = port

	if err := t.Reset(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort wraps an already open port. The adapter is not reset.
func NewWithPort(port Port, portName string, opts ...Option) *Transport {
	return newTransport(port, portName, opts...)
}

func newTransport(port Port, portName string, opts ...Option) *Transport {
	t := &Transport{
		port:       port,
		portName:   portName,
		log:        diag.Logger(),
		cmdTimeout: DefaultCommandTimeout,
		baudRate:   DefaultBaudRate,
		retries:    DefaultRetries,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset restores adapter defaults and configures the output format the
// transport parses: no echo, no linefeeds, headers and spaces on, key
// word checking off.
func (t *Transport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, cmd := range []string{"ATZ", "ATE0", "ATL0", "ATH1", "ATS1", "ATKW0"} {
		if _, err := t.command(cmd); err != nil {
			return fmt.Errorf("adapter reset failed at %s: %w", cmd, err)
		}
	}
	t.header = nil
	t.rx = nil
	return nil
}

// Capabilities implements diag.Transport.
func (*Transport) Capabilities() diag.Capabilities {
	return diag.Capabilities{FullInit: true, L2Checksum: true, FastInit: true}
}

// SetSpeed selects the ISO bus speed. The adapter only speaks 8N1 at
// 10400 or 9600 baud.
func (t *Transport) SetSpeed(settings diag.SerialSettings) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}

	if settings.DataBits != diag.DataBits8 || settings.StopBits != diag.StopBits1 ||
		settings.Parity != diag.ParityNone {
		return diag.NewTransportError("SetSpeed", t.portName,
			fmt.Errorf("unsupported character format %d%s%d", settings.DataBits, settings.Parity, settings.StopBits),
			diag.ErrorTypePermanent)
	}

	var cmd string
	switch settings.Speed {
	case 10400:
		cmd = "ATIB 10"
	case 9600:
		cmd = "ATIB 96"
	default:
		return diag.NewTransportError("SetSpeed", t.portName,
			fmt.Errorf("unsupported bus speed %d", settings.Speed), diag.ErrorTypePermanent)
	}
	_, err := t.command(cmd)
	return err
}

// FlushInput implements diag.Transport.
func (t *Transport) FlushInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}

	t.rx = nil
	return t.port.ResetInputBuffer()
}

// InitBus wakes the bus and reads back the key words the ECU sent.
func (t *Transport) InitBus(args diag.InitBusArgs) (diag.KeyBytes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.KeyBytes{}, diag.ErrClosed
	}

	var cmds []string
	switch args.Type {
	case diag.InitBus5Baud:
		// The adapter adds the parity bit itself.
		cmds = []string{"ATSP3", fmt.Sprintf("ATIIA %02X", args.Addr&0x7F), "ATSI"}
	case diag.InitBusFast:
		cmds = []string{"ATSP5", "ATFI"}
	default:
		return diag.KeyBytes{}, diag.NewTransportError("InitBus", t.portName,
			fmt.Errorf("%w: %s", diag.ErrInitNotSupported, args.Type), diag.ErrorTypePermanent)
	}

	for _, cmd := range cmds {
		if _, err := t.command(cmd); err != nil {
			return diag.KeyBytes{}, diag.NewTransportError("InitBus", t.portName, err, diag.GetErrorType(err))
		}
	}
	t.header = nil
	t.rx = nil

	lines, err := t.command("ATKW")
	if err != nil {
		t.log.Debug().Err(err).Msg("elm327: could not read key words")
		return diag.KeyBytes{}, nil
	}
	kb1, kb2, ok := parseKeyWords(lines)
	if !ok {
		t.log.Debug().Strs("reply", lines).Msg("elm327: unparseable key words")
		return diag.KeyBytes{}, nil
	}
	return diag.KeyBytes{KB1: kb1, KB2: kb2, Reported: true}, nil
}

// Send transmits a frame without its checksum. The header bytes go out
// through ATSH and the payload as data, after which the adapter prints the
// replies it collected; they replace whatever Recv had not yet read. The adapter paces bytes
// on its own, so interByte is not used.
func (t *Transport) Send(data []byte, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return diag.ErrClosed
	}

	if len(data) < frame.HeaderLength+frame.MinPayloadLength {
		return fmt.Errorf("%w: %d byte frame", diag.ErrBadLength, len(data))
	}

	hdr := data[:frame.HeaderLength]
	if !bytes.Equal(hdr, t.header) {
		if _, err := t.command("ATSH " + hexBytes(hdr)); err != nil {
			return diag.NewTransportError("Send", t.portName, err, diag.GetErrorType(err))
		}
		t.header = bytes.Clone(hdr)
	}

	lines, err := t.command(hexBytes(data[frame.HeaderLength:]))
	if err != nil {
		return diag.NewTransportError("Send", t.portName, err, diag.GetErrorType(err))
	}

	frames, err := parseFrames(lines)
	if err != nil {
		return diag.NewTransportError("Send", t.portName, err, diag.ErrorTypeTransient)
	}
	// Replies still queued belong to an earlier request window.
	t.rx = frames
	return nil
}

// Recv returns the next reply collected by Send. The adapter only reports
// replies inside the request window, so an empty queue is a timeout.
func (t *Transport) Recv(buf []byte, _ time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, diag.ErrClosed
	}

	if len(t.rx) == 0 {
		return 0, diag.NewTimeoutError("Recv", t.portName)
	}

	raw := t.rx[0]
	t.rx = t.rx[1:]
	if len(raw) > len(buf) {
		return 0, diag.NewTransportError("Recv", t.portName,
			fmt.Errorf("%w: %d byte frame", diag.ErrBadLength, len(raw)), diag.ErrorTypeTransient)
	}
	return copy(buf, raw), nil
}

// Type implements diag.Transport.
func (*Transport) Type() diag.TransportType {
	return diag.TransportELM327
}

// Close closes the protocol and the port. Further calls do nothing.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if _, err := t.command("ATPC"); err != nil {
		t.log.Debug().Err(err).Msg("elm327: protocol close failed")
	}
	if err := t.port.Close(); err != nil {
		return diag.NewTransportError("close", t.portName, err, diag.ErrorTypePermanent)
	}
	return nil
}

// command sends one line and returns the response lines up to the prompt.
// Commands the adapter answers with "?" or does not answer in time are
// retried.
func (t *Transport) command(cmd string) ([]string, error) {
	t.log.Debug().Str("port", t.portName).Msgf("elm327 > %s", cmd)

	lines, err := transport.WithRetry(transport.RetryConfig{
		Description: "elm327 " + cmd,
		MaxRetries:  t.retries,
		RetryDelay:  retryDelay,
		OnRetry:     t.port.ResetInputBuffer,
	}, func() ([]string, bool, error) {
		if _, err := t.port.Write([]byte(cmd + "\r")); err != nil {
			return nil, false, diag.NewTransportError("write", t.portName, err, diag.ErrorTypeTransient)
		}

		raw, err := t.readPrompt()
		if err != nil {
			if diag.IsRetryable(err) {
				return nil, true, nil
			}
			return nil, false, err
		}

		lines := splitLines(raw)
		if len(lines) == 1 && lines[0] == statusUnknown {
			return nil, true, nil
		}
		return lines, false, nil
	})
	if err != nil {
		return nil, err
	}

	t.log.Debug().Str("port", t.portName).Strs("reply", lines).Msg("elm327 <")
	if err := checkStatus(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// readPrompt reads until the adapter prompt or the command timeout.
func (t *Transport) readPrompt() (string, error) {
	if err := t.port.SetReadTimeout(readChunkTimeout); err != nil {
		return "", diag.NewTransportError("read", t.portName, err, diag.ErrorTypePermanent)
	}

	var resp []byte
	chunk := make([]byte, 64)
	return transport.TimeoutRetry(t.cmdTimeout, func() (string, bool, error) {
		n, err := t.port.Read(chunk)
		if err != nil {
			return "", false, diag.NewTransportError("read", t.portName, err, diag.ErrorTypeTransient)
		}
		resp = append(resp, chunk[:n]...)
		if bytes.IndexByte(resp, prompt) >= 0 {
			return string(resp), false, nil
		}
		return "", true, nil
	})
}

var _ diag.Transport = (*Transport)(nil)
