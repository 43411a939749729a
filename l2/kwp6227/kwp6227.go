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

// Package kwp6227 implements the KWP6227 link layer, keyword D3 B0.
//
// KWP6227 is spoken by the engine and chassis ECUs of 1996-1998 Volvo
// 850, S40, C70, S70, V70, XC70 and V90 models for extended diagnostics.
// Its headers look like KWP2000, but the length in the format byte also
// counts the trailing checksum, so it is one greater than KWP2000's.
//
// The driver needs a transport that performs the whole 5 baud init and
// appends the checksum itself, such as an ELM327 adapter.
//
// Importing the package registers the driver with diag under the name
// "KWP6227".
package kwp6227

import (
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/trace"
	"github.com/rs/zerolog"
)

// Name is the registered protocol name.
const Name = "KWP6227"

// Protocol constants
const (
	DefaultBitrate       = 10400
	DefaultTesterAddress = 0x13

	KeyByte1 = 0xD3
	KeyByte2 = 0xB0

	ServiceStopDiagnosticSession = 0xA0
	ServiceTesterPresent         = 0xA1
)

// Timing defaults
const (
	// DefaultRecvPadding is added to every receive timeout to absorb
	// adapter latency. It is an empirical margin, not a protocol value.
	DefaultRecvPadding = 100 * time.Millisecond

	DefaultSettleDelay    = 300 * time.Millisecond
	DefaultRequestTimeout = 1000 * time.Millisecond
	// DefaultStopWait is how long to wait for the ECU to drop the session
	// by itself when a stop request goes unanswered.
	DefaultStopWait = 5 * time.Second
)

func init() {
	diag.MustRegister(New())
}

// Driver is the KWP6227 implementation of diag.Protocol. A single Driver
// can serve any number of connections; all per-session state lives in the
// connection.
type Driver struct {
	clock          diag.Clock
	recorder       trace.Recorder
	// log is nil until WithLogger is used; see logger.
	log            *zerolog.Logger
	recvPadding    time.Duration
	settleDelay    time.Duration
	requestTimeout time.Duration
	stopWait       time.Duration
	strictKeyBytes bool
}

// session is the driver's private per-connection state.
type session struct {
	id      string
	srcAddr byte
	dstAddr byte
}

// New creates a driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		clock:          diag.SystemClock{},
		recorder:       trace.NopRecorder{},
		recvPadding:    DefaultRecvPadding,
		settleDelay:    DefaultSettleDelay,
		requestTimeout: DefaultRequestTimeout,
		stopWait:       DefaultStopWait,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID implements diag.Protocol.
func (*Driver) ID() diag.ProtocolID {
	return diag.ProtocolKWP6227
}

// Name implements diag.Protocol.
func (*Driver) Name() string {
	return Name
}

// Flags implements diag.Protocol.
func (*Driver) Flags() diag.ProtocolFlags {
	return diag.FlagFramed | diag.FlagKeepAlive
}

// logger returns the WithLogger logger, or else the current package
// logger, so diag.SetLogger also reaches the driver registered at init.
func (d *Driver) logger() *zerolog.Logger {
	if d.log != nil {
		return d.log
	}
	l := diag.Logger().With().Str("proto", Name).Logger()
	return &l
}

func sessionOf(conn *diag.Connection) (*session, error) {
	s, ok := conn.ProtoData().(*session)
	if !ok || s == nil {
		return nil, diag.ErrNoSession
	}
	return s, nil
}

func (d *Driver) record(s *session, ev trace.Event) {
	ev.Timestamp = d.clock.Now()
	ev.SessionID = s.id
	ev.Protocol = Name
	d.recorder.Record(ev)
}

var _ diag.Protocol = (*Driver)(nil)
