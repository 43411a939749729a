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
	"time"
)

// Transport defines the physical layer used by protocol drivers.
// It can be implemented by ELM327 adapters, raw K-line transceivers or
// test doubles.
type Transport interface {
	// Capabilities reports what the interface does on its own
	Capabilities() Capabilities

	// SetSpeed configures the bus bit rate and character format
	SetSpeed(settings SerialSettings) error

	// FlushInput discards any buffered received bytes
	FlushInput() error

	// InitBus wakes the bus and returns the key bytes the ECU sent
	InitBus(args InitBusArgs) (KeyBytes, error)

	// Send transmits a raw frame, pacing bytes by interByte
	Send(data []byte, interByte time.Duration) error

	// Recv reads one raw frame into buf and returns its length.
	// It returns an error wrapping ErrTimeout when nothing arrives in time.
	Recv(buf []byte, timeout time.Duration) (int, error)

	// Type returns the transport type
	Type() TransportType

	// Close closes the transport connection
	Close() error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportELM327 represents an ELM327 compatible adapter.
	TransportELM327 TransportType = "elm327"
	// TransportKLine represents a raw K-line transceiver on a serial port.
	TransportKLine TransportType = "kline"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// DataBits is the number of data bits per serial character.
type DataBits uint8

// Supported data bit counts.
const (
	DataBits5 DataBits = 5
	DataBits6 DataBits = 6
	DataBits7 DataBits = 7
	DataBits8 DataBits = 8
)

// StopBits is the number of stop bits per serial character.
type StopBits uint8

// Supported stop bit counts.
const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

// SerialSettings describes the bus speed and character format.
type SerialSettings struct {
	Speed    uint
	DataBits DataBits
	StopBits StopBits
	Parity   Parity
}

// InitBusType selects the bus wake-up sequence.
type InitBusType uint8

const (
	// InitBus5Baud is the ISO 9141 slow init: the address is clocked out at 5 baud.
	InitBus5Baud InitBusType = iota + 1
	// InitBusFast is the ISO 14230 fast init wake-up pattern.
	InitBusFast
	// InitBusCARB is the CARB (OBD-II) slow init variant.
	InitBusCARB
)

func (t InitBusType) String() string {
	switch t {
	case InitBus5Baud:
		return "5baud"
	case InitBusFast:
		return "fast"
	case InitBusCARB:
		return "carb"
	default:
		return "unknown"
	}
}

// InitBusArgs are the parameters of a bus initialisation.
type InitBusArgs struct {
	Type InitBusType
	// Addr is the target address as clocked onto the bus, parity included.
	Addr byte
}

// KeyBytes are the two bytes an ECU returns after a slow init.
type KeyBytes struct {
	KB1 byte
	KB2 byte
	// Reported is false when the transport cannot observe the key bytes.
	Reported bool
}
