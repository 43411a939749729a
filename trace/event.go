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

package trace

import (
	"fmt"
	"time"
)

// Event is one recorded link-layer event.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"3,keyasint"`

	// Direction of a frame event.
	Direction Direction `cbor:"4,keyasint,omitempty"`

	// Protocol is the link-layer protocol name.
	Protocol string `cbor:"5,keyasint,omitempty"`

	// Data is the frame payload for frame events, or the key bytes for a
	// start event.
	Data []byte `cbor:"6,keyasint,omitempty"`

	Src  byte `cbor:"7,keyasint,omitempty"`
	Dest byte `cbor:"8,keyasint,omitempty"`

	// Err is the error text for error events.
	Err string `cbor:"9,keyasint,omitempty"`
}

// Kind classifies an event.
type Kind uint8

const (
	// KindStart marks a session opened on the bus.
	KindStart Kind = 0
	// KindStop marks a session closed.
	KindStop Kind = 1
	// KindFrame is a frame sent or received.
	KindFrame Kind = 2
	// KindKeepAlive marks an idle keepalive exchange.
	KindKeepAlive Kind = 3
	// KindError is a failed operation.
	KindError Kind = 4
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "START"
	case KindStop:
		return "STOP"
	case KindFrame:
		return "FRAME"
	case KindKeepAlive:
		return "KEEPALIVE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Direction indicates frame flow.
type Direction uint8

const (
	// DirectionIn indicates a frame from the ECU.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame to the ECU.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// String formats the event on one line.
func (e Event) String() string {
	ts := e.Timestamp.Format("15:04:05.000")
	switch e.Kind {
	case KindFrame:
		return fmt.Sprintf("%s %s %-3s %02X->%02X [% X]", ts, e.SessionID, e.Direction, e.Src, e.Dest, e.Data)
	case KindStart:
		return fmt.Sprintf("%s %s START %s keybytes=[% X]", ts, e.SessionID, e.Protocol, e.Data)
	case KindError:
		return fmt.Sprintf("%s %s ERROR %s", ts, e.SessionID, e.Err)
	default:
		return fmt.Sprintf("%s %s %s", ts, e.SessionID, e.Kind)
	}
}
