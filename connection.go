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

import "time"

// Default link timing, in line with ISO 9141-2.
const (
	DefaultP3Min = 55 * time.Millisecond
	DefaultP4Min = 5 * time.Millisecond
)

// Connection is one diagnostic link. The framework owns it; the protocol
// driver reads the timing fields, fills in the negotiated values and keeps
// its private state in ProtoData.
//
// A Connection must not be used by more than one goroutine at a time.
type Connection struct {
	Transport Transport
	protoData any
	// P3Min is the minimum delay before each outgoing message.
	P3Min time.Duration
	// P4Min is the minimum delay between bytes of an outgoing message.
	P4Min time.Duration
	// Speed is the negotiated bus bit rate.
	Speed uint
	KB1   byte
	KB2   byte
}

// NewConnection creates a connection over transport with default timing.
func NewConnection(transport Transport) *Connection {
	return &Connection{
		Transport: transport,
		P3Min:     DefaultP3Min,
		P4Min:     DefaultP4Min,
	}
}

// ProtoData returns the protocol driver's private session state, or nil
// when no session is open.
func (c *Connection) ProtoData() any {
	return c.protoData
}

// SetProtoData stores the protocol driver's private session state. Passing
// nil marks the connection as closed.
func (c *Connection) SetProtoData(v any) {
	c.protoData = v
}
