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

package kwp6227

import (
	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/trace"
)

// Request sends msg and waits up to one second for the reply. Only the
// first delivered message is kept.
func (d *Driver) Request(conn *diag.Connection, msg *diag.Message) (*diag.Message, error) {
	if err := d.Send(conn, msg); err != nil {
		return nil, err
	}

	var reply *diag.Message
	err := d.Recv(conn, d.requestTimeout, func(in *diag.Message) {
		if reply == nil {
			reply = in.Clone()
		}
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, diag.ErrNoMemory
	}
	return reply, nil
}

// Timeout keeps the ECU session alive with a tester present message. It
// never fails: any reply is dropped and errors are only logged at debug.
func (d *Driver) Timeout(conn *diag.Connection) {
	s, err := sessionOf(conn)
	if err != nil {
		return
	}

	d.record(s, trace.Event{Kind: trace.KindKeepAlive})
	msg := &diag.Message{Data: []byte{ServiceTesterPresent}}
	reply, err := d.Request(conn, msg)
	if err != nil {
		d.logger().Debug().Err(err).Msg("keepalive got no reply")
	}
	reply.Release()
}
