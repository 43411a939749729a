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

// StopComms ends the session with a stop diagnostic session request. If
// the ECU does not acknowledge, it waits for the ECU's own session timeout
// instead. The session state is always released and StopComms always
// returns nil; calling it again is a no-op.
func (d *Driver) StopComms(conn *diag.Connection) error {
	s, err := sessionOf(conn)
	if err != nil {
		return nil //nolint:nilerr // already stopped
	}

	msg := &diag.Message{Data: []byte{ServiceStopDiagnosticSession}}
	reply, err := d.Request(conn, msg)
	if err != nil || reply == nil {
		d.logger().Warn().Err(err).
			Dur("wait", d.stopWait).
			Msg("StopDiagnosticSession request failed, waiting for session to time out")
		d.clock.Sleep(d.stopWait)
	}
	reply.Release()

	d.record(s, trace.Event{Kind: trace.KindStop})
	conn.SetProtoData(nil)
	return nil
}
