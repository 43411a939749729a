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
	"bytes"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/internal/frame"
	"github.com/ZaparooProject/go-diag/trace"
)

// Send frames msg and hands it to the transport, which appends the
// checksum. Zero addresses in msg default to the session's.
func (d *Driver) Send(conn *diag.Connection, msg *diag.Message) error {
	s, err := sessionOf(conn)
	if err != nil {
		return err
	}

	dest := msg.Dest
	if dest == 0 {
		dest = s.dstAddr
	}
	src := msg.Src
	if src == 0 {
		src = s.srcAddr
	}

	buf, err := frame.Encode(dest, src, msg.Data)
	if err != nil {
		return err
	}

	d.clock.Sleep(conn.P3Min)

	d.logger().Debug().Hex("frame", buf).Msg("send")
	if err := conn.Transport.Send(buf, conn.P4Min); err != nil {
		d.record(s, trace.Event{Kind: trace.KindError, Err: err.Error()})
		return err
	}

	d.record(s, trace.Event{
		Kind:      trace.KindFrame,
		Direction: trace.DirectionOut,
		Src:       src,
		Dest:      dest,
		Data:      bytes.Clone(msg.Data),
	})
	return nil
}

// Recv waits for one frame and delivers it to callback. The message is
// released when callback returns.
func (d *Driver) Recv(conn *diag.Connection, timeout time.Duration, callback diag.Callback) error {
	s, err := sessionOf(conn)
	if err != nil {
		return err
	}

	var buf [frame.MaxFrameLength]byte
	n, err := conn.Transport.Recv(buf[:], timeout+d.recvPadding)
	if err != nil {
		return err
	}

	f, err := frame.Decode(buf[:n])
	if err != nil {
		return err
	}
	if !f.LengthMatches() {
		d.logger().Debug().
			Int("declared", f.DeclaredLength()).
			Int("received", len(f.Payload)).
			Msg("format byte length disagrees with received frame")
	}

	msg, err := diag.NewMessage(len(f.Payload))
	if err != nil {
		return err
	}
	defer msg.Release()

	copy(msg.Data, f.Payload)
	msg.RxTime = d.clock.Now()
	msg.Src = f.Src
	msg.Dest = f.Dest
	msg.Format = diag.FormatFramed

	d.logger().Debug().Hex("frame", buf[:n]).Msg("recv")
	d.record(s, trace.Event{
		Kind:      trace.KindFrame,
		Direction: trace.DirectionIn,
		Src:       msg.Src,
		Dest:      msg.Dest,
		Data:      bytes.Clone(msg.Data),
	})

	if callback != nil {
		callback(msg)
	}
	return nil
}
