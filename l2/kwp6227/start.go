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
	"fmt"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/trace"
	"github.com/google/uuid"
)

// StartComms wakes the ECU at target with a 5 baud init and opens a
// session. Only diag.InitSlow is supported. A zero bitrate selects
// 10400 baud. Any failure leaves the connection without a session.
func (d *Driver) StartComms(conn *diag.Connection, mode diag.InitMode, bitrate uint, target, source byte) error {
	caps := conn.Transport.Capabilities()
	if !caps.FullInit || !caps.L2Checksum {
		d.logger().Warn().
			Str("transport", string(conn.Transport.Type())).
			Stringer("capabilities", caps).
			Msg("can't do KWP6227 on this interface, it must do the full init and the checksum")
		return fmt.Errorf("%w: %s lacks full init or checksum support",
			diag.ErrProtoNotSupported, conn.Transport.Type())
	}

	if mode != diag.InitSlow {
		return fmt.Errorf("%w: %s init requested, KWP6227 needs slow init",
			diag.ErrInitNotSupported, mode)
	}

	s := &session{
		id:      uuid.NewString(),
		srcAddr: source,
		dstAddr: target,
	}
	conn.SetProtoData(s)

	if source != DefaultTesterAddress {
		d.logger().Warn().
			Str("tester", fmt.Sprintf("%02X", source)).
			Msgf("using tester address %02X, some ECUs require tester address %02X", source, DefaultTesterAddress)
	}

	if bitrate == 0 {
		bitrate = DefaultBitrate
	}
	conn.Speed = bitrate

	if err := d.handshake(conn, target); err != nil {
		conn.SetProtoData(nil)
		d.logger().Debug().Err(err).Msg("start comms failed")
		return err
	}

	d.record(s, trace.Event{
		Kind: trace.KindStart,
		Src:  source,
		Dest: target,
		Data: []byte{conn.KB1, conn.KB2},
	})
	d.logger().Debug().
		Str("session", s.id).
		Uint("speed", conn.Speed).
		Msgf("session open, key bytes %02X%02X", conn.KB1, conn.KB2)
	return nil
}

func (d *Driver) handshake(conn *diag.Connection, target byte) error {
	settings := diag.SerialSettings{
		Speed:    conn.Speed,
		DataBits: diag.DataBits8,
		StopBits: diag.StopBits1,
		Parity:   diag.ParityNone,
	}
	if err := conn.Transport.SetSpeed(settings); err != nil {
		return fmt.Errorf("failed to set bus speed %d: %w", conn.Speed, err)
	}

	_ = conn.Transport.FlushInput()
	d.clock.Sleep(d.settleDelay)

	kb, err := conn.Transport.InitBus(diag.InitBusArgs{
		Type: diag.InitBus5Baud,
		Addr: diag.WithParity(target, diag.ParityOdd),
	})
	if err != nil {
		return fmt.Errorf("5 baud init of %02X failed: %w", target, err)
	}

	return d.checkKeyBytes(conn, kb)
}

// checkKeyBytes trusts key bytes the transport observed. When it could not
// observe them, D3 B0 is assumed unless strict checking is enabled.
func (d *Driver) checkKeyBytes(conn *diag.Connection, kb diag.KeyBytes) error {
	if !kb.Reported {
		if d.strictKeyBytes {
			return fmt.Errorf("%w: transport did not report key bytes", diag.ErrWrongKeyBytes)
		}
		d.logger().Debug().Msgf("transport did not report key bytes, assuming %02X%02X", KeyByte1, KeyByte2)
		kb = diag.KeyBytes{KB1: KeyByte1, KB2: KeyByte2, Reported: true}
	}

	conn.KB1 = kb.KB1
	conn.KB2 = kb.KB2

	if kb.KB1 != KeyByte1 || kb.KB2 != KeyByte2 {
		d.logger().Warn().Msgf("wrong key bytes %02X%02X, expecting %02X%02X", kb.KB1, kb.KB2, KeyByte1, KeyByte2)
		return fmt.Errorf("%w: got %02X%02X, expecting %02X%02X",
			diag.ErrWrongKeyBytes, kb.KB1, kb.KB2, KeyByte1, KeyByte2)
	}
	return nil
}
