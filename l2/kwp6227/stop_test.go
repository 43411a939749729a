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
	"testing"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommsAcknowledged(t *testing.T) {
	t.Parallel()

	rig := newStartedRig(t)
	require.NoError(t, rig.driver.StopComms(rig.conn))

	sent := rig.transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x82, 0x10, 0x13, 0xA0}, sent[0])
	assert.False(t, rig.clock.Slept(DefaultStopWait))
	assert.Nil(t, rig.conn.ProtoData())
	assert.NotContains(t, rig.logs.String(), "StopDiagnosticSession")
}

func TestStopCommsUnacknowledged(t *testing.T) {
	t.Parallel()

	rig := newStartedRig(t)
	rig.ecu.SetSilent(true)

	done := make(chan error, 1)
	go func() { done <- rig.driver.StopComms(rig.conn) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StopComms did not return")
	}

	assert.True(t, rig.clock.Slept(5*time.Second), "must wait out the ECU session timeout")
	assert.Nil(t, rig.conn.ProtoData())
	assert.Contains(t, rig.logs.String(), "StopDiagnosticSession request failed")
}

func TestStopCommsSendFailure(t *testing.T) {
	t.Parallel()

	rig := newStartedRig(t)
	rig.transport.SendErr = diag.ErrTransportWrite

	require.NoError(t, rig.driver.StopComms(rig.conn))
	assert.True(t, rig.clock.Slept(DefaultStopWait))
	assert.Empty(t, rig.transport.RecvTimeouts(), "no receive after a failed send")
	assert.Nil(t, rig.conn.ProtoData())
}

func TestStopCommsTwice(t *testing.T) {
	t.Parallel()

	rig := newStartedRig(t)
	require.NoError(t, rig.driver.StopComms(rig.conn))
	sends := rig.transport.SendCount()
	sleeps := len(rig.clock.Sleeps())

	require.NoError(t, rig.driver.StopComms(rig.conn))
	assert.Equal(t, sends, rig.transport.SendCount(), "second stop must not transmit")
	assert.Len(t, rig.clock.Sleeps(), sleeps)
	assert.Nil(t, rig.conn.ProtoData())
}

func TestStopCommsCustomWait(t *testing.T) {
	t.Parallel()

	rig := newStartedRig(t)
	WithStopWait(time.Second)(rig.driver)
	rig.ecu.SetSilent(true)

	require.NoError(t, rig.driver.StopComms(rig.conn))
	assert.True(t, rig.clock.Slept(time.Second))
	assert.False(t, rig.clock.Slept(DefaultStopWait))
}
