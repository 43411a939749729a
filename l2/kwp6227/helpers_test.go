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
	"sync"
	"testing"

	diag "github.com/ZaparooProject/go-diag"
	diagtest "github.com/ZaparooProject/go-diag/internal/testing"
	"github.com/ZaparooProject/go-diag/trace"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type captureRecorder struct {
	events []trace.Event
	mu     sync.Mutex
}

func (r *captureRecorder) Record(ev trace.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *captureRecorder) Events() []trace.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trace.Event(nil), r.events...)
}

type testRig struct {
	driver    *Driver
	clock     *diagtest.FakeClock
	transport *diagtest.MockTransport
	ecu       *diagtest.VirtualECU
	conn      *diag.Connection
	recorder  *captureRecorder
	logs      *bytes.Buffer
}

// newRig builds a driver on a fake clock and a mock transport with a
// virtual ECU at diagtest.TargetAddr. The session is not started.
func newRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		clock:     diagtest.NewFakeClock(),
		transport: diagtest.NewMockTransport(),
		ecu:       diagtest.NewVirtualECU(diagtest.TargetAddr),
		recorder:  &captureRecorder{},
		logs:      &bytes.Buffer{},
	}
	rig.ecu.Attach(rig.transport)
	rig.driver = New(
		WithClock(rig.clock),
		WithRecorder(rig.recorder),
		WithLogger(zerolog.New(rig.logs)),
	)
	rig.conn = diag.NewConnection(rig.transport)
	return rig
}

// newStartedRig is newRig with an open session.
func newStartedRig(t *testing.T) *testRig {
	t.Helper()

	rig := newRig(t)
	err := rig.driver.StartComms(rig.conn, diag.InitSlow, 0, diagtest.TargetAddr, diagtest.TesterAddr)
	require.NoError(t, err)
	return rig
}
