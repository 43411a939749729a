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

package testing

import (
	"sync"
	"time"

	diag "github.com/ZaparooProject/go-diag"
)

// MockTransport is a scriptable diag.Transport. Frames passed to Send are
// recorded; Recv pops queued raw frames and times out when none are left.
type MockTransport struct {
	// Responder, when set, is called with every sent frame and its return
	// value is queued for Recv.
	Responder func(frame []byte) [][]byte

	SetSpeedErr error
	InitBusErr  error
	SendErr     error
	RecvErr     error

	sent       [][]byte
	rxQueue    [][]byte
	settings   []diag.SerialSettings
	initArgs   []diag.InitBusArgs
	interBytes []time.Duration
	timeouts   []time.Duration
	Caps       diag.Capabilities
	Keys       diag.KeyBytes
	mu         sync.Mutex
	flushes    int
	initCalls  int
	closed     bool
}

// NewMockTransport creates a mock with full init and checksum capability
// that reports the D3 B0 key bytes.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Caps: diag.Capabilities{FullInit: true, L2Checksum: true},
		Keys: diag.KeyBytes{KB1: 0xD3, KB2: 0xB0, Reported: true},
	}
}

// QueueResponse queues raw frames for Recv.
func (m *MockTransport) QueueResponse(raw ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range raw {
		m.rxQueue = append(m.rxQueue, append([]byte(nil), r...))
	}
}

// Capabilities implements diag.Transport.
func (m *MockTransport) Capabilities() diag.Capabilities {
	return m.Caps
}

// SetSpeed implements diag.Transport.
func (m *MockTransport) SetSpeed(settings diag.SerialSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = append(m.settings, settings)
	return m.SetSpeedErr
}

// FlushInput implements diag.Transport.
func (m *MockTransport) FlushInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.rxQueue = nil
	return nil
}

// InitBus implements diag.Transport.
func (m *MockTransport) InitBus(args diag.InitBusArgs) (diag.KeyBytes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	m.initArgs = append(m.initArgs, args)
	if m.InitBusErr != nil {
		return diag.KeyBytes{}, m.InitBusErr
	}
	return m.Keys, nil
}

// Send implements diag.Transport.
func (m *MockTransport) Send(data []byte, interByte time.Duration) error {
	m.mu.Lock()
	m.sent = append(m.sent, append([]byte(nil), data...))
	m.interBytes = append(m.interBytes, interByte)
	err := m.SendErr
	responder := m.Responder
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if responder != nil {
		m.QueueResponse(responder(data)...)
	}
	return nil
}

// Recv implements diag.Transport.
func (m *MockTransport) Recv(buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = append(m.timeouts, timeout)

	if m.closed {
		return 0, diag.ErrClosed
	}
	if m.RecvErr != nil {
		return 0, m.RecvErr
	}
	if len(m.rxQueue) == 0 {
		return 0, diag.NewTimeoutError("Recv", "mock")
	}

	raw := m.rxQueue[0]
	m.rxQueue = m.rxQueue[1:]
	if len(raw) > len(buf) {
		return 0, diag.NewTransportError("Recv", "mock", diag.ErrIncompleteData, diag.ErrorTypeTransient)
	}
	return copy(buf, raw), nil
}

// Type implements diag.Transport.
func (*MockTransport) Type() diag.TransportType {
	return diag.TransportMock
}

// Close implements diag.Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns copies of every frame passed to Send.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, s := range m.sent {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// SendCount returns the number of Send calls.
func (m *MockTransport) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// InterBytes returns the inter-byte delay passed to each Send.
func (m *MockTransport) InterBytes() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.interBytes...)
}

// RecvTimeouts returns the timeout passed to each Recv.
func (m *MockTransport) RecvTimeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timeouts...)
}

// Settings returns every SetSpeed argument.
func (m *MockTransport) Settings() []diag.SerialSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]diag.SerialSettings(nil), m.settings...)
}

// InitArgs returns every InitBus argument.
func (m *MockTransport) InitArgs() []diag.InitBusArgs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]diag.InitBusArgs(nil), m.initArgs...)
}

// InitCalls returns the number of InitBus calls.
func (m *MockTransport) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

// Flushes returns the number of FlushInput calls.
func (m *MockTransport) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

var _ diag.Transport = (*MockTransport)(nil)
