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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InitMode selects how a session is started on the bus.
type InitMode uint8

const (
	// InitSlow is the 5 baud address wake-up.
	InitSlow InitMode = iota + 1
	// InitFast is the ISO 14230 fast init.
	InitFast
	// InitCARB is the CARB slow init used by OBD-II scan tools.
	InitCARB
)

func (m InitMode) String() string {
	switch m {
	case InitSlow:
		return "slow"
	case InitFast:
		return "fast"
	case InitCARB:
		return "carb"
	default:
		return "unknown"
	}
}

// ProtocolID identifies a link-layer protocol.
type ProtocolID uint8

// Known link-layer protocols.
const (
	ProtocolRaw ProtocolID = iota
	ProtocolISO9141
	ProtocolISO14230
	ProtocolKWP6227
)

// ProtocolFlags describe protocol behavior the framework must know about.
type ProtocolFlags uint8

const (
	// FlagFramed means each Recv delivers exactly one whole message.
	FlagFramed ProtocolFlags = 1 << iota
	// FlagKeepAlive means the protocol wants Timeout called when idle.
	FlagKeepAlive
	// FlagDataOnly means Recv delivers payload without headers.
	FlagDataOnly
)

// Callback receives a decoded message. The message is released when the
// callback returns.
type Callback func(msg *Message)

// Protocol is the operation set every link-layer driver implements.
type Protocol interface {
	// ID returns the protocol identifier
	ID() ProtocolID

	// Name returns the protocol name used for lookup
	Name() string

	// Flags returns the protocol flags
	Flags() ProtocolFlags

	// StartComms opens a session with the ECU at target, using source as
	// the tester address. A zero bitrate selects the protocol default.
	StartComms(conn *Connection, mode InitMode, bitrate uint, target, source byte) error

	// StopComms ends the session and releases its state
	StopComms(conn *Connection) error

	// Send transmits one message
	Send(conn *Connection, msg *Message) error

	// Recv waits up to timeout for a message and hands it to callback
	Recv(conn *Connection, timeout time.Duration, callback Callback) error

	// Request sends msg and returns the first reply
	Request(conn *Connection, msg *Message) (*Message, error)

	// Timeout is called by the framework when the session has been idle
	Timeout(conn *Connection)
}

var registry = struct {
	byName map[string]Protocol
	mu     sync.RWMutex
}{
	byName: make(map[string]Protocol),
}

// Register makes a protocol available by name. Names are case-insensitive;
// registering the same name twice is an error.
func Register(p Protocol) error {
	key := strings.ToUpper(p.Name())

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.byName[key]; exists {
		return fmt.Errorf("protocol %s already registered", p.Name())
	}
	registry.byName[key] = p
	debugf("registered L2 protocol %s (id %d)", p.Name(), p.ID())
	return nil
}

// MustRegister is Register for use in init functions; it panics on error.
func MustRegister(p Protocol) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the protocol registered under name.
func Lookup(name string) (Protocol, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	p, ok := registry.byName[strings.ToUpper(name)]
	return p, ok
}

// LookupID returns the protocol registered with id.
func LookupID(id ProtocolID) (Protocol, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for _, p := range registry.byName {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Protocols returns all registered protocols ordered by ID.
func Protocols() []Protocol {
	registry.mu.RLock()
	protos := make([]Protocol, 0, len(registry.byName))
	for _, p := range registry.byName {
		protos = append(protos, p)
	}
	registry.mu.RUnlock()

	sort.Slice(protos, func(i, j int) bool {
		return protos[i].ID() < protos[j].ID()
	})
	return protos
}
