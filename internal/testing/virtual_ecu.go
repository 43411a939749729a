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

	"github.com/ZaparooProject/go-diag/internal/frame"
)

// VirtualECU is a simulated KWP6227 ECU. Attach it to a MockTransport with
// Attach and it answers every frame addressed to it.
type VirtualECU struct {
	// Replies overrides the reply payload for a service ID.
	Replies  map[byte][]byte
	requests [][]byte
	mu       sync.Mutex
	Addr     byte
	// Silent drops all requests without answering.
	Silent bool
}

// NewVirtualECU creates an ECU at addr that answers every service with a
// positive reply echoing the request parameters.
func NewVirtualECU(addr byte) *VirtualECU {
	return &VirtualECU{
		Addr:    addr,
		Replies: make(map[byte][]byte),
	}
}

// Attach makes transport deliver this ECU's replies.
func (e *VirtualECU) Attach(transport *MockTransport) {
	transport.Responder = e.Respond
}

// Respond handles one transmitted frame (without checksum) and returns
// the raw reply frames.
func (e *VirtualECU) Respond(sent []byte) [][]byte {
	if len(sent) < frame.HeaderLength+1 {
		return nil
	}

	dest, src := sent[1], sent[2]
	payload := sent[frame.HeaderLength:]

	e.mu.Lock()
	defer e.mu.Unlock()

	if dest != e.Addr {
		return nil
	}
	e.requests = append(e.requests, append([]byte(nil), payload...))
	if e.Silent {
		return nil
	}

	if reply, ok := e.Replies[payload[0]]; ok {
		if reply == nil {
			return nil
		}
		return [][]byte{BuildRawFrame(src, e.Addr, reply)}
	}
	return [][]byte{BuildPositiveReply(e.Addr, src, payload[0], payload[1:]...)}
}

// Requests returns the payload of every request addressed to the ECU.
func (e *VirtualECU) Requests() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.requests))
	for i, r := range e.requests {
		out[i] = append([]byte(nil), r...)
	}
	return out
}

// SetSilent makes the ECU stop or resume answering.
func (e *VirtualECU) SetSilent(silent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Silent = silent
}
