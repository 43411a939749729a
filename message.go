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
	"bytes"
	"fmt"
	"sync"
	"time"
)

// MaxMessageLen is the largest payload NewMessage will allocate.
const MaxMessageLen = 255

// Format describes how a message's boundaries and checksum were handled.
type Format uint8

const (
	// FormatFramed marks a message whose boundaries came from a length header.
	FormatFramed Format = 1 << iota
	// FormatChecksummed marks a message whose Data still carries its checksum.
	FormatChecksummed
	// FormatBadChecksum marks a message whose checksum did not verify.
	FormatBadChecksum
)

// Message is a diagnostic message exchanged with an ECU.
//
// Messages handed to a receive Callback come from a pool and are released
// when the callback returns; use Clone to keep one.
type Message struct {
	RxTime time.Time
	Data   []byte
	Format Format
	Src    byte
	Dest   byte
	pooled bool
}

var messagePool = sync.Pool{
	New: func() any { return &Message{} },
}

// NewMessage returns a pooled message with an n byte zeroed payload.
func NewMessage(n int) (*Message, error) {
	if n < 0 || n > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrNoMemory, n)
	}

	msg, ok := messagePool.Get().(*Message)
	if !ok {
		return nil, ErrNoMemory
	}

	if cap(msg.Data) < n {
		msg.Data = make([]byte, n)
	} else {
		msg.Data = msg.Data[:n]
		clear(msg.Data)
	}
	msg.pooled = true
	return msg, nil
}

// Len returns the payload length.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Data)
}

// Clone returns an unpooled deep copy of m. It returns nil for a nil message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	return &Message{
		RxTime: m.RxTime,
		Data:   bytes.Clone(m.Data),
		Format: m.Format,
		Src:    m.Src,
		Dest:   m.Dest,
	}
}

// Release returns a pooled message to the pool. Releasing an unpooled or
// already released message does nothing.
func (m *Message) Release() {
	if m == nil || !m.pooled {
		return
	}
	m.pooled = false
	m.RxTime = time.Time{}
	m.Format = 0
	m.Src = 0
	m.Dest = 0
	m.Data = m.Data[:0]
	messagePool.Put(m)
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("dest=%02X src=%02X data=[% X]", m.Dest, m.Src, m.Data)
}
