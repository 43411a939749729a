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

package elm327

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// fakePort scripts an ELM327 adapter. Each command written is answered
// with its reply followed by the prompt; unknown commands get "OK".
type fakePort struct {
	replies map[string]string
	// respond answers commands missing from replies when set.
	respond func(cmd string) string
	// rejects counts how many more times a command is answered with "?".
	rejects map[string]int
	// silent commands are never answered.
	silent  map[string]bool
	written []string
	pending bytes.Buffer
	line    []byte
	mu      sync.Mutex
	resets  int
	closed  bool
}

func newFakePort() *fakePort {
	return &fakePort{
		replies: map[string]string{
			"ATZ":  "ELM327 v1.5",
			"ATSI": "BUS INIT: ...OK",
			"ATKW": "1:D3 2:B0",
		},
		rejects: make(map[string]int),
		silent:  make(map[string]bool),
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range b {
		if c != '\r' {
			p.line = append(p.line, c)
			continue
		}
		cmd := string(p.line)
		p.line = p.line[:0]
		p.written = append(p.written, cmd)
		p.answer(cmd)
	}
	return len(b), nil
}

func (p *fakePort) answer(cmd string) {
	if p.silent[cmd] {
		return
	}
	if p.rejects[cmd] > 0 {
		p.rejects[cmd]--
		p.pending.WriteString("?\r\r>")
		return
	}

	reply, ok := p.replies[cmd]
	if !ok {
		reply = "OK"
		if p.respond != nil && !strings.HasPrefix(cmd, "AT") {
			reply = p.respond(cmd)
		}
	}
	p.pending.WriteString(reply + "\r\r>")
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending.Len() == 0 {
		return 0, nil
	}
	return p.pending.Read(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (*fakePort) SetReadTimeout(time.Duration) error {
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.pending.Reset()
	return nil
}

func (p *fakePort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func (p *fakePort) countWritten(cmd string) int {
	n := 0
	for _, w := range p.Written() {
		if w == cmd {
			n++
		}
	}
	return n
}
