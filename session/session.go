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

// Package session opens diagnostic sessions on a transport through a
// registered link-layer protocol and keeps them alive while idle.
//
// A Session serializes every call into the protocol driver, so one Session
// may be shared between goroutines even though drivers are not safe for
// concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/rs/zerolog"
)

// DefaultKeepAliveInterval is how long a session may sit idle before the
// protocol's keepalive runs.
const DefaultKeepAliveInterval = 2 * time.Second

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Config describes the session to open.
type Config struct {
	// Protocol is the registered protocol name, e.g. "KWP6227".
	Protocol string
	Mode     diag.InitMode
	// Bitrate of zero selects the protocol default.
	Bitrate uint
	Target  byte
	Source  byte
	// P3Min and P4Min override the connection timing when non-zero.
	P3Min time.Duration
	P4Min time.Duration
	// KeepAliveInterval of zero selects DefaultKeepAliveInterval.
	KeepAliveInterval time.Duration
}

// Metrics tracks session activity.
type Metrics struct {
	Sent            int64
	Received        int64
	KeepAlives      int64
	Errors          int64
	LastActivityAgo time.Duration
}

// Session is an open diagnostic session.
type Session struct {
	proto        diag.Protocol
	conn         *diag.Connection
	log          zerolog.Logger
	done         chan struct{}
	closeErr     error
	cfg          Config
	mu           sync.Mutex
	closeOnce    sync.Once
	lastActivity int64
	sent         int64
	received     int64
	keepAlives   int64
	failures     int64
	closed       bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// Open looks up cfg.Protocol in the diag registry and opens a session
// with it on transport.
func Open(transport diag.Transport, cfg Config, opts ...Option) (*Session, error) {
	proto, ok := diag.Lookup(cfg.Protocol)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", diag.ErrProtoNotSupported, cfg.Protocol)
	}
	return OpenWithProtocol(proto, transport, cfg, opts...)
}

// OpenWithProtocol opens a session with an explicit protocol driver.
func OpenWithProtocol(proto diag.Protocol, transport diag.Transport, cfg Config, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}

	s := &Session{
		proto: proto,
		conn:  diag.NewConnection(transport),
		log:   diag.Logger(),
		done:  make(chan struct{}),
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.P3Min > 0 {
		s.conn.P3Min = cfg.P3Min
	}
	if cfg.P4Min > 0 {
		s.conn.P4Min = cfg.P4Min
	}

	if err := proto.StartComms(s.conn, cfg.Mode, cfg.Bitrate, cfg.Target, cfg.Source); err != nil {
		return nil, fmt.Errorf("failed to start %s session with %02X: %w", proto.Name(), cfg.Target, err)
	}
	s.touch()

	s.log.Info().
		Str("protocol", proto.Name()).
		Str("target", fmt.Sprintf("%02X", cfg.Target)).
		Uint("speed", s.conn.Speed).
		Msg("session open")
	return s, nil
}

// Protocol returns the session's protocol driver.
func (s *Session) Protocol() diag.Protocol {
	return s.proto
}

// KeyBytes returns the key bytes negotiated at start.
func (s *Session) KeyBytes() (kb1, kb2 byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.KB1, s.conn.KB2
}

// Speed returns the negotiated bus speed.
func (s *Session) Speed() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Speed
}

// Send transmits one message.
func (s *Session) Send(msg *diag.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	err := s.proto.Send(s.conn, msg)
	s.account(err, 1, 0)
	return err
}

// Recv waits up to timeout for a message and hands it to callback.
func (s *Session) Recv(timeout time.Duration, callback diag.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	err := s.proto.Recv(s.conn, timeout, callback)
	s.account(err, 0, 1)
	return err
}

// Request sends msg and returns the reply. The caller owns the reply.
func (s *Session) Request(msg *diag.Message) (*diag.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	reply, err := s.proto.Request(s.conn, msg)
	s.account(err, 1, 1)
	return reply, err
}

func (s *Session) account(err error, sent, received int64) {
	if err != nil {
		atomic.AddInt64(&s.failures, 1)
		return
	}
	atomic.AddInt64(&s.sent, sent)
	atomic.AddInt64(&s.received, received)
	s.touch()
}

func (s *Session) touch() {
	atomic.StoreInt64(&s.lastActivity, time.Now().UnixNano())
}

func (s *Session) idle() time.Duration {
	return time.Duration(time.Now().UnixNano() - atomic.LoadInt64(&s.lastActivity))
}

// Run calls the protocol keepalive whenever the session has been idle for
// the keepalive interval. It returns nil when the session is closed and
// ctx.Err() when ctx is done. Protocols without diag.FlagKeepAlive only
// wait.
func (s *Session) Run(ctx context.Context) error {
	keepAlive := s.proto.Flags()&diag.FlagKeepAlive != 0
	interval := s.cfg.KeepAliveInterval

	ticker := time.NewTicker(interval / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			if keepAlive && s.idle() >= interval {
				s.keepAlive()
			}
		}
	}
}

func (s *Session) keepAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.proto.Timeout(s.conn)
	atomic.AddInt64(&s.keepAlives, 1)
	s.touch()
	s.log.Debug().Str("protocol", s.proto.Name()).Msg("keepalive sent")
}

// Close stops the session. Only the first call talks to the ECU; later
// calls return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		close(s.done)
		s.closeErr = s.proto.StopComms(s.conn)
		s.log.Info().Str("protocol", s.proto.Name()).Msg("session closed")
	})
	return s.closeErr
}

// Metrics returns current activity counters.
func (s *Session) Metrics() Metrics {
	return Metrics{
		Sent:            atomic.LoadInt64(&s.sent),
		Received:        atomic.LoadInt64(&s.received),
		KeepAlives:      atomic.LoadInt64(&s.keepAlives),
		Errors:          atomic.LoadInt64(&s.failures),
		LastActivityAgo: s.idle(),
	}
}
