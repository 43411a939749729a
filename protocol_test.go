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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProtocol struct {
	name string
	id   ProtocolID
}

func (p *stubProtocol) ID() ProtocolID { return p.id }
func (p *stubProtocol) Name() string { return p.name }
func (*stubProtocol) Flags() ProtocolFlags { return FlagFramed }
func (*stubProtocol) Timeout(*Connection) {}
func (*stubProtocol) StopComms(*Connection) error { return nil }

func (*stubProtocol) StartComms(*Connection, InitMode, uint, byte, byte) error {
	return ErrInitNotSupported
}

func (*stubProtocol) Send(*Connection, *Message) error {
	return ErrNoSession
}

func (*stubProtocol) Recv(*Connection, time.Duration, Callback) error {
	return ErrNoSession
}

func (*stubProtocol) Request(*Connection, *Message) (*Message, error) {
	return nil, ErrNoSession
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	p := &stubProtocol{name: "StubTP20", id: ProtocolID(200)}
	require.NoError(t, Register(p))

	got, ok := Lookup("stubtp20")
	require.True(t, ok, "lookup must be case-insensitive")
	assert.Same(t, p, got)

	got, ok = LookupID(ProtocolID(200))
	require.True(t, ok)
	assert.Same(t, p, got)

	err := Register(&stubProtocol{name: "STUBTP20", id: ProtocolID(201)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	_, ok = Lookup("nonexistent")
	assert.False(t, ok)
	_, ok = LookupID(ProtocolID(250))
	assert.False(t, ok)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()

	MustRegister(&stubProtocol{name: "StubVPW", id: ProtocolID(210)})
	assert.Panics(t, func() {
		MustRegister(&stubProtocol{name: "stubvpw", id: ProtocolID(211)})
	})
}

func TestProtocolsOrderedByID(t *testing.T) {
	t.Parallel()

	require.NoError(t, Register(&stubProtocol{name: "StubB", id: ProtocolID(231)}))
	require.NoError(t, Register(&stubProtocol{name: "StubA", id: ProtocolID(230)}))

	protos := Protocols()
	require.GreaterOrEqual(t, len(protos), 2)
	for i := 1; i < len(protos); i++ {
		assert.LessOrEqual(t, protos[i-1].ID(), protos[i].ID())
	}
}

func TestInitModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "slow", InitSlow.String())
	assert.Equal(t, "fast", InitFast.String())
	assert.Equal(t, "carb", InitCARB.String())
	assert.Equal(t, "unknown", InitMode(0).String())
}

func TestConnectionDefaults(t *testing.T) {
	t.Parallel()

	conn := NewConnection(nil)
	assert.Equal(t, DefaultP3Min, conn.P3Min)
	assert.Equal(t, DefaultP4Min, conn.P4Min)
	assert.Nil(t, conn.ProtoData())

	conn.SetProtoData(struct{}{})
	assert.NotNil(t, conn.ProtoData())
	conn.SetProtoData(nil)
	assert.Nil(t, conn.ProtoData())
}

func TestCapabilitiesString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", Capabilities{}.String())
	assert.Equal(t, "fullinit,l2cksum", Capabilities{FullInit: true, L2Checksum: true}.String())
	assert.Equal(t, "fastinit", Capabilities{FastInit: true}.String())
}
