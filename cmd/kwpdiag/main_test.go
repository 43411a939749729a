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

package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-diag/internal/config"
	diagtest "github.com/ZaparooProject/go-diag/internal/testing"
	"github.com/ZaparooProject/go-diag/l2/kwp6227"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadsSet(t *testing.T) {
	t.Parallel()

	var p payloads
	require.NoError(t, p.Set("A5 01"))
	require.NoError(t, p.Set("b9f0"))
	require.NoError(t, p.Set("0xA6,0x02"))
	assert.Equal(t, payloads{{0xA5, 0x01}, {0xB9, 0xF0}, {0xA6, 0x02}}, p)
	assert.Equal(t, "A5 01, B9 F0, A6 02", p.String())

	require.Error(t, p.Set("A5 0"))
	require.Error(t, p.Set("zz"))
	require.Error(t, p.Set(""))
}

func TestParseAddr(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]uint8{"10": 0x10, "0x7A": 0x7A, " 28 ": 0x28, "f1": 0xF1} {
		got, err := parseAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseAddr("100")
	require.Error(t, err)
	_, err = parseAddr("")
	require.Error(t, err)
}

func parse(t *testing.T, args ...string) (*flags, map[string]bool) {
	t.Helper()

	fs := flag.NewFlagSet("kwpdiag", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f, err := parseFlags(fs, args)
	require.NoError(t, err)

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kwp.toml")
	require.NoError(t, os.WriteFile(path, []byte("adapter = \"kline\"\nport = \"/dev/ttyUSB0\"\ntarget = 0x7A\n"), 0o600))

	f, set := parse(t, "-config", path, "-device", "/dev/ttyUSB3", "-source", "F1", "-send", "A5")
	cfg, err := resolveConfig(f, set)
	require.NoError(t, err)

	assert.Equal(t, config.AdapterKLine, cfg.Adapter)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Port)
	assert.Equal(t, uint8(0x7A), cfg.Target)
	assert.Equal(t, uint8(0xF1), cfg.Source)
	assert.Equal(t, payloads{{0xA5}}, f.sends)
}

func TestResolveConfigErrors(t *testing.T) {
	t.Parallel()

	f, set := parse(t, "-target", "XYZ")
	_, err := resolveConfig(f, set)
	require.Error(t, err)

	f, set = parse(t, "-adapter", "j2534")
	_, err = resolveConfig(f, set)
	require.Error(t, err)
}

func TestConverse(t *testing.T) {
	t.Parallel()

	transport := diagtest.NewMockTransport()
	ecu := diagtest.NewVirtualECU(diagtest.TargetAddr)
	ecu.Replies[0xB9] = nil
	ecu.Attach(transport)

	driver := kwp6227.New(kwp6227.WithClock(diagtest.NewFakeClock()), kwp6227.WithLogger(zerolog.Nop()))
	var out bytes.Buffer

	err := converse(context.Background(), driver, transport, config.Default(),
		[][]byte{{0xA5, 0x01}, {0xB9, 0xF0}}, 0, zerolog.Nop(), &out)
	require.NoError(t, err)

	assert.Equal(t, "Connected to 10 at 10400 baud, key bytes D3 B0\n"+
		"> A5 01\n< E5 01\n"+
		"> B9 F0\n< no reply\n", out.String())

	last := ecu.Requests()[len(ecu.Requests())-1]
	assert.Equal(t, []byte{kwp6227.ServiceStopDiagnosticSession}, last, "session must be stopped")
}

func TestConverseHold(t *testing.T) {
	t.Parallel()

	transport := diagtest.NewMockTransport()
	ecu := diagtest.NewVirtualECU(diagtest.TargetAddr)
	ecu.Attach(transport)

	cfg := config.Default()
	cfg.KeepAlive = config.Duration{Duration: 10 * time.Millisecond}
	driver := kwp6227.New(kwp6227.WithClock(diagtest.NewFakeClock()), kwp6227.WithLogger(zerolog.Nop()))

	err := converse(context.Background(), driver, transport, cfg, nil, 200*time.Millisecond, zerolog.Nop(), io.Discard)
	require.NoError(t, err)

	keepAlives := 0
	for _, req := range ecu.Requests() {
		if req[0] == kwp6227.ServiceTesterPresent {
			keepAlives++
		}
	}
	assert.Positive(t, keepAlives)
}
