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

// Command kwpdiag opens a KWP6227 session with one ECU, sends the given
// requests, prints the replies and closes the session.
//
//	kwpdiag -device /dev/ttyUSB0 -target 10 -send "A5 01" -send B9F0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/internal/config"
	"github.com/rs/zerolog"
)

type flags struct {
	configPath *string
	device     *string
	adapter    *string
	pin        *string
	target     *string
	source     *string
	bitrate    *uint
	hold       *time.Duration
	trace      *string
	debug      *bool
	strict     *bool
	sends      payloads
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, error) {
	f := &flags{
		configPath: fs.String("config", "", "Configuration file (.toml, .yaml or .yml)"),
		device: fs.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		adapter: fs.String("adapter", "", "Adapter kind: elm327 or kline"),
		pin:     fs.String("pin", "", "GPIO pin for the kline 5 baud wake-up (default: serial break)"),
		target:  fs.String("target", "", "ECU address in hex (default: 10)"),
		source:  fs.String("source", "", "Tester address in hex (default: 13)"),
		bitrate: fs.Uint("bitrate", 0, "Bus bit rate (default: 10400)"),
		hold:    fs.Duration("hold", 0, "Keep the session alive this long after the requests"),
		trace:   fs.String("trace", "", "Write a CBOR bus trace to this file"),
		debug:   fs.Bool("debug", false, "Enable debug output"),
		strict:  fs.Bool("strict-keybytes", false, "Fail when the adapter cannot report key bytes"),
	}
	fs.Var(&f.sends, "send", "Request payload in hex, may be repeated")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// resolveConfig loads the config file, if any, and applies the flags
// that were set on top of it.
func resolveConfig(f *flags, set map[string]bool) (config.Config, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if set["device"] {
		cfg.Port = *f.device
	}
	if set["adapter"] {
		cfg.Adapter = strings.ToLower(*f.adapter)
	}
	if set["pin"] {
		cfg.WakeupPin = *f.pin
	}
	if set["bitrate"] {
		cfg.Bitrate = *f.bitrate
	}
	if set["trace"] {
		cfg.TraceFile = *f.trace
	}
	if set["debug"] {
		cfg.Debug = *f.debug
	}
	if set["strict-keybytes"] {
		cfg.StrictKeyBytes = *f.strict
	}
	if set["target"] {
		addr, err := parseAddr(*f.target)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid -target: %w", err)
		}
		cfg.Target = addr
	}
	if set["source"] {
		addr, err := parseAddr(*f.source)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid -source: %w", err)
		}
		cfg.Source = addr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

func main() {
	fs := flag.NewFlagSet("kwpdiag", flag.ExitOnError)
	f, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	cfg, err := resolveConfig(f, set)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kwpdiag: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.Debug)
	diag.SetLogger(log)
	diag.SetDebugEnabled(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, cfg, f.sends, *f.hold, log, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("kwpdiag failed")
		stop()
		os.Exit(1)
	}
}
