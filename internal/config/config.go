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

// Package config loads the diagnostic tool configuration from TOML or
// YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	diag "github.com/ZaparooProject/go-diag"
	"gopkg.in/yaml.v3"
)

// Adapter kinds
const (
	AdapterELM327 = string(diag.TransportELM327)
	AdapterKLine  = string(diag.TransportKLine)
)

// Duration is a time.Duration written as a string such as "300ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Config is the tool configuration.
type Config struct {
	// Adapter is "elm327" or "kline".
	Adapter string `toml:"adapter" yaml:"adapter"`
	// Port is the serial device. Empty means detect it.
	Port string `toml:"port" yaml:"port"`
	// WakeupPin is the GPIO pin a kline adapter sends the 5 baud address
	// on. Empty means serial breaks.
	WakeupPin string `toml:"wakeup_pin" yaml:"wakeup_pin"`
	// TraceFile receives a CBOR bus trace when set.
	TraceFile string `toml:"trace_file" yaml:"trace_file"`

	P3Min       Duration `toml:"p3_min" yaml:"p3_min"`
	P4Min       Duration `toml:"p4_min" yaml:"p4_min"`
	KeepAlive   Duration `toml:"keepalive" yaml:"keepalive"`
	RecvPadding Duration `toml:"recv_padding" yaml:"recv_padding"`

	// BaudRate is the host to adapter serial speed of an ELM327.
	BaudRate int `toml:"baud_rate" yaml:"baud_rate"`
	// Bitrate is the bus speed; zero selects the protocol default.
	Bitrate uint `toml:"bitrate" yaml:"bitrate"`

	Target uint8 `toml:"target" yaml:"target"`
	Source uint8 `toml:"source" yaml:"source"`

	StrictKeyBytes bool `toml:"strict_key_bytes" yaml:"strict_key_bytes"`
	Debug          bool `toml:"debug" yaml:"debug"`
}

// Default returns the configuration for an ELM327 talking to the engine
// ECU of a Volvo 850.
func Default() Config {
	return Config{
		Adapter:     AdapterELM327,
		BaudRate:    38400,
		Target:      0x10,
		Source:      0x13,
		P3Min:       Duration{diag.DefaultP3Min},
		P4Min:       Duration{diag.DefaultP4Min},
		KeepAlive:   Duration{2 * time.Second},
		RecvPadding: Duration{100 * time.Millisecond},
	}
}

// Load reads path over the defaults. The format follows the file
// extension: .toml, .yaml or .yml. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("load config %s: unsupported format %q", path, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values no adapter accepts.
func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterELM327:
		if c.WakeupPin != "" {
			return errors.New("wakeup_pin only applies to the kline adapter")
		}
	case AdapterKLine:
	default:
		return fmt.Errorf("unknown adapter %q, expecting %s or %s", c.Adapter, AdapterELM327, AdapterKLine)
	}

	if c.BaudRate < 0 {
		return fmt.Errorf("invalid baud_rate %d", c.BaudRate)
	}
	if c.Bitrate != 0 && (c.Bitrate < 1200 || c.Bitrate > 115200) {
		return fmt.Errorf("bitrate %d out of range", c.Bitrate)
	}
	if c.Target == c.Source {
		return fmt.Errorf("target and source share address %02X", c.Target)
	}
	if c.P3Min.Duration < 0 || c.P4Min.Duration < 0 || c.RecvPadding.Duration < 0 {
		return errors.New("timing values cannot be negative")
	}
	if c.KeepAlive.Duration <= 0 {
		return errors.New("keepalive must be positive")
	}
	return nil
}
