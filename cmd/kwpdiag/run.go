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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/detection"
	// Import detectors to register them
	_ "github.com/ZaparooProject/go-diag/detection/usbserial"
	"github.com/ZaparooProject/go-diag/internal/config"
	"github.com/ZaparooProject/go-diag/l2/kwp6227"
	"github.com/ZaparooProject/go-diag/session"
	"github.com/ZaparooProject/go-diag/trace"
	"github.com/ZaparooProject/go-diag/transport/elm327"
	"github.com/ZaparooProject/go-diag/transport/kline"
	"github.com/rs/zerolog"
)

// openTransport opens the configured adapter, detecting the port when
// none is given.
func openTransport(ctx context.Context, cfg *config.Config, log zerolog.Logger) (diag.Transport, error) {
	if cfg.Port == "" {
		devices, err := detection.DetectAll(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("no -device given and detection failed: %w", err)
		}
		dev := devices[0]
		cfg.Port = dev.Path
		if dev.Transport != "" {
			cfg.Adapter = string(dev.Transport)
		}
		log.Info().Str("port", dev.Path).Str("adapter", cfg.Adapter).Msgf("detected %s", dev.Name)
	}

	switch cfg.Adapter {
	case config.AdapterELM327:
		t, err := elm327.New(cfg.Port, elm327.WithBaudRate(cfg.BaudRate), elm327.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open ELM327 on %s: %w", cfg.Port, err)
		}
		return t, nil
	case config.AdapterKLine:
		opts := []kline.Option{kline.WithLogger(log)}
		if cfg.WakeupPin != "" {
			opts = append(opts, kline.WithWakeupPin(cfg.WakeupPin))
		}
		t, err := kline.New(cfg.Port, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open K-line on %s: %w", cfg.Port, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported adapter: %s", cfg.Adapter)
	}
}

func run(ctx context.Context, cfg config.Config, sends [][]byte, hold time.Duration,
	log zerolog.Logger, out io.Writer,
) error {
	transport, err := openTransport(ctx, &cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close transport")
		}
	}()

	var rec trace.Recorder = trace.NopRecorder{}
	if cfg.TraceFile != "" {
		fileRec, err := trace.NewFileRecorder(cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		defer func() { _ = fileRec.Close() }()
		rec = fileRec
	}

	driver := kwp6227.New(
		kwp6227.WithLogger(log),
		kwp6227.WithRecorder(rec),
		kwp6227.WithRecvPadding(cfg.RecvPadding.Duration),
		kwp6227.WithStrictKeyBytes(cfg.StrictKeyBytes),
	)
	return converse(ctx, driver, transport, cfg, sends, hold, log, out)
}

// converse runs one session on an open transport.
func converse(ctx context.Context, proto diag.Protocol, transport diag.Transport, cfg config.Config,
	sends [][]byte, hold time.Duration, log zerolog.Logger, out io.Writer,
) error {
	sess, err := session.OpenWithProtocol(proto, transport, session.Config{
		Mode:              diag.InitSlow,
		Bitrate:           cfg.Bitrate,
		Target:            cfg.Target,
		Source:            cfg.Source,
		P3Min:             cfg.P3Min.Duration,
		P4Min:             cfg.P4Min.Duration,
		KeepAliveInterval: cfg.KeepAlive.Duration,
	}, session.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	kb1, kb2 := sess.KeyBytes()
	_, _ = fmt.Fprintf(out, "Connected to %02X at %d baud, key bytes %02X %02X\n", cfg.Target, sess.Speed(), kb1, kb2)

	for _, payload := range sends {
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := sess.Request(&diag.Message{Data: payload})
		if err != nil {
			if errors.Is(err, diag.ErrTimeout) {
				_, _ = fmt.Fprintf(out, "> % X\n< no reply\n", payload)
				continue
			}
			return fmt.Errorf("request % X failed: %w", payload, err)
		}
		_, _ = fmt.Fprintf(out, "> % X\n< % X\n", payload, reply.Data)
	}

	if hold > 0 {
		holdCtx, cancel := context.WithTimeout(ctx, hold)
		defer cancel()
		if err := sess.Run(holdCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return nil
}
