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
	"encoding/hex"
	"fmt"
	"strings"

	diag "github.com/ZaparooProject/go-diag"
)

const prompt = '>'

// Adapter status lines
const (
	statusOK            = "OK"
	statusNoData        = "NO DATA"
	statusUnknown       = "?"
	statusSearching     = "SEARCHING..."
	statusBusInit       = "BUS INIT"
	statusUnableConnect = "UNABLE TO CONNECT"
	statusBusError      = "BUS ERROR"
	statusDataError     = "DATA ERROR"
	statusBufferFull    = "BUFFER FULL"
	statusStopped       = "STOPPED"
)

// splitLines breaks an adapter response into trimmed non-empty lines,
// dropping the prompt and search progress.
func splitLines(raw string) []string {
	raw = strings.TrimRight(raw, string(prompt)+" \r\n")
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n'
	})

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimLeft(f, string(prompt)))
		if f == "" || f == statusSearching {
			continue
		}
		lines = append(lines, f)
	}
	return lines
}

// checkStatus maps adapter error lines to errors.
func checkStatus(lines []string) error {
	for _, line := range lines {
		switch {
		case line == statusUnknown:
			return fmt.Errorf("%w: adapter rejected command", diag.ErrTransportWrite)
		case strings.HasPrefix(line, statusBusInit) && strings.HasSuffix(line, "ERROR"),
			line == statusUnableConnect:
			return fmt.Errorf("%w: %s", diag.ErrBusInit, line)
		case strings.Contains(line, statusDataError):
			return fmt.Errorf("%w: %s", diag.ErrChecksumMismatch, line)
		case line == statusBusError, line == statusBufferFull, line == statusStopped:
			return fmt.Errorf("%w: %s", diag.ErrTransportRead, line)
		}
	}
	return nil
}

// parseFrames decodes hex response lines into raw frames. Status lines are
// skipped.
func parseFrames(lines []string) ([][]byte, error) {
	var frames [][]byte
	for _, line := range lines {
		if line == statusNoData || line == statusOK || strings.HasPrefix(line, statusBusInit) {
			continue
		}

		b, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex line %q", diag.ErrTransportRead, line)
		}
		frames = append(frames, b)
	}
	return frames, nil
}

// parseKeyWords decodes an ATKW reply such as "1:D3 2:B0".
func parseKeyWords(lines []string) (kb1, kb2 byte, ok bool) {
	var have [2]bool
	for _, line := range lines {
		for _, field := range strings.Fields(line) {
			idx, value, found := strings.Cut(field, ":")
			if !found {
				continue
			}
			b, err := hex.DecodeString(value)
			if err != nil || len(b) != 1 {
				continue
			}
			switch idx {
			case "1":
				kb1, have[0] = b[0], true
			case "2":
				kb2, have[1] = b[0], true
			}
		}
	}
	return kb1, kb2, have[0] && have[1]
}

// hexBytes formats b as space separated hex, the way the adapter expects
// data and header arguments.
func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
