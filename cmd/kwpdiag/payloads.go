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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// payloads collects repeated -send flags.
type payloads [][]byte

func (p *payloads) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, len(*p))
	for i, b := range *p {
		parts[i] = fmt.Sprintf("% X", b)
	}
	return strings.Join(parts, ", ")
}

// Set parses a payload such as "A5 01", "a501" or "0xA5,0x01".
func (p *payloads) Set(value string) error {
	clean := strings.NewReplacer(" ", "", ",", "", ":", "", "0x", "", "0X", "").Replace(strings.TrimSpace(value))
	b, err := hex.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("payload %q is not hex: %w", value, err)
	}
	if len(b) == 0 {
		return fmt.Errorf("payload %q is empty", value)
	}
	*p = append(*p, b)
	return nil
}

// parseAddr parses a one byte hex address such as "10" or "0x7A".
func parseAddr(s string) (uint8, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("address %q is not one hex byte", s)
	}
	return uint8(v), nil
}
