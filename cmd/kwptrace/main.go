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

// Command kwptrace prints a CBOR bus trace written by kwpdiag -trace.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZaparooProject/go-diag/trace"
)

type filter struct {
	session string
	kinds   map[trace.Kind]bool
}

func (f filter) match(ev trace.Event) bool {
	if f.session != "" && !strings.HasPrefix(ev.SessionID, f.session) {
		return false
	}
	return len(f.kinds) == 0 || f.kinds[ev.Kind]
}

func parseKinds(s string) (map[trace.Kind]bool, error) {
	if s == "" {
		return nil, nil
	}

	names := map[string]trace.Kind{}
	for k := trace.KindStart; k <= trace.KindError; k++ {
		names[k.String()] = k
	}

	kinds := make(map[trace.Kind]bool)
	for _, name := range strings.Split(s, ",") {
		k, ok := names[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", name)
		}
		kinds[k] = true
	}
	return kinds, nil
}

// printTrace writes every matching event in r to w, one per line, and
// returns the number printed.
func printTrace(r io.Reader, w io.Writer, f filter) (int, error) {
	reader := trace.NewReader(r)
	printed := 0
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return printed, nil
		}
		if err != nil {
			return printed, fmt.Errorf("corrupt trace after %d events: %w", printed, err)
		}
		if !f.match(ev) {
			continue
		}
		if _, err := fmt.Fprintln(w, ev.String()); err != nil {
			return printed, err
		}
		printed++
	}
}

func main() {
	path := flag.String("f", "", "Trace file to print (default: stdin)")
	sessionID := flag.String("session", "", "Only print events of sessions with this ID prefix")
	kinds := flag.String("kind", "", "Comma separated event kinds to print, e.g. FRAME,ERROR")
	flag.Parse()

	f := filter{session: *sessionID}
	var err error
	if f.kinds, err = parseKinds(*kinds); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kwptrace: %v\n", err)
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if *path != "" {
		file, err := os.Open(*path)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "kwptrace: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	if _, err := printTrace(in, os.Stdout, f); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kwptrace: %v\n", err)
		os.Exit(1)
	}
}
