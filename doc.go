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

/*
Package diag provides the link-layer plumbing for talking to vehicle ECUs
over slow-init serial diagnostic buses (K-line).

The package defines the contracts shared by every layer of the stack:

  - Transport: the physical layer (ELM327 adapters, raw K-line transceivers)
    that sends and receives raw bytes, performs bus initialisation and
    reports its capabilities.
  - Protocol: the uniform operation set a link-layer driver implements
    (start, stop, send, receive, request and the idle-timeout keepalive).
  - Connection: the per-link state shared between the framework, the
    transport and the protocol driver.
  - Message: a pooled diagnostic message with addresses and a receive stamp.

Protocol drivers live in subpackages and register themselves when imported:

	import (
	    "github.com/ZaparooProject/go-diag"
	    _ "github.com/ZaparooProject/go-diag/l2/kwp6227"
	    "github.com/ZaparooProject/go-diag/transport/elm327"
	)

	transport, err := elm327.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	proto, _ := diag.Lookup("KWP6227")
	conn := diag.NewConnection(transport)
	if err := proto.StartComms(conn, diag.InitSlow, 0, 0x10, 0x13); err != nil {
	    log.Fatal(err)
	}
	defer func() { _ = proto.StopComms(conn) }()

	reply, err := proto.Request(conn, &diag.Message{Data: []byte{0xA5, 0x01}})

Most callers use the session package instead, which serializes access to a
connection and runs the keepalive loop.

Error Handling:

All operations return errors that can be inspected with errors.Is:

	if errors.Is(err, diag.ErrTimeout) {
	    // no reply from the ECU
	}

Thread Safety:

Protocol drivers perform no locking. A connection must be driven by one
goroutine at a time.
*/
package diag
