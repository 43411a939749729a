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

// Package usbserial detects diagnostic cables on USB serial ports. It
// registers itself with detection on import.
package usbserial

import (
	"context"
	"fmt"
	"strings"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/ZaparooProject/go-diag/detection"
	"go.bug.st/serial/enumerator"
)

// Bridge is a USB serial chip found in diagnostic cables.
type Bridge struct {
	Name string
	// Transport is what cables built on the chip usually need. Bare
	// FT232R cables are K-line interfaces; the rest mostly carry ELM327
	// clones.
	Transport diag.TransportType
}

// KnownBridges maps VID:PID to the bridges diagnostic cables use.
var KnownBridges = map[string]Bridge{
	"0403:6001": {Name: "FTDI FT232R", Transport: diag.TransportKLine},
	"0403:6015": {Name: "FTDI FT231X", Transport: diag.TransportELM327},
	"1A86:7523": {Name: "WCH CH340", Transport: diag.TransportELM327},
	"10C4:EA60": {Name: "Silicon Labs CP210x", Transport: diag.TransportELM327},
	"067B:2303": {Name: "Prolific PL2303", Transport: diag.TransportELM327},
}

type detector struct {
	list func() ([]*enumerator.PortDetails, error)
}

// New creates a USB serial detector.
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the detector name.
func (*detector) Transport() string {
	return "usbserial"
}

// Detect lists serial ports and reports the ones on known bridges.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var found []detection.DeviceInfo
	for _, port := range ports {
		if info, ok := Classify(port, opts); ok {
			found = append(found, info)
		}
	}
	return found, nil
}

// Classify reports whether port looks like a diagnostic cable and
// describes it.
func Classify(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if port == nil || detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	info := detection.DeviceInfo{
		Path:     port.Name,
		Name:     port.Name,
		Metadata: map[string]string{},
	}
	if !port.IsUSB {
		return info, opts.IncludeUnknown
	}

	vidpid := detection.FormatVIDPID(port.VID, port.PID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}
	info.Metadata["vidpid"] = vidpid
	if port.SerialNumber != "" {
		info.Metadata["serial"] = port.SerialNumber
	}
	if port.Product != "" {
		info.Metadata["product"] = port.Product
		info.Name = port.Product
	}

	bridge, known := KnownBridges[vidpid]
	if known {
		info.Metadata["bridge"] = bridge.Name
		info.Transport = bridge.Transport
	}

	product := strings.ToUpper(port.Product)
	switch {
	case strings.Contains(product, "ELM") || strings.Contains(product, "OBD"):
		info.Transport = diag.TransportELM327
		return info, true
	case strings.Contains(product, "KKL") || strings.Contains(product, "K-LINE"):
		info.Transport = diag.TransportKLine
		return info, true
	}
	return info, known || opts.IncludeUnknown
}
