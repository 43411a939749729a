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

// Package detection finds diagnostic adapters attached to the host.
//
// Detectors for each kind of attachment register themselves on import;
// DetectAll runs every registered detector.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	diag "github.com/ZaparooProject/go-diag"
)

// ErrNoDevicesFound is returned when no detector found an adapter.
var ErrNoDevicesFound = errors.New("no diagnostic adapters found")

// DeviceInfo describes a detected adapter.
type DeviceInfo struct {
	// Metadata carries detector specific details such as "vidpid",
	// "serial", "product" and "bridge".
	Metadata map[string]string
	// Transport is the transport the adapter most likely needs.
	Transport diag.TransportType
	Path      string
	Name      string
}

// Options controls detection.
type Options struct {
	// IgnorePaths lists device paths to skip.
	IgnorePaths []string
	// Blocklist lists VID:PID pairs never reported.
	Blocklist []string
	Timeout   time.Duration
	// IncludeUnknown also reports serial ports whose USB bridge is not
	// known to be used by diagnostic cables.
	IncludeUnknown bool
}

// DefaultOptions returns the default detection options.
func DefaultOptions() Options {
	return Options{
		Blocklist: DefaultBlocklist(),
		Timeout:   5 * time.Second,
	}
}

// Detector finds adapters of one attachment kind.
type Detector interface {
	// Transport names what the detector scans, e.g. "usbserial"
	Transport() string

	// Detect returns the adapters found
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var detectors = struct {
	byName map[string]Detector
	mu     sync.RWMutex
}{
	byName: make(map[string]Detector),
}

// RegisterDetector adds d to the detectors DetectAll runs. A detector
// registered under an existing name replaces it.
func RegisterDetector(d Detector) {
	detectors.mu.Lock()
	defer detectors.mu.Unlock()
	detectors.byName[d.Transport()] = d
}

// DetectAll runs every registered detector and returns the adapters found,
// ordered by path. Detector errors are returned only when nothing was
// found.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	detectors.mu.RLock()
	list := make([]Detector, 0, len(detectors.byName))
	for _, d := range detectors.byName {
		list = append(list, d)
	}
	detectors.mu.RUnlock()

	var (
		found []DeviceInfo
		errs  []error
	)
	for _, d := range list {
		devices, err := d.Detect(ctx, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s detection failed: %w", d.Transport(), err))
			continue
		}
		found = append(found, devices...)
	}

	if len(found) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Path < found[j].Path
	})
	return found, nil
}
