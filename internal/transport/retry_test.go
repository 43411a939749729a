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

package transport

import (
	"errors"
	"testing"
	"time"

	diag "github.com/ZaparooProject/go-diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	retries := 0
	cfg := RetryConfig{
		Description: "reset",
		MaxRetries:  3,
		OnRetry: func() error {
			retries++
			return nil
		},
	}

	got, err := WithRetry(cfg, func() (string, bool, error) {
		attempts++
		if attempts < 3 {
			return "", true, nil
		}
		return "ELM327 v1.5", false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ELM327 v1.5", got)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retries)
}

func TestWithRetryExhausted(t *testing.T) {
	t.Parallel()

	attempts := 0
	failedCalled := false
	cfg := RetryConfig{
		Description: "reset",
		MaxRetries:  2,
		OnRetryFailed: func() error {
			failedCalled = true
			return nil
		},
	}

	_, err := WithRetry(cfg, func() (int, bool, error) {
		attempts++
		return 0, true, nil
	})

	require.Error(t, err)
	assert.True(t, diag.IsRetryable(err))
	assert.Contains(t, err.Error(), "reset")
	assert.Equal(t, 3, attempts)
	assert.True(t, failedCalled)
}

func TestWithRetryHardErrorStops(t *testing.T) {
	t.Parallel()

	hard := errors.New("port gone")
	attempts := 0
	_, err := WithRetry(RetryConfig{MaxRetries: 5}, func() (int, bool, error) {
		attempts++
		return 0, false, hard
	})

	require.ErrorIs(t, err, hard)
	assert.Equal(t, 1, attempts)
}

func TestTimeoutRetry(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := TimeoutRetry(20*time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})

	require.ErrorIs(t, err, diag.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	got, err := TimeoutRetry(time.Second, func() (int, bool, error) {
		return 7, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
