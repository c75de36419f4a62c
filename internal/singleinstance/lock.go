// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package singleinstance guards against overlapping runs of the same
// subcommand using an exclusive advisory lock on a well-known file.
package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process already holds the lock.
// Callers treat it as a normal "already running" outcome, not a failure.
var ErrHeld = errors.New("lock already held by another instance")

// Lock is a held single-instance lock. The lock file itself is never
// deleted; it persists as a zero-byte sentinel between runs.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock at path without blocking, creating the
// lock file (and its parent directory) if absent.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call on every exit path; the kernel also
// releases the lock if the process dies first.
func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
