// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fsutil provides the path containment checks every destructive
// filesystem operation in qBitPuller must pass before acting.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath returns the canonical absolute form of p, following symlinks.
// If p does not exist, the nearest existing ancestor is resolved and the
// remaining segments are re-joined, so candidate paths that were deleted
// since the inventory recorded them still resolve deterministically.
func ResolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the first existing ancestor, resolve it, and reattach the tail.
	base := abs
	var tail []string
	for {
		parent := filepath.Dir(base)
		if parent == base {
			return abs, nil
		}
		tail = append(tail, filepath.Base(base))
		base = parent

		resolved, err = filepath.EvalSymlinks(base)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// IsUnderRoot reports whether path lies strictly inside root, comparing
// whole path segments so /data/foo2 is never considered under /data/foo.
// Both arguments must be absolute; anything unresolvable is treated as
// outside the root (fail closed).
func IsUnderRoot(path, root string) bool {
	if !filepath.IsAbs(path) || !filepath.IsAbs(root) {
		return false
	}

	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// IsSameDir reports whether a and b refer to the same underlying directory,
// handling symlinks and bind mounts. Missing paths return false, never an
// error.
func IsSameDir(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil || !ai.IsDir() {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil || !bi.IsDir() {
		return false
	}
	return os.SameFile(ai, bi)
}
