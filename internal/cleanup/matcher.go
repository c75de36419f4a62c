// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"path/filepath"
	"strings"
	"time"
)

// sidecarExt marks descriptor files left alongside media. They are matched
// by extension alone during pruning so a leftover .nfo never blocks
// empty-directory removal.
const sidecarExt = ".nfo"

func isSidecar(name string) bool {
	return strings.EqualFold(filepath.Ext(name), sidecarExt)
}

// isStale reports whether an entry last modified at modTime is old enough to
// delete. A zero minAge disables the age gate entirely.
func isStale(modTime time.Time, minAge time.Duration, now time.Time) bool {
	if minAge <= 0 {
		return true
	}
	return now.Sub(modTime) >= minAge
}
