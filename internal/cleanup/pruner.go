// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/milouz1985/qBitPuller/internal/fsutil"
)

// pruner removes stale sidecar files and empty directories within the
// boundary root. It never deletes the root itself and never removes a
// non-empty directory.
type pruner struct {
	root      string // resolved boundary root
	minAge    time.Duration
	dryRun    bool
	pruneDirs bool
	now       time.Time
}

// prune runs the downward and upward passes from start, which may be a file
// or directory path and may no longer exist.
func (p *pruner) prune(start string, c *Counters) {
	// The root itself is a valid starting point (candidate directly in the
	// root); only its contents are eligible, never the root.
	if !fsutil.IsUnderRoot(start, p.root) && !fsutil.IsSameDir(start, p.root) {
		return
	}

	// If the starting point is gone, fall back to the nearest existing
	// ancestor still under the root so its leftovers can be cleaned.
	scanDir := start
	for scanDir != "" {
		if info, err := os.Stat(scanDir); err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(scanDir)
		if parent == scanDir || (parent != p.root && !fsutil.IsUnderRoot(parent, p.root)) {
			scanDir = ""
			break
		}
		scanDir = parent
	}

	if scanDir != "" {
		p.pruneDown(scanDir, c)
	}
	p.pruneUp(start, c)
}

// pruneDown walks the subtree bottom-up: children are fully processed before
// their parent is considered for removal.
func (p *pruner) pruneDown(dir string, c *Counters) {
	if !fsutil.IsUnderRoot(dir, p.root) && !fsutil.IsSameDir(dir, p.root) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Already gone or unreadable; nothing to prune here.
		return
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			p.pruneDown(path, c)
			continue
		}
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		p.deleteSidecar(path, c)
	}

	p.removeIfEmpty(dir, c)
}

// pruneUp walks from the parent of start toward the boundary root, deleting
// stale sidecar files directly in each level (non-recursive) and removing
// levels that end up empty. Stops at the root, on containment escape, or
// when a level no longer exists.
func (p *pruner) pruneUp(start string, c *Counters) {
	cur := filepath.Dir(start)
	for {
		if !fsutil.IsUnderRoot(cur, p.root) {
			return
		}
		if fsutil.IsSameDir(cur, p.root) {
			return
		}

		entries, err := os.ReadDir(cur)
		if err != nil {
			// Level vanished or unreadable: defensive stop.
			return
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			p.deleteSidecar(filepath.Join(cur, e.Name()), c)
		}
		p.removeIfEmpty(cur, c)

		parent := filepath.Dir(cur)
		if parent == cur {
			return
		}
		cur = parent
	}
}

// deleteSidecar removes path if it is a stale sidecar file under the root.
// Entries that vanished since discovery are treated as already absent.
func (p *pruner) deleteSidecar(path string, c *Counters) {
	if !isSidecar(path) {
		return
	}

	st, err := os.Lstat(path)
	if err != nil {
		return
	}
	if !st.Mode().IsRegular() {
		return
	}
	if !isStale(st.ModTime(), p.minAge, p.now) {
		return
	}
	// Re-validate containment immediately before the removal call.
	if !fsutil.IsUnderRoot(path, p.root) {
		return
	}

	if p.dryRun {
		log.Info().Bool("dry_run", true).Str("path", path).Msg("would delete sidecar file")
		return
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to delete sidecar file")
		return
	}
	c.NfoDeleted++
	log.Info().Str("path", path).Msg("deleted sidecar file")
}

// removeIfEmpty removes dir when it is empty, never the boundary root, and
// never recursively. A directory that gained entries since the listing is
// left untouched.
func (p *pruner) removeIfEmpty(dir string, c *Counters) {
	if !p.pruneDirs {
		return
	}
	if fsutil.IsSameDir(dir, p.root) || !fsutil.IsUnderRoot(dir, p.root) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}

	if p.dryRun {
		log.Info().Bool("dry_run", true).Str("path", dir).Msg("would remove empty directory")
		return
	}

	// os.Remove on a directory only succeeds when it is empty, so a file
	// landing between the listing and this call keeps the directory alive.
	if err := os.Remove(dir); err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Debug().Err(err).Str("path", dir).Msg("directory not removed")
		return
	}
	c.DirsDeleted++
	log.Info().Str("path", dir).Msg("removed empty directory")
}
