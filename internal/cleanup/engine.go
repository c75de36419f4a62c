// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cleanup implements the scoped cleanup engine: it reconciles an
// inventory of imported files fetched from Sonarr or Lidarr against the
// download staging area and deletes stale matches, pruning directories left
// empty, without ever touching anything outside the boundary root.
package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/milouz1985/qBitPuller/internal/fsutil"
)

// Config describes one cleanup run.
type Config struct {
	// Root is the boundary root. It must be an existing directory; nothing
	// outside it is ever deleted.
	Root string

	// MinAge is the minimum time since last modification before an entry is
	// deletion-eligible. Zero disables the age gate.
	MinAge time.Duration

	// DryRun computes and logs every decision without mutating the
	// filesystem.
	DryRun bool

	// PruneEmptyDirs enables removal of directories left (or found) empty.
	PruneEmptyDirs bool
}

// Counters accumulates the outcome of a single run.
type Counters struct {
	Scanned         int
	Matched         int
	Deleted         int
	SkippedTooYoung int
	NfoDeleted      int
	DirsDeleted     int
}

// Engine executes cleanup runs. All state is derived fresh per run; nothing
// is cached across runs.
type Engine struct {
	root      string
	minAge    time.Duration
	dryRun    bool
	pruneDirs bool
	now       func() time.Time
}

// New validates cfg and returns an Engine. The boundary root is resolved to
// its canonical form here; a missing or non-directory root is a fatal
// configuration error.
func New(cfg Config) (*Engine, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	return &Engine{
		root:      root,
		minAge:    cfg.MinAge,
		dryRun:    cfg.DryRun,
		pruneDirs: cfg.PruneEmptyDirs,
		now:       time.Now,
	}, nil
}

// Run executes one cleanup pass against inv and returns its counters.
// Per-entry filesystem failures are logged and folded into the counters;
// only walk aborts (cancellation, unreadable root) surface as errors.
func (e *Engine) Run(ctx context.Context, inv Inventory) (Counters, error) {
	var c Counters
	now := e.now()
	p := &pruner{
		root:      e.root,
		minAge:    e.minAge,
		dryRun:    e.dryRun,
		pruneDirs: e.pruneDirs,
		now:       now,
	}

	// Keyed by resolved directory path so candidates sharing a parent do not
	// repeat the pruner's traversal.
	startDirs := make(map[string]struct{})
	var startOrder []string
	addStart := func(dir string) {
		if _, seen := startDirs[dir]; seen {
			return
		}
		startDirs[dir] = struct{}{}
		startOrder = append(startOrder, dir)
	}

	var err error
	switch inv.Mode {
	case MatchFingerprint:
		err = e.runFingerprint(ctx, inv.Fingerprints, now, &c, addStart)
	default:
		err = e.runPath(ctx, inv.Paths, now, &c, addStart)
	}
	if err != nil {
		return c, err
	}

	for _, dir := range startOrder {
		select {
		case <-ctx.Done():
			return c, ctx.Err()
		default:
		}
		p.prune(dir, &c)
	}

	log.Info().
		Bool("dry_run", e.dryRun).
		Int("scanned", c.Scanned).
		Int("matched", c.Matched).
		Int("deleted", c.Deleted).
		Int("skipped_too_young", c.SkippedTooYoung).
		Int("nfo_deleted", c.NfoDeleted).
		Int("dirs_deleted", c.DirsDeleted).
		Msg("cleanup run complete")

	return c, nil
}

// runPath evaluates each inventory path directly (Lidarr-style inventory).
func (e *Engine) runPath(ctx context.Context, candidates []string, now time.Time, c *Counters, addStart func(string)) error {
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.Scanned++

		path, err := fsutil.ResolvePath(candidate)
		if err != nil {
			log.Debug().Err(err).Str("path", candidate).Msg("unresolvable candidate skipped")
			continue
		}
		// The inventory is untrusted input: paths outside the boundary root
		// are skipped without noise.
		if !fsutil.IsUnderRoot(path, e.root) {
			log.Debug().Str("path", path).Msg("candidate outside boundary root skipped")
			continue
		}

		// Every in-root candidate gets a pruner pass, even when the entry
		// itself is already gone or still too young: leftovers next to it
		// (a stale .nfo, an emptied directory) are cleaned regardless.
		st, lstatErr := os.Lstat(path)
		startDir := filepath.Dir(path)
		if lstatErr == nil && st.IsDir() {
			startDir = path
		}
		addStart(startDir)

		if lstatErr != nil {
			// Vanished since the inventory recorded it: already absent.
			continue
		}
		if !isStale(st.ModTime(), e.minAge, now) {
			c.SkippedTooYoung++
			continue
		}
		c.Matched++

		if e.dryRun {
			log.Info().Bool("dry_run", true).Str("path", path).Msg("would delete imported entry")
			continue
		}
		e.deleteEntry(path, st.IsDir(), c)
	}
	return nil
}

// runFingerprint walks the boundary root and deletes files whose
// (basename, size) pair appears in the inventory (Sonarr-style inventory).
func (e *Engine) runFingerprint(ctx context.Context, set *FingerprintSet, now time.Time, c *Counters, addStart func(string)) error {
	if set == nil {
		set = NewFingerprintSet()
	}

	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			if os.IsPermission(walkErr) || os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}

		// Symlinks are never followed, counted, or deleted; WalkDir does
		// not descend into them either.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return nil
		}

		c.Scanned++

		info, err := d.Info()
		if err != nil {
			// Raced with a concurrent writer; treat as already gone.
			return nil
		}
		if !set.Has(d.Name(), info.Size()) {
			return nil
		}
		if !isStale(info.ModTime(), e.minAge, now) {
			c.SkippedTooYoung++
			return nil
		}
		c.Matched++

		addStart(filepath.Dir(path))

		if e.dryRun {
			log.Info().Bool("dry_run", true).Str("path", path).Msg("would delete imported entry")
			return nil
		}
		e.deleteEntry(path, false, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", e.root, err)
	}
	return nil
}

// deleteEntry removes a matched file, or a matched directory only when it is
// already empty. Containment is re-validated immediately before the removal.
func (e *Engine) deleteEntry(path string, isDir bool, c *Counters) {
	if !fsutil.IsUnderRoot(path, e.root) {
		return
	}

	if isDir {
		entries, err := os.ReadDir(path)
		if err != nil {
			return
		}
		if len(entries) > 0 {
			// Deliberately non-recursive: a non-empty directory is left
			// untouched and is not an error.
			return
		}
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to delete entry")
		return
	}
	c.Deleted++
	log.Info().Str("path", path).Msg("deleted imported entry")
}
