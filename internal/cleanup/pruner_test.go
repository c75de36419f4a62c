// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestPruner(root string) *pruner {
	return &pruner{
		root:      root,
		minAge:    time.Hour,
		pruneDirs: true,
		now:       time.Now(),
	}
}

func resolvedTempDir(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve tempdir: %v", err)
	}
	return root
}

func TestPruneRemovesStaleSidecarsAndEmptyDirs(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Artist", "Album")
	writeAgedFile(t, filepath.Join(album, "album.nfo"), 3, 2*time.Hour)
	writeAgedFile(t, filepath.Join(root, "Artist", "artist.nfo"), 3, 2*time.Hour)

	var c Counters
	newTestPruner(root).prune(album, &c)

	if c.NfoDeleted != 2 {
		t.Fatalf("NfoDeleted = %d, want 2", c.NfoDeleted)
	}
	if c.DirsDeleted != 2 {
		t.Fatalf("DirsDeleted = %d, want 2", c.DirsDeleted)
	}
	mustNotExist(t, filepath.Join(root, "Artist"))
	mustExist(t, root)
}

func TestPruneNeverDeletesBoundaryRoot(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	sub := filepath.Join(root, "only")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var c Counters
	newTestPruner(root).prune(sub, &c)

	mustNotExist(t, sub)
	mustExist(t, root)
}

func TestPruneRootAliasStartNeverDeletesRoot(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	alias := filepath.Join(t.TempDir(), "alias")
	if err := os.Symlink(root, alias); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// The alias is the same directory as the root, so it is accepted as a
	// starting point but refused as a deletion target.
	var c Counters
	newTestPruner(root).prune(alias, &c)

	mustExist(t, root)
	if c.DirsDeleted != 0 {
		t.Fatalf("DirsDeleted = %d, want 0", c.DirsDeleted)
	}
}

func TestPruneKeepsYoungSidecar(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Album")
	sidecar := filepath.Join(album, "album.nfo")
	writeAgedFile(t, sidecar, 3, 10*time.Minute)

	var c Counters
	newTestPruner(root).prune(album, &c)

	if c.NfoDeleted != 0 || c.DirsDeleted != 0 {
		t.Fatalf("unexpected deletions: %+v", c)
	}
	mustExist(t, sidecar)
}

func TestPruneLeavesNonSidecarFiles(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Album")
	media := filepath.Join(album, "track.flac")
	writeAgedFile(t, media, 3, 2*time.Hour)

	var c Counters
	newTestPruner(root).prune(album, &c)

	if c.DirsDeleted != 0 {
		t.Fatalf("DirsDeleted = %d, want 0 for non-empty directory", c.DirsDeleted)
	}
	mustExist(t, media)
	mustExist(t, album)
}

func TestPruneMissingStartFallsBackToExistingAncestor(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	artist := filepath.Join(root, "Artist")
	writeAgedFile(t, filepath.Join(artist, "artist.nfo"), 3, 2*time.Hour)

	// Starting point was deleted by an earlier pass.
	gone := filepath.Join(artist, "Album", "Disc1")

	var c Counters
	newTestPruner(root).prune(gone, &c)

	if c.NfoDeleted != 1 {
		t.Fatalf("NfoDeleted = %d, want 1", c.NfoDeleted)
	}
	mustNotExist(t, artist)
	mustExist(t, root)
}

func TestPruneRejectsStartOutsideRoot(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	outside := resolvedTempDir(t)
	writeAgedFile(t, filepath.Join(outside, "x.nfo"), 3, 2*time.Hour)

	var c Counters
	newTestPruner(root).prune(outside, &c)

	if c != (Counters{}) {
		t.Fatalf("counters = %+v, want zero", c)
	}
	mustExist(t, filepath.Join(outside, "x.nfo"))
}

func TestPruneIsIdempotent(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Artist", "Album")
	writeAgedFile(t, filepath.Join(album, "album.nfo"), 3, 2*time.Hour)

	var first Counters
	newTestPruner(root).prune(album, &first)
	if first.NfoDeleted == 0 {
		t.Fatalf("first pass deleted nothing: %+v", first)
	}

	var second Counters
	newTestPruner(root).prune(album, &second)
	if second != (Counters{}) {
		t.Fatalf("second pass not a no-op: %+v", second)
	}
}

func TestPruneUpSkipsDirsWithRemainingContent(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Artist", "Album")
	if err := os.MkdirAll(album, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	keeper := filepath.Join(root, "Artist", "notes.txt")
	writeAgedFile(t, keeper, 3, 2*time.Hour)

	var c Counters
	newTestPruner(root).prune(album, &c)

	// Album is empty and pruned; Artist still holds notes.txt and survives.
	mustNotExist(t, album)
	mustExist(t, keeper)
	mustExist(t, filepath.Join(root, "Artist"))
}

func TestPruneDirsDisabled(t *testing.T) {
	t.Parallel()

	root := resolvedTempDir(t)
	album := filepath.Join(root, "Album")
	writeAgedFile(t, filepath.Join(album, "album.nfo"), 3, 2*time.Hour)

	p := newTestPruner(root)
	p.pruneDirs = false

	var c Counters
	p.prune(album, &c)

	if c.NfoDeleted != 1 {
		t.Fatalf("NfoDeleted = %d, want 1", c.NfoDeleted)
	}
	if c.DirsDeleted != 0 {
		t.Fatalf("DirsDeleted = %d, want 0", c.DirsDeleted)
	}
	mustExist(t, album)
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	now := time.Now()

	if !isStale(now.Add(-700*time.Second), 600*time.Second, now) {
		t.Fatal("700s-old entry with 600s threshold must be stale")
	}
	if isStale(now.Add(-500*time.Second), 600*time.Second, now) {
		t.Fatal("500s-old entry with 600s threshold must not be stale")
	}
	if !isStale(now, 0, now) {
		t.Fatal("zero threshold disables the age gate")
	}
}

func TestIsSidecar(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"movie.nfo", "MOVIE.NFO", "a.NfO"} {
		if !isSidecar(name) {
			t.Fatalf("expected %s to be a sidecar", name)
		}
	}
	for _, name := range []string{"movie.mkv", "nfo", "movie.nfo.bak"} {
		if isSidecar(name) {
			t.Fatalf("did not expect %s to be a sidecar", name)
		}
	}
}
