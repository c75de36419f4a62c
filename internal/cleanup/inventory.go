// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import "path/filepath"

// MatchMode selects how inventory records are compared against filesystem
// entries. Exactly one mode is active per run; the two inventories are never
// merged because that would silently widen the deletion scope.
type MatchMode int

const (
	// MatchPath treats each inventory record as the exact path to evaluate.
	MatchPath MatchMode = iota

	// MatchFingerprint recognizes files discovered during a walk of the
	// boundary root by their (basename, size) pair.
	MatchFingerprint
)

// Fingerprint identifies an imported file independent of its recorded path.
type Fingerprint struct {
	Name string
	Size int64
}

// FingerprintSet is a set of (basename, size) pairs known to the external
// media manager. Runs are single-threaded, so no locking.
type FingerprintSet struct {
	entries map[Fingerprint]struct{}
}

// NewFingerprintSet creates an empty FingerprintSet.
func NewFingerprintSet() *FingerprintSet {
	return &FingerprintSet{entries: make(map[Fingerprint]struct{})}
}

// Add records a (basename, size) pair. Full paths are reduced to their base
// name so callers can pass the path the media manager reported verbatim.
func (s *FingerprintSet) Add(path string, size int64) {
	s.entries[Fingerprint{Name: filepath.Base(path), Size: size}] = struct{}{}
}

// Has reports whether the pair is in the set.
func (s *FingerprintSet) Has(name string, size int64) bool {
	_, ok := s.entries[Fingerprint{Name: name, Size: size}]
	return ok
}

// Len returns the number of recorded pairs.
func (s *FingerprintSet) Len() int {
	return len(s.entries)
}

// Inventory is the snapshot of imported-file records fetched from the
// external media manager at run start. Depending on Mode, either Paths or
// Fingerprints is consulted; the other is ignored.
type Inventory struct {
	Mode         MatchMode
	Paths        []string
	Fingerprints *FingerprintSet
}
