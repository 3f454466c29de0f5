package depset

import (
	"fmt"
	"sync"

	"modfed/internal/project"
)

// Store tracks the dependency specifiers the application currently uses
// and the snapshot of the set that was last built successfully. The
// pending side is rebuilt from scratch every compile pass; the snapshot
// side only moves forward on Commit, so a failed build never advances it.
// Thread-safe for concurrent access.
type Store struct {
	mu       sync.Mutex
	path     string
	pending  map[string]Specifier
	snapshot Snapshot
	loaded   bool
}

// NewStore creates a store persisting its snapshot at path. Call
// LoadCache before the first Evaluate.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		pending: make(map[string]Specifier),
	}
}

// RecordUsage adds one specifier to the pending set. Duplicate names are
// collapsed; the first recorded source file wins. Safe to call from
// concurrent transform callbacks; constant-time.
func (s *Store) RecordUsage(name, source string) {
	name = NormalizeName(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[name]; !ok {
		s.pending[name] = Specifier{Name: name, Source: source}
	}
}

// ResetPass clears the pending set for a fresh compile pass. The persisted
// snapshot is untouched.
func (s *Store) ResetPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]Specifier)
}

// LoadCache reads the persisted snapshot from disk. A missing file leaves
// the empty snapshot and returns nil. A corrupt or schema-mismatched file
// also leaves the empty snapshot but returns a *CacheLoadError so the
// caller can log it; the store stays fully usable either way.
func (s *Store) LoadCache() error {
	snap, ok, err := readSnapshot(s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		s.snapshot = Snapshot{}
		return &CacheLoadError{Path: s.path, Err: err}
	}
	if !ok {
		s.snapshot = Snapshot{}
		return nil
	}
	s.snapshot = snap
	return nil
}

// Evaluation is the outcome of comparing the pending set against the
// snapshot. Purely informational; no filesystem writes happen here.
type Evaluation struct {
	ShouldBuild bool
	Reason      string
	Fingerprint project.Digest
	Added       int
	Removed     int
}

// Evaluate decides whether a build is needed: when the pending
// fingerprint differs from the snapshot's, or when the set is unchanged
// but non-empty and the artifact vanished (artifactExists is the caller's
// one probe, taken from build state rather than a per-call stat). An
// empty pending set over an empty snapshot never builds.
func (s *Store) Evaluate(artifactExists bool) Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pendingLocked()
	fp := Fingerprint(pending)
	ev := Evaluation{Fingerprint: fp}

	have := make(map[string]bool, len(s.snapshot.Specifiers))
	for _, spec := range s.snapshot.Specifiers {
		have[spec.Name] = true
	}
	for _, spec := range pending {
		if !have[spec.Name] {
			ev.Added++
		} else {
			delete(have, spec.Name)
		}
	}
	ev.Removed = len(have)

	switch {
	case fp != s.snapshot.Fingerprint:
		ev.ShouldBuild = true
		ev.Reason = fmt.Sprintf("dependency set changed (%d added, %d removed)", ev.Added, ev.Removed)
	case len(pending) > 0 && !artifactExists:
		ev.ShouldBuild = true
		ev.Reason = "bundle artifact missing"
	default:
		ev.Reason = "dependency set unchanged"
	}
	return ev
}

// Commit persists the pending set as the new snapshot (atomic write) and
// swaps it in memory. Call only after the matching build succeeded.
func (s *Store) Commit() error {
	s.mu.Lock()
	pending := s.pendingLocked()
	snap := Snapshot{Specifiers: pending, Fingerprint: Fingerprint(pending)}
	path := s.path
	s.mu.Unlock()

	// Write without holding the lock; RecordUsage calls may arrive while
	// the file is flushed.
	if err := writeSnapshot(path, snap); err != nil {
		return fmt.Errorf("failed to persist dependency snapshot: %w", err)
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return nil
}

// Pending returns a sorted copy of the pending set.
func (s *Store) Pending() []Specifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// PendingCount returns the pending set size.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Snapshot returns the current committed snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Store) pendingLocked() []Specifier {
	out := make([]Specifier, 0, len(s.pending))
	for _, spec := range s.pending {
		out = append(out, spec)
	}
	sortSpecifiers(out)
	return out
}
