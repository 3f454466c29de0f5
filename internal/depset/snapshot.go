package depset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"modfed/internal/project"
)

// Current schema version - increment when snapshotPayload format changes
const snapshotSchemaVersion uint16 = 1

// Snapshot is the last successfully built dependency set: the sorted
// specifiers and their fingerprint. The zero Snapshot means "never built".
type Snapshot struct {
	Specifiers  []Specifier
	Fingerprint project.Digest
}

// Empty reports whether the snapshot has no specifiers.
func (s Snapshot) Empty() bool { return len(s.Specifiers) == 0 }

// snapshotPayload is the on-disk form. Parallel name/source arrays keep the
// encoding flat and the schema easy to evolve.
type snapshotPayload struct {
	Schema      uint16
	Fingerprint project.Digest
	Names       []string
	Sources     []string
}

func snapshotToPayload(s Snapshot) *snapshotPayload {
	p := &snapshotPayload{
		Schema:      snapshotSchemaVersion,
		Fingerprint: s.Fingerprint,
		Names:       make([]string, len(s.Specifiers)),
		Sources:     make([]string, len(s.Specifiers)),
	}
	for i, spec := range s.Specifiers {
		p.Names[i] = spec.Name
		p.Sources[i] = spec.Source
	}
	return p
}

func payloadToSnapshot(p *snapshotPayload) (Snapshot, error) {
	if p.Schema != snapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("schema version %d, expected %d", p.Schema, snapshotSchemaVersion)
	}
	if len(p.Names) != len(p.Sources) {
		return Snapshot{}, fmt.Errorf("name/source length mismatch: %d vs %d", len(p.Names), len(p.Sources))
	}
	s := Snapshot{
		Specifiers:  make([]Specifier, len(p.Names)),
		Fingerprint: p.Fingerprint,
	}
	for i := range p.Names {
		s.Specifiers[i] = Specifier{Name: p.Names[i], Source: p.Sources[i]}
	}
	return s, nil
}

// readSnapshot loads the persisted snapshot. A missing file is not an
// error: (zero, false, nil).
func readSnapshot(path string) (Snapshot, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	defer func() {
		_ = f.Close()
	}()
	var payload snapshotPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return Snapshot{}, false, err
	}
	snap, err := payloadToSnapshot(&payload)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// writeSnapshot persists s atomically: encode into a temp file in the
// target directory, then rename over the destination.
func writeSnapshot(path string, s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(snapshotToPayload(s)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), path)
}
