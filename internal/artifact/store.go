// Package artifact persists per-split feature artifacts so a rerun can skip
// extraction. Each split has its own directory holding one file per kind
// and a manifest.yaml recording shape, size and checksum of every file.
// An artifact counts as present only when the manifest lists it.
package artifact

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/logger"
)

// Artifact is a storable value.
type Artifact interface {
	encoding.BinaryMarshaler
	Shape() (rows, cols int)
}

type PutOption func(*Entry)

// WithVocabulary records the fingerprint of the vocabulary that produced a
// histogram artifact.
func WithVocabulary(fingerprint string) PutOption {
	return func(e *Entry) {
		e.Vocabulary = fingerprint
	}
}

type Store struct {
	root   string
	logger logger.Logger
	now    func() time.Time
	// writeFile stores artifact payloads.
	writeFile func(path string, data []byte) error
	mu        sync.Mutex
}

func NewStore(root string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	return &Store{root: root, logger: log, now: time.Now, writeFile: writeAtomic}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) dir(split dataset.Split) string {
	return filepath.Join(s.root, split.String())
}

// Path returns the file an artifact is stored in.
func (s *Store) Path(split dataset.Split, kind Kind) string {
	return filepath.Join(s.dir(split), fmt.Sprintf("%s_%s.obj", split, kind))
}

func (s *Store) manifestPath(split dataset.Split) string {
	return filepath.Join(s.dir(split), manifestName)
}

func checkNamespace(split dataset.Split, kind Kind) error {
	if kind.trainOnly() && split != dataset.Train {
		return fmt.Errorf("%w: %s in %s", ErrWrongNamespace, kind, split)
	}
	return nil
}

// Get decodes the artifact into into. An artifact missing from the
// manifest returns found == false and no error.
func (s *Store) Get(split dataset.Split, kind Kind, into encoding.BinaryUnmarshaler) (bool, error) {
	if err := checkNamespace(split, kind); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := readManifest(s.manifestPath(split))
	if err != nil {
		return false, err
	}
	entry, ok := m.Entries[kind.String()]
	if !ok {
		return false, nil
	}

	path := filepath.Join(s.dir(split), entry.File)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, &CorruptionError{Path: path, Kind: kind, Err: err}
	}
	if sum := checksum(data); sum != entry.SHA256 {
		return false, &CorruptionError{Path: path, Kind: kind, Err: fmt.Errorf("checksum %s, manifest has %s", sum, entry.SHA256)}
	}
	if err := into.UnmarshalBinary(data); err != nil {
		return false, &CorruptionError{Path: path, Kind: kind, Err: err}
	}

	s.logger.Debug("ArtifactStore", "loaded artifact", map[string]interface{}{
		"path": path,
		"rows": entry.Rows,
		"cols": entry.Cols,
	})
	return true, nil
}

// Put encodes and stores the artifact, replacing any previous one. A
// previous entry is dropped from the manifest before the file is replaced,
// and the new entry is recorded only once the file is in place, so an
// interrupted Put leaves the kind absent rather than corrupt.
func (s *Store) Put(split dataset.Split, kind Kind, a Artifact, opts ...PutOption) error {
	if err := checkNamespace(split, kind); err != nil {
		return err
	}

	data, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir(split), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	m, err := readManifest(s.manifestPath(split))
	if err != nil {
		return err
	}
	m.Split = split.String()
	if _, ok := m.Entries[kind.String()]; ok {
		delete(m.Entries, kind.String())
		if err := writeManifest(s.manifestPath(split), m); err != nil {
			return err
		}
	}

	path := s.Path(split, kind)
	if err := s.writeFile(path, data); err != nil {
		return err
	}

	rows, cols := a.Shape()
	entry := Entry{
		File:    filepath.Base(path),
		Rows:    rows,
		Cols:    cols,
		Bytes:   int64(len(data)),
		SHA256:  checksum(data),
		Written: s.now().UTC(),
	}
	for _, opt := range opts {
		opt(&entry)
	}
	m.Entries[kind.String()] = entry
	if err := writeManifest(s.manifestPath(split), m); err != nil {
		return err
	}

	s.logger.Info("ArtifactStore", "saved artifact", map[string]interface{}{
		"path":  path,
		"rows":  rows,
		"cols":  cols,
		"bytes": len(data),
	})
	return nil
}

// Entry returns the manifest entry for kind without reading the artifact.
func (s *Store) Entry(split dataset.Split, kind Kind) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := readManifest(s.manifestPath(split))
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := m.Entries[kind.String()]
	return e, ok, nil
}

// Entries returns the manifest of split keyed by kind.
func (s *Store) Entries(split dataset.Split) (map[Kind]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := readManifest(s.manifestPath(split))
	if err != nil {
		return nil, err
	}
	out := make(map[Kind]Entry, len(m.Entries))
	for name, e := range m.Entries {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, &CorruptionError{Path: s.manifestPath(split), Kind: manifestKind, Err: err}
		}
		out[kind] = e
	}
	return out, nil
}

// Complete returns the kinds the manifest of split does not list, in
// the order given.
func (s *Store) Complete(split dataset.Split, kinds ...Kind) ([]Kind, error) {
	entries, err := s.Entries(split)
	if err != nil {
		return nil, err
	}
	var missing []Kind
	for _, k := range kinds {
		if _, ok := entries[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// Clear removes every artifact of split.
func (s *Store) Clear(split dataset.Split) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir(split)); err != nil {
		return fmt.Errorf("failed to clear %s cache: %w", split, err)
	}
	s.logger.Info("ArtifactStore", "cleared cache", map[string]interface{}{
		"split": split.String(),
	})
	return nil
}

// SortedKinds returns the keys of entries in storage order.
func SortedKinds(entries map[Kind]Entry) []Kind {
	kinds := make([]Kind, 0, len(entries))
	for k := range entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
