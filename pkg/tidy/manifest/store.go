package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// ErrNotFound indicates no manifest exists for the requested id.
var ErrNotFound = errors.New("manifest not found")

// ErrInvalidID indicates a manifest id that is not a syntactically valid
// UUID. Rejected before any storage access.
var ErrInvalidID = errors.New("invalid manifest id")

// CorruptEntry reports a persisted manifest file that could not be parsed
// or failed verification during listing.
type CorruptEntry struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Store persists manifests as one JSON file per record, named by UUID,
// under an explicitly configured directory.
type Store struct {
	dir    string
	signer Signer
	mu     sync.Mutex
	log    *logging.Logger
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, signer Signer) (*Store, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	return &Store{dir: dir, signer: signer, log: logging.Get("manifest")}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Create assigns a UUID, seals the record, and persists it.
func (s *Store) Create(description string, actions []types.RollbackAction) (*Manifest, error) {
	m := &Manifest{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Description: description,
		Version:     FormatVersion,
		Actions:     actions,
	}
	if err := s.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save re-seals and persists a manifest. It is called after every single
// successful placement, not just at batch end, so a crash mid-batch never
// desynchronizes the undo log from the filesystem.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.seal(s.signer); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return types.NewOpError(types.KindPersistence, "save", s.dir, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return types.NewOpError(types.KindPersistence, "save", m.ID, err)
	}

	// Write atomically using a temp file and rename.
	path := s.path(m.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return types.NewOpError(types.KindPersistence, "save", m.ID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return types.NewOpError(types.KindPersistence, "save", m.ID, err)
	}

	return nil
}

// Get loads and verifies a manifest by id. The id is validated
// syntactically before any storage access; verification failure is
// reported as an integrity error, never ignored.
func (s *Store) Get(id string) (*Manifest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	if err := m.Verify(s.signer); err != nil {
		return nil, err
	}
	return m, nil
}

// List enumerates persisted manifests, newest first. Individually corrupt
// files are reported, never fatal.
func (s *Store) List() ([]*Manifest, []CorruptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, types.NewOpError(types.KindPersistence, "list", s.dir, err)
	}

	var entries []*Manifest
	var corrupt []CorruptEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		m, err := s.readFile(filepath.Join(s.dir, f.Name()))
		if err != nil {
			corrupt = append(corrupt, CorruptEntry{File: f.Name(), Reason: err.Error()})
			continue
		}
		if err := m.Verify(s.signer); err != nil {
			corrupt = append(corrupt, CorruptEntry{File: f.Name(), Reason: err.Error()})
			continue
		}
		entries = append(entries, m)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, corrupt, nil
}

// Delete removes a manifest. Called only after a fully successful
// rollback.
func (s *Store) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return types.NewOpError(types.KindPersistence, "delete", id, err)
	}
	return nil
}

// path returns the file path for a manifest id.
func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// readFile reads and parses one manifest file.
func (s *Store) readFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// Batch journals one executing batch. The manifest is created lazily on
// the first recorded action and re-persisted after each one.
type Batch struct {
	store    *Store
	manifest *Manifest
	desc     string
}

// Begin starts a journal for a batch with the given description.
func (s *Store) Begin(description string) *Batch {
	return &Batch{store: s, desc: description}
}

// Record appends one completed placement and persists the manifest.
func (b *Batch) Record(action types.RollbackAction) error {
	if b.manifest == nil {
		b.manifest = &Manifest{
			ID:          uuid.NewString(),
			Timestamp:   time.Now().UTC(),
			Description: b.desc,
			Version:     FormatVersion,
		}
	}
	b.manifest.Actions = append(b.manifest.Actions, action)
	return b.store.Save(b.manifest)
}

// ID returns the manifest id, or empty if nothing was recorded.
func (b *Batch) ID() string {
	if b.manifest == nil {
		return ""
	}
	return b.manifest.ID
}

// Len returns the number of recorded actions.
func (b *Batch) Len() int {
	if b.manifest == nil {
		return 0
	}
	return len(b.manifest.Actions)
}
