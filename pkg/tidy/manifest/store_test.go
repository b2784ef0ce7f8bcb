package manifest

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	key := make([]byte, signingKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(t.TempDir(), NewHMACSigner(key))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleActions(n int) []types.RollbackAction {
	var actions []types.RollbackAction
	for i := 0; i < n; i++ {
		actions = append(actions, types.RollbackAction{
			Type:         types.ActionMove,
			OriginalPath: filepath.Join("/src", "file.txt"),
			CurrentPath:  filepath.Join("/dest", "file.txt"),
			Timestamp:    time.Now().UTC(),
		})
	}
	return actions
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	created, err := store.Create("organize ~/Downloads", sampleActions(3))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatalf("Create() assigned non-UUID id %q", created.ID)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Description != "organize ~/Downloads" {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", got.Version, FormatVersion)
	}
	if len(got.Actions) != 3 {
		t.Errorf("Actions = %d, want 3", len(got.Actions))
	}
}

func TestStore_GetInvalidID(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	_, err := store.Get("not-a-uuid")
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("error = %v, want ErrInvalidID", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	_, err := store.Get(uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_TamperedManifestFailsVerification(t *testing.T) {
	t.Parallel()

	t.Run("edited action", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		created, err := store.Create("batch", sampleActions(1))
		if err != nil {
			t.Fatal(err)
		}

		// Edit the persisted record without re-sealing.
		path := filepath.Join(store.Dir(), created.ID+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		m.Actions[0].CurrentPath = "/somewhere/else.txt"
		tampered, err := json.Marshal(&m)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, tampered, 0o644); err != nil {
			t.Fatal(err)
		}

		_, err = store.Get(created.ID)
		if !types.IsKind(err, types.KindIntegrity) {
			t.Errorf("error = %v, want integrity kind", err)
		}
	})

	t.Run("wrong signing key", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		keyA := bytes.Repeat([]byte{0xAA}, signingKeySize)
		keyB := bytes.Repeat([]byte{0xBB}, signingKeySize)

		writer, err := NewStore(dir, NewHMACSigner(keyA))
		if err != nil {
			t.Fatal(err)
		}
		created, err := writer.Create("batch", sampleActions(1))
		if err != nil {
			t.Fatal(err)
		}

		reader, err := NewStore(dir, NewHMACSigner(keyB))
		if err != nil {
			t.Fatal(err)
		}
		_, err = reader.Get(created.ID)
		if !types.IsKind(err, types.KindIntegrity) {
			t.Errorf("error = %v, want integrity kind", err)
		}
	})
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)

		old := &Manifest{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC().Add(-time.Hour),
			Version:   FormatVersion,
			Actions:   sampleActions(1),
		}
		if err := store.Save(old); err != nil {
			t.Fatal(err)
		}
		recent := &Manifest{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			Version:   FormatVersion,
			Actions:   sampleActions(1),
		}
		if err := store.Save(recent); err != nil {
			t.Fatal(err)
		}

		entries, corrupt, err := store.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(corrupt) != 0 {
			t.Fatalf("corrupt = %v", corrupt)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].ID != recent.ID {
			t.Error("entries not sorted newest first")
		}
	})

	t.Run("corrupt files are reported, not fatal", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		if _, err := store.Create("good", sampleActions(1)); err != nil {
			t.Fatal(err)
		}
		bad := filepath.Join(store.Dir(), uuid.NewString()+".json")
		if err := os.WriteFile(bad, []byte("{truncated"), 0o644); err != nil {
			t.Fatal(err)
		}

		entries, corrupt, err := store.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("entries = %d, want 1", len(entries))
		}
		if len(corrupt) != 1 {
			t.Errorf("corrupt = %d, want 1", len(corrupt))
		}
	})

	t.Run("missing directory is empty, not an error", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(filepath.Join(t.TempDir(), "never-created"),
			NewHMACSigner(bytes.Repeat([]byte{1}, signingKeySize)))
		if err != nil {
			t.Fatal(err)
		}
		entries, corrupt, err := store.List()
		if err != nil || entries != nil || corrupt != nil {
			t.Errorf("List() = %v, %v, %v", entries, corrupt, err)
		}
	})
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	created, err := store.Create("batch", sampleActions(1))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() = %v, want ErrNotFound", err)
	}
	if err := store.Delete(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
	if err := store.Delete("junk"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Delete(junk) = %v, want ErrInvalidID", err)
	}
}

func TestBatch_PersistsAfterEveryAction(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	batch := store.Begin("incremental batch")

	if batch.ID() != "" {
		t.Error("batch has an id before anything was recorded")
	}
	if batch.Len() != 0 {
		t.Error("batch non-empty before anything was recorded")
	}

	for i, action := range sampleActions(3) {
		if err := batch.Record(action); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		// The persisted record must reflect every action so far.
		got, err := store.Get(batch.ID())
		if err != nil {
			t.Fatalf("Get() after action %d: %v", i, err)
		}
		if len(got.Actions) != i+1 {
			t.Errorf("persisted actions after %d records = %d", i+1, len(got.Actions))
		}
	}
	if batch.Len() != 3 {
		t.Errorf("Len() = %d, want 3", batch.Len())
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".signing-key")

	first, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() error = %v", err)
	}
	if len(first) != signingKeySize {
		t.Fatalf("key size = %d, want %d", len(first), signingKeySize)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key mode = %v, want 0600", info.Mode().Perm())
	}

	second, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("second LoadOrCreateKey() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("key not stable across loads")
	}

	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateKey(path); err == nil {
		t.Error("wrong-size key accepted")
	}
}

func TestSigner_RejectsTamperedData(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(bytes.Repeat([]byte{7}, signingKeySize))
	sig, err := signer.Sign([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := signer.Verify([]byte("payload"), sig); err != nil {
		t.Errorf("Verify() on intact data = %v", err)
	}
	if err := signer.Verify([]byte("tampered"), sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify() on tampered data = %v, want ErrBadSignature", err)
	}
}
