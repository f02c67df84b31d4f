package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileBackend_SaveAndLoad(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), "_client.json")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	if err := backend.Save("dcr_abc", &record{Name: "alpha", Count: 3}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got record
	if err := backend.Load("dcr_abc", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Name != "alpha" || got.Count != 3 {
		t.Errorf("Load() = %+v", got)
	}
}

func TestFileBackend_LoadMissing(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), "_client.json")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	var got record
	if err := backend.Load("nope", &got); err != os.ErrNotExist {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestFileBackend_LoadAll(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, "_client.json")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	_ = backend.Save("dcr_a", &record{Name: "a"})
	_ = backend.Save("dcr_b", &record{Name: "b"})

	// Files with a different suffix are not records
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	records, err := backend.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("LoadAll() returned %d records, want 2", len(records))
	}
	for _, id := range []string{"dcr_a", "dcr_b"} {
		if _, ok := records[id]; !ok {
			t.Errorf("LoadAll() missing %s", id)
		}
	}
}

func TestFileBackend_Delete(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), "_client.json")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	if err := backend.Save("dcr_abc", &record{Name: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := backend.Delete("dcr_abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var got record
	if err := backend.Load("dcr_abc", &got); err != os.ErrNotExist {
		t.Errorf("Load() after delete error = %v, want os.ErrNotExist", err)
	}

	// Deleting a missing record is not an error
	if err := backend.Delete("dcr_abc"); err != nil {
		t.Errorf("repeated Delete() error = %v", err)
	}
}

func TestFileBackend_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, "_token.json")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	if err := backend.Save("alice", &record{Name: "secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "alice_token.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()

	if err := backend.Save("k1", &record{Name: "mem", Count: 7}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got record
	if err := backend.Load("k1", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Count != 7 {
		t.Errorf("Load() = %+v", got)
	}

	records, err := backend.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("LoadAll() returned %d records, want 1", len(records))
	}

	if err := backend.Delete("k1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := backend.Load("k1", &got); err != os.ErrNotExist {
		t.Errorf("Load() after delete error = %v, want os.ErrNotExist", err)
	}
}

func TestSelect(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	backend := Select(dir, "_client.json", slog.Default())
	if _, ok := backend.(*FileBackend); !ok {
		t.Errorf("Select() with a writable directory = %T, want *FileBackend", backend)
	}
}

func TestSelect_FallsBackToMemory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}

	parent := t.TempDir()
	if err := os.Chmod(parent, 0500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0700) })

	backend := Select(filepath.Join(parent, "state"), "_client.json", slog.Default())
	if _, ok := backend.(*MemoryBackend); !ok {
		t.Errorf("Select() with an unwritable directory = %T, want *MemoryBackend", backend)
	}
}
