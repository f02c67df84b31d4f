package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Backend stores JSON-serializable records keyed by ID.
// It is the capability behind the client registry and the user token
// store: a FileBackend when the filesystem is writable, a MemoryBackend
// otherwise. Selection happens once at startup, so individual storage
// calls never have to catch-and-degrade.
type Backend interface {
	// Save persists the record under the given ID
	Save(id string, record any) error

	// Load reads the record stored under the given ID into out.
	// Returns os.ErrNotExist if no record exists.
	Load(id string, out any) error

	// LoadAll returns the raw JSON of every stored record, keyed by ID
	LoadAll() (map[string]json.RawMessage, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(id string) error
}

// FileBackend persists one JSON file per record at <dir>/<id><suffix>
type FileBackend struct {
	dir    string
	suffix string
	mu     sync.Mutex
}

// NewFileBackend creates a file backend rooted at dir. It creates the
// directory and probes writability once; an error here means the caller
// should fall back to a MemoryBackend.
func NewFileBackend(dir, suffix string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	// Probe writability so read-only filesystems are detected at startup
	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte{}, 0600); err != nil {
		return nil, fmt.Errorf("storage directory not writable: %w", err)
	}
	os.Remove(probe)

	return &FileBackend{dir: dir, suffix: suffix}, nil
}

func (b *FileBackend) path(id string) string {
	return filepath.Join(b.dir, id+b.suffix)
}

// Save persists the record under the given ID
func (b *FileBackend) Save(id string, record any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	if err := os.WriteFile(b.path(id), data, 0600); err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}

	return nil
}

// Load reads the record stored under the given ID into out
func (b *FileBackend) Load(id string, out any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to read record %s: %w", id, err)
	}

	return json.Unmarshal(data, out)
}

// LoadAll returns the raw JSON of every stored record, keyed by ID
func (b *FileBackend) LoadAll() (map[string]json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	records := make(map[string]json.RawMessage)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, b.suffix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			continue
		}

		id := strings.TrimSuffix(name, b.suffix)
		records[id] = json.RawMessage(data)
	}

	return records, nil
}

// Delete removes the record file. Missing files are not an error.
func (b *FileBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// MemoryBackend keeps records in a process-local map. Used when the
// filesystem is unwritable (e.g. serverless deployments); data is lost
// on restart, which is an accepted limitation.
type MemoryBackend struct {
	records map[string]json.RawMessage
	mu      sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]json.RawMessage),
	}
}

// Save persists the record under the given ID
func (b *MemoryBackend) Save(id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[id] = data
	return nil
}

// Load reads the record stored under the given ID into out
func (b *MemoryBackend) Load(id string, out any) error {
	b.mu.RLock()
	data, exists := b.records[id]
	b.mu.RUnlock()

	if !exists {
		return os.ErrNotExist
	}
	return json.Unmarshal(data, out)
}

// LoadAll returns the raw JSON of every stored record, keyed by ID
func (b *MemoryBackend) LoadAll() (map[string]json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := make(map[string]json.RawMessage, len(b.records))
	for id, data := range b.records {
		records[id] = data
	}
	return records, nil
}

// Delete removes the record
func (b *MemoryBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, id)
	return nil
}

// Select returns a FileBackend rooted at dir, falling back to a
// MemoryBackend when the directory cannot be created or written. The
// degradation is logged once here rather than on every storage call.
func Select(dir, suffix string, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := NewFileBackend(dir, suffix)
	if err != nil {
		logger.Warn("Falling back to memory-only storage",
			"dir", dir,
			"error", err)
		return NewMemoryBackend()
	}

	return backend
}
