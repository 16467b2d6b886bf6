package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backend persists the record collection.
type Backend interface {
	// LoadAll returns every persisted record. A missing collection is empty,
	// not an error.
	LoadAll(ctx context.Context) ([]PriceRecord, error)
	// SaveAll replaces the persisted collection with records.
	SaveAll(ctx context.Context, records []PriceRecord) error
	Close() error
}

// RecordWriter is implemented by backends that can upsert and delete single
// records without rewriting the collection.
type RecordWriter interface {
	Put(ctx context.Context, rec PriceRecord) error
	Delete(ctx context.Context, id string) error
}

// Quarantiner is implemented by backends that can set aside an unreadable
// collection so that a fresh one can be started.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

// maxDocumentSize caps the JSON document read by FileBackend.
const maxDocumentSize = 256 << 20

// FileBackend stores the collection as a single JSON document.
type FileBackend struct {
	path string
	now  func() time.Time
}

// NewFileBackend returns a backend for the document at path. The parent
// directory is created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: filepath.Clean(path), now: time.Now}
}

// Path returns the document path.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) LoadAll(_ context.Context) ([]PriceRecord, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", b.path, maxDocumentSize, ErrCorruptDocument)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []PriceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", b.path, err, ErrCorruptDocument)
	}
	return records, nil
}

// SaveAll writes to a temp file in the same directory and renames it over
// the document.
func (b *FileBackend) SaveAll(_ context.Context, records []PriceRecord) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if records == nil {
		records = []PriceRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", b.path, err)
	}
	return nil
}

// Quarantine renames the document to <path>.corrupt.<unix> and returns the
// new name.
func (b *FileBackend) Quarantine(_ context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt.%d", b.path, b.now().Unix())
	if err := os.Rename(b.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", b.path, err)
	}
	return dst, nil
}

func (b *FileBackend) Close() error { return nil }

// MemoryBackend keeps the persisted collection in memory. It is used by
// tests and by callers that seed a store from another source.
type MemoryBackend struct {
	records []PriceRecord
	saves   int
}

func NewMemoryBackend(seed ...PriceRecord) *MemoryBackend {
	return &MemoryBackend{records: append([]PriceRecord(nil), seed...)}
}

func (m *MemoryBackend) LoadAll(context.Context) ([]PriceRecord, error) {
	return append([]PriceRecord(nil), m.records...), nil
}

func (m *MemoryBackend) SaveAll(_ context.Context, records []PriceRecord) error {
	m.records = append([]PriceRecord(nil), records...)
	m.saves++
	return nil
}

// Saves returns how many times SaveAll has been called.
func (m *MemoryBackend) Saves() int { return m.saves }

func (m *MemoryBackend) Close() error { return nil }

// Backend kinds accepted by NewBackend.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// NewBackend builds a backend by kind. For BackendFile path is the JSON
// document; for BackendPebble it is the database directory.
func NewBackend(kind, path string) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFileBackend(path), nil
	case BackendPebble:
		return NewPebbleBackend(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}
