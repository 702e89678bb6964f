// Package store persists the watermark: the instant the last successful run started.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store loads and commits the watermark.
type Store interface {
	Load(ctx context.Context) (time.Time, error)
	Commit(ctx context.Context, t time.Time) error
}

// StartOfDay returns midnight UTC of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Format renders a watermark the way every backend stores it.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Parse accepts RFC 3339 (with or without fractional seconds) and plain dates.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported watermark: %q", s)
}

// FileStore keeps the watermark in a single text file.
type FileStore struct {
	Path string
	Now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Now: time.Now}
}

func (f *FileStore) Load(_ context.Context) (time.Time, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return StartOfDay(f.Now()), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return StartOfDay(f.Now()), nil
	}
	return Parse(string(b))
}

// Commit writes through a temp file and a rename so a crash keeps the old value.
func (f *FileStore) Commit(_ context.Context, t time.Time) error {
	dir, base := filepath.Split(f.Path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Format(t) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write watermark: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close watermark: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod watermark: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename watermark: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store, mostly for tests.
type MemoryStore struct {
	mu      sync.Mutex
	value   time.Time
	set     bool
	Now     func() time.Time
	Commits int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Now: time.Now}
}

// NewMemoryStoreAt returns a MemoryStore already holding t.
func NewMemoryStoreAt(t time.Time) *MemoryStore {
	return &MemoryStore{Now: time.Now, value: t.UTC(), set: true}
}

func (m *MemoryStore) Load(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return StartOfDay(m.Now()), nil
	}
	return m.value, nil
}

func (m *MemoryStore) Commit(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = t.UTC()
	m.set = true
	m.Commits++
	return nil
}

// Value returns the stored watermark and whether one was ever committed.
func (m *MemoryStore) Value() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.set
}
