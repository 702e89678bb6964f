package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 5, 17, 42, 11, 0, time.UTC)

func TestParse(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-01T00:00:00Z":          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"2024-01-02T10:00:00.123456Z\n": time.Date(2024, 1, 2, 10, 0, 0, 123456000, time.UTC),
		"2024-01-02T12:00:00+02:00":     time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		"2024-01-02":                    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"2024-01-02T10:00:00.5":         time.Date(2024, 1, 2, 10, 0, 0, 500000000, time.UTC),
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%q: got %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := Parse("yesterday")
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	local := time.FixedZone("UTC+10", 10*3600)
	// 02:00 on the 6th at +10 is still the 5th in UTC.
	got := StartOfDay(time.Date(2024, 3, 6, 2, 0, 0, 0, local))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got)
}

func TestFileStoreMissingFileDefaultsToStartOfDay(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), ".last_execution_time"))
	s.Now = func() time.Time { return fixedNow }

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".last_execution_time")
	s := NewFileStore(path)
	ctx := context.Background()

	at := time.Date(2024, 1, 2, 10, 0, 0, 123, time.UTC)
	require.NoError(t, s.Commit(ctx, at))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T10:00:00.000000123Z\n", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileStoreUnreadableIsFatal(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir) // a directory cannot be read as a file
	_, err := s.Load(context.Background())
	assert.Error(t, err)

	path := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a time"), 0o644))
	_, err = NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	m.Now = func() time.Time { return fixedNow }
	ctx := context.Background()

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StartOfDay(fixedNow), got)
	_, set := m.Value()
	assert.False(t, set)

	require.NoError(t, m.Commit(ctx, fixedNow))
	got, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, got)
	assert.Equal(t, 1, m.Commits)
}
