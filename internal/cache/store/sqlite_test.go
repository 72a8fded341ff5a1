package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Now().Truncate(time.Millisecond)
	err := s.Set(context.Background(), "market-LQD", Entry{Value: []byte(`{"price":108.31}`), CreatedAt: created, TTL: 5 * time.Minute})
	require.NoError(t, err)

	e, ok, err := s.Get(context.Background(), "market-LQD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"price":108.31}`), e.Value)
	require.Equal(t, created.UnixMilli(), e.CreatedAt.UnixMilli())
	require.Equal(t, 5*time.Minute, e.TTL)
	require.False(t, e.Expired(created.Add(time.Minute)))
	require.True(t, e.Expired(created.Add(6*time.Minute)))
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteSetReplaces(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(context.Background(), "k", Entry{Value: []byte("old"), CreatedAt: time.Now(), TTL: time.Minute}))
	require.NoError(t, s.Set(context.Background(), "k", Entry{Value: []byte("new"), CreatedAt: time.Now(), TTL: time.Minute}))

	e, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new"), e.Value)
}

func TestSQLiteDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(context.Background(), "k", Entry{Value: []byte("v"), CreatedAt: time.Now(), TTL: time.Minute}))
	require.NoError(t, s.Delete(context.Background(), "k"))

	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	// deleting an absent key is not an error
	require.NoError(t, s.Delete(context.Background(), "k"))
}

func TestSQLiteSweep(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	require.NoError(t, s.Set(context.Background(), "live", Entry{Value: []byte("v"), CreatedAt: now, TTL: time.Hour}))
	require.NoError(t, s.Set(context.Background(), "dead", Entry{Value: []byte("v"), CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour}))

	require.NoError(t, s.Sweep(context.Background()))

	_, ok, err := s.Get(context.Background(), "live")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.Get(context.Background(), "dead")
	require.NoError(t, err)
	require.False(t, ok)
}
