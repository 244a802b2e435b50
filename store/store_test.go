package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"commandset/config"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Flag      bool   `json:"flag"`
	Selection string `json:"selection,omitempty"`
}

// exerciseStore runs the behaviour every backend has to share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var got map[string]sample
	err := s.Load(ctx, "player", &got)
	require.ErrorIs(t, err, ErrNotFound)

	want := map[string]sample{
		"Play": {Flag: true},
		"Mute": {Selection: "half"},
	}
	require.NoError(t, s.Save(ctx, "player", want))
	require.NoError(t, s.Load(ctx, "player", &got))
	assert.Equal(t, want, got)

	// Save overwrites the whole value
	want = map[string]sample{"Mute": {Flag: true}}
	require.NoError(t, s.Save(ctx, "player", want))
	got = nil
	require.NoError(t, s.Load(ctx, "player", &got))
	assert.Equal(t, want, got)

	// Keys are independent
	require.NoError(t, s.Save(ctx, "editor", map[string]sample{"Wrap": {Flag: true}}))
	got = nil
	require.NoError(t, s.Load(ctx, "player", &got))
	assert.Equal(t, want, got)

	require.NoError(t, s.Delete(ctx, "player"))
	require.NoError(t, s.Delete(ctx, "player"))
	assert.ErrorIs(t, s.Load(ctx, "player", &got), ErrNotFound)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), time.Second)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, time.Second)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path("player"), []byte("{not json"), 0644))

	var got map[string]sample
	err = s.Load(context.Background(), "player", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileStoreEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, filepath.Join(dir, "ui%2Fcommands.json"), s.Path("ui/commands"))
	require.NoError(t, s.Save(ctx, "ui/commands", map[string]sample{}))

	_, err = os.Stat(filepath.Join(dir, "ui%2Fcommands.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ui%2Fcommands.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temporary file should be renamed away")

	// Keys that differ only in punctuation stay apart
	require.NoError(t, s.Save(ctx, "player.hotkeys", map[string]sample{"Play": {Flag: true}}))
	require.NoError(t, s.Save(ctx, "player-hotkeys", map[string]sample{"Mute": {Flag: true}}))
	var got map[string]sample
	require.NoError(t, s.Load(ctx, "player.hotkeys", &got))
	assert.Equal(t, map[string]sample{"Play": {Flag: true}}, got)
	assert.NotEqual(t, s.Path("player.hotkeys"), s.Path("player-hotkeys"))
	assert.Equal(t, dir, filepath.Dir(s.Path("../escape")))
}

func TestFileStoreDeleteWaitsForLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 100*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "player", map[string]sample{"Play": {Flag: true}}))

	// Another process holding the write lock
	other := flock.New(filepath.Join(dir, LockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	assert.Error(t, s.Delete(ctx, "player"))
	_, err = os.Stat(s.Path("player"))
	assert.NoError(t, err, "file survives while the lock is held")

	require.NoError(t, other.Unlock())
	require.NoError(t, s.Delete(ctx, "player"))
	_, err = os.Stat(s.Path("player"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 5*time.Second)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Save(context.Background(), "player", map[string]sample{
				"Play": {Selection: fmt.Sprint(i)},
			}))
		}(i)
	}
	wg.Wait()

	var got map[string]sample
	require.NoError(t, s.Load(context.Background(), "player", &got))
	assert.Contains(t, got, "Play")
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	_, err := NewFileStore("  ", time.Second)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "state.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	exerciseStore(t, s)

	require.NoError(t, s.Save(context.Background(), "player", map[string]sample{"Play": {Flag: true}}))
	require.NoError(t, s.Close())

	// Survives reopen
	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	var got map[string]sample
	require.NoError(t, reopened.Load(context.Background(), "player", &got))
	assert.True(t, got["Play"].Flag)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	opts := &redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1}

	_, err := NewRedisStore(ctx, opts, "test:")
	assert.Error(t, err)

	// Without the ping, operations fail but never look like a missing key
	s := NewRedisStoreWithClient(redis.NewClient(opts), "test:")
	defer s.Close()

	var got map[string]sample
	err = s.Load(ctx, "player", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Save(ctx, "player", map[string]sample{}))
	assert.Error(t, s.Delete(ctx, "player"))
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "commandset:")
	defer s.Close()
	assert.Equal(t, "commandset:player", s.redisKey("player"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.StorageConfig{Backend: "file", Dir: filepath.Join(dir, "files")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StorageConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "state.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	s, err = Open(ctx, config.StorageConfig{Backend: "file", Dir: ""})
	assert.Error(t, err)
	assert.Nil(t, s)
}
