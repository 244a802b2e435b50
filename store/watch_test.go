package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesTriggers(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)
	defer d.stop()

	var first, last atomic.Int32
	for i := 0; i < 5; i++ {
		d.trigger(func() { first.Add(1) })
	}
	d.trigger(func() { last.Add(1) })
	assert.True(t, d.pending())

	require.Eventually(t, func() bool { return last.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, first.Load(), "only the newest callback runs")
	assert.False(t, d.pending())
}

func TestDebouncerStop(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.trigger(func() { calls.Add(1) })
	d.stop()
	d.trigger(func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.False(t, d.pending())
}

func TestFileStoreWatch(t *testing.T) {
	dir := t.TempDir()
	watched, err := NewFileStore(dir, time.Second)
	require.NoError(t, err)
	// A second handle on the same directory stands in for another process.
	other, err := NewFileStore(dir, time.Second)
	require.NoError(t, err)

	var changes atomic.Int32
	w, err := watched.Watch("player", 50*time.Millisecond, func() { changes.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, other.Save(ctx, "player", sample{Flag: i%2 == 0}))
	}
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	// Other keys are ignored
	time.Sleep(200 * time.Millisecond)
	before := changes.Load()
	require.NoError(t, other.Save(ctx, "player.hotkeys", map[string]string{"Play": "ctrl+p"}))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, changes.Load())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	require.NoError(t, other.Save(ctx, "player", sample{Selection: "late"}))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, changes.Load())
}
