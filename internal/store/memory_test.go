package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairgogo/backend/internal/store"
)

// TestMemoryGetPutDelete verifies basic point reads and writes: a written
// document reads back, a deleted one reads as missing, and deleting a
// missing key is a no-op.
func TestMemoryGetPutDelete(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()

	// Act & Assert
	var got string
	err := st.Get(ctx, "k1", &got)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, st.Put(ctx, "k1", "hello"))
	require.NoError(t, st.Get(ctx, "k1", &got))
	assert.Equal(t, "hello", got)

	require.NoError(t, st.Delete(ctx, "k1"))
	err = st.Get(ctx, "k1", &got)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.NoError(t, st.Delete(ctx, "k1"))
}

// TestMemoryListPrefix verifies that List returns exactly the documents
// under the requested prefix.
func TestMemoryListPrefix(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "pool/alice", 1))
	require.NoError(t, st.Put(ctx, "pool/bob", 2))
	require.NoError(t, st.Put(ctx, "session/xyz", 3))

	// Act
	snap, err := st.List(ctx, "pool/")

	// Assert
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	var n int
	require.NoError(t, snap.Decode("pool/alice", &n))
	assert.Equal(t, 1, n)
	assert.True(t, errors.Is(snap.Decode("session/xyz", &n), store.ErrNotFound))
}

// TestMemorySubscribeDeliversSnapshots verifies that a subscriber receives
// the current snapshot immediately and a fresh one after every change under
// its prefix, while changes outside the prefix are invisible.
func TestMemorySubscribeDeliversSnapshots(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "pool/alice", "a"))

	snaps, cancel := st.Subscribe(ctx, "pool/")
	defer cancel()

	// Assert: initial snapshot carries the pre-existing document.
	snap := <-snaps
	assert.Len(t, snap, 1)

	// Act: one change inside the prefix, one outside.
	require.NoError(t, st.Put(ctx, "session/xyz", "s"))
	require.NoError(t, st.Put(ctx, "pool/bob", "b"))

	select {
	case snap = <-snaps:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	assert.Len(t, snap, 2)
	_, hasForeign := snap["session/xyz"]
	assert.False(t, hasForeign)
}

// TestMemorySubscribeCoalesces verifies latest-wins delivery: a slow
// subscriber that misses intermediate snapshots still observes the final
// state, never a stale one.
func TestMemorySubscribeCoalesces(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	snaps, cancel := st.Subscribe(ctx, "pool/")
	defer cancel()
	<-snaps // drain the initial snapshot

	// Act: several writes before the subscriber reads again.
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Put(ctx, "pool/alice", i))
	}

	// Assert
	snap := <-snaps
	var v int
	require.NoError(t, snap.Decode("pool/alice", &v))
	assert.Equal(t, 4, v)
}

// TestMemoryUpdateAbortsOnError verifies that an error from the transaction
// function discards all buffered writes.
func TestMemoryUpdateAbortsOnError(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "k1", "before"))

	// Act
	boom := errors.New("boom")
	err := st.Update(ctx, []string{"k1"}, func(tx store.Tx) error {
		require.NoError(t, tx.Put("k1", "after"))
		require.NoError(t, tx.Put("k2", "new"))
		return boom
	})

	// Assert
	assert.True(t, errors.Is(err, boom))
	var got string
	require.NoError(t, st.Get(ctx, "k1", &got))
	assert.Equal(t, "before", got)
	assert.True(t, errors.Is(st.Get(ctx, "k2", &got), store.ErrNotFound))
}

// TestMemoryUpdateReadsOwnWrites verifies that reads inside a transaction
// observe that transaction's pending writes and deletes.
func TestMemoryUpdateReadsOwnWrites(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "k1", "old"))

	// Act & Assert
	err := st.Update(ctx, []string{"k1", "k2"}, func(tx store.Tx) error {
		require.NoError(t, tx.Put("k2", "pending"))
		var got string
		require.NoError(t, tx.Get("k2", &got))
		assert.Equal(t, "pending", got)

		tx.Delete("k1")
		assert.True(t, errors.Is(tx.Get("k1", &got), store.ErrNotFound))

		// A put after a delete resurrects the key.
		require.NoError(t, tx.Put("k1", "again"))
		require.NoError(t, tx.Get("k1", &got))
		assert.Equal(t, "again", got)
		return nil
	})
	require.NoError(t, err)

	var got string
	require.NoError(t, st.Get(ctx, "k1", &got))
	assert.Equal(t, "again", got)
	require.NoError(t, st.Get(ctx, "k2", &got))
	assert.Equal(t, "pending", got)
}

// TestMemoryUpdateCommitNotifiesSubscribers verifies that a committed
// transaction wakes subscribers of the touched keys.
func TestMemoryUpdateCommitNotifiesSubscribers(t *testing.T) {
	// Arrange
	st := store.NewMemory()
	ctx := context.Background()
	snaps, cancel := st.Subscribe(ctx, "pool/")
	defer cancel()
	<-snaps

	// Act
	err := st.Update(ctx, []string{"pool/alice"}, func(tx store.Tx) error {
		return tx.Put("pool/alice", "entry")
	})
	require.NoError(t, err)

	// Assert
	select {
	case snap := <-snaps:
		assert.Contains(t, snap, "pool/alice")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}
