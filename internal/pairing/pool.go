// Package pairing implements the waiting pool and the per-client pairing
// coordinator. Every searching client runs the same coordinator logic
// against the shared store; there is no central matchmaking arbiter. The
// only synchronization between competing coordinators is the store's
// transaction primitive plus the lexicographic leader rule.
package pairing

import (
	"context"
	"sort"
	"time"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/store"
)

// Directory is the profile lookup the coordinator needs: display name and
// the caller's outgoing block list, copied into the pool entry so other
// coordinators can filter without a directory round-trip.
type Directory interface {
	GetProfile(userID string) (*models.Profile, error)
}

// Entries decodes a pool snapshot into entries ordered by enqueue time.
// Snapshot order is the candidate-scan order: first match wins, no scoring.
func Entries(snap store.Snapshot) []models.WaitingEntry {
	out := make([]models.WaitingEntry, 0, len(snap))
	for key := range snap {
		var entry models.WaitingEntry
		if err := snap.Decode(key, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].UserID < out[j].UserID // stable order for equal stamps
	})
	return out
}

func findEntry(entries []models.WaitingEntry, uid string) (*models.WaitingEntry, bool) {
	for i := range entries {
		if entries[i].UserID == uid {
			return &entries[i], true
		}
	}
	return nil, false
}

// Enqueue creates or overwrites the user's pool entry with a fresh
// timestamp and the current block list. Idempotent: re-enqueueing just
// refreshes the entry.
func (c *Coordinator) Enqueue(ctx context.Context) error {
	profile, err := c.Directory.GetProfile(c.UserID)
	if err != nil {
		return err
	}
	entry := models.WaitingEntry{
		UserID:     c.UserID,
		Username:   profile.Username,
		Blocked:    profile.Blocked,
		EnqueuedAt: time.Now(),
	}
	return c.Store.Put(ctx, store.PoolKey(c.UserID), &entry)
}

// Cancel removes the pool entry, unless a match has already been confirmed
// locally. In that case the entry is already gone, consumed by the match
// transaction, and deleting the key again could race a fresh search.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	matched := c.matched
	c.mu.Unlock()
	if matched {
		return nil
	}
	return c.Store.Delete(ctx, store.PoolKey(c.UserID))
}
