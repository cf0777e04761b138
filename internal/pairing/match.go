package pairing

import (
	"context"
	"errors"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/store"
)

// atomicMatch attempts to pair self with other in one transaction:
//
//  1. re-verify neither participant holds an active session (the outer
//     snapshot checks may be stale by now),
//  2. re-verify both pool entries still exist (either side may have been
//     matched elsewhere or cancelled since we observed them),
//  3. create the session, write both active indexes, and delete both pool
//     entries as a single atomic unit.
//
// A nil, nil result means a precondition no longer held; the caller goes
// back to searching. Competing transactions for the same pair are resolved
// by the store: exactly one commits, the other re-runs, finds the pool
// entries gone, and returns nil.
func (c *Coordinator) atomicMatch(ctx context.Context, self, other *models.WaitingEntry) (*models.ChatSession, error) {
	selfKey := store.PoolKey(self.UserID)
	otherKey := store.PoolKey(other.UserID)
	watched := []string{
		selfKey,
		otherKey,
		store.ActiveKey(self.UserID),
		store.ActiveKey(other.UserID),
	}

	var result *models.ChatSession
	err := c.Store.Update(ctx, watched, func(tx store.Tx) error {
		result = nil

		for _, uid := range []string{self.UserID, other.UserID} {
			active, err := session.ActiveForInTx(tx, uid)
			if err != nil {
				return err
			}
			if active != nil {
				return nil // already in a chat, abort without side effects
			}
		}

		var selfEntry, otherEntry models.WaitingEntry
		if err := tx.Get(selfKey, &selfEntry); err != nil {
			return ignoreNotFound(err)
		}
		if err := tx.Get(otherKey, &otherEntry); err != nil {
			return ignoreNotFound(err)
		}

		sess := session.New(
			selfEntry.UserID, selfEntry.Username,
			otherEntry.UserID, otherEntry.Username,
			models.SessionRandom,
		)
		if err := session.CreateInTx(tx, sess); err != nil {
			return err
		}
		tx.Delete(selfKey)
		tx.Delete(otherKey)

		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
