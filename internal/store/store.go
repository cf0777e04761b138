// Package store provides the shared document store the pairing protocol and
// the game state machines run against: point reads/writes, push-based
// subscriptions that deliver a full current snapshot on every change, and
// optimistic compare-validate-write transactions.
//
// All coordination logic in this codebase is written against the Store
// interface; the transaction primitive is the only safe way to mutate a
// contended document. Two implementations exist: Memory (tests, single
// process) and Redis (shared between server instances).
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a transaction keeps losing the
	// optimistic race and the retry budget is exhausted.
	ErrConflict = errors.New("store: transaction conflict")
)

// Snapshot is the full current state of one key prefix, document bodies
// keyed by full key.
type Snapshot map[string]json.RawMessage

// Decode unmarshals the document at key into dest. Returns ErrNotFound when
// the snapshot has no such key.
func (s Snapshot) Decode(key string, dest any) error {
	raw, ok := s[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

// Tx is the view of the store inside a transaction. Reads observe committed
// state; writes are buffered and applied atomically iff the transaction
// function returns nil and none of the watched keys changed underneath it.
type Tx interface {
	Get(key string, dest any) error
	Put(key string, val any) error
	Delete(key string)
}

// Store is the shared store primitive.
type Store interface {
	// Get reads the document at key into dest. ErrNotFound when absent.
	Get(ctx context.Context, key string, dest any) error
	// Put overwrites the document at key. Plain last-write-wins; use
	// Update for anything correctness-critical.
	Put(ctx context.Context, key string, val any) error
	// Delete removes the document at key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	// List returns the current snapshot of every document under prefix.
	List(ctx context.Context, prefix string) (Snapshot, error)
	// Subscribe delivers a full snapshot of prefix immediately and again
	// after every change under it. Deliveries are coalesced per subscriber
	// (latest wins) and their relative order is not shared across
	// subscribers. The returned func cancels the subscription.
	Subscribe(ctx context.Context, prefix string) (<-chan Snapshot, func())
	// Update runs fn as an atomic transaction. The watched keys are
	// re-validated at commit; on interference the whole transaction is
	// retried with fresh reads. An error from fn aborts with no writes.
	Update(ctx context.Context, watched []string, fn func(Tx) error) error
}

// Key layout. Everything the protocol shares lives under these prefixes.
const (
	PoolPrefix    = "pool/"
	SessionPrefix = "session/"
	ActivePrefix  = "active/"
	GamePrefix    = "game/"
	RequestPrefix = "chatreq/"
)

// PoolKey addresses a user's waiting-pool entry.
func PoolKey(uid string) string { return PoolPrefix + uid }

// SessionKey addresses a chat session document.
func SessionKey(id string) string { return SessionPrefix + id }

// ActiveKey addresses the uid -> active-session-id index document.
func ActiveKey(uid string) string { return ActivePrefix + uid }

// GameKey addresses the per-session slot of one game kind.
func GameKey(sessionID, kind string) string {
	return GamePrefix + sessionID + "/" + kind
}

// RequestKey addresses a direct chat request, one slot per (from, to) pair
// so re-sending overwrites rather than piles up.
func RequestKey(fromID, toID string) string {
	return RequestPrefix + fromID + "_" + toID
}
