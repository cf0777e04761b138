package pairing

import (
	"context"
	"errors"
	"sync"
	"time"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/store"
)

// Coordinator drives one user's search for a random partner. Run blocks
// until a session is found or ctx is cancelled; all decisions are made from
// pool snapshots, which may arrive stale or reordered relative to other
// clients, so every conclusion is re-verified transactionally before it
// takes effect.
type Coordinator struct {
	Store     store.Store
	Sessions  *session.Service
	Directory Directory
	UserID    string

	// Debounce and ConfirmTimeout default to the config values; tests
	// shrink them.
	Debounce       time.Duration
	ConfirmTimeout time.Duration

	mu      sync.Mutex
	matched bool
}

func NewCoordinator(st store.Store, sessions *session.Service, dir Directory, userID string) *Coordinator {
	return &Coordinator{
		Store:          st,
		Sessions:       sessions,
		Directory:      dir,
		UserID:         userID,
		Debounce:       config.MatchDebounce,
		ConfirmTimeout: config.MatchConfirmTimeout,
	}
}

func (c *Coordinator) setMatched() {
	c.mu.Lock()
	c.matched = true
	c.mu.Unlock()
}

// Run searches until matched. Order of operations per the protocol: check
// for an already-active session first (short-circuit), then enqueue, then
// react to pool snapshots with a debounce window. On cancellation the pool
// entry is removed unless a match was confirmed.
func (c *Coordinator) Run(ctx context.Context) (*models.ChatSession, error) {
	if existing, err := c.Sessions.ActiveFor(ctx, c.UserID); err != nil {
		return nil, err
	} else if existing != nil {
		c.setMatched()
		return existing, nil
	}

	if err := c.Enqueue(ctx); err != nil {
		return nil, err
	}

	snaps, cancelSub := c.Store.Subscribe(ctx, store.PoolPrefix)
	defer cancelSub()

	debounce := time.NewTimer(c.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var pending store.Snapshot
	for {
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Cancel(cleanup)
			cancel()
			return nil, ctx.Err()

		case snap, ok := <-snaps:
			if !ok {
				return nil, ctx.Err()
			}
			pending = snap
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(c.Debounce)

		case <-debounce.C:
			sess, err := c.react(ctx, pending)
			if err != nil {
				return nil, err
			}
			if sess != nil {
				c.setMatched()
				return sess, nil
			}
		}
	}
}

// react processes one (debounced) pool snapshot. A nil, nil return means
// keep searching.
func (c *Coordinator) react(ctx context.Context, snap store.Snapshot) (*models.ChatSession, error) {
	if snap == nil {
		return nil, nil
	}
	entries := Entries(snap)

	self, present := findEntry(entries, c.UserID)
	if !present {
		// Our entry was consumed, most likely because the other side's match
		// transaction won. Wait for the session to surface; if it never
		// does, go back to searching.
		sess, err := c.awaitSession(ctx)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
		return nil, c.Enqueue(ctx) // timed out, re-enter the pool
	}

	other := c.pickCandidate(ctx, entries, self)
	if other == nil {
		return nil, nil
	}

	// Leader election: the lexicographically smaller ID runs the match
	// transaction; the other side waits to observe its entry disappear.
	if c.UserID >= other.UserID {
		return nil, nil
	}

	sess, err := c.atomicMatch(ctx, self, other)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		c.Sessions.RecordCreated(sess)
	}
	// nil session is not an error: preconditions no longer held, keep
	// observing.
	return sess, nil
}

// pickCandidate scans the snapshot in enqueue order and returns the first
// entry that is not us, not blocked in either direction, and not already
// sharing an active session with us. Our active session is resolved once up
// front so the scan itself costs no store reads per entry.
func (c *Coordinator) pickCandidate(ctx context.Context, entries []models.WaitingEntry, self *models.WaitingEntry) *models.WaitingEntry {
	active, err := c.Sessions.ActiveFor(ctx, c.UserID)
	if err != nil {
		return nil
	}
	for i := range entries {
		other := &entries[i]
		if other.UserID == c.UserID {
			continue
		}
		if self.Blocks(other.UserID) || other.Blocks(c.UserID) {
			continue
		}
		if active != nil && active.Has(other.UserID) {
			continue
		}
		return other
	}
	return nil
}

// awaitSession waits up to ConfirmTimeout for our active session to appear
// after the pool entry vanished. Returns (nil, nil) on timeout.
func (c *Coordinator) awaitSession(ctx context.Context) (*models.ChatSession, error) {
	snaps, cancelSub := c.Store.Subscribe(ctx, store.ActiveKey(c.UserID))
	defer cancelSub()

	deadline := time.NewTimer(c.ConfirmTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case _, ok := <-snaps:
			if !ok {
				return nil, ctx.Err()
			}
			sess, err := c.Sessions.ActiveFor(ctx, c.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if sess != nil {
				return sess, nil
			}
		}
	}
}
