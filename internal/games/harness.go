// Package games implements the four in-chat mini games on top of the shared
// store. All of them go through one generic engine that owns the slot
// lifecycle (request, accept, decline, rematch, close); the games themselves
// only contribute their payload type, their move validation, and their
// terminal conditions. Every move is a full read-validate-write transaction
// because both participants may race on the same document.
package games

import (
	"context"
	"errors"
	"time"

	"pairgogo/backend/internal/store"
)

// Kind identifies a game slot within a session. One slot per kind.
type Kind string

const (
	KindTicTacToe Kind = "tictactoe"
	KindRPS       Kind = "rps"
	KindBingo     Kind = "bingo"
	KindPong      Kind = "pong"
)

// Status is the slot lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRequest  Status = "request"
	StatusSetup    Status = "setup" // bingo only: boards being filled in
	StatusActive   Status = "active"
	StatusWon      Status = "won"
	StatusDraw     Status = "draw"
	StatusEnded    Status = "ended"
	StatusDeclined Status = "declined"
	StatusCanceled Status = "canceled"
)

// Concluded reports whether a game finished with a result, i.e. a rematch is
// possible from here. Declined and canceled slots have to be requested again.
func (s Status) Concluded() bool {
	return s == StatusWon || s == StatusDraw || s == StatusEnded
}

// Meta is the header every game state embeds. The engine carries Scores
// across rematches and re-requests and wipes them on Close; games whose
// score is a within-match counter (rps round wins, pong goals) clear it in
// their own start/reset hooks instead.
type Meta struct {
	Status      Status         `json:"status"`
	RequesterID string         `json:"requesterId"`
	ResponderID string         `json:"responderId"`
	Scores      map[string]int `json:"scores"`
	WinnerUID   string         `json:"winnerUid,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}

// Has reports whether uid is one of the two players.
func (m *Meta) Has(uid string) bool {
	return uid == m.RequesterID || uid == m.ResponderID
}

// Opponent returns the other player's id.
func (m *Meta) Opponent(uid string) string {
	if uid == m.RequesterID {
		return m.ResponderID
	}
	return m.RequesterID
}

// AddPoint bumps uid's cumulative score.
func (m *Meta) AddPoint(uid string) {
	if m.Scores == nil {
		m.Scores = map[string]int{}
	}
	m.Scores[uid]++
}

func (m *Meta) conclude(status Status, winnerUID string) {
	now := time.Now()
	m.Status = status
	m.WinnerUID = winnerUID
	m.EndedAt = &now
}

// state is what a game payload must provide to the engine.
type state interface {
	meta() *Meta
}

// Engine is the shared lifecycle for one game kind. init produces an empty
// payload, start initializes it on accept (and picks the post-accept status:
// active, or setup for bingo), reset prepares a rematch keeping scores. The
// uid passed to reset is the rematch initiator; Close passes "".
type Engine[S state] struct {
	Store store.Store
	Kind  Kind

	init  func() S
	start func(S)
	reset func(S, string)
}

func (e *Engine[S]) key(sessionID string) string {
	return store.GameKey(sessionID, string(e.Kind))
}

// Request creates or overwrites the slot with a fresh request. Cumulative
// scores from an earlier game in the same slot carry over.
func (e *Engine[S]) Request(ctx context.Context, sessionID, requesterID, responderID string) error {
	key := e.key(sessionID)
	return e.Store.Update(ctx, []string{key}, func(tx store.Tx) error {
		scores := map[string]int{}
		prev := e.init()
		if err := tx.Get(key, prev); err == nil {
			if s := prev.meta().Scores; s != nil {
				scores = s
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		next := e.init()
		*next.meta() = Meta{
			Status:      StatusRequest,
			RequesterID: requesterID,
			ResponderID: responderID,
			Scores:      scores,
			CreatedAt:   time.Now(),
		}
		return tx.Put(key, next)
	})
}

// Accept starts the game. Only the addressed responder can accept, and only
// while the slot is still in the request state; anything else is a no-op.
func (e *Engine[S]) Accept(ctx context.Context, sessionID, responderID string) error {
	return e.Mutate(ctx, sessionID, func(s S) (bool, error) {
		m := s.meta()
		if m.Status != StatusRequest || m.ResponderID != responderID {
			return false, nil
		}
		e.start(s)
		now := time.Now()
		m.StartedAt = &now
		return true, nil
	})
}

// Decline rejects a pending request. Same guard as Accept.
func (e *Engine[S]) Decline(ctx context.Context, sessionID, responderID string) error {
	return e.Mutate(ctx, sessionID, func(s S) (bool, error) {
		m := s.meta()
		if m.Status != StatusRequest || m.ResponderID != responderID {
			return false, nil
		}
		m.conclude(StatusDeclined, "")
		return true, nil
	})
}

// CancelRequest withdraws a pending request. Only the requester can cancel.
func (e *Engine[S]) CancelRequest(ctx context.Context, sessionID, requesterID string) error {
	return e.Mutate(ctx, sessionID, func(s S) (bool, error) {
		m := s.meta()
		if m.Status != StatusRequest || m.RequesterID != requesterID {
			return false, nil
		}
		m.conclude(StatusCanceled, "")
		return true, nil
	})
}

// Rematch restarts a concluded game. Scores stay, everything per-round is
// reset by the game's own hook. uid must be a player; it becomes the first
// turn owner where the game has one.
func (e *Engine[S]) Rematch(ctx context.Context, sessionID, uid string) error {
	return e.Mutate(ctx, sessionID, func(s S) (bool, error) {
		m := s.meta()
		if !m.Status.Concluded() || !m.Has(uid) {
			return false, nil
		}
		e.reset(s, uid)
		now := time.Now()
		m.WinnerUID = ""
		m.StartedAt = &now
		m.EndedAt = nil
		return true, nil
	})
}

// Close force-returns the slot to idle and wipes the cumulative scores.
// Valid from any non-idle state.
func (e *Engine[S]) Close(ctx context.Context, sessionID string) error {
	return e.Mutate(ctx, sessionID, func(s S) (bool, error) {
		m := s.meta()
		if m.Status == StatusIdle {
			return false, nil
		}
		e.reset(s, "")
		m.conclude(StatusIdle, "")
		m.Scores = map[string]int{}
		m.StartedAt = nil
		return true, nil
	})
}

// Get reads the slot. store.ErrNotFound means no game was ever requested.
func (e *Engine[S]) Get(ctx context.Context, sessionID string) (S, error) {
	s := e.init()
	if err := e.Store.Get(ctx, e.key(sessionID), s); err != nil {
		var zero S
		return zero, err
	}
	return s, nil
}

// Mutate runs one guarded state transition as a transaction: read the
// current state, let fn validate and modify it, and write it back only when
// fn reports true. A false return is the silent no-op path for validation
// rejections; a missing document is treated the same way.
func (e *Engine[S]) Mutate(ctx context.Context, sessionID string, fn func(S) (bool, error)) error {
	key := e.key(sessionID)
	return e.Store.Update(ctx, []string{key}, func(tx store.Tx) error {
		s := e.init()
		if err := tx.Get(key, s); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		write, err := fn(s)
		if err != nil || !write {
			return err
		}
		return tx.Put(key, s)
	})
}

// Watch streams the slot state after every change.
func (e *Engine[S]) Watch(ctx context.Context, sessionID string) (<-chan S, func()) {
	key := e.key(sessionID)
	snaps, cancel := e.Store.Subscribe(ctx, key)
	out := make(chan S, 1)

	go func() {
		defer close(out)
		for snap := range snaps {
			s := e.init()
			if err := snap.Decode(key, s); err != nil {
				continue
			}
			select {
			case out <- s:
			default:
				select {
				case <-out:
				default:
				}
				out <- s
			}
		}
	}()
	return out, cancel
}
