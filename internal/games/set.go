package games

import (
	"context"

	"pairgogo/backend/internal/store"
)

// Lifecycle is the kind-independent slice of the engine API. The transport
// layer routes request/accept/decline/rematch/close commands through it
// without caring which game sits in the slot.
type Lifecycle interface {
	Request(ctx context.Context, sessionID, requesterID, responderID string) error
	Accept(ctx context.Context, sessionID, responderID string) error
	Decline(ctx context.Context, sessionID, responderID string) error
	CancelRequest(ctx context.Context, sessionID, requesterID string) error
	Rematch(ctx context.Context, sessionID, uid string) error
	Close(ctx context.Context, sessionID string) error
}

// Set bundles all four game engines over one store.
type Set struct {
	TicTacToe *TicTacToe
	RPS       *RPS
	Bingo     *Bingo
	Pong      *Pong
}

func NewSet(st store.Store) *Set {
	return &Set{
		TicTacToe: NewTicTacToe(st),
		RPS:       NewRPS(st),
		Bingo:     NewBingo(st),
		Pong:      NewPong(st),
	}
}

// Slot returns the engine for the given kind.
func (s *Set) Slot(kind Kind) (Lifecycle, bool) {
	switch kind {
	case KindTicTacToe:
		return s.TicTacToe, true
	case KindRPS:
		return s.RPS, true
	case KindBingo:
		return s.Bingo, true
	case KindPong:
		return s.Pong, true
	}
	return nil, false
}
