package games

import (
	"context"

	"pairgogo/backend/internal/store"
)

// TicTacToeState is the tic-tac-toe slot payload. The requester plays X and
// always opens the first game; a rematch opens with its initiator.
type TicTacToeState struct {
	Meta
	Board   [9]string         `json:"board"`
	Symbols map[string]string `json:"symbols,omitempty"`
	Turn    string            `json:"turnOwnerId,omitempty"`
}

func (s *TicTacToeState) meta() *Meta { return &s.Meta }

var tttWins = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func tttWon(board [9]string) bool {
	for _, w := range tttWins {
		if board[w[0]] != "" && board[w[0]] == board[w[1]] && board[w[0]] == board[w[2]] {
			return true
		}
	}
	return false
}

func tttFull(board [9]string) bool {
	for _, c := range board {
		if c == "" {
			return false
		}
	}
	return true
}

// TicTacToe drives the tic-tac-toe slot.
type TicTacToe struct {
	*Engine[*TicTacToeState]
}

func NewTicTacToe(st store.Store) *TicTacToe {
	return &TicTacToe{Engine: &Engine[*TicTacToeState]{
		Store: st,
		Kind:  KindTicTacToe,
		init:  func() *TicTacToeState { return &TicTacToeState{} },
		start: func(s *TicTacToeState) {
			s.Status = StatusActive
			s.Board = [9]string{}
			s.Symbols = map[string]string{s.RequesterID: "X", s.ResponderID: "O"}
			s.Turn = s.RequesterID
		},
		reset: func(s *TicTacToeState, uid string) {
			s.Status = StatusActive
			s.Board = [9]string{}
			if uid == "" {
				s.Symbols = nil
				s.Turn = ""
				return
			}
			s.Turn = uid
		},
	}}
}

// Move places the player's symbol on the given cell. Out-of-turn moves,
// occupied cells, and out-of-range indexes leave the board unchanged.
func (g *TicTacToe) Move(ctx context.Context, sessionID, playerID string, index int) error {
	return g.Mutate(ctx, sessionID, func(s *TicTacToeState) (bool, error) {
		if s.Status != StatusActive || s.Turn != playerID {
			return false, nil
		}
		if index < 0 || index > 8 || s.Board[index] != "" {
			return false, nil
		}
		sym, ok := s.Symbols[playerID]
		if !ok {
			return false, nil
		}
		s.Board[index] = sym

		switch {
		case tttWon(s.Board):
			s.AddPoint(playerID)
			s.conclude(StatusWon, playerID)
		case tttFull(s.Board):
			s.conclude(StatusDraw, "")
		default:
			s.Turn = s.Opponent(playerID)
		}
		return true, nil
	})
}
