package games

import (
	"context"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/store"
)

// RPSChoice is one hand in rock-paper-scissors.
type RPSChoice string

const (
	Rock     RPSChoice = "rock"
	Paper    RPSChoice = "paper"
	Scissors RPSChoice = "scissors"
)

// rpsBeats maps each choice to the one it defeats.
var rpsBeats = map[RPSChoice]RPSChoice{
	Rock:     Scissors,
	Paper:    Rock,
	Scissors: Paper,
}

// RPSRound is the reveal record for the most recently resolved round. An
// empty WinnerUID means the round was a tie.
type RPSRound struct {
	Round     int                  `json:"round"`
	Choices   map[string]RPSChoice `json:"choices"`
	WinnerUID string               `json:"winnerUid,omitempty"`
}

// RPSState is the rock-paper-scissors slot payload. Choices are kept per
// round so a client catching up on a stale snapshot can still render the
// current round correctly.
type RPSState struct {
	Meta
	Round   int                          `json:"round"`
	Choices map[int]map[string]RPSChoice `json:"choices"`
	Last    *RPSRound                    `json:"lastRound,omitempty"`
}

func (s *RPSState) meta() *Meta { return &s.Meta }

// RPS drives the rock-paper-scissors slot. Best of three: first to two round
// wins, or whoever leads after round three; an even score at the cap ends
// the match with no winner. The pick timer is a client-side affordance
// (config.RPSPickTimer) and is never enforced here.
type RPS struct {
	*Engine[*RPSState]
}

func NewRPS(st store.Store) *RPS {
	fresh := func(s *RPSState) {
		s.Status = StatusActive
		s.Round = 1
		s.Choices = map[int]map[string]RPSChoice{}
		s.Last = nil
		// The score counts round wins within the current match; a carried
		// score would trip the win threshold on the first resolved round.
		s.Scores = map[string]int{}
	}
	return &RPS{Engine: &Engine[*RPSState]{
		Store: st,
		Kind:  KindRPS,
		init:  func() *RPSState { return &RPSState{} },
		start: fresh,
		reset: func(s *RPSState, _ string) { fresh(s) },
	}}
}

// Choose records the player's hand for the current round. A second pick in
// the same round is rejected. When both players have picked, the round
// resolves in the same transaction: round winner scored, reveal record
// written, and either the match ends or the next round opens.
func (g *RPS) Choose(ctx context.Context, sessionID, playerID string, choice RPSChoice) error {
	return g.Mutate(ctx, sessionID, func(s *RPSState) (bool, error) {
		if s.Status != StatusActive || !s.Has(playerID) {
			return false, nil
		}
		if _, ok := rpsBeats[choice]; !ok {
			return false, nil
		}

		round := s.Choices[s.Round]
		if round == nil {
			round = map[string]RPSChoice{}
			if s.Choices == nil {
				s.Choices = map[int]map[string]RPSChoice{}
			}
			s.Choices[s.Round] = round
		}
		if _, picked := round[playerID]; picked {
			return false, nil
		}
		round[playerID] = choice

		a, b := s.RequesterID, s.ResponderID
		aChoice, aOk := round[a]
		bChoice, bOk := round[b]
		if !aOk || !bOk {
			return true, nil // waiting for the other hand
		}

		var roundWinner string
		if aChoice != bChoice {
			if rpsBeats[aChoice] == bChoice {
				roundWinner = a
			} else {
				roundWinner = b
			}
		}
		if roundWinner != "" {
			s.AddPoint(roundWinner)
		}
		s.Last = &RPSRound{
			Round:     s.Round,
			Choices:   map[string]RPSChoice{a: aChoice, b: bChoice},
			WinnerUID: roundWinner,
		}

		aScore, bScore := s.Scores[a], s.Scores[b]
		if aScore >= config.RPSWinScore || bScore >= config.RPSWinScore || s.Round >= config.RPSMaxRounds {
			var matchWinner string
			switch {
			case aScore > bScore:
				matchWinner = a
			case bScore > aScore:
				matchWinner = b
			}
			s.conclude(StatusEnded, matchWinner)
			return true, nil
		}

		s.Round++
		return true, nil
	})
}
