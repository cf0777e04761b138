package games

import (
	"context"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/store"
)

// BingoState is the shared-number bingo payload. Each player owns a private
// 25-cell board holding the numbers 1..25 in their own order; the numbers
// themselves are a shared universe, so every play marks a cell on both
// boards. Setup ends when both players have signalled ready; the first to
// signal becomes the starter and takes the first turn.
type BingoState struct {
	Meta
	Boards  map[string][]int  `json:"boards"`
	Marks   map[string][]bool `json:"marks"`
	Ready   map[string]bool   `json:"ready"`
	Called  []int             `json:"calledNumbers"`
	Starter string            `json:"starterUid,omitempty"`
	Turn    string            `json:"turnOwnerId,omitempty"`
}

func (s *BingoState) meta() *Meta { return &s.Meta }

// bingoLines are the 12 scoring lines on a 5x5 board: five rows, five
// columns, two diagonals. Five completed lines win.
var bingoLines = [12][5]int{
	{0, 1, 2, 3, 4},
	{5, 6, 7, 8, 9},
	{10, 11, 12, 13, 14},
	{15, 16, 17, 18, 19},
	{20, 21, 22, 23, 24},
	{0, 5, 10, 15, 20},
	{1, 6, 11, 16, 21},
	{2, 7, 12, 17, 22},
	{3, 8, 13, 18, 23},
	{4, 9, 14, 19, 24},
	{0, 6, 12, 18, 24},
	{4, 8, 12, 16, 20},
}

func bingoCompletedLines(marks []bool) int {
	if len(marks) != config.BingoBoardSize {
		return 0
	}
	lines := 0
	for _, line := range bingoLines {
		done := true
		for _, idx := range line {
			if !marks[idx] {
				done = false
				break
			}
		}
		if done {
			lines++
		}
	}
	return lines
}

// validBingoBoard reports whether numbers is a permutation of 1..25.
func validBingoBoard(numbers []int) bool {
	if len(numbers) != config.BingoBoardSize {
		return false
	}
	seen := make([]bool, config.BingoBoardSize+1)
	for _, n := range numbers {
		if n < 1 || n > config.BingoBoardSize || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

func indexOf(numbers []int, n int) int {
	for i, v := range numbers {
		if v == n {
			return i
		}
	}
	return -1
}

// Bingo drives the bingo slot.
type Bingo struct {
	*Engine[*BingoState]
}

func NewBingo(st store.Store) *Bingo {
	setup := func(s *BingoState) {
		s.Status = StatusSetup
		s.Boards = map[string][]int{}
		s.Marks = map[string][]bool{}
		s.Ready = map[string]bool{}
		s.Called = nil
		s.Starter = ""
		s.Turn = ""
	}
	return &Bingo{Engine: &Engine[*BingoState]{
		Store: st,
		Kind:  KindBingo,
		init:  func() *BingoState { return &BingoState{} },
		start: setup,
		reset: func(s *BingoState, _ string) { setup(s) },
	}}
}

// SetBoard assigns the player's board during setup. The board must be a
// permutation of 1..25 and cannot be changed once assigned.
func (g *Bingo) SetBoard(ctx context.Context, sessionID, uid string, numbers []int) error {
	return g.Mutate(ctx, sessionID, func(s *BingoState) (bool, error) {
		if s.Status != StatusSetup || !s.Has(uid) {
			return false, nil
		}
		if _, assigned := s.Boards[uid]; assigned {
			return false, nil
		}
		if !validBingoBoard(numbers) {
			return false, nil
		}
		board := make([]int, len(numbers))
		copy(board, numbers)
		s.Boards[uid] = board
		s.Marks[uid] = make([]bool, config.BingoBoardSize)
		return true, nil
	})
}

// SetReady signals the player finished their board. When the second ready
// arrives the game activates, with the first signaller as starter and first
// turn owner.
func (g *Bingo) SetReady(ctx context.Context, sessionID, uid string) error {
	return g.Mutate(ctx, sessionID, func(s *BingoState) (bool, error) {
		if s.Status != StatusSetup || !s.Has(uid) {
			return false, nil
		}
		if _, assigned := s.Boards[uid]; !assigned {
			return false, nil
		}
		if s.Ready[uid] {
			return false, nil
		}

		other := s.Opponent(uid)
		otherWasReady := s.Ready[other]
		s.Ready[uid] = true

		if otherWasReady {
			starter := other // signalled first
			s.Starter = starter
			s.Turn = starter
			s.Status = StatusActive
		}
		return true, nil
	})
}

// PlayNumber plays one number on the acting player's turn. The number must
// sit unmarked on the actor's board and exist on the opponent's board; both
// cells are marked and the number joins the shared called log in the same
// transaction. Five or more completed lines on the actor's board wins.
func (g *Bingo) PlayNumber(ctx context.Context, sessionID, playerID string, number int) error {
	return g.Mutate(ctx, sessionID, func(s *BingoState) (bool, error) {
		if s.Status != StatusActive || s.Turn != playerID {
			return false, nil
		}
		opponentID := s.Opponent(playerID)

		myBoard, oppBoard := s.Boards[playerID], s.Boards[opponentID]
		if len(myBoard) != config.BingoBoardSize || len(oppBoard) != config.BingoBoardSize {
			return false, nil
		}
		myIdx := indexOf(myBoard, number)
		oppIdx := indexOf(oppBoard, number)
		if myIdx < 0 || oppIdx < 0 {
			return false, nil
		}
		if s.Marks[playerID][myIdx] {
			return false, nil
		}

		s.Marks[playerID][myIdx] = true
		s.Marks[opponentID][oppIdx] = true
		s.Called = append(s.Called, number)

		if bingoCompletedLines(s.Marks[playerID]) >= config.BingoWinLines {
			s.AddPoint(playerID)
			s.conclude(StatusEnded, playerID)
			return true, nil
		}
		s.Turn = opponentID
		return true, nil
	})
}
