package games_test

import (
	"context"
	"testing"

	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTicTacToeAcceptInitializesGame verifies that accepting a request
// assigns X to the requester, O to the responder, and the opening turn to
// the requester.
func TestTicTacToeAcceptInitializesGame(t *testing.T) {
	// Arrange
	ctx := context.Background()
	g := games.NewTicTacToe(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))

	// Act
	require.NoError(t, g.Accept(ctx, "s1", "bob"))

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusActive, state.Status)
	assert.Equal(t, "X", state.Symbols["alice"], "requester should play X")
	assert.Equal(t, "O", state.Symbols["bob"], "responder should play O")
	assert.Equal(t, "alice", state.Turn, "requester should open")
}

// TestTicTacToeDiagonalWin plays a full game where X completes the 0-4-8
// diagonal and verifies the win, the winner record, and the score bump.
func TestTicTacToeDiagonalWin(t *testing.T) {
	// Arrange
	ctx := context.Background()
	g := games.NewTicTacToe(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))
	require.NoError(t, g.Accept(ctx, "s1", "bob"))

	// Act - alternate until the board is [X,O,X, O,X,O, _,_,_], then X
	// plays index 8 to complete the diagonal.
	moves := []struct {
		player string
		index  int
	}{
		{"alice", 0}, {"bob", 1},
		{"alice", 2}, {"bob", 3},
		{"alice", 4}, {"bob", 5},
		{"alice", 8},
	}
	for _, m := range moves {
		require.NoError(t, g.Move(ctx, "s1", m.player, m.index))
	}

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusWon, state.Status)
	assert.Equal(t, "alice", state.WinnerUID)
	assert.Equal(t, 1, state.Scores["alice"])
	assert.Zero(t, state.Scores["bob"])
	assert.Equal(t, "X", state.Board[8])
}

// TestTicTacToeRejectsInvalidMoves verifies that out-of-turn, occupied-cell,
// and out-of-range moves leave the board untouched.
func TestTicTacToeRejectsInvalidMoves(t *testing.T) {
	// Arrange
	ctx := context.Background()
	g := games.NewTicTacToe(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))
	require.NoError(t, g.Accept(ctx, "s1", "bob"))

	// Act - bob moves out of turn, then alice claims cell 0, then bob tries
	// the occupied cell and an out-of-range index.
	require.NoError(t, g.Move(ctx, "s1", "bob", 4))
	require.NoError(t, g.Move(ctx, "s1", "alice", 0))
	require.NoError(t, g.Move(ctx, "s1", "bob", 0))
	require.NoError(t, g.Move(ctx, "s1", "bob", 9))

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, [9]string{"X", "", "", "", "", "", "", "", ""}, state.Board)
	assert.Equal(t, "bob", state.Turn, "turn should have passed to bob exactly once")
	assert.Equal(t, games.StatusActive, state.Status)
}

// TestTicTacToeDraw fills the board without a winning triple and verifies
// the draw transition with no score change.
func TestTicTacToeDraw(t *testing.T) {
	// Arrange
	ctx := context.Background()
	g := games.NewTicTacToe(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))
	require.NoError(t, g.Accept(ctx, "s1", "bob"))

	// Act - ends as X O X / X O O / O X X.
	moves := []struct {
		player string
		index  int
	}{
		{"alice", 0}, {"bob", 1},
		{"alice", 2}, {"bob", 4},
		{"alice", 3}, {"bob", 5},
		{"alice", 7}, {"bob", 6},
		{"alice", 8},
	}
	for _, m := range moves {
		require.NoError(t, g.Move(ctx, "s1", m.player, m.index))
	}

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusDraw, state.Status)
	assert.Empty(t, state.WinnerUID)
	assert.Empty(t, state.Scores["alice"])
	assert.Empty(t, state.Scores["bob"])
}

// TestTicTacToeRematchKeepsScores verifies that a rematch resets the board,
// hands the first turn to the rematch initiator, and keeps cumulative
// scores, while Close wipes them.
func TestTicTacToeRematchKeepsScores(t *testing.T) {
	// Arrange - alice wins the first game via the top row.
	ctx := context.Background()
	g := games.NewTicTacToe(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))
	require.NoError(t, g.Accept(ctx, "s1", "bob"))
	moves := []struct {
		player string
		index  int
	}{
		{"alice", 0}, {"bob", 3},
		{"alice", 1}, {"bob", 4},
		{"alice", 2},
	}
	for _, m := range moves {
		require.NoError(t, g.Move(ctx, "s1", m.player, m.index))
	}

	// Act - the loser asks for the rematch.
	require.NoError(t, g.Rematch(ctx, "s1", "bob"))

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusActive, state.Status)
	assert.Equal(t, [9]string{}, state.Board)
	assert.Equal(t, "bob", state.Turn, "rematch initiator should open")
	assert.Equal(t, 1, state.Scores["alice"], "scores must survive a rematch")
	assert.Empty(t, state.WinnerUID)

	// Act - closing the slot resets everything.
	require.NoError(t, g.Close(ctx, "s1"))

	// Assert
	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusIdle, state.Status)
	assert.Empty(t, state.Scores)
}
