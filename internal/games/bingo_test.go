package games_test

import (
	"context"
	"testing"

	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderedBoard returns 1..25 in order.
func orderedBoard() []int {
	board := make([]int, 25)
	for i := range board {
		board[i] = i + 1
	}
	return board
}

// boardWithNumberAt returns a permutation of 1..25 placing n at index idx.
func boardWithNumberAt(n, idx int) []int {
	board := orderedBoard()
	cur := n - 1 // n sits at index n-1 in the ordered board
	board[cur], board[idx] = board[idx], board[cur]
	return board
}

func newSetupBingo(t *testing.T) (*games.Bingo, context.Context) {
	t.Helper()
	ctx := context.Background()
	g := games.NewBingo(store.NewMemory())
	require.NoError(t, g.Request(ctx, "s1", "alice", "bob"))
	require.NoError(t, g.Accept(ctx, "s1", "bob"))
	return g, ctx
}

// TestBingoSetupPhase verifies board validation, board immutability, the
// ready handshake, and that the first player to signal ready starts.
func TestBingoSetupPhase(t *testing.T) {
	// Arrange
	g, ctx := newSetupBingo(t)

	// Act - a board with a repeated number is rejected.
	bad := orderedBoard()
	bad[0] = 2
	require.NoError(t, g.SetBoard(ctx, "s1", "alice", bad))

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, state.Boards, "alice", "a non-bijective board must be rejected")

	// Act - valid boards stick and cannot be replaced.
	require.NoError(t, g.SetBoard(ctx, "s1", "alice", orderedBoard()))
	require.NoError(t, g.SetBoard(ctx, "s1", "alice", boardWithNumberAt(7, 3)))
	require.NoError(t, g.SetBoard(ctx, "s1", "bob", orderedBoard()))

	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, orderedBoard(), state.Boards["alice"], "an assigned board must not change")

	// Act - bob signals first, then alice.
	require.NoError(t, g.SetReady(ctx, "s1", "bob"))
	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusSetup, state.Status, "one ready is not enough")

	require.NoError(t, g.SetReady(ctx, "s1", "alice"))

	// Assert
	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusActive, state.Status)
	assert.Equal(t, "bob", state.Starter, "first ready signaller starts")
	assert.Equal(t, "bob", state.Turn)
}

// TestBingoPlayMarksBothBoards plays number 7, placed at index 3 on the
// actor's board and index 19 on the opponent's, and verifies both cells get
// marked, the called log grows, and the turn passes.
func TestBingoPlayMarksBothBoards(t *testing.T) {
	// Arrange
	g, ctx := newSetupBingo(t)
	require.NoError(t, g.SetBoard(ctx, "s1", "alice", boardWithNumberAt(7, 3)))
	require.NoError(t, g.SetBoard(ctx, "s1", "bob", boardWithNumberAt(7, 19)))
	require.NoError(t, g.SetReady(ctx, "s1", "alice"))
	require.NoError(t, g.SetReady(ctx, "s1", "bob"))

	// Act
	require.NoError(t, g.PlayNumber(ctx, "s1", "alice", 7))

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Marks["alice"][3])
	assert.True(t, state.Marks["bob"][19])
	assert.Equal(t, []int{7}, state.Called)
	assert.Equal(t, "bob", state.Turn)

	// Act - replays and absent numbers are no-ops.
	require.NoError(t, g.PlayNumber(ctx, "s1", "bob", 7))
	require.NoError(t, g.PlayNumber(ctx, "s1", "bob", 26))

	// Assert
	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, state.Called)
	assert.Equal(t, "bob", state.Turn, "rejected plays must not pass the turn")
}

// TestBingoFiveLinesWins plays identical boards in number order until one
// player's board completes five lines and verifies the win.
func TestBingoFiveLinesWins(t *testing.T) {
	// Arrange - with identical boards every play marks the same cell on
	// both sides, so marks accumulate 1..n.
	g, ctx := newSetupBingo(t)
	require.NoError(t, g.SetBoard(ctx, "s1", "alice", orderedBoard()))
	require.NoError(t, g.SetBoard(ctx, "s1", "bob", orderedBoard()))
	require.NoError(t, g.SetReady(ctx, "s1", "alice"))
	require.NoError(t, g.SetReady(ctx, "s1", "bob"))

	// Act - numbers 1..20 fill rows one through four; 21 completes the
	// first column as the fifth line.
	players := [2]string{"alice", "bob"}
	for n := 1; n <= 21; n++ {
		require.NoError(t, g.PlayNumber(ctx, "s1", players[(n-1)%2], n))
	}

	// Assert
	state, err := g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusEnded, state.Status)
	assert.Equal(t, "alice", state.WinnerUID, "the 21st play is alice's and completes her fifth line")
	assert.Equal(t, 1, state.Scores["alice"])

	// Act - rematch returns to setup with a clean slate.
	require.NoError(t, g.Rematch(ctx, "s1", "bob"))

	// Assert
	state, err = g.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, games.StatusSetup, state.Status)
	assert.Empty(t, state.Boards)
	assert.Empty(t, state.Called)
	assert.Equal(t, 1, state.Scores["alice"], "scores must survive a rematch")
}
