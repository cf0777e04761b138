package chathub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pairgogo/backend/internal/chathub"
	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/presence"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/store"
)

// fakePresence accepts every presence write.
type fakePresence struct{}

func (fakePresence) Set(string, presence.Status) error { return nil }
func (fakePresence) SetOffline(string) error           { return nil }
func (fakePresence) SetTyping(string, string) error    { return nil }

type hubFixture struct {
	hub      *chathub.ManagerService
	store    store.Store
	sessions *session.Service
	storage  *MockStorage
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	st := store.NewMemory()
	sessions := session.NewService(st, nil)
	storageMock := new(MockStorage)
	storageMock.On("EnsureUser", mock.Anything, mock.Anything).Return(nil).Maybe()
	storageMock.On("IsUserBanned", mock.Anything).Return(false, nil).Maybe()
	storageMock.On("GetProfile", mock.Anything).Return(&models.Profile{Username: "anon"}, nil).Maybe()

	hub := chathub.NewManagerService(st, sessions, games.NewSet(st), storageMock, fakePresence{})
	go hub.Run()
	return &hubFixture{hub: hub, store: st, sessions: sessions, storage: storageMock}
}

func (f *hubFixture) connect(t *testing.T, uid string) *mockClient {
	t.Helper()
	client := newMockClient(uid)
	f.hub.RegisterCh <- client
	return client
}

// attachPair creates a direct session for two connected clients and waits
// until both are attached to it.
func (f *hubFixture) attachPair(t *testing.T, a, b *mockClient) string {
	t.Helper()
	// Give the per-user watchers a moment to subscribe.
	time.Sleep(100 * time.Millisecond)
	sess, err := f.sessions.CreateDirect(context.Background(), a.userID, a.username, b.userID, b.username)
	require.NoError(t, err)

	for _, c := range []*mockClient{a, b} {
		msg, ok := c.waitFor("session", 3*time.Second)
		require.True(t, ok, "client %s should receive the session attach", c.userID)
		require.Equal(t, sess.ID, msg.SessionID)
	}
	return sess.ID
}

func sessionCmd(action, target string) json.RawMessage {
	payload, _ := json.Marshal(models.SessionCommand{Action: action, TargetID: target})
	return payload
}

func gameCmd(cmd models.GameCommand) json.RawMessage {
	payload, _ := json.Marshal(cmd)
	return payload
}

// TestHubSearchPairsTwoClients drives two connected clients through the
// search command and verifies both end up attached to the same session.
func TestHubSearchPairsTwoClients(t *testing.T) {
	// Arrange
	f := newHubFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	// Act
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "alice", Type: "session", Payload: sessionCmd("search", "")}
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "bob", Type: "session", Payload: sessionCmd("search", "")}

	// Assert
	msgA, ok := alice.waitFor("session", 5*time.Second)
	require.True(t, ok, "alice should be matched")
	msgB, ok := bob.waitFor("session", 5*time.Second)
	require.True(t, ok, "bob should be matched")
	assert.Equal(t, msgA.SessionID, msgB.SessionID, "both clients must share one session")

	var sess models.ChatSession
	require.NoError(t, json.Unmarshal(msgA.Payload, &sess))
	assert.True(t, sess.Active)
	assert.True(t, sess.Has("alice"))
	assert.True(t, sess.Has("bob"))
}

// TestHubTextMessagePersistsAndPublishes verifies a text message in an
// attached session is archived and fanned out over the pub/sub channel.
func TestHubTextMessagePersistsAndPublishes(t *testing.T) {
	// Arrange
	f := newHubFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	sid := f.attachPair(t, alice, bob)

	saved := make(chan *models.ChatMessage, 1)
	f.storage.On("SaveMessage", mock.AnythingOfType("*models.ChatMessage")).Run(func(args mock.Arguments) {
		saved <- args.Get(0).(*models.ChatMessage)
	}).Return(nil).Once()
	f.storage.On("PublishMessage", sid, mock.AnythingOfType("models.ChatMessage")).Return(nil).Once()

	// Act
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "alice", Type: "text", Content: "hi there"}

	// Assert
	select {
	case msg := <-saved:
		assert.Equal(t, sid, msg.SessionID, "the session id must come from the attachment, not the body")
		assert.Equal(t, "hi there", msg.Content)
	case <-time.After(3 * time.Second):
		t.Fatal("expected the message to be archived")
	}
	f.storage.AssertExpectations(t)
}

// TestHubGameRequestFlow drives a tic-tac-toe request/accept over hub
// commands and verifies both clients observe the slot states.
func TestHubGameRequestFlow(t *testing.T) {
	// Arrange
	f := newHubFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	f.attachPair(t, alice, bob)

	// Act - alice requests the game.
	f.hub.IncomingCh <- models.ChatMessage{
		SenderID: "alice", Type: "game",
		Payload: gameCmd(models.GameCommand{Game: "tictactoe", Action: "request"}),
	}

	// Assert - bob sees the request.
	msg, ok := bob.waitFor("game", 3*time.Second)
	require.True(t, ok, "bob should see the game request")
	assert.Equal(t, "tictactoe", msg.Content)
	var state games.TicTacToeState
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Equal(t, games.StatusRequest, state.Status)
	assert.Equal(t, "alice", state.RequesterID)

	// Act - bob accepts.
	f.hub.IncomingCh <- models.ChatMessage{
		SenderID: "bob", Type: "game",
		Payload: gameCmd(models.GameCommand{Game: "tictactoe", Action: "accept"}),
	}

	// Assert - alice sees the game go active with her on turn.
	for {
		msg, ok = alice.waitFor("game", 3*time.Second)
		require.True(t, ok, "alice should see the game activate")
		require.NoError(t, json.Unmarshal(msg.Payload, &state))
		if state.Status == games.StatusActive {
			break
		}
	}
	assert.Equal(t, "alice", state.Turn)
	assert.Equal(t, "X", state.Symbols["alice"])
}

// TestHubSkipNotifiesPartner verifies that a skip ends the session and the
// partner receives the partner-left notification.
func TestHubSkipNotifiesPartner(t *testing.T) {
	// Arrange - a random session, created the way the coordinator does it.
	f := newHubFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "alice", Type: "session", Payload: sessionCmd("search", "")}
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "bob", Type: "session", Payload: sessionCmd("search", "")}
	_, ok := alice.waitFor("session", 5*time.Second)
	require.True(t, ok)
	_, ok = bob.waitFor("session", 5*time.Second)
	require.True(t, ok)

	// Act
	f.hub.IncomingCh <- models.ChatMessage{SenderID: "alice", Type: "session", Payload: sessionCmd("skip", "")}

	// Assert
	msg, ok := bob.waitFor("system", 5*time.Second)
	require.True(t, ok, "bob should be notified")
	assert.Equal(t, "partner-left", msg.Content)
}
