package chathub_test

import (
	"sync"
	"time"

	"pairgogo/backend/internal/models"
)

// mockClient is an in-memory Client implementation for hub tests.
type mockClient struct {
	userID   string
	username string
	send     chan models.ChatMessage

	mu        sync.Mutex
	sessionID string
	closed    bool
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID:   userID,
		username: "user-" + userID,
		send:     make(chan models.ChatMessage, 64),
	}
}

func (c *mockClient) GetUserID() string   { return c.userID }
func (c *mockClient) GetUsername() string { return c.username }

func (c *mockClient) GetSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *mockClient) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *mockClient) GetSendChannel() chan<- models.ChatMessage { return c.send }

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// waitFor reads from the client's send channel until a message of the given
// type arrives or the timeout expires.
func (c *mockClient) waitFor(msgType string, timeout time.Duration) (models.ChatMessage, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return models.ChatMessage{}, false
			}
			if msg.Type == msgType {
				return msg, true
			}
		case <-deadline:
			return models.ChatMessage{}, false
		}
	}
}
