package chathub

import "pairgogo/backend/internal/models"

// Client is the interface for any type of connection. It abstracts the
// underlying transport, allowing the hub to manage different client types
// uniformly (WebSocket in production, mocks in tests).
type Client interface {
	// GetUserID returns the unique identifier for the user associated with
	// the client.
	GetUserID() string
	// GetUsername returns the user's display name.
	GetUsername() string
	// GetSessionID returns the identifier of the chat session the client is
	// currently attached to, or "" when idle.
	GetSessionID() string
	// SetSessionID attaches the client to a session. Called by the hub when
	// a match confirms or a direct request is accepted.
	SetSessionID(string)

	// GetSendChannel returns the channel the hub writes outbound messages
	// to. It is a send-only channel.
	GetSendChannel() chan<- models.ChatMessage

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and associated channels.
	Close()
}
