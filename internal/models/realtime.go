package models

import "encoding/json"

// ChatMessage is the wire envelope exchanged over WebSocket and fanned out
// through Redis Pub/Sub. Type selects the handler; Payload carries the
// type-specific body (game moves, session events and so on).
type ChatMessage struct {
	SenderID   string          `json:"sender_id"`
	SenderName string          `json:"sender_name,omitempty"`
	SessionID  string          `json:"session_id"`
	Content    string          `json:"content,omitempty"`
	Type       string          `json:"type"` // "text", "typing", "system", "game", "session"
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// GameCommand is the payload of a Type=="game" client message.
type GameCommand struct {
	Game   string  `json:"game"`   // "tictactoe", "rps", "bingo", "pong"
	Action string  `json:"action"` // "request", "accept", "decline", "move", ...
	Cell   int     `json:"cell,omitempty"`
	Choice string  `json:"choice,omitempty"`
	Number int     `json:"number,omitempty"`
	Board  []int   `json:"board,omitempty"`
	Y      float64 `json:"y,omitempty"`
}

// SessionCommand is the payload of a Type=="session" client message.
type SessionCommand struct {
	Action   string `json:"action"` // "search", "cancel", "skip", "end", "block", "invite", "accept_invite", "reject_invite"
	TargetID string `json:"target_id,omitempty"`
}
