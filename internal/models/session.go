package models

import "time"

// SessionKind distinguishes how a chat session came to exist.
type SessionKind string

const (
	SessionRandom SessionKind = "random" // created by the pairing coordinator
	SessionDirect SessionKind = "direct" // created by an accepted chat request
)

// EndCause records why a session was ended by the local user.
type EndCause string

const (
	EndSkip  EndCause = "skip"  // remaining party goes back to the pool
	EndChat  EndCause = "end"   // permanent, nobody re-enters the pool
	EndBlock EndCause = "block" // like end, plus block-list update
)

// WaitingEntry is one user's presence in the waiting pool. Its existence
// means "actively searching"; it is deleted on match or cancel.
type WaitingEntry struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Blocked    []string  `json:"blocked,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Blocks reports whether this entry's owner has blocked the given user.
func (w *WaitingEntry) Blocks(uid string) bool {
	for _, b := range w.Blocked {
		if b == uid {
			return true
		}
	}
	return false
}

// ChatSession is the shared record of one two-party conversation. It is
// jointly owned by its participants: either may end it, and once Active is
// false the record is immutable except for the game slots keyed under it.
// Sessions are never deleted.
type ChatSession struct {
	ID           string            `json:"id"`
	Participants [2]string         `json:"participants"`
	Names        map[string]string `json:"names"`
	Kind         SessionKind       `json:"kind"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"createdAt"`
	EndedAt      *time.Time        `json:"endedAt,omitempty"`
	EndedBy      string            `json:"endedBy,omitempty"`
	EndCause     EndCause          `json:"endCause,omitempty"`
}

// Has reports whether uid is one of the two participants.
func (s *ChatSession) Has(uid string) bool {
	return s.Participants[0] == uid || s.Participants[1] == uid
}

// Other returns the participant that is not uid.
func (s *ChatSession) Other(uid string) string {
	if s.Participants[0] == uid {
		return s.Participants[1]
	}
	return s.Participants[0]
}

// ChatRequestStatus is the lifecycle of a direct chat request.
type ChatRequestStatus string

const (
	RequestPending  ChatRequestStatus = "pending"
	RequestAccepted ChatRequestStatus = "accepted"
	RequestRejected ChatRequestStatus = "rejected"
)

// ChatRequest asks a specific user for a direct (non-random) session.
type ChatRequest struct {
	FromID    string            `json:"fromId"`
	FromName  string            `json:"fromName"`
	ToID      string            `json:"toId"`
	ToName    string            `json:"toName"`
	Status    ChatRequestStatus `json:"status"`
	SessionID string            `json:"sessionId,omitempty"` // set on accept
	CreatedAt time.Time         `json:"createdAt"`
}
