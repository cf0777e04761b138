package models

import "gorm.io/gorm"

// ChatHistory is a saved chat message in PostgreSQL. The embedded gorm.Model
// provides ID, CreatedAt, UpdatedAt, and DeletedAt fields, which serve as the
// message ID and timestamps.
type ChatHistory struct {
	gorm.Model

	// SessionID is the identifier of the chat session the message belongs to.
	SessionID string `gorm:"type:uuid;not null;index:idx_session_msg"`
	// SenderID is the anonymous ID of the user who sent the message.
	SenderID string `gorm:"type:text;not null;index:idx_session_msg"`
	// SenderName is the display name at the time of sending.
	SenderName string `gorm:"type:text"`
	// Content is the message text.
	Content string `gorm:"type:text;not null"`
	// Type indicates the kind of message (e.g., "text", "system").
	Type string `gorm:"type:text;not null"`
}

// SessionRecord is the archived row for an ended (or still active) session.
// The live coordination copy lives in the shared store; this row exists so
// score history and moderation can outlive the store's retention.
type SessionRecord struct {
	SessionID string `gorm:"primaryKey"`
	User1ID   string `gorm:"index"`
	User2ID   string `gorm:"index"`
	Kind      string
	Active    bool
	StartedAt int64
	EndedAt   int64
}

// Report is a user report filed from inside a session.
type Report struct {
	gorm.Model

	ReporterID   string `gorm:"index"`
	ReporterName string
	TargetID     string `gorm:"index"`
	TargetName   string
	SessionID    string
	Reason       string `gorm:"type:text"`
	Status       string // "new", "processed", "banned"
}
