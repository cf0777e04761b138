package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // needed for pq.StringArray
	"gorm.io/gorm"
)

// User is the directory record for one account. The pairing core only ever
// reads the username and the two block lists; everything else belongs to the
// account service that owns this table.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"` // anonymous UUID
	Username string `gorm:"uniqueIndex" json:"username"`

	// BlockedUsers holds the IDs this user has blocked.
	BlockedUsers pq.StringArray `gorm:"type:text[]" json:"blockedUsers"`
	// BlockedBy holds the IDs of users who blocked this user.
	BlockedBy pq.StringArray `gorm:"type:text[]" json:"blockedBy"`

	IsBanned   bool  `json:"-"`
	BanEndTime int64 `json:"-"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is unset.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Profile is the directory-service view of a user consumed by the pairing
// coordinator: display name plus the outgoing block list.
type Profile struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Blocked  []string `json:"blocked"`
}
