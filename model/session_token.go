package model

import (
	"time"
)

// SessionToken is the server-side shadow of an issued session credential.
// A credential can be cryptographically valid yet administratively dead:
// validation always consults this table. Rows are created at issuance,
// flipped to IsInvalid on logout/rotation/revocation, and physically removed
// by the periodic sweep once Deadline has passed.
type SessionToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"index;not null;type:text" json:"-"`
	IsInvalid bool      `gorm:"not null;default:false" json:"is_invalid"`
	Deadline  time.Time `gorm:"index;not null" json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for SessionToken
func (SessionToken) TableName() string {
	return "session_tokens"
}

// IsExpired checks if the token's deadline has passed
func (t *SessionToken) IsExpired() bool {
	return time.Now().After(t.Deadline)
}
