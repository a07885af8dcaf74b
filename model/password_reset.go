package model

import (
	"time"
)

// PasswordResetToken is a single-use, time-boxed credential authorizing one
// password change. At most one live token exists per user: requesting a new
// one deletes all prior tokens, and a successful reset deletes every token
// belonging to the user.
type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null;type:varchar(100)" json:"-"`
	Deadline  time.Time `gorm:"index;not null" json:"deadline"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for PasswordResetToken
func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

// IsExpired checks if the reset token has expired
func (p *PasswordResetToken) IsExpired() bool {
	return time.Now().After(p.Deadline)
}
