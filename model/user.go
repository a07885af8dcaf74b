package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account on the platform
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"uniqueIndex;not null;type:varchar(30)" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Role         Role           `gorm:"type:varchar(20);default:'user'" json:"role"`

	// Relationships
	SessionTokens []SessionToken       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ResetTokens   []PasswordResetToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Achievements  []UserAchievement    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
