package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Achievement is an unlockable badge
type Achievement struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Code        string         `gorm:"uniqueIndex;not null;type:varchar(50)" json:"code"`
	Title       string         `gorm:"not null;type:varchar(255)" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Criteria    datatypes.JSON `gorm:"type:jsonb" json:"criteria,omitempty"` // e.g. {"series_completed": 3}

	// Relationships
	Holders []UserAchievement `gorm:"foreignKey:AchievementID;constraint:OnDelete:CASCADE" json:"-"`
}

// UserAchievement links a user to an achievement they earned
type UserAchievement struct {
	UserID        uint  `gorm:"primaryKey" json:"user_id"`
	AchievementID uint  `gorm:"primaryKey" json:"achievement_id"`
	EarnedAt      int64 `gorm:"autoCreateTime" json:"earned_at"`

	// Relationships
	User        User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Achievement Achievement `gorm:"foreignKey:AchievementID;constraint:OnDelete:CASCADE" json:"achievement,omitempty"`
}
