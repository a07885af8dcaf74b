package model

import (
	"time"

	"gorm.io/gorm"
)

// Series is an ordered collection of enigmas
type Series struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null;type:varchar(255)" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null;type:varchar(255)" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	AuthorID    uint           `gorm:"index;not null" json:"author_id"`
	Published   bool           `gorm:"not null;default:false" json:"published"`

	// Relationships
	Author  User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Enigmas []Enigma `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE" json:"enigmas,omitempty"`
}

// Enigma is a single puzzle within a series
type Enigma struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	SeriesID      uint           `gorm:"index;not null" json:"series_id"`
	Position      int            `gorm:"not null;default:1" json:"position"`
	Title         string         `gorm:"not null;type:varchar(255)" json:"title"`
	Statement     string         `gorm:"type:text" json:"statement"`
	AnswerHash    string         `gorm:"not null" json:"-"` // Never expose the answer
	AttachmentURL string         `gorm:"type:text" json:"attachment_url,omitempty"`

	// Relationships
	Series  Series         `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE" json:"-"`
	Reports []EnigmaReport `gorm:"foreignKey:EnigmaID;constraint:OnDelete:CASCADE" json:"-"`
}

// EnigmaReport is a visitor-submitted problem report about an enigma.
// Submission is open to unauthenticated visitors and therefore captcha-gated.
type EnigmaReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	EnigmaID  uint      `gorm:"index;not null" json:"enigma_id"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Message   string    `gorm:"not null;type:text" json:"message"`

	// Relationships
	Enigma Enigma `gorm:"foreignKey:EnigmaID;constraint:OnDelete:CASCADE" json:"-"`
}
