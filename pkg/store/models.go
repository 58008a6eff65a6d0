package store

import (
	"time"

	"gorm.io/datatypes"
)

// PromptModel is the GORM model used for persistence.
type PromptModel struct {
	ID           string `gorm:"primaryKey"`
	AuthorID     string `gorm:"not null;index"`
	BatchID      string `gorm:"index"`
	Title        string `gorm:"not null"`
	Content      string `gorm:"type:text;not null"`
	Category     string `gorm:"not null;index"`
	Slug         string
	ThumbnailURL string
	Views        int            `gorm:"not null"`
	Likes        int            `gorm:"not null"`
	Copies       int            `gorm:"not null"`
	Launches     datatypes.JSON `gorm:"type:jsonb"`
	TotalLaunch  int            `gorm:"not null"`
	Public       bool           `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
}
