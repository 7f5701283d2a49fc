package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Post is a blog entry authored in the admin area.
type Post struct {
	ID          uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Slug        string         `json:"slug" gorm:"uniqueIndex;size:255;not null"`
	Summary     string         `json:"summary,omitempty" gorm:"size:512"`
	Body        string         `json:"body" gorm:"type:text;not null"`
	Published   bool           `json:"published" gorm:"default:false;index"`
	PublishedAt *time.Time     `json:"published_at,omitempty" gorm:"index"`
	AuthorID    uuid.UUID      `json:"author_id" gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Relations
	Author User `json:"-" gorm:"foreignKey:AuthorID"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Slugify transliterates s to ASCII, lowercases it and joins words with dashes.
func Slugify(s string) string {
	return slug.Make(s)
}
