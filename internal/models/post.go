// Package models contains the persisted records and domain errors of the blog.
package models

import (
	"time"

	"cozytiny/internal/content"
)

// Post is a blog article. Content holds the serialized segment list; Segments
// is the decoded form filled in on read paths.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Slug         string    `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	ThumbnailURL string    `gorm:"type:text;not null" json:"thumbnail_url"`
	MetaDesc     string    `gorm:"type:text;not null" json:"meta_desc"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Category     string    `gorm:"size:255;not null;index" json:"category"`
	ImageURL     *string   `gorm:"size:1024" json:"image_url"`
	Steps        []Step    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Segments []content.Segment `gorm:"-" json:"segments,omitempty"`
}

// TableName pins the table name used by migrations.
func (Post) TableName() string {
	return "posts"
}

// SitemapEntry is the projection used to build sitemap.xml.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}
