package models

// Step is an ordered sub-section of a tutorial-style post. Content is opaque
// to the server; any inline markers are interpreted by the front end.
type Step struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	PostID   uint    `gorm:"not null;index:idx_steps_post_position,priority:1" json:"post_id"`
	Position int     `gorm:"not null;index:idx_steps_post_position,priority:2" json:"position"`
	Title    string  `gorm:"size:255;not null" json:"title"`
	Content  string  `gorm:"type:text;not null" json:"content"`
	VideoURL *string `gorm:"size:1024" json:"video_url"`
	ImageURL *string `gorm:"type:text" json:"image_url"`
}

// TableName pins the table name used by migrations.
func (Step) TableName() string {
	return "steps"
}
