package models

import "time"

// Post is authored by a user, either in a circle or public when CircleID is nil.
type Post struct {
	ID        uint      `gorm:"primaryKey;index:idx_posts_circle_feed,priority:3,sort:desc" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CircleID  *uint     `gorm:"index:idx_posts_circle_feed,priority:1" json:"circle_id"`
	Circle    *Circle   `gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"index:idx_posts_circle_feed,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}
