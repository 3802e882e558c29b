// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account that can log in, own circles and author posts.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;not null;index:idx_users_username_lower,unique,expression:lower(username)" json:"username"`
	Email        string    `gorm:"size:255;not null;index:idx_users_email_lower,unique,expression:lower(email)" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	FullName     string    `gorm:"size:100" json:"full_name"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
