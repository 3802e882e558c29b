package models

import "time"

// Circle is a named group of users with role-based membership.
type Circle struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;not null;index:idx_circles_name_lower,unique,expression:lower(name)" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Circle) TableName() string {
	return "circles"
}
