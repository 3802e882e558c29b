package models

import "time"

// UserSession is a server-side login session. Only the SHA-256 digest of the
// opaque token is stored.
type UserSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	IPAddress string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"size:255" json:"user_agent,omitempty"`
}

// TableName specifies the table name for GORM.
func (UserSession) TableName() string {
	return "user_sessions"
}

// ValidAt reports whether the session is still usable at t.
func (s *UserSession) ValidAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}
