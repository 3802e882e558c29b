package models

import (
	"fmt"
	"strings"
	"time"
)

// Role defines a member's role in a circle.
type Role string

const (
	// RoleOwner is held by exactly one member, the circle's creator.
	RoleOwner Role = "owner"
	// RoleModerator may add and remove plain members.
	RoleModerator Role = "moderator"
	// RoleMember is the default role.
	RoleMember Role = "member"
)

// ParseRole converts a wire value into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOwner, RoleModerator, RoleMember:
		return r, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown role %q", s))
	}
}

// Rank orders roles so that owner > moderator > member.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// CircleMembership maps users to circles and tracks role.
type CircleMembership struct {
	CircleID uint      `gorm:"primaryKey;autoIncrement:false;index:idx_circle_members_one_owner,unique,where:role = 'owner'" json:"circle_id"`
	Circle   *Circle   `gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE" json:"-"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Role     Role      `gorm:"type:varchar(20);not null;default:'member';check:chk_circle_members_role,role IN ('owner','moderator','member')" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName specifies the table name for GORM.
func (CircleMembership) TableName() string {
	return "circle_members"
}
