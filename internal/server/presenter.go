package server

import (
	"time"

	"circles/internal/models"
	"circles/internal/service"
)

// Badge is the display glyph for a role. Unknown roles render as a member.
func Badge(role models.Role) string {
	switch role {
	case models.RoleOwner:
		return "👑"
	case models.RoleModerator:
		return "🛡️"
	default:
		return "👤"
	}
}

// UserDTO is the public view of a user.
type UserDTO struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSearchDTO is a user returned by member search.
type UserSearchDTO struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsAlreadyMember bool   `json:"is_already_member"`
}

// MemberDTO is one membership with its display badge.
type MemberDTO struct {
	CircleID uint        `json:"circle_id"`
	UserID   uint        `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Badge    string      `json:"badge"`
	JoinedAt time.Time   `json:"joined_at"`
}

// CircleDTO is a circle with its members.
type CircleDTO struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	OwnerID     uint        `json:"owner_id"`
	OwnerName   string      `json:"owner_name"`
	Members     []MemberDTO `json:"members"`
	MemberCount int         `json:"member_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PostDTO is a post with its author's username.
type PostDTO struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	AuthorID       uint      `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	CircleID       *uint     `json:"circle_id"`
	CircleName     string    `json:"circle_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemberActionResponse is returned by the member add, remove and role endpoints.
type MemberActionResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Member  *MemberDTO `json:"member,omitempty"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Success      bool     `json:"success"`
	Username     string   `json:"username"`
	SessionToken string   `json:"session_token,omitempty"`
	User         *UserDTO `json:"user"`
}

func newUserDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func newUserDTOs(users []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, *newUserDTO(&users[i]))
	}
	return out
}

func newMemberDTO(m *models.CircleMembership) MemberDTO {
	dto := MemberDTO{
		CircleID: m.CircleID,
		UserID:   m.UserID,
		Role:     m.Role,
		Badge:    Badge(m.Role),
		JoinedAt: m.JoinedAt,
	}
	if m.User != nil {
		dto.Username = m.User.Username
	}
	return dto
}

func newCircleDTO(d *service.CircleDetails) CircleDTO {
	dto := CircleDTO{
		ID:          d.Circle.ID,
		Name:        d.Circle.Name,
		Description: d.Circle.Description,
		OwnerID:     d.Circle.OwnerID,
		Members:     make([]MemberDTO, 0, len(d.Members)),
		MemberCount: len(d.Members),
		CreatedAt:   d.Circle.CreatedAt,
		UpdatedAt:   d.Circle.UpdatedAt,
	}
	for i := range d.Members {
		m := newMemberDTO(&d.Members[i])
		if m.UserID == d.Circle.OwnerID {
			dto.OwnerName = m.Username
		}
		dto.Members = append(dto.Members, m)
	}
	if dto.OwnerName == "" && d.Circle.Owner != nil {
		dto.OwnerName = d.Circle.Owner.Username
	}
	return dto
}

func newPostDTO(p *models.Post) PostDTO {
	dto := PostDTO{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		CircleID:  p.CircleID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Author != nil {
		dto.AuthorUsername = p.Author.Username
	}
	if p.Circle != nil {
		dto.CircleName = p.Circle.Name
	}
	return dto
}
