package service

import (
	"context"
	"strings"

	"circles/internal/authz"
	"circles/internal/models"
	"circles/internal/repository"
)

// UserService lists users, finds add-member candidates and deactivates accounts.
type UserService struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	circles     repository.CircleRepository
	memberships repository.MembershipRepository
}

// NewUserService returns a UserService.
func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	circles repository.CircleRepository,
	memberships repository.MembershipRepository,
) *UserService {
	return &UserService{users: users, sessions: sessions, circles: circles, memberships: memberships}
}

// List returns active users other than actorID.
func (s *UserService) List(ctx context.Context, actorID uint, limit, offset int) ([]models.User, error) {
	users, err := s.users.ListActive(ctx, actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SearchForCircle finds active non-members whose username contains query.
// Only owners and moderators of the circle may search. A blank query matches
// nobody.
func (s *UserService) SearchForCircle(ctx context.Context, actorID, circleID uint, query string) ([]models.User, error) {
	if _, err := s.circles.GetByID(ctx, circleID); err != nil {
		return nil, err
	}
	role, err := roleIn(ctx, s.memberships, circleID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.AddMember, Actor: role}); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}

	users, err := s.users.SearchCandidates(ctx, circleID, actorID, query, 20)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Deactivate marks actorID inactive and revokes all of its sessions.
func (s *UserService) Deactivate(ctx context.Context, actorID uint) error {
	if err := s.users.Deactivate(ctx, actorID); err != nil {
		return err
	}
	_, err := s.sessions.DeleteByUser(ctx, actorID)
	return err
}
