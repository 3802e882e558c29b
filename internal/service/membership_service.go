package service

import (
	"context"

	"circles/internal/authz"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const msgMemberNotFound = "Member not found in this circle"

// MembershipService adds, removes and re-roles circle members.
type MembershipService struct {
	circles     repository.CircleRepository
	users       repository.UserRepository
	memberships repository.MembershipRepository
}

// MemberInput names a circle, the acting user and the member acted on.
type MemberInput struct {
	CircleID uint
	ActorID  uint
	UserID   uint
}

type ChangeRoleInput struct {
	MemberInput
	Role models.Role
}

// RoleChange reports a successful role update.
type RoleChange struct {
	Member  *models.CircleMembership
	OldRole models.Role
	NewRole models.Role
}

// NewMembershipService returns a MembershipService.
func NewMembershipService(circles repository.CircleRepository, users repository.UserRepository, memberships repository.MembershipRepository) *MembershipService {
	return &MembershipService{circles: circles, users: users, memberships: memberships}
}

// Add makes UserID a plain member. Owners and moderators only.
func (s *MembershipService) Add(ctx context.Context, in MemberInput) (member *models.CircleMembership, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "MembershipService", "Add")
	defer func() { endSpan(span, err) }()
	span.AddAttributes(attribute.Int("circle.id", int(in.CircleID)), attribute.Int("user.id", int(in.UserID)))

	if _, err := s.circles.GetByID(ctx, in.CircleID); err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, models.NewNotFoundError("User", in.UserID)
	}

	role, err := roleIn(ctx, s.memberships, in.CircleID, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.AddMember, Actor: role}); err != nil {
		return nil, err
	}

	existing, err := s.memberships.Get(ctx, in.CircleID, in.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(repository.MsgAlreadyMember)
	}

	member = &models.CircleMembership{CircleID: in.CircleID, UserID: in.UserID, Role: models.RoleMember}
	if err := s.memberships.Add(ctx, member); err != nil {
		return nil, err
	}
	member.User = target
	return member, nil
}

// Remove deletes UserID's membership and returns the removed member.
func (s *MembershipService) Remove(ctx context.Context, in MemberInput) (removed *models.CircleMembership, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "MembershipService", "Remove")
	defer func() { endSpan(span, err) }()
	span.AddAttributes(attribute.Int("circle.id", int(in.CircleID)), attribute.Int("user.id", int(in.UserID)))

	if _, err := s.circles.GetByID(ctx, in.CircleID); err != nil {
		return nil, err
	}
	role, target, err := s.actorAndTarget(ctx, in, authz.RemoveMember)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.RemoveMember, Actor: role, Target: target.Role}); err != nil {
		return nil, err
	}

	if err := s.memberships.Remove(ctx, in.CircleID, in.UserID); err != nil {
		return nil, err
	}
	return target, nil
}

// ChangeRole sets UserID's role. Owner only; the owner's own role is fixed.
func (s *MembershipService) ChangeRole(ctx context.Context, in ChangeRoleInput) (change *RoleChange, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "MembershipService", "ChangeRole")
	defer func() { endSpan(span, err) }()
	span.AddAttributes(
		attribute.Int("circle.id", int(in.CircleID)),
		attribute.Int("user.id", int(in.UserID)),
		attribute.String("role", string(in.Role)),
	)

	if !in.Role.Valid() {
		return nil, models.NewValidationError(authz.MsgAssignableRoles)
	}
	if _, err := s.circles.GetByID(ctx, in.CircleID); err != nil {
		return nil, err
	}
	role, target, err := s.actorAndTarget(ctx, in.MemberInput, authz.ChangeRole)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.ChangeRole, Actor: role, Target: target.Role, NewRole: in.Role}); err != nil {
		return nil, err
	}

	old := target.Role
	if old != in.Role {
		if err := s.memberships.UpdateRole(ctx, in.CircleID, in.UserID, in.Role); err != nil {
			return nil, err
		}
	}
	target.Role = in.Role
	return &RoleChange{Member: target, OldRole: old, NewRole: in.Role}, nil
}

// actorAndTarget resolves the actor's role, failing Forbidden for
// non-members, then the target membership, failing NotFound.
func (s *MembershipService) actorAndTarget(ctx context.Context, in MemberInput, action authz.Action) (*models.Role, *models.CircleMembership, error) {
	role, err := roleIn(ctx, s.memberships, in.CircleID, in.ActorID)
	if err != nil {
		return nil, nil, err
	}
	if role == nil {
		return nil, nil, authorize(authz.Request{Action: action})
	}
	target, err := s.memberships.Get(ctx, in.CircleID, in.UserID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, models.NewNotFoundMessage(msgMemberNotFound)
	}
	return role, target, nil
}
