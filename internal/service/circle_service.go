package service

import (
	"context"
	"strings"

	"circles/internal/authz"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
	"circles/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const maxDescriptionLen = 255

// CircleService creates, reads, updates and deletes circles.
type CircleService struct {
	repos repository.Repositories
	tx    repository.Transactor
}

// CircleDetails is a circle with its members ordered owner first.
type CircleDetails struct {
	Circle  *models.Circle
	Members []models.CircleMembership
}

type CreateCircleInput struct {
	OwnerID     uint
	Name        string
	Description string
}

// UpdateCircleInput leaves nil fields unchanged.
type UpdateCircleInput struct {
	CircleID    uint
	ActorID     uint
	Name        *string
	Description *string
}

// NewCircleService returns a CircleService.
func NewCircleService(repos repository.Repositories, tx repository.Transactor) *CircleService {
	return &CircleService{repos: repos, tx: tx}
}

// Create stores the circle and the creator's owner membership in one transaction.
func (s *CircleService) Create(ctx context.Context, in CreateCircleInput) (details *CircleDetails, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "CircleService", "Create")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateCircleName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len([]rune(description)) > maxDescriptionLen {
		return nil, models.NewValidationError("description must not exceed 255 characters")
	}

	existing, err := s.repos.Circles.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(repository.MsgCircleNameTaken)
	}

	circle := &models.Circle{Name: name, Description: description, OwnerID: in.OwnerID}
	err = s.tx.InTx(ctx, func(r repository.Repositories) error {
		if err := r.Circles.Create(ctx, circle); err != nil {
			return err
		}
		return r.Memberships.Add(ctx, &models.CircleMembership{
			CircleID: circle.ID,
			UserID:   in.OwnerID,
			Role:     models.RoleOwner,
		})
	})
	if err != nil {
		return nil, err
	}

	span.AddAttributes(attribute.Int("circle.id", int(circle.ID)))
	return s.load(ctx, circle.ID)
}

// Get returns the circle if actorID is a member.
func (s *CircleService) Get(ctx context.Context, circleID, actorID uint) (*CircleDetails, error) {
	if _, err := s.repos.Circles.GetByID(ctx, circleID); err != nil {
		return nil, err
	}
	role, err := roleIn(ctx, s.repos.Memberships, circleID, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.ViewCircle, Actor: role}); err != nil {
		return nil, err
	}
	return s.load(ctx, circleID)
}

// ListMine returns every circle actorID belongs to, newest first.
func (s *CircleService) ListMine(ctx context.Context, actorID uint) ([]CircleDetails, error) {
	circles, err := s.repos.Circles.ListForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if len(circles) == 0 {
		return []CircleDetails{}, nil
	}

	ids := make([]uint, 0, len(circles))
	for _, c := range circles {
		ids = append(ids, c.ID)
	}
	members, err := s.repos.Memberships.ListByCircles(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byCircle := make(map[uint][]models.CircleMembership, len(circles))
	for _, m := range members {
		byCircle[m.CircleID] = append(byCircle[m.CircleID], m)
	}

	out := make([]CircleDetails, 0, len(circles))
	for i := range circles {
		out = append(out, CircleDetails{Circle: &circles[i], Members: byCircle[circles[i].ID]})
	}
	return out, nil
}

// Update renames or redescribes a circle. Owner only.
func (s *CircleService) Update(ctx context.Context, in UpdateCircleInput) (*CircleDetails, error) {
	var name, description string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if err := validation.ValidateCircleName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
		if len([]rune(description)) > maxDescriptionLen {
			return nil, models.NewValidationError("description must not exceed 255 characters")
		}
	}

	circle, err := s.repos.Circles.GetByID(ctx, in.CircleID)
	if err != nil {
		return nil, err
	}
	role, err := roleIn(ctx, s.repos.Memberships, in.CircleID, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.UpdateCircle, Actor: role}); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if !strings.EqualFold(name, circle.Name) {
			existing, err := s.repos.Circles.GetByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, models.NewConflictError(repository.MsgCircleNameTaken)
			}
		}
		circle.Name = name
	}
	if in.Description != nil {
		circle.Description = description
	}

	if err := s.repos.Circles.Update(ctx, circle); err != nil {
		return nil, err
	}
	return s.load(ctx, circle.ID)
}

// Delete removes the circle with its posts and memberships in one transaction.
func (s *CircleService) Delete(ctx context.Context, circleID, actorID uint) (err error) {
	span, ctx := observability.StartServiceSpan(ctx, "CircleService", "Delete")
	defer func() { endSpan(span, err) }()
	span.AddAttributes(attribute.Int("circle.id", int(circleID)))

	if _, err := s.repos.Circles.GetByID(ctx, circleID); err != nil {
		return err
	}
	role, err := roleIn(ctx, s.repos.Memberships, circleID, actorID)
	if err != nil {
		return err
	}
	if err := authorize(authz.Request{Action: authz.DeleteCircle, Actor: role}); err != nil {
		return err
	}

	return s.tx.InTx(ctx, func(r repository.Repositories) error {
		if err := r.Posts.DeleteByCircle(ctx, circleID); err != nil {
			return err
		}
		if err := r.Memberships.DeleteByCircle(ctx, circleID); err != nil {
			return err
		}
		return r.Circles.Delete(ctx, circleID)
	})
}

func (s *CircleService) load(ctx context.Context, circleID uint) (*CircleDetails, error) {
	circle, err := s.repos.Circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	members, err := s.repos.Memberships.ListByCircles(ctx, circleID)
	if err != nil {
		return nil, err
	}
	return &CircleDetails{Circle: circle, Members: members}, nil
}
