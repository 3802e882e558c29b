package service

import (
	"context"

	"circles/internal/authz"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
)

// roleIn returns userID's role in circleID, or nil when not a member.
func roleIn(ctx context.Context, members repository.MembershipRepository, circleID, userID uint) (*models.Role, error) {
	m, err := members.Get(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	role := m.Role
	return &role, nil
}

// authorize wraps authz.Decide and counts forbidden outcomes.
func authorize(req authz.Request) error {
	err := authz.Decide(req)
	if err != nil && models.ErrorCode(err) == models.CodeForbidden {
		observability.AuthzDenials.WithLabelValues(req.Action.String()).Inc()
	}
	return err
}

// endSpan records err on span before ending it.
func endSpan(span *observability.Span, err error) {
	if err != nil && models.ErrorCode(err) == models.CodeInternal {
		span.SetError(err)
	}
	span.End()
}
