package service

import (
	"context"
	"time"

	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
)

const msgNotAuthenticated = "Not authenticated"

// SessionAuthenticator resolves a session token to its user. It never writes.
type SessionAuthenticator struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	now      func() time.Time
}

// NewSessionAuthenticator returns a SessionAuthenticator using the wall clock.
func NewSessionAuthenticator(sessions repository.SessionRepository, users repository.UserRepository) *SessionAuthenticator {
	return &SessionAuthenticator{sessions: sessions, users: users, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (a *SessionAuthenticator) WithClock(now func() time.Time) *SessionAuthenticator {
	a.now = now
	return a
}

// Authenticate checks, in order: token present, session found, not expired,
// user present and active.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (user *models.User, err error) {
	defer func() {
		if err != nil {
			observability.RecordAuthEvent(eventAuthenticate, outcome(err))
		}
	}()

	if token == "" {
		return nil, models.NewUnauthenticatedError(msgNotAuthenticated)
	}

	session, err := a.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.NewUnauthenticatedError("Invalid session")
	}
	if !session.ValidAt(a.now()) {
		return nil, models.NewSessionExpiredError()
	}

	user, err = a.users.GetByID(ctx, session.UserID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewUnauthenticatedError(msgNotAuthenticated)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, models.NewUnauthenticatedError(msgNotAuthenticated)
	}
	return user, nil
}
