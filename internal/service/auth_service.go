package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
	"circles/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// Auth event labels for observability.AuthEvents.
const (
	eventRegister     = "register"
	eventLogin        = "login"
	eventLogout       = "logout"
	eventAuthenticate = "authenticate"
)

const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgAccountInactive    = "Account is inactive"
	MsgUsernameTaken      = "Username already taken"
	MsgEmailTaken         = "Email already registered"
)

// AuthService registers users and issues and revokes login sessions.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	ttl      time.Duration
	cost     int
	now      func() time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
}

// LoginResult carries the raw token; it is never persisted.
type LoginResult struct {
	Token     string
	User      *models.User
	ExpiresAt time.Time
	TTL       time.Duration
}

// NewAuthService returns an AuthService issuing sessions that live for ttl.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, ttl time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithHashCost overrides the bcrypt cost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// Register validates the input, rejects taken identities and stores a new
// active user with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "AuthService", "Register")
	defer func() {
		observability.RecordAuthEvent(eventRegister, outcome(err))
		endSpan(span, err)
	}()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(MsgUsernameTaken)
	}
	existing, err = s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(MsgEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	span.AddAttributes(attribute.Int("user.id", int(user.ID)))
	return user, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy spends the same bcrypt work as a real check so unknown
// identifiers are not distinguishable by latency.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("circles-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Login verifies credentials and creates a session. Unknown identifiers and
// wrong passwords fail identically; inactive accounts are rejected only after
// the password matches.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "AuthService", "Login")
	defer func() {
		observability.RecordAuthEvent(eventLogin, outcome(err))
		endSpan(span, err)
	}()

	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	user, err := s.users.GetByLogin(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		compareDummy(in.Password)
		return nil, models.NewUnauthenticatedError(MsgInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthenticatedError(MsgInvalidCredentials)
	}
	if !user.IsActive {
		return nil, models.NewForbiddenError(MsgAccountInactive)
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	now := s.now()
	session := &models.UserSession{
		TokenHash: HashSessionToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: truncate(in.IPAddress, 45),
		UserAgent: truncate(in.UserAgent, 255),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	span.AddAttributes(attribute.Int("user.id", int(user.ID)))
	return &LoginResult{
		Token:     token,
		User:      user,
		ExpiresAt: session.ExpiresAt,
		TTL:       s.ttl,
	}, nil
}

// Logout deletes the session for token. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	defer func() { observability.RecordAuthEvent(eventLogout, outcome(err)) }()
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(models.ErrorCode(err))
}

// truncate keeps at most n runes of s and drops invalid UTF-8, which
// Postgres rejects in text columns.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
