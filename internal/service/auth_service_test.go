package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Parallel()
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	assert.Len(t, HashSessionToken(a), 64)
	assert.Equal(t, HashSessionToken(a), HashSessionToken(a))
	assert.NotEqual(t, HashSessionToken(a), HashSessionToken(b))
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.auth.Register(ctx, RegisterInput{
		Username: " dup ",
		Email:    " Dup@Example.COM",
		Password: "Secure1!pass",
		FullName: "Dup User",
	})
	require.NoError(t, err)
	assert.Equal(t, "dup", u.Username)
	assert.Equal(t, "dup@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "Secure1!pass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secure1!pass")))

	_, err = f.auth.Register(ctx, RegisterInput{Username: "dup", Email: "other@example.com", Password: "Secure1!pass"})
	requireMessage(t, err, models.CodeConflict, MsgUsernameTaken)

	_, err = f.auth.Register(ctx, RegisterInput{Username: "DUP", Email: "other@example.com", Password: "Secure1!pass"})
	requireMessage(t, err, models.CodeConflict, MsgUsernameTaken)

	_, err = f.auth.Register(ctx, RegisterInput{Username: "other", Email: "DUP@example.com", Password: "Secure1!pass"})
	requireMessage(t, err, models.CodeConflict, MsgEmailTaken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	t.Parallel()
	// validation runs before any repository access, so nil repositories are fine
	s := NewAuthService(nil, nil, time.Hour)
	ctx := context.Background()

	cases := []RegisterInput{
		{Username: "a@b", Email: "a@example.com", Password: "Secure1!pass"},
		{Username: "alice", Email: "not-an-email", Password: "Secure1!pass"},
		{Username: "alice", Email: "alice@example.com", Password: "short"},
	}
	for _, in := range cases {
		_, err := s.Register(ctx, in)
		requireCode(t, err, models.CodeValidation)
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	res, err := f.auth.Login(ctx, LoginInput{Identifier: "ALICE", Password: "Secure1!pass", IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.User.ID)
	assert.Equal(t, 24*time.Hour, res.TTL)
	assert.NotEmpty(t, res.Token)

	session, err := f.repos.Sessions.GetByTokenHash(ctx, HashSessionToken(res.Token))
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, alice.ID, session.UserID)

	var stored models.UserSession
	require.NoError(t, f.db.Where("user_id = ?", alice.ID).First(&stored).Error)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
	assert.NotEqual(t, res.Token, stored.TokenHash)

	res, err = f.auth.Login(ctx, LoginInput{Identifier: "alice@example.com", Password: "Secure1!pass"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.User.ID)
}

func TestAuthService_LoginFailuresDoNotLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "Wrong1!pass"})
		requireMessage(t, err, models.CodeUnauthenticated, MsgInvalidCredentials)
	}
	_, err := f.auth.Login(ctx, LoginInput{Identifier: "nobody", Password: "Secure1!pass"})
	requireMessage(t, err, models.CodeUnauthenticated, MsgInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "Secure1!pass"})
	require.NoError(t, err)
}

func TestAuthService_LoginInactive(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secure1!pass"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &userRepoStub{
		getByLoginFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 3, Username: "carol", PasswordHash: string(hash), IsActive: false}, nil
		},
	}
	sessions := &sessionRepoStub{
		createFn: func(context.Context, *models.UserSession) error {
			t.Fatal("inactive users must not get a session")
			return nil
		},
	}
	s := NewAuthService(users, sessions, time.Hour)

	_, err = s.Login(context.Background(), LoginInput{Identifier: "carol", Password: "Secure1!pass"})
	requireMessage(t, err, models.CodeForbidden, MsgAccountInactive)

	_, err = s.Login(context.Background(), LoginInput{Identifier: "carol", Password: "Wrong1!pass"})
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestAuthService_LoginStoresExpiry(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secure1!pass"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var created *models.UserSession
	s := NewAuthService(
		&userRepoStub{getByLoginFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 9, PasswordHash: string(hash), IsActive: true}, nil
		}},
		&sessionRepoStub{createFn: func(_ context.Context, session *models.UserSession) error {
			created = session
			return nil
		}},
		90*time.Minute,
	).WithClock(func() time.Time { return now })

	res, err := s.Login(context.Background(), LoginInput{Identifier: "x", Password: "Secure1!pass"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, now.Add(90*time.Minute), created.ExpiresAt)
	assert.Equal(t, created.ExpiresAt, res.ExpiresAt)
	assert.Equal(t, HashSessionToken(res.Token), created.TokenHash)
	assert.Equal(t, uint(9), created.UserID)
}

func TestAuthService_LoginTruncatesClientMetadataByRune(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secure1!pass"), bcrypt.MinCost)
	require.NoError(t, err)

	var created *models.UserSession
	s := NewAuthService(
		&userRepoStub{getByLoginFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 9, PasswordHash: string(hash), IsActive: true}, nil
		}},
		&sessionRepoStub{createFn: func(_ context.Context, session *models.UserSession) error {
			created = session
			return nil
		}},
		time.Hour,
	)

	_, err = s.Login(context.Background(), LoginInput{
		Identifier: "x",
		Password:   "Secure1!pass",
		IPAddress:  strings.Repeat("f", 60),
		UserAgent:  strings.Repeat("a", 254) + "é" + "ignored",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.True(t, utf8.ValidString(created.UserAgent))
	assert.Equal(t, 255, utf8.RuneCountInString(created.UserAgent))
	assert.True(t, strings.HasSuffix(created.UserAgent, "é"))
	assert.Len(t, created.IPAddress, 45)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"multibyte at limit", "aaé", 3, "aaé"},
		{"multibyte past limit", "aéb", 2, "aé"},
		{"invalid bytes dropped", "ab\xffc", 5, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	t.Parallel()
	s := NewAuthService(&userRepoStub{getByLoginFn: func(context.Context, string) (*models.User, error) {
		return nil, models.NewInternalError(errors.New("connection refused"))
	}}, nil, time.Hour)

	_, err := s.Login(context.Background(), LoginInput{Identifier: "x", Password: "y"})
	requireCode(t, err, models.CodeInternal)

	_, err = s.Login(context.Background(), LoginInput{Identifier: " ", Password: "y"})
	requireCode(t, err, models.CodeValidation)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	res, err := f.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "Secure1!pass"})
	require.NoError(t, err)

	authn := NewSessionAuthenticator(f.repos.Sessions, f.repos.Users)
	_, err = authn.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	_, err = authn.Authenticate(ctx, res.Token)
	requireCode(t, err, models.CodeUnauthenticated)

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	require.NoError(t, f.auth.Logout(ctx, ""))
	require.NoError(t, f.auth.Logout(ctx, "never-issued"))
}
