package service

import (
	"context"
	"testing"
	"time"

	"circles/internal/cache"
	"circles/internal/database"
	"circles/internal/models"
	"circles/internal/repository"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixture wires every service against an in-memory sqlite database.
type fixture struct {
	db          *gorm.DB
	repos       repository.Repositories
	auth        *AuthService
	circles     *CircleService
	memberships *MembershipService
	posts       *PostService
	users       *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	c := cache.New(nil)
	repos := repository.New(db, c)
	tx := repository.NewTransactor(db, c)
	return &fixture{
		db:          db,
		repos:       repos,
		auth:        NewAuthService(repos.Users, repos.Sessions, 24*time.Hour).WithHashCost(bcrypt.MinCost),
		circles:     NewCircleService(repos, tx),
		memberships: NewMembershipService(repos.Circles, repos.Users, repos.Memberships),
		posts:       NewPostService(repos.Posts, repos.Circles, repos.Memberships),
		users:       NewUserService(repos.Users, repos.Sessions, repos.Circles, repos.Memberships),
	}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Secure1!pass",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) circle(t *testing.T, name string, owner *models.User, members ...*models.User) uint {
	t.Helper()
	ctx := context.Background()
	d, err := f.circles.Create(ctx, CreateCircleInput{OwnerID: owner.ID, Name: name})
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.memberships.Add(ctx, MemberInput{CircleID: d.Circle.ID, ActorID: owner.ID, UserID: m.ID})
		require.NoError(t, err)
	}
	return d.Circle.ID
}

func (f *fixture) promote(t *testing.T, circleID uint, owner, target *models.User) {
	t.Helper()
	_, err := f.memberships.ChangeRole(context.Background(), ChangeRoleInput{
		MemberInput: MemberInput{CircleID: circleID, ActorID: owner.ID, UserID: target.ID},
		Role:        models.RoleModerator,
	})
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "error: %v", err)
}

func requireMessage(t *testing.T, err error, code, message string) {
	t.Helper()
	requireCode(t, err, code)
	require.Equal(t, message, err.Error())
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn    func(context.Context, uint) (*models.User, error)
	getByLoginFn func(context.Context, string) (*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userRepoStub) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userRepoStub) GetByLogin(ctx context.Context, identifier string) (*models.User, error) {
	return s.getByLoginFn(ctx, identifier)
}
func (s *userRepoStub) Create(context.Context, *models.User) error { return nil }
func (s *userRepoStub) Deactivate(context.Context, uint) error     { return nil }
func (s *userRepoStub) ListActive(context.Context, uint, int, int) ([]models.User, error) {
	return nil, nil
}
func (s *userRepoStub) SearchCandidates(context.Context, uint, uint, string, int) ([]models.User, error) {
	return nil, nil
}

// sessionRepoStub is a stub for repository.SessionRepository.
type sessionRepoStub struct {
	createFn             func(context.Context, *models.UserSession) error
	getByTokenHashFn     func(context.Context, string) (*models.UserSession, error)
	deleteByTokenHashFn  func(context.Context, string) error
	deleteExpiredBatchFn func(context.Context, time.Time, int) (int64, error)
}

func (s *sessionRepoStub) Create(ctx context.Context, session *models.UserSession) error {
	return s.createFn(ctx, session)
}
func (s *sessionRepoStub) GetByTokenHash(ctx context.Context, hash string) (*models.UserSession, error) {
	return s.getByTokenHashFn(ctx, hash)
}
func (s *sessionRepoStub) DeleteByTokenHash(ctx context.Context, hash string) error {
	return s.deleteByTokenHashFn(ctx, hash)
}
func (s *sessionRepoStub) DeleteByUser(context.Context, uint) (int64, error) { return 0, nil }
func (s *sessionRepoStub) DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error) {
	return s.deleteExpiredBatchFn(ctx, now, limit)
}
