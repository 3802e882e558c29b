package seed

import (
	"context"
	"strings"
	"testing"

	"circles/internal/database"
	"circles/internal/models"
	"circles/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	return NewSeeder(db).WithHashCost(bcrypt.MinCost), db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestLoadFixtureFile(t *testing.T) {
	fx, err := LoadFixtureFile("testdata/book_club.yaml")
	require.NoError(t, err)

	require.Len(t, fx.Users, 4)
	assert.Equal(t, "Alice Liddell", fx.Users[0].FullName)
	require.Len(t, fx.Circles, 1)
	assert.Equal(t, "alice", fx.Circles[0].Owner)
	assert.Equal(t, models.RoleModerator, fx.Circles[0].Members[0].Role)
	assert.Empty(t, fx.Circles[0].Members[1].Role)
	require.Len(t, fx.Posts, 1)

	_, err = LoadFixtureFile("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestLoadFixture_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "users:\n  - username: a\n    nickname: x\n",
			want: "nickname",
		},
		{
			name: "duplicate user ignoring case",
			yaml: "users:\n  - username: alice\n  - username: ALICE\n",
			want: "duplicate username",
		},
		{
			name: "unknown owner",
			yaml: "users:\n  - username: alice\ncircles:\n  - name: C\n    owner: bob\n",
			want: "unknown owner",
		},
		{
			name: "owner role in members",
			yaml: "users:\n  - username: alice\n  - username: bob\ncircles:\n  - name: C\n    owner: alice\n    members:\n      - username: bob\n        role: owner\n",
			want: "want moderator or member",
		},
		{
			name: "post by outsider",
			yaml: "users:\n  - username: alice\n  - username: bob\ncircles:\n  - name: C\n    owner: alice\n    posts:\n      - author: bob\n        title: t\n        content: c\n",
			want: "is not a member",
		},
		{
			name: "duplicate circle",
			yaml: "users:\n  - username: alice\ncircles:\n  - name: C\n    owner: alice\n  - name: c\n    owner: alice\n",
			want: "duplicate circle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixture(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFixture_Empty(t *testing.T) {
	fx, err := LoadFixture(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fx.Users)
}

func TestApplyFixture(t *testing.T) {
	s, db := setupSeeder(t)
	ctx := context.Background()
	fx, err := LoadFixtureFile("testdata/book_club.yaml")
	require.NoError(t, err)

	res, err := s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 4, Circles: 1, Memberships: 2, Posts: 3}, res)

	var club models.Circle
	require.NoError(t, db.Where("name = ?", "Book Club").First(&club).Error)
	var members []models.CircleMembership
	require.NoError(t, db.Preload("User").Where("circle_id = ?", club.ID).Find(&members).Error)
	roles := map[string]models.Role{}
	for _, m := range members {
		roles[m.User.Username] = m.Role
	}
	assert.Equal(t, map[string]models.Role{
		"alice": models.RoleOwner,
		"bob":   models.RoleModerator,
		"carol": models.RoleMember,
	}, roles)

	var carol models.User
	require.NoError(t, db.Where("username = ?", "carol").First(&carol).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(carol.PasswordHash), []byte("Another1!pass")))
	var bob models.User
	require.NoError(t, db.Where("username = ?", "bob").First(&bob).Error)
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(bob.PasswordHash), []byte(DefaultPassword)))

	var public models.Post
	require.NoError(t, db.Where("circle_id IS NULL").First(&public).Error)
	assert.Equal(t, "Hello world", public.Title)
}

func TestApplyFixture_Idempotent(t *testing.T) {
	s, db := setupSeeder(t)
	ctx := context.Background()
	fx, err := LoadFixtureFile("testdata/book_club.yaml")
	require.NoError(t, err)

	_, err = s.ApplyFixture(ctx, fx)
	require.NoError(t, err)

	// Demote bob by hand; the next run restores the fixture's role.
	require.NoError(t, db.Model(&models.CircleMembership{}).
		Where("user_id = (SELECT id FROM users WHERE username = ?)", "bob").
		Update("role", models.RoleMember).Error)

	res, err := s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	assert.EqualValues(t, 4, count(t, db, &models.User{}))
	assert.EqualValues(t, 3, count(t, db, &models.CircleMembership{}))
	assert.EqualValues(t, 3, count(t, db, &models.Post{}))

	var bob models.CircleMembership
	require.NoError(t, db.Joins("JOIN users ON users.id = circle_members.user_id").
		Where("users.username = ?", "bob").First(&bob).Error)
	assert.Equal(t, models.RoleModerator, bob.Role)
}

func TestApplyFixture_WeakPasswordFails(t *testing.T) {
	s, _ := setupSeeder(t)
	fx := &Fixture{Users: []FixtureUser{{Username: "alice", Email: "alice@example.com", Password: "weak"}}}

	_, err := s.ApplyFixture(context.Background(), fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register alice")
}

func TestFactory_Deterministic(t *testing.T) {
	a := NewFactory(42).Generate(DefaultOptions)
	b := NewFactory(42).Generate(DefaultOptions)
	assert.Equal(t, a, b)

	require.NoError(t, a.Validate())
	require.Len(t, a.Users, DefaultOptions.Users)
	require.Len(t, a.Circles, DefaultOptions.Circles)
	for _, u := range a.Users {
		assert.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		assert.NoError(t, validation.ValidateEmail(u.Email), u.Email)
	}
	for _, c := range a.Circles {
		assert.NoError(t, validation.ValidateCircleName(c.Name), c.Name)
		assert.Len(t, c.Members, DefaultOptions.MembersPerCircle)
		for _, m := range c.Members {
			assert.NotEqual(t, c.Owner, m.Username)
		}
		for _, p := range c.Posts {
			assert.NoError(t, validation.ValidatePostTitle(p.Title), p.Title)
		}
	}
}

func TestFactory_Pick(t *testing.T) {
	f := NewFactory(1)
	got := f.Pick(5, 10, 2)
	assert.Len(t, got, 4)
	assert.NotContains(t, got, 2)

	got = f.Pick(5, 2, -1)
	assert.Len(t, got, 2)
}

func TestSeed(t *testing.T) {
	s, db := setupSeeder(t)
	ctx := context.Background()
	opts := Options{Users: 6, Circles: 2, MembersPerCircle: 3, PostsPerCircle: 2, PublicPosts: 1, RandSeed: 7}

	res, err := s.Seed(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Users)
	assert.Equal(t, 2, res.Circles)
	assert.Equal(t, 6, res.Memberships)
	assert.Positive(t, res.Posts)
	assert.EqualValues(t, 8, count(t, db, &models.CircleMembership{}))

	opts.Clean = true
	opts.Users = 3
	opts.Circles = 1
	res, err = s.Seed(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)
	assert.EqualValues(t, 3, count(t, db, &models.User{}))
	assert.EqualValues(t, 1, count(t, db, &models.Circle{}))
}
