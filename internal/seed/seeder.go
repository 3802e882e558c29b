// Package seed creates development and demo data. Everything goes through the
// service layer, so seeded rows obey the same rules as API traffic.
package seed

import (
	"context"
	"fmt"
	"time"

	"circles/internal/cache"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
	"circles/internal/service"

	"gorm.io/gorm"
)

// DefaultPassword is used for seeded users that do not set one.
const DefaultPassword = "Password123!"

// Seeder writes users, circles, memberships and posts.
type Seeder struct {
	db          *gorm.DB
	repos       repository.Repositories
	auth        *service.AuthService
	circles     *service.CircleService
	memberships *service.MembershipService
	posts       *service.PostService
}

// Result counts what a seeding run created. Rows that already existed are
// not counted.
type Result struct {
	Users       int
	Circles     int
	Memberships int
	Posts       int
}

func (r Result) String() string {
	return fmt.Sprintf("%d users, %d circles, %d memberships, %d posts", r.Users, r.Circles, r.Memberships, r.Posts)
}

// NewSeeder binds a Seeder to db. Seeding never touches Redis.
func NewSeeder(db *gorm.DB) *Seeder {
	c := cache.New(nil)
	repos := repository.New(db, c)
	return &Seeder{
		db:          db,
		repos:       repos,
		auth:        service.NewAuthService(repos.Users, repos.Sessions, time.Hour),
		circles:     service.NewCircleService(repos, repository.NewTransactor(db, c)),
		memberships: service.NewMembershipService(repos.Circles, repos.Users, repos.Memberships),
		posts:       service.NewPostService(repos.Posts, repos.Circles, repos.Memberships),
	}
}

// WithHashCost sets the bcrypt cost for seeded passwords.
func (s *Seeder) WithHashCost(cost int) *Seeder {
	s.auth.WithHashCost(cost)
	return s
}

// Clear removes every user, session, circle, membership and post.
func (s *Seeder) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.Post{},
			&models.CircleMembership{},
			&models.Circle{},
			&models.UserSession{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// ensureUser returns the user named username, registering it when missing.
func (s *Seeder) ensureUser(ctx context.Context, in service.RegisterInput) (*models.User, bool, error) {
	existing, err := s.repos.Users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if in.Password == "" {
		in.Password = DefaultPassword
	}
	user, err := s.auth.Register(ctx, in)
	if err != nil {
		return nil, false, fmt.Errorf("register %s: %w", in.Username, err)
	}
	return user, true, nil
}

// ensureCircle returns the circle called name, creating it for owner when missing.
func (s *Seeder) ensureCircle(ctx context.Context, owner *models.User, name, description string) (*models.Circle, bool, error) {
	existing, err := s.repos.Circles.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	details, err := s.circles.Create(ctx, service.CreateCircleInput{
		OwnerID:     owner.ID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create circle %s: %w", name, err)
	}
	return details.Circle, true, nil
}

// ensureMember adds user to circle with role, acting as the circle owner.
// An existing membership has its role corrected instead.
func (s *Seeder) ensureMember(ctx context.Context, circle *models.Circle, user *models.User, role models.Role) (bool, error) {
	if user.ID == circle.OwnerID {
		return false, nil
	}
	in := service.MemberInput{CircleID: circle.ID, ActorID: circle.OwnerID, UserID: user.ID}

	existing, err := s.repos.Memberships.Get(ctx, circle.ID, user.ID)
	if err != nil {
		return false, err
	}
	created := false
	if existing == nil {
		if _, err := s.memberships.Add(ctx, in); err != nil {
			return false, fmt.Errorf("add %s to %s: %w", user.Username, circle.Name, err)
		}
		created = true
		existing = &models.CircleMembership{Role: models.RoleMember}
	}
	if existing.Role != role {
		if _, err := s.memberships.ChangeRole(ctx, service.ChangeRoleInput{MemberInput: in, Role: role}); err != nil {
			return created, fmt.Errorf("set %s role in %s: %w", user.Username, circle.Name, err)
		}
	}
	return created, nil
}

// ensurePost creates the post unless the author already has one with the
// same title in the same place.
func (s *Seeder) ensurePost(ctx context.Context, author *models.User, circleID *uint, title, content string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ? AND title = ?", author.ID, title)
	if circleID == nil {
		q = q.Where("circle_id IS NULL")
	} else {
		q = q.Where("circle_id = ?", *circleID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.posts.Create(ctx, service.CreatePostInput{
		AuthorID: author.ID,
		Title:    title,
		Content:  content,
		CircleID: circleID,
	}); err != nil {
		return false, fmt.Errorf("post %q by %s: %w", title, author.Username, err)
	}
	return true, nil
}

// withRun tags ctx with a fresh correlation id so every repository log line
// of one seeding run can be grouped.
func withRun(ctx context.Context, operation string, fields map[string]interface{}) (context.Context, func(Result, error)) {
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
	observability.LogAsyncOperationStart(ctx, operation, fields)
	return ctx, func(res Result, err error) {
		if err != nil {
			observability.LogAsyncOperationError(ctx, operation, err, fields)
			return
		}
		observability.LogAsyncOperationEnd(ctx, operation, map[string]interface{}{
			"users":       res.Users,
			"circles":     res.Circles,
			"memberships": res.Memberships,
			"posts":       res.Posts,
		})
	}
}
