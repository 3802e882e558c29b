package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"circles/internal/models"
	"circles/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written dataset, usually loaded from YAML:
//
//	users:
//	  - username: alice
//	    email: alice@example.com
//	circles:
//	  - name: Book Club
//	    owner: alice
//	    members:
//	      - username: bob
//	        role: moderator
//	    posts:
//	      - author: bob
//	        title: Chapter 1
//	        content: Thoughts?
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Circles []FixtureCircle `yaml:"circles"`
	// Posts outside any circle.
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
}

type FixtureCircle struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Owner       string          `yaml:"owner"`
	Members     []FixtureMember `yaml:"members"`
	Posts       []FixturePost   `yaml:"posts"`
}

type FixtureMember struct {
	Username string      `yaml:"username"`
	Role     models.Role `yaml:"role"`
}

type FixturePost struct {
	Author  string `yaml:"author"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// LoadFixture decodes and validates a YAML fixture. Unknown keys are errors.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fx, err := LoadFixture(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// Validate checks that every reference in the fixture resolves. Field-level
// rules such as password strength are left to the services.
func (fx *Fixture) Validate() error {
	users := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		key := strings.ToLower(strings.TrimSpace(u.Username))
		if key == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if users[key] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		users[key] = true
	}
	known := func(name string) bool { return users[strings.ToLower(strings.TrimSpace(name))] }

	circles := make(map[string]bool, len(fx.Circles))
	for i, c := range fx.Circles {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return fmt.Errorf("circles[%d]: name is required", i)
		}
		if circles[key] {
			return fmt.Errorf("circles[%d]: duplicate circle %q", i, c.Name)
		}
		circles[key] = true

		if !known(c.Owner) {
			return fmt.Errorf("circle %q: unknown owner %q", c.Name, c.Owner)
		}
		inCircle := map[string]bool{strings.ToLower(strings.TrimSpace(c.Owner)): true}
		for _, m := range c.Members {
			if !known(m.Username) {
				return fmt.Errorf("circle %q: unknown member %q", c.Name, m.Username)
			}
			if m.Role != "" && m.Role != models.RoleModerator && m.Role != models.RoleMember {
				return fmt.Errorf("circle %q: member %q has role %q, want moderator or member", c.Name, m.Username, m.Role)
			}
			inCircle[strings.ToLower(strings.TrimSpace(m.Username))] = true
		}
		for _, p := range c.Posts {
			if !inCircle[strings.ToLower(strings.TrimSpace(p.Author))] {
				return fmt.Errorf("circle %q: post %q author %q is not a member", c.Name, p.Title, p.Author)
			}
		}
	}

	for _, p := range fx.Posts {
		if !known(p.Author) {
			return fmt.Errorf("post %q: unknown author %q", p.Title, p.Author)
		}
	}
	return nil
}

// ApplyFixture writes fx. It is idempotent: users, circles and posts that
// already exist are left alone and member roles are brought in line.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (res Result, err error) {
	if err := fx.Validate(); err != nil {
		return res, err
	}
	ctx, done := withRun(ctx, "seed_fixture", map[string]interface{}{
		"users":   len(fx.Users),
		"circles": len(fx.Circles),
	})
	defer func() { done(res, err) }()

	users := make(map[string]*models.User, len(fx.Users))
	for _, u := range fx.Users {
		email := u.Email
		if email == "" {
			email = strings.TrimSpace(u.Username) + "@example.com"
		}
		user, created, err := s.ensureUser(ctx, service.RegisterInput{
			Username: u.Username,
			Email:    email,
			Password: u.Password,
			FullName: u.FullName,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.Users++
		}
		users[strings.ToLower(strings.TrimSpace(u.Username))] = user
	}
	lookup := func(name string) *models.User { return users[strings.ToLower(strings.TrimSpace(name))] }

	for _, c := range fx.Circles {
		circle, created, err := s.ensureCircle(ctx, lookup(c.Owner), c.Name, c.Description)
		if err != nil {
			return res, err
		}
		if created {
			res.Circles++
		}

		for _, m := range c.Members {
			role := m.Role
			if role == "" {
				role = models.RoleMember
			}
			added, err := s.ensureMember(ctx, circle, lookup(m.Username), role)
			if err != nil {
				return res, err
			}
			if added {
				res.Memberships++
			}
		}

		circleID := circle.ID
		for _, p := range c.Posts {
			created, err := s.ensurePost(ctx, lookup(p.Author), &circleID, p.Title, p.Content)
			if err != nil {
				return res, err
			}
			if created {
				res.Posts++
			}
		}
	}

	for _, p := range fx.Posts {
		created, err := s.ensurePost(ctx, lookup(p.Author), nil, p.Title, p.Content)
		if err != nil {
			return res, err
		}
		if created {
			res.Posts++
		}
	}
	return res, nil
}
