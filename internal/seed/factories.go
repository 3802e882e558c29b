package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"circles/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Options sizes a generated dataset.
type Options struct {
	Users            int
	Circles          int
	MembersPerCircle int
	PostsPerCircle   int
	PublicPosts      int
	// RandSeed makes the dataset reproducible. Zero picks a random seed.
	RandSeed int64
	Clean    bool
}

// DefaultOptions is a small but lively dataset.
var DefaultOptions = Options{
	Users:            25,
	Circles:          6,
	MembersPerCircle: 8,
	PostsPerCircle:   10,
	PublicPosts:      10,
}

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Factory builds plausible fake values with gofakeit.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. The same seed yields the same values.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// User returns registration details for the n-th generated user. The index
// suffix keeps usernames unique within a run.
func (f *Factory) User(n int) FixtureUser {
	first, last := f.faker.FirstName(), f.faker.LastName()
	base := nonUsernameChars.ReplaceAllString(strings.ToLower(first+"_"+last), "")
	base = strings.Trim(base, "_")
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "user"
	}
	username := fmt.Sprintf("%s%d", base, n)
	return FixtureUser{
		Username: username,
		Email:    username + "@example.com",
		FullName: first + " " + last,
	}
}

// CircleName returns a circle name; n keeps it unique.
func (f *Factory) CircleName(n int) string {
	adj := f.faker.Adjective()
	if adj != "" {
		adj = strings.ToUpper(adj[:1]) + adj[1:]
	}
	name := fmt.Sprintf("%s %s %d", adj, f.faker.Hobby(), n)
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	return strings.TrimSpace(name)
}

func (f *Factory) CircleDescription() string {
	d := f.faker.Sentence(10)
	if r := []rune(d); len(r) > 255 {
		d = string(r[:255])
	}
	return d
}

// Post returns a title of at most 100 characters and a short body.
func (f *Factory) Post() (title, content string) {
	title = strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title, f.faker.Paragraph(1, 3, 12, "\n\n")
}

// Pick returns up to n distinct indexes from [0, size), skipping skip.
func (f *Factory) Pick(size, n, skip int) []int {
	idx := make([]int, 0, size)
	for i := 0; i < size; i++ {
		if i != skip {
			idx = append(idx, i)
		}
	}
	f.faker.ShuffleInts(idx)
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

// Role returns moderator for roughly one member in five.
func (f *Factory) Role() models.Role {
	if f.faker.Number(1, 5) == 1 {
		return models.RoleModerator
	}
	return models.RoleMember
}

// Generate builds a Fixture sized by opts.
func (f *Factory) Generate(opts Options) *Fixture {
	fx := &Fixture{}
	for i := 0; i < opts.Users; i++ {
		fx.Users = append(fx.Users, f.User(i+1))
	}
	if len(fx.Users) == 0 {
		return fx
	}

	for i := 0; i < opts.Circles; i++ {
		ownerIdx := f.faker.Number(0, len(fx.Users)-1)
		c := FixtureCircle{
			Name:        f.CircleName(i + 1),
			Description: f.CircleDescription(),
			Owner:       fx.Users[ownerIdx].Username,
		}
		authors := []string{c.Owner}
		for _, m := range f.Pick(len(fx.Users), opts.MembersPerCircle, ownerIdx) {
			c.Members = append(c.Members, FixtureMember{Username: fx.Users[m].Username, Role: f.Role()})
			authors = append(authors, fx.Users[m].Username)
		}
		for p := 0; p < opts.PostsPerCircle; p++ {
			title, content := f.Post()
			c.Posts = append(c.Posts, FixturePost{
				Author:  authors[f.faker.Number(0, len(authors)-1)],
				Title:   title,
				Content: content,
			})
		}
		fx.Circles = append(fx.Circles, c)
	}

	for p := 0; p < opts.PublicPosts; p++ {
		title, content := f.Post()
		fx.Posts = append(fx.Posts, FixturePost{
			Author:  fx.Users[f.faker.Number(0, len(fx.Users)-1)].Username,
			Title:   title,
			Content: content,
		})
	}
	return fx
}

// Seed generates a fake dataset and applies it. With opts.Clean every
// existing row is removed first.
func (s *Seeder) Seed(ctx context.Context, opts Options) (Result, error) {
	if opts.Clean {
		if err := s.Clear(ctx); err != nil {
			return Result{}, fmt.Errorf("clear: %w", err)
		}
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = gofakeit.Int64()
	}
	return s.ApplyFixture(ctx, NewFactory(seed).Generate(opts))
}
