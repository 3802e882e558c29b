// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"circles/internal/cache"
	"circles/internal/models"

	"gorm.io/gorm"
)

// Repositories bundles the per-entity repositories bound to one connection or
// transaction.
type Repositories struct {
	Users       UserRepository
	Sessions    SessionRepository
	Circles     CircleRepository
	Memberships MembershipRepository
	Posts       PostRepository
}

// New binds every repository to db. c may wrap a nil Redis client.
func New(db *gorm.DB, c *cache.Cache) Repositories {
	return Repositories{
		Users:       NewUserRepository(db),
		Sessions:    NewSessionRepository(db, c),
		Circles:     NewCircleRepository(db),
		Memberships: NewMembershipRepository(db),
		Posts:       NewPostRepository(db),
	}
}

// Transactor runs fn with repositories bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Repositories) error) error
}

type gormTransactor struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewTransactor returns a Transactor backed by db.
func NewTransactor(db *gorm.DB, c *cache.Cache) Transactor {
	return &gormTransactor{db: db, cache: c}
}

func (t *gormTransactor) InTx(ctx context.Context, fn func(tx Repositories) error) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx, t.cache))
	})
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE wildcards.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(query)) + "%"
}

func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
