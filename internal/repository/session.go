package repository

import (
	"context"
	"errors"
	"time"

	"circles/internal/cache"
	"circles/internal/models"
	"circles/internal/observability"

	"gorm.io/gorm"
)

// SessionRepository persists login sessions by token digest.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	// GetByTokenHash returns (nil, nil) when no session has the digest.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.UserSession, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
	// DeleteExpiredBatch removes at most limit sessions that expired before now.
	DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error)
}

type sessionRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *observability.RepoLogger
}

// cachedSession is the Redis representation of a session lookup.
type cachedSession struct {
	UserID    uint      `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

var errSessionMiss = errors.New("session not found")

// NewSessionRepository returns a SessionRepository with a Redis read-through cache.
func NewSessionRepository(db *gorm.DB, c *cache.Cache) SessionRepository {
	return &sessionRepository{db: db, cache: c, log: observability.NewRepoLogger("user_sessions")}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	var entry cachedSession
	ttl := func() time.Duration { return cache.SessionTTL(time.Until(entry.ExpiresAt)) }

	err := r.cache.Aside(ctx, cache.SessionKey(tokenHash), &entry, ttl, func() error {
		var s models.UserSession
		if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errSessionMiss
			}
			return models.NewInternalError(err)
		}
		entry = cachedSession{UserID: s.UserID, ExpiresAt: s.ExpiresAt}
		return nil
	})
	if errors.Is(err, errSessionMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// A delete may have landed between the row read and the cache write.
	if r.cache.Marked(ctx, cache.SessionRevokedKey(tokenHash)) {
		r.cache.Invalidate(ctx, cache.SessionKey(tokenHash))
		return nil, nil
	}

	return &models.UserSession{
		TokenHash: tokenHash,
		UserID:    entry.UserID,
		ExpiresAt: entry.ExpiresAt,
	}, nil
}

func (r *sessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&models.UserSession{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.evict(ctx, tokenHash)
	return nil
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	var hashes []string
	if err := r.db.WithContext(ctx).Model(&models.UserSession{}).Where("user_id = ?", userID).Pluck("token_hash", &hashes).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserSession{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}

	r.evict(ctx, hashes...)
	r.log.LogDelete(ctx, map[string]interface{}{"user_id": userID, "sessions": res.RowsAffected})
	return res.RowsAffected, nil
}

// evict marks the digests revoked before dropping their cache entries.
func (r *sessionRepository) evict(ctx context.Context, tokenHashes ...string) {
	revoked := make([]string, 0, len(tokenHashes))
	keys := make([]string, 0, len(tokenHashes))
	for _, h := range tokenHashes {
		revoked = append(revoked, cache.SessionRevokedKey(h))
		keys = append(keys, cache.SessionKey(h))
	}
	r.cache.Mark(ctx, cache.SessionRevokedTTL, revoked...)
	r.cache.Invalidate(ctx, keys...)
}

func (r *sessionRepository) DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"DELETE FROM user_sessions WHERE id IN (SELECT id FROM user_sessions WHERE expires_at < ? ORDER BY id LIMIT ?)",
		now, limit,
	)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
