package repository

import (
	"context"
	"errors"
	"strings"

	"circles/internal/database"
	"circles/internal/models"
	"circles/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByLogin matches identifier against username or email, case-insensitively.
	GetByLogin(ctx context.Context, identifier string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id uint) error
	ListActive(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error)
	// SearchCandidates returns active users whose username contains query,
	// excluding excludeID and current members of circleID.
	SearchCandidates(ctx context.Context, circleID, excludeID uint, query string, limit int) ([]models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "lower(username) = lower(?)", strings.TrimSpace(username))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "lower(email) = lower(?)", strings.TrimSpace(email))
}

func (r *userRepository) GetByLogin(ctx context.Context, identifier string) (*models.User, error) {
	id := strings.TrimSpace(identifier)
	return r.findOne(ctx, "lower(username) = lower(?) OR lower(email) = lower(?)", id, id)
}

func (r *userRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return userConflict(err)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

func userConflict(err error) error {
	name := database.ConstraintName(err)
	if name == "" {
		name = err.Error()
	}
	if strings.Contains(strings.ToLower(name), "email") {
		return models.NewConflictError("Email already registered")
	}
	return models.NewConflictError("Username already taken")
}

func (r *userRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": id, "is_active": false})
	return nil
}

func (r *userRepository) ListActive(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset, 100, 100)
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND id <> ?", true, excludeID).
		Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) SearchCandidates(ctx context.Context, circleID, excludeID uint, query string, limit int) ([]models.User, error) {
	limit, _ = clampPage(limit, 0, 20, 20)
	members := r.db.Model(&models.CircleMembership{}).Select("user_id").Where("circle_id = ?", circleID)

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND id <> ?", true, excludeID).
		Where(`lower(username) LIKE ? ESCAPE '\'`, likePattern(query)).
		Where("id NOT IN (?)", members).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
