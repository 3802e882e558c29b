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

// MsgCircleNameTaken is returned when a circle name collides case-insensitively.
const MsgCircleNameTaken = "A circle with this name already exists"

// CircleRepository defines persistence operations for circles.
type CircleRepository interface {
	Create(ctx context.Context, circle *models.Circle) error
	GetByID(ctx context.Context, id uint) (*models.Circle, error)
	// GetByName returns (nil, nil) when no circle has the name, ignoring case.
	GetByName(ctx context.Context, name string) (*models.Circle, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Circle, error)
	Update(ctx context.Context, circle *models.Circle) error
	Delete(ctx context.Context, id uint) error
}

type circleRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCircleRepository returns a new CircleRepository implementation.
func NewCircleRepository(db *gorm.DB) CircleRepository {
	return &circleRepository{db: db, log: observability.NewRepoLogger("circles")}
}

func (r *circleRepository) Create(ctx context.Context, circle *models.Circle) error {
	if err := r.db.WithContext(ctx).Create(circle).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError(MsgCircleNameTaken)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"circle_id": circle.ID, "owner_id": circle.OwnerID})
	return nil
}

func (r *circleRepository) GetByID(ctx context.Context, id uint) (*models.Circle, error) {
	var circle models.Circle
	if err := r.db.WithContext(ctx).Preload("Owner").First(&circle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("Circle not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &circle, nil
}

func (r *circleRepository) GetByName(ctx context.Context, name string) (*models.Circle, error) {
	var circle models.Circle
	// lower() on both sides so the lookup folds case like idx_circles_name_lower.
	err := r.db.WithContext(ctx).Where("lower(name) = lower(?)", strings.TrimSpace(name)).Take(&circle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &circle, nil
}

func (r *circleRepository) ListForUser(ctx context.Context, userID uint) ([]models.Circle, error) {
	var circles []models.Circle
	if err := r.db.WithContext(ctx).
		Preload("Owner").
		Joins("JOIN circle_members ON circle_members.circle_id = circles.id AND circle_members.user_id = ?", userID).
		Order("circles.created_at DESC, circles.id DESC").
		Find(&circles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return circles, nil
}

func (r *circleRepository) Update(ctx context.Context, circle *models.Circle) error {
	err := r.db.WithContext(ctx).Model(circle).
		Updates(map[string]interface{}{
			"name":        circle.Name,
			"description": circle.Description,
		}).Error
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError(MsgCircleNameTaken)
		}
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"circle_id": circle.ID})
	return nil
}

func (r *circleRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Circle{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"circle_id": id})
	return nil
}
