package repository

import (
	"context"
	"errors"

	"circles/internal/database"
	"circles/internal/models"
	"circles/internal/observability"

	"gorm.io/gorm"
)

// MsgAlreadyMember is returned when adding an existing member.
const MsgAlreadyMember = "User is already a member of this circle"

// MembershipRepository defines persistence operations for circle memberships.
type MembershipRepository interface {
	// Get returns (nil, nil) when userID is not a member of circleID.
	Get(ctx context.Context, circleID, userID uint) (*models.CircleMembership, error)
	Add(ctx context.Context, membership *models.CircleMembership) error
	Remove(ctx context.Context, circleID, userID uint) error
	UpdateRole(ctx context.Context, circleID, userID uint, role models.Role) error
	// ListByCircles returns memberships with users for every circle in circleIDs,
	// owners first, then by join time.
	ListByCircles(ctx context.Context, circleIDs ...uint) ([]models.CircleMembership, error)
	DeleteByCircle(ctx context.Context, circleID uint) error
}

type membershipRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMembershipRepository returns a new MembershipRepository implementation.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db, log: observability.NewRepoLogger("circle_members")}
}

func (r *membershipRepository) Get(ctx context.Context, circleID, userID uint) (*models.CircleMembership, error) {
	var m models.CircleMembership
	err := r.db.WithContext(ctx).Preload("User").
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *membershipRepository) Add(ctx context.Context, membership *models.CircleMembership) error {
	if err := r.db.WithContext(ctx).Omit("Circle", "User").Create(membership).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError(MsgAlreadyMember)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"circle_id": membership.CircleID,
		"user_id":   membership.UserID,
		"role":      membership.Role,
	})
	return nil
}

func (r *membershipRepository) Remove(ctx context.Context, circleID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Delete(&models.CircleMembership{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Member not found in this circle")
	}
	r.log.LogDelete(ctx, map[string]interface{}{"circle_id": circleID, "user_id": userID})
	return nil
}

func (r *membershipRepository) UpdateRole(ctx context.Context, circleID, userID uint, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.CircleMembership{}).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Update("role", role)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return models.NewConflictError("Circle already has an owner")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Member not found in this circle")
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"circle_id": circleID, "user_id": userID, "role": role})
	return nil
}

func (r *membershipRepository) ListByCircles(ctx context.Context, circleIDs ...uint) ([]models.CircleMembership, error) {
	if len(circleIDs) == 0 {
		return nil, nil
	}
	var members []models.CircleMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("circle_id IN ?", circleIDs).
		Order("circle_id ASC").
		Order("CASE role WHEN 'owner' THEN 0 WHEN 'moderator' THEN 1 ELSE 2 END").
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *membershipRepository) DeleteByCircle(ctx context.Context, circleID uint) error {
	if err := r.db.WithContext(ctx).Where("circle_id = ?", circleID).Delete(&models.CircleMembership{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
