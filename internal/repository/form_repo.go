package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/models"
)

// FormRepository persists feedback forms.
type FormRepository interface {
	Create(ctx context.Context, form *models.FeedbackForm) error
	GetActive(ctx context.Context, id string) (models.FeedbackForm, error)
	GetOwned(ctx context.Context, id, ownerID string) (models.FeedbackForm, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]models.FeedbackForm, error)
	Update(ctx context.Context, id, ownerID string, changes map[string]interface{}) error
	Deactivate(ctx context.Context, id, ownerID string) error
}

type formRepository struct {
	db *gorm.DB
}

// NewFormRepository constructs a repository backed by GORM.
func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

func (r *formRepository) Create(ctx context.Context, form *models.FeedbackForm) error {
	return r.db.WithContext(ctx).Create(form).Error
}

// GetActive loads a form regardless of owner, only while it is active.
func (r *formRepository) GetActive(ctx context.Context, id string) (models.FeedbackForm, error) {
	var form models.FeedbackForm
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&form).Error
	return form, err
}

// GetOwned loads a form owned by ownerID, active or not.
func (r *formRepository) GetOwned(ctx context.Context, id, ownerID string) (models.FeedbackForm, error) {
	var form models.FeedbackForm
	err := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, ownerID).
		First(&form).Error
	return form, err
}

func (r *formRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]models.FeedbackForm, error) {
	var forms []models.FeedbackForm
	err := r.db.WithContext(ctx).
		Where("created_by = ? AND is_active = ?", ownerID, true).
		Order("created_at DESC").
		Find(&forms).Error
	return forms, err
}

// Update writes only the given columns of a form owned by ownerID.
func (r *formRepository) Update(ctx context.Context, id, ownerID string, changes map[string]interface{}) error {
	if len(changes) == 0 {
		return nil
	}
	return r.updateOwned(ctx, id, ownerID, changes)
}

func (r *formRepository) Deactivate(ctx context.Context, id, ownerID string) error {
	return r.updateOwned(ctx, id, ownerID, map[string]interface{}{"is_active": false})
}

func (r *formRepository) updateOwned(ctx context.Context, id, ownerID string, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.FeedbackForm{}).
		Where("id = ? AND created_by = ?", id, ownerID).
		Updates(changes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
