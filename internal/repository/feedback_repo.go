package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/models"
)

// FeedbackRepository persists student submissions.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.StudentFeedback) error
	ExistsForStudent(ctx context.Context, formID, studentID string) (bool, error)
	ListByForm(ctx context.Context, formID string) ([]models.StudentFeedback, error)
	CountByForm(ctx context.Context, formID string) (int64, error)
	CountByForms(ctx context.Context, formIDs []string) (map[string]int64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs a repository backed by GORM.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create inserts the submission. A second row for the same form and student
// fails with gorm.ErrDuplicatedKey when the connection translates errors.
func (r *feedbackRepository) Create(ctx context.Context, feedback *models.StudentFeedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepository) ExistsForStudent(ctx context.Context, formID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeedback{}).
		Where("form_id = ? AND student_id = ?", formID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *feedbackRepository) ListByForm(ctx context.Context, formID string) ([]models.StudentFeedback, error) {
	var items []models.StudentFeedback
	err := r.db.WithContext(ctx).
		Where("form_id = ?", formID).
		Order("submitted_at ASC").
		Find(&items).Error
	return items, err
}

func (r *feedbackRepository) CountByForm(ctx context.Context, formID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeedback{}).
		Where("form_id = ?", formID).
		Count(&count).Error
	return count, err
}

func (r *feedbackRepository) CountByForms(ctx context.Context, formIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(formIDs))
	if len(formIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		FormID string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeedback{}).
		Select("form_id, COUNT(*) AS total").
		Where("form_id IN ?", formIDs).
		Group("form_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.FormID] = row.Total
	}
	return counts, nil
}
