package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/models"
)

type indexSpec struct {
	model interface{}
	name  string
}

// requiredIndexes lists the lookup and uniqueness indexes the API relies on.
var requiredIndexes = []indexSpec{
	{model: &models.User{}, name: "idx_users_username"},
	{model: &models.User{}, name: "idx_users_email"},
	{model: &models.FeedbackForm{}, name: "idx_feedback_forms_created_by"},
	{model: &models.FeedbackForm{}, name: "idx_feedback_forms_is_active"},
	{model: &models.StudentFeedback{}, name: "idx_student_feedbacks_form_id"},
	{model: &models.StudentFeedback{}, name: "idx_student_feedbacks_student_id"},
	{model: &models.StudentFeedback{}, name: models.FeedbackFormStudentIndex},
}

// Migrate creates the users, feedback_forms and student_feedbacks tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.FeedbackForm{}, &models.StudentFeedback{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// EnsureIndexes creates any missing index. Failures are logged and never abort startup.
func EnsureIndexes(db *gorm.DB, logger zerolog.Logger) int {
	migrator := db.Migrator()
	created := 0
	for _, idx := range requiredIndexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			logger.Warn().Err(err).Str("index", idx.name).Msg("failed to create index")
			continue
		}
		created++
	}

	logger.Info().Int("created", created).Msg("database indexes ensured")
	return created
}
