package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeedbackForm is an administrator-defined survey for one course offering.
// Inactive forms are soft deleted: hidden from listings, but their feedback stays queryable.
type FeedbackForm struct {
	ID                 string                      `gorm:"primaryKey;size:36" json:"id"`
	Title              string                      `gorm:"size:255;not null" json:"title"`
	Year               string                      `gorm:"size:64;not null" json:"year"`
	Section            string                      `gorm:"size:64;not null" json:"section"`
	Department         string                      `gorm:"size:128;not null" json:"department"`
	Subjects           datatypes.JSONSlice[string] `gorm:"not null" json:"subjects"`
	EvaluationCriteria datatypes.JSONSlice[string] `gorm:"not null" json:"evaluation_criteria"`
	CreatedBy          string                      `gorm:"size:36;not null;index:idx_feedback_forms_created_by" json:"created_by"`
	CreatedAt          time.Time                   `json:"created_at"`
	IsActive           bool                        `gorm:"not null;index:idx_feedback_forms_is_active" json:"is_active"`
	ShareableLink      string                      `gorm:"size:512" json:"shareable_link"`
}

// BeforeCreate assigns an identifier when none was provided.
func (f *FeedbackForm) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
