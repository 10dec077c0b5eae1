package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeedbackFormStudentIndex is the unique index guarding one submission per student per form.
const FeedbackFormStudentIndex = "idx_feedback_form_student"

// Ratings maps subject -> criterion -> integer score.
type Ratings map[string]map[string]int

// SubjectAverages maps subject -> mean score.
type SubjectAverages map[string]float64

// StudentFeedback is a single immutable submission. StudentID is supplied by the
// student and does not reference a User.
type StudentFeedback struct {
	ID          string                              `gorm:"primaryKey;size:36" json:"id"`
	FormID      string                              `gorm:"size:36;not null;index:idx_student_feedbacks_form_id;uniqueIndex:idx_feedback_form_student,priority:1" json:"form_id"`
	StudentID   string                              `gorm:"size:128;not null;index:idx_student_feedbacks_student_id;uniqueIndex:idx_feedback_form_student,priority:2" json:"student_id"`
	StudentName string                              `gorm:"size:255" json:"student_name"`
	Ratings     datatypes.JSONType[Ratings]         `json:"ratings"`
	Comments    string                              `gorm:"type:text" json:"comments"`
	SubmittedAt time.Time                           `gorm:"not null" json:"submitted_at"`
	Averages    datatypes.JSONType[SubjectAverages] `json:"averages"`
}

// BeforeCreate assigns an identifier and submission time when missing.
func (f *StudentFeedback) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.SubmittedAt.IsZero() {
		f.SubmittedAt = time.Now().UTC()
	}
	return nil
}
