package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/feedback-api/internal/models"
)

// FormCreateRequest describes the payload for creating a feedback form.
type FormCreateRequest struct {
	Title              string   `json:"title" validate:"required,max=255"`
	Year               string   `json:"year" validate:"required,max=64"`
	Section            string   `json:"section" validate:"required,max=64"`
	Department         string   `json:"department" validate:"required,max=128"`
	Subjects           []string `json:"subjects" validate:"required,min=1,dive,required"`
	EvaluationCriteria []string `json:"evaluation_criteria" validate:"required,min=1,dive,required"`
}

// FormUpdateRequest carries a partial update. Nil fields are left untouched;
// provided lists must still contain at least one entry.
type FormUpdateRequest struct {
	Title              *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Year               *string  `json:"year" validate:"omitempty,min=1,max=64"`
	Section            *string  `json:"section" validate:"omitempty,min=1,max=64"`
	Department         *string  `json:"department" validate:"omitempty,min=1,max=128"`
	Subjects           []string `json:"subjects" validate:"omitempty,min=1,dive,required"`
	EvaluationCriteria []string `json:"evaluation_criteria" validate:"omitempty,min=1,dive,required"`
	IsActive           *bool    `json:"is_active"`
}

// Empty reports whether the request carries no field to change.
func (r FormUpdateRequest) Empty() bool {
	return len(r.Changes()) == 0
}

// Changes maps the provided fields to their column names. Omitted fields are absent,
// so a partial update never writes columns the caller did not send.
func (r FormUpdateRequest) Changes() map[string]interface{} {
	changes := make(map[string]interface{})
	if r.Title != nil {
		changes["title"] = *r.Title
	}
	if r.Year != nil {
		changes["year"] = *r.Year
	}
	if r.Section != nil {
		changes["section"] = *r.Section
	}
	if r.Department != nil {
		changes["department"] = *r.Department
	}
	if r.Subjects != nil {
		changes["subjects"] = datatypes.NewJSONSlice(append([]string(nil), r.Subjects...))
	}
	if r.EvaluationCriteria != nil {
		changes["evaluation_criteria"] = datatypes.NewJSONSlice(append([]string(nil), r.EvaluationCriteria...))
	}
	if r.IsActive != nil {
		changes["is_active"] = *r.IsActive
	}
	return changes
}

// FormResponse is the serialized representation of a form.
type FormResponse struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Year               string    `json:"year"`
	Section            string    `json:"section"`
	Department         string    `json:"department"`
	Subjects           []string  `json:"subjects"`
	EvaluationCriteria []string  `json:"evaluation_criteria"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	IsActive           bool      `json:"is_active"`
	ShareableLink      string    `json:"shareable_link"`
	ResponseCount      int64     `json:"response_count"`
}

// NewFormResponse converts a model into a DTO.
func NewFormResponse(model models.FeedbackForm, responseCount int64) FormResponse {
	return FormResponse{
		ID:                 model.ID,
		Title:              model.Title,
		Year:               model.Year,
		Section:            model.Section,
		Department:         model.Department,
		Subjects:           nonNilStrings(model.Subjects),
		EvaluationCriteria: nonNilStrings(model.EvaluationCriteria),
		CreatedBy:          model.CreatedBy,
		CreatedAt:          model.CreatedAt,
		IsActive:           model.IsActive,
		ShareableLink:      model.ShareableLink,
		ResponseCount:      responseCount,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
