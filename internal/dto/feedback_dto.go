package dto

import (
	"time"

	"github.com/noah-isme/feedback-api/internal/models"
)

// FeedbackCreateRequest describes an unauthenticated student submission.
type FeedbackCreateRequest struct {
	FormID      string                    `json:"form_id" validate:"required"`
	StudentID   string                    `json:"student_id" validate:"required,max=128"`
	StudentName string                    `json:"student_name" validate:"max=255"`
	Ratings     map[string]map[string]int `json:"ratings" validate:"required"`
	Comments    string                    `json:"comments"`
}

// FeedbackResponse is the serialized representation of a submission.
type FeedbackResponse struct {
	ID          string                    `json:"id"`
	FormID      string                    `json:"form_id"`
	StudentID   string                    `json:"student_id"`
	StudentName string                    `json:"student_name,omitempty"`
	Ratings     map[string]map[string]int `json:"ratings"`
	Comments    string                    `json:"comments,omitempty"`
	SubmittedAt time.Time                 `json:"submitted_at"`
	Averages    map[string]float64        `json:"averages"`
}

// FeedbackSummaryResponse aggregates every submission of a form.
type FeedbackSummaryResponse struct {
	FormID                   string             `json:"form_id"`
	FormTitle                string             `json:"form_title"`
	Year                     string             `json:"year"`
	Section                  string             `json:"section"`
	Department               string             `json:"department"`
	TotalResponses           int                `json:"total_responses"`
	AverageRatingsPerSubject map[string]float64 `json:"average_ratings_per_subject"`
	Feedbacks                []FeedbackResponse `json:"feedbacks"`
}

// NewFeedbackResponse converts a model into a DTO.
func NewFeedbackResponse(model models.StudentFeedback) FeedbackResponse {
	ratings := map[string]map[string]int(model.Ratings.Data())
	if ratings == nil {
		ratings = map[string]map[string]int{}
	}
	averages := map[string]float64(model.Averages.Data())
	if averages == nil {
		averages = map[string]float64{}
	}

	return FeedbackResponse{
		ID:          model.ID,
		FormID:      model.FormID,
		StudentID:   model.StudentID,
		StudentName: model.StudentName,
		Ratings:     ratings,
		Comments:    model.Comments,
		SubmittedAt: model.SubmittedAt,
		Averages:    averages,
	}
}

// NewFeedbackResponseSlice converts a slice of models into DTOs.
func NewFeedbackResponseSlice(items []models.StudentFeedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewFeedbackResponse(item))
	}
	return responses
}
