package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/models"
	"github.com/noah-isme/feedback-api/internal/observability"
	"github.com/noah-isme/feedback-api/internal/repository"
)

// ErrDuplicateSubmission indicates the student already submitted feedback for the form.
var ErrDuplicateSubmission = errors.New("you have already submitted feedback for this form")

// FeedbackService accepts student submissions and aggregates them per form.
type FeedbackService interface {
	Submit(ctx context.Context, req dto.FeedbackCreateRequest) (dto.FeedbackResponse, error)
	Summary(ctx context.Context, ownerID, formID string) (dto.FeedbackSummaryResponse, error)
}

type feedbackService struct {
	forms     repository.FormRepository
	feedback  repository.FeedbackRepository
	validator *validator.Validate
	cache     *SummaryCache
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewFeedbackService constructs the submission and aggregation service.
func NewFeedbackService(forms repository.FormRepository, feedback repository.FeedbackRepository, validate *validator.Validate, cache *SummaryCache, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		forms:     forms,
		feedback:  feedback,
		validator: validate,
		cache:     cache,
		logger:    logger.With().Str("component", "feedback_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/feedback-api/internal/service/feedback"),
		now:       time.Now,
	}
}

func (s *feedbackService) Submit(ctx context.Context, req dto.FeedbackCreateRequest) (dto.FeedbackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "feedback.submit", trace.WithAttributes(attribute.String("form.id", req.FormID)))
	defer span.End()

	req.FormID = strings.TrimSpace(req.FormID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		observability.FeedbackSubmissions().WithLabelValues("invalid").Inc()
		return dto.FeedbackResponse{}, err
	}

	if _, err := s.forms.GetActive(ctx, req.FormID); err != nil {
		mapped := mapFormError(err)
		if errors.Is(mapped, ErrFormNotFound) {
			observability.FeedbackSubmissions().WithLabelValues("not_found").Inc()
		} else {
			span.RecordError(err)
			observability.FeedbackSubmissions().WithLabelValues("error").Inc()
		}
		return dto.FeedbackResponse{}, mapped
	}

	// Best-effort pre-check; the unique index on (form_id, student_id) is authoritative.
	exists, err := s.feedback.ExistsForStudent(ctx, req.FormID, req.StudentID)
	if err != nil {
		span.RecordError(err)
		observability.FeedbackSubmissions().WithLabelValues("error").Inc()
		return dto.FeedbackResponse{}, err
	}
	if exists {
		span.SetStatus(codes.Error, "duplicate submission")
		observability.FeedbackSubmissions().WithLabelValues("duplicate").Inc()
		return dto.FeedbackResponse{}, ErrDuplicateSubmission
	}

	ratings := models.Ratings(req.Ratings)
	if ratings == nil {
		ratings = models.Ratings{}
	}

	record := models.StudentFeedback{
		FormID:      req.FormID,
		StudentID:   req.StudentID,
		StudentName: sanitizeText(req.StudentName),
		Ratings:     datatypes.NewJSONType(ratings),
		Comments:    sanitizeText(req.Comments),
		SubmittedAt: s.now().UTC(),
		Averages:    datatypes.NewJSONType(SubjectAverages(ratings)),
	}

	if err := s.feedback.Create(ctx, &record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "duplicate submission")
			observability.FeedbackSubmissions().WithLabelValues("duplicate").Inc()
			return dto.FeedbackResponse{}, ErrDuplicateSubmission
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		observability.FeedbackSubmissions().WithLabelValues("error").Inc()
		return dto.FeedbackResponse{}, err
	}

	s.cache.Invalidate(ctx, record.FormID)
	observability.FeedbackSubmissions().WithLabelValues("accepted").Inc()
	s.logger.Info().Str("feedback_id", record.ID).Str("form_id", record.FormID).Msg("feedback submitted")
	span.SetStatus(codes.Ok, "stored")

	return dto.NewFeedbackResponse(record), nil
}

func (s *feedbackService) Summary(ctx context.Context, ownerID, formID string) (dto.FeedbackSummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "feedback.summary", trace.WithAttributes(attribute.String("form.id", formID)))
	defer span.End()

	form, err := s.forms.GetOwned(ctx, formID, ownerID)
	if err != nil {
		return dto.FeedbackSummaryResponse{}, mapFormError(err)
	}

	generation, cacheable := s.cache.Generation(ctx, form.ID)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, form.ID, generation); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	items, err := s.feedback.ListByForm(ctx, form.ID)
	if err != nil {
		span.RecordError(err)
		return dto.FeedbackSummaryResponse{}, err
	}

	summary := dto.FeedbackSummaryResponse{
		FormID:                   form.ID,
		FormTitle:                form.Title,
		Year:                     form.Year,
		Section:                  form.Section,
		Department:               form.Department,
		TotalResponses:           len(items),
		AverageRatingsPerSubject: SummarizeAverages(items),
		Feedbacks:                dto.NewFeedbackResponseSlice(items),
	}

	if cacheable {
		s.cache.Set(ctx, form.ID, generation, summary)
	}
	return summary, nil
}

// SubjectAverages computes the mean criterion rating per subject. Subjects with
// no criteria are omitted rather than reported as zero.
func SubjectAverages(ratings models.Ratings) models.SubjectAverages {
	averages := make(models.SubjectAverages, len(ratings))
	for subject, criteria := range ratings {
		if len(criteria) == 0 {
			continue
		}
		total := 0.0
		for _, rating := range criteria {
			total += float64(rating)
		}
		averages[subject] = total / float64(len(criteria))
	}
	return averages
}

// SummarizeAverages returns, per subject, the unweighted mean of each
// submission's stored subject average (a mean of means).
func SummarizeAverages(items []models.StudentFeedback) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, item := range items {
		for subject, average := range item.Averages.Data() {
			sums[subject] += average
			counts[subject]++
		}
	}

	subjects := make([]string, 0, len(sums))
	for subject := range sums {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	result := make(map[string]float64, len(subjects))
	for _, subject := range subjects {
		result[subject] = sums[subject] / float64(counts[subject])
	}
	return result
}
