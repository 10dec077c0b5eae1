package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/models"
	"github.com/noah-isme/feedback-api/internal/repository"
)

// ErrFormNotFound covers missing, inactive and not-owned forms alike.
var ErrFormNotFound = errors.New("feedback form not found")

// LinkBuilder derives the public shareable link for a form id.
type LinkBuilder func(formID string) string

// NewShareLinkBuilder embeds the form id into template, e.g. "%s/#/student/%s".
func NewShareLinkBuilder(baseURL, template string) LinkBuilder {
	base := strings.TrimRight(baseURL, "/")
	return func(formID string) string {
		return fmt.Sprintf(template, base, formID)
	}
}

// FormService exposes feedback form management.
type FormService interface {
	Create(ctx context.Context, ownerID string, req dto.FormCreateRequest) (dto.FormResponse, error)
	List(ctx context.Context, ownerID string) ([]dto.FormResponse, error)
	Get(ctx context.Context, formID string) (dto.FormResponse, error)
	Update(ctx context.Context, ownerID, formID string, req dto.FormUpdateRequest) (dto.FormResponse, error)
	Deactivate(ctx context.Context, ownerID, formID string) error
}

type formService struct {
	forms     repository.FormRepository
	feedback  repository.FeedbackRepository
	validator *validator.Validate
	cache     *SummaryCache
	links     LinkBuilder
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewFormService constructs the form management service.
func NewFormService(forms repository.FormRepository, feedback repository.FeedbackRepository, validate *validator.Validate, cache *SummaryCache, links LinkBuilder, logger zerolog.Logger) FormService {
	return &formService{
		forms:     forms,
		feedback:  feedback,
		validator: validate,
		cache:     cache,
		links:     links,
		logger:    logger.With().Str("component", "form_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/feedback-api/internal/service/form"),
		now:       time.Now,
	}
}

func (s *formService) Create(ctx context.Context, ownerID string, req dto.FormCreateRequest) (dto.FormResponse, error) {
	ctx, span := s.tracer.Start(ctx, "forms.create", trace.WithAttributes(attribute.String("form.owner_id", ownerID)))
	defer span.End()

	req.Title = strings.TrimSpace(req.Title)
	req.Year = strings.TrimSpace(req.Year)
	req.Section = strings.TrimSpace(req.Section)
	req.Department = strings.TrimSpace(req.Department)
	req.Subjects = trimAll(req.Subjects)
	req.EvaluationCriteria = trimAll(req.EvaluationCriteria)
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.FormResponse{}, err
	}

	form := models.FeedbackForm{
		ID:                 uuid.NewString(),
		Title:              req.Title,
		Year:               req.Year,
		Section:            req.Section,
		Department:         req.Department,
		Subjects:           datatypes.NewJSONSlice(req.Subjects),
		EvaluationCriteria: datatypes.NewJSONSlice(req.EvaluationCriteria),
		CreatedBy:          ownerID,
		CreatedAt:          s.now().UTC(),
		IsActive:           true,
	}
	form.ShareableLink = s.links(form.ID)

	if err := s.forms.Create(ctx, &form); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.FormResponse{}, err
	}

	span.SetAttributes(attribute.String("form.id", form.ID))
	s.logger.Info().Str("form_id", form.ID).Str("owner_id", ownerID).Msg("feedback form created")

	return dto.NewFormResponse(form, 0), nil
}

func (s *formService) List(ctx context.Context, ownerID string) ([]dto.FormResponse, error) {
	ctx, span := s.tracer.Start(ctx, "forms.list")
	defer span.End()

	forms, err := s.forms.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]string, 0, len(forms))
	for _, form := range forms {
		ids = append(ids, form.ID)
	}

	counts, err := s.feedback.CountByForms(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	responses := make([]dto.FormResponse, 0, len(forms))
	for _, form := range forms {
		responses = append(responses, dto.NewFormResponse(form, counts[form.ID]))
	}

	return responses, nil
}

func (s *formService) Get(ctx context.Context, formID string) (dto.FormResponse, error) {
	ctx, span := s.tracer.Start(ctx, "forms.get", trace.WithAttributes(attribute.String("form.id", formID)))
	defer span.End()

	form, err := s.forms.GetActive(ctx, formID)
	if err != nil {
		return dto.FormResponse{}, mapFormError(err)
	}

	return s.withCount(ctx, form)
}

func (s *formService) Update(ctx context.Context, ownerID, formID string, req dto.FormUpdateRequest) (dto.FormResponse, error) {
	ctx, span := s.tracer.Start(ctx, "forms.update", trace.WithAttributes(attribute.String("form.id", formID)))
	defer span.End()

	req.Title = trimPtr(req.Title)
	req.Year = trimPtr(req.Year)
	req.Section = trimPtr(req.Section)
	req.Department = trimPtr(req.Department)
	req.Subjects = trimAll(req.Subjects)
	req.EvaluationCriteria = trimAll(req.EvaluationCriteria)
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.FormResponse{}, err
	}

	if changes := req.Changes(); len(changes) > 0 {
		if err := s.forms.Update(ctx, formID, ownerID, changes); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.FormResponse{}, ErrFormNotFound
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
			return dto.FormResponse{}, err
		}
		s.cache.Invalidate(ctx, formID)
		s.logger.Info().Str("form_id", formID).Msg("feedback form updated")
	}

	form, err := s.forms.GetOwned(ctx, formID, ownerID)
	if err != nil {
		return dto.FormResponse{}, mapFormError(err)
	}
	return s.withCount(ctx, form)
}

func (s *formService) Deactivate(ctx context.Context, ownerID, formID string) error {
	ctx, span := s.tracer.Start(ctx, "forms.deactivate", trace.WithAttributes(attribute.String("form.id", formID)))
	defer span.End()

	if _, err := s.forms.GetOwned(ctx, formID, ownerID); err != nil {
		return mapFormError(err)
	}

	if err := s.forms.Deactivate(ctx, formID, ownerID); err != nil {
		span.RecordError(err)
		return mapFormError(err)
	}

	s.cache.Invalidate(ctx, formID)
	s.logger.Info().Str("form_id", formID).Msg("feedback form deactivated")
	return nil
}

func (s *formService) withCount(ctx context.Context, form models.FeedbackForm) (dto.FormResponse, error) {
	count, err := s.feedback.CountByForm(ctx, form.ID)
	if err != nil {
		return dto.FormResponse{}, err
	}
	return dto.NewFormResponse(form, count), nil
}

func mapFormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFormNotFound
	}
	return err
}
