package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/service"
	"github.com/noah-isme/feedback-api/internal/utils"
)

const msgFormNotFound = "Feedback form not found"

// FormHandler serves feedback form management endpoints.
type FormHandler struct {
	forms    service.FormService
	feedback service.FeedbackService
	logger   zerolog.Logger
}

// NewFormHandler constructs the handler.
func NewFormHandler(forms service.FormService, feedback service.FeedbackService, logger zerolog.Logger) *FormHandler {
	return &FormHandler{
		forms:    forms,
		feedback: feedback,
		logger:   logger.With().Str("component", "form_handler").Logger(),
	}
}

// Register wires form routes. Every route except the public read runs behind adminGuards.
func (h *FormHandler) Register(router fiber.Router, adminGuards ...fiber.Handler) {
	guarded := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, adminGuards...), handler)
	}

	router.Post("", guarded(h.create)...)
	router.Get("", guarded(h.list)...)
	router.Get("/:id", h.get)
	router.Put("/:id", guarded(h.update)...)
	router.Delete("/:id", guarded(h.deactivate)...)
	router.Get("/:id/feedback", guarded(h.summary)...)
}

func (h *FormHandler) create(c *fiber.Ctx) error {
	var payload dto.FormCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	form, err := h.forms.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err, "failed to create feedback form")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback form created", form)
}

func (h *FormHandler) list(c *fiber.Ctx) error {
	forms, err := h.forms.List(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err, "failed to list feedback forms")
	}

	return utils.SendSuccess(c, "feedback forms retrieved", forms)
}

func (h *FormHandler) get(c *fiber.Ctx) error {
	form, err := h.forms.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return h.handleError(c, err, "failed to load feedback form")
	}

	return utils.SendSuccess(c, "feedback form retrieved", form)
}

func (h *FormHandler) update(c *fiber.Ctx) error {
	var payload dto.FormUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	form, err := h.forms.Update(c.UserContext(), userIDFromContext(c), strings.TrimSpace(c.Params("id")), payload)
	if err != nil {
		return h.handleError(c, err, "failed to update feedback form")
	}

	return utils.SendSuccess(c, "feedback form updated", form)
}

func (h *FormHandler) deactivate(c *fiber.Ctx) error {
	if err := h.forms.Deactivate(c.UserContext(), userIDFromContext(c), strings.TrimSpace(c.Params("id"))); err != nil {
		return h.handleError(c, err, "failed to delete feedback form")
	}

	return utils.SendSuccess(c, "Feedback form deleted successfully", nil)
}

func (h *FormHandler) summary(c *fiber.Ctx) error {
	summary, err := h.feedback.Summary(c.UserContext(), userIDFromContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return h.handleError(c, err, "failed to summarise feedback")
	}

	return utils.SendSuccess(c, "feedback summary retrieved", summary)
}

func (h *FormHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrFormNotFound):
		return utils.SendError(c, fiber.StatusNotFound, msgFormNotFound)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
