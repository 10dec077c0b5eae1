package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/service"
	"github.com/noah-isme/feedback-api/internal/utils"
)

// FeedbackHandler accepts anonymous student submissions.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register wires feedback routes.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
}

func (h *FeedbackHandler) submit(c *fiber.Ctx) error {
	var payload dto.FeedbackCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	feedback, err := h.service.Submit(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrFormNotFound):
			return utils.SendError(c, fiber.StatusNotFound, msgFormNotFound)
		case errors.Is(err, service.ErrDuplicateSubmission):
			return utils.SendError(c, fiber.StatusConflict, "You have already submitted feedback for this form")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to store feedback")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit feedback")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback submitted", feedback)
}
