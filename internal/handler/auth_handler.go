package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/service"
	"github.com/noah-isme/feedback-api/internal/utils"
)

// AuthHandler serves registration, login and profile endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires the public auth routes. The profile route runs behind guards.
func (h *AuthHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Get("/me", append(append([]fiber.Handler{}, guards...), h.me)...)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	token, err := h.service.Register(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrDuplicateRegistration):
			return utils.SendError(c, fiber.StatusBadRequest, "Username or email already registered")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to register user")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to register user")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user registered", token)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	token, err := h.service.Login(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrInvalidCredentials):
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return utils.SendError(c, fiber.StatusUnauthorized, "Incorrect username or password")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to log in")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to log in")
		}
	}

	return utils.SendSuccess(c, "login successful", token)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	profile, err := h.service.Me(c.UserContext(), userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "User not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load profile")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load profile")
	}

	return utils.SendSuccess(c, "profile retrieved", profile)
}
