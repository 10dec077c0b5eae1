package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/feedback-api/internal/middleware"
)

func userIDFromContext(c *fiber.Ctx) string {
	return strings.TrimSpace(middleware.UserID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.WithCorrelation(base, c)
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid payload"
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		rule := fieldErr.Tag()
		if fieldErr.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fieldErr.Param())
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fieldErr.Namespace(), rule))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
