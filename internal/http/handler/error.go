package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"contractapi/internal/apperr"
	"contractapi/internal/http/middleware"
	"contractapi/internal/logger"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *fiber.Ctx, status int, code, message string, details any) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps the core error taxonomy onto HTTP. Validation
// messages are written by the core for end users and are passed through;
// everything unexpected is logged and reported as INTERNAL_ERROR.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		conflict *apperr.StateConflictError
		pipe     *apperr.PipelineError
	)
	switch {
	case errors.As(err, &conflict):
		return writeErrorDetails(c, fiber.StatusConflict, "STATE_CONFLICT", "contract is not in a valid state for this action", fiber.Map{
			"current":  conflict.Current,
			"required": conflict.Required,
		})
	case errors.Is(err, apperr.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, apperr.ErrVerificationFailed):
		return writeError(c, fiber.StatusForbidden, "VERIFICATION_FAILED", "verification failed")
	case errors.Is(err, apperr.ErrUnauthorized):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "not allowed")
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		logger.WithContext(c.UserContext(), zap.L()).Error("dependency_unavailable", zap.Error(err))
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
	case errors.As(err, &pipe):
		logger.WithContext(c.UserContext(), zap.L()).Error("pipeline_failed", zap.String("step", pipe.Step), zap.Error(err))
		return writeErrorDetails(c, fiber.StatusInternalServerError, "PIPELINE_FAILED", "document generation failed", fiber.Map{"step": pipe.Step})
	default:
		logger.WithContext(c.UserContext(), zap.L()).Error("request_failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
