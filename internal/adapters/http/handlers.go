package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the validator installed on the echo instance.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Request/Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// bindAndValidate decodes the request body into req and validates it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, entities.ErrNotFound)
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var ce *ports.CompletionError
	switch {
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrValidation), errors.Is(err, entities.ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrEmailTaken), errors.Is(err, entities.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, entities.ErrInvalidCredentials), errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders echo and domain errors as ErrorResponse bodies.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = ErrorResponse{Error: fmt.Sprint(he.Message)}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			msg = ErrorResponse{Error: "validation failed", Details: ve.Error()}
		default:
			code = StatusFor(err)
			if code == http.StatusInternalServerError {
				msg = ErrorResponse{Error: http.StatusText(code)}
			} else {
				msg = ErrorResponse{Error: err.Error()}
			}
		}

		if code >= http.StatusInternalServerError {
			log.Errorw("Request failed", "error", err, "path", c.Request().URL.Path, "status", code)
		}

		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				log.Errorw("Error sending response", "error", err)
			}
		}
	}
}
