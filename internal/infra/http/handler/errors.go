package handler

import (
	"errors"
	"net/http"

	"github.com/openctemio/toolstudio/internal/infra/http/middleware"
	"github.com/openctemio/toolstudio/pkg/apierror"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// errorResponder translates validation and domain errors into API errors.
// Every handler embeds one.
type errorResponder struct {
	logger *logger.Logger
}

func (e errorResponder) handleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			details[i] = apierror.ValidationError{Field: ve.Field, Message: ve.Message}
		}
		writeError(w, r, apierror.ValidationFailed("Validation failed", details))
		return
	}
	e.handleServiceError(w, r, err, "")
}

func (e errorResponder) handleServiceError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var de *shared.DomainError
	hasDomain := errors.As(err, &de)
	message := func(fallback string) string {
		if hasDomain && de.Message != "" {
			return de.Message
		}
		return fallback
	}

	switch {
	case errors.Is(err, shared.ErrValidation):
		var details any
		if hasDomain && de.Field != "" {
			details = []apierror.ValidationError{{Field: de.Field, Message: de.Message}}
		}
		writeError(w, r, apierror.ValidationFailed(message("Validation failed"), details))
	case errors.Is(err, shared.ErrNotFound):
		if hasDomain && de.Message != "" {
			writeError(w, r, apierror.New(http.StatusNotFound, apierror.CodeNotFound, de.Message))
			return
		}
		writeError(w, r, apierror.NotFound(resource))
	case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrConflict):
		writeError(w, r, apierror.Conflict(message(resource+" already exists")))
	case errors.Is(err, shared.ErrInUse):
		var code apierror.Code
		if hasDomain {
			code = apierror.Code(de.Code)
		}
		writeError(w, r, apierror.InUse(code, message(resource+" is in use")))
	case errors.Is(err, shared.ErrInvalidTransition):
		writeError(w, r, apierror.InvalidTransition(message("Invalid status transition")))
	default:
		e.logger.WithError(err).Error("unhandled service error",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, apierror.InternalError(err))
	}
}
