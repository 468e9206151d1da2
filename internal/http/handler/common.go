package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/service"
	"github.com/straye-as/salesdesk/internal/session"
	"github.com/straye-as/salesdesk/internal/table"
	"go.uber.org/zap"
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeRequest reads a JSON body into req and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fieldErrors := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fieldErrors[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}

	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fieldErrors,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "required_if":
		return fmt.Sprintf("%s is required here", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusBadGateway:
		return domain.ErrorTypeUpstream
	case http.StatusGatewayTimeout:
		return domain.ErrorTypeTimeout
	default:
		return domain.ErrorTypeInternal
	}
}

// respondError maps a layer error onto a problem response. Backend failures
// carry a transient notification for the UI; the table itself is unchanged.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var serverErr *backend.ServerError
	switch {
	case errors.Is(err, table.ErrUnknownEntity),
		errors.Is(err, table.ErrUnknownStage),
		errors.Is(err, table.ErrUnknownFilter),
		errors.Is(err, table.ErrInvalidPageSize),
		errors.Is(err, table.ErrUnknownColumn),
		errors.Is(err, table.ErrUnknownRow),
		errors.Is(err, table.ErrNoSelection),
		errors.Is(err, backend.ErrUnsupported),
		errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, table.ErrClosed):
		respondWithError(w, http.StatusNotFound, "Table session not found")
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Saved view not found")
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrTimeout):
		logger.Warn("backend timed out", zap.String("action", action), zap.Error(err))
		respondUpstream(w, http.StatusGatewayTimeout, "The CRM took too long to respond. Please try again.")
	case errors.As(err, &serverErr), errors.Is(err, backend.ErrTransport), errors.Is(err, backend.ErrDecode):
		logger.Warn("backend request failed",
			zap.String("action", action),
			zap.String("kind", backend.Kind(err)),
			zap.Error(err))
		respondUpstream(w, http.StatusBadGateway, fmt.Sprintf("Could not %s. Please try again.", action))
	default:
		logger.Error("request failed", zap.String("action", action), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action))
	}
}

func respondUpstream(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
		Notification: &domain.Notification{
			Level:   "error",
			Message: message,
		},
	})
}

// credentials forwards the caller's bearer token and the service API key
func credentials(user *auth.UserContext, apiKey string) backend.Credentials {
	return backend.Chain{backend.BearerToken(user.AccessToken), backend.APIKey(apiKey)}
}
