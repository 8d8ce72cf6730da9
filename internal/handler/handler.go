package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"order-service/internal/correlation"
	"order-service/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger zerolog.Logger) {
	id := correlation.FromContext(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.
		Str("code", code).
		Str("error", message).
		Int("status", status).
		Str("correlation_id", id).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message, CorrelationID: id})
}

// statusByCode maps domain error codes onto HTTP statuses.
var statusByCode = map[string]int{
	model.ErrCodeCartEmpty:               http.StatusBadRequest,
	model.ErrCodeInvalidCart:             http.StatusBadRequest,
	model.ErrCodeInvalidStatus:           http.StatusBadRequest,
	model.ErrCodeInsufficientStock:       http.StatusConflict,
	model.ErrCodeCheckoutInProgress:      http.StatusConflict,
	model.ErrCodeInvalidStatusTransition: http.StatusConflict,
	model.ErrCodeOrderNotFound:           http.StatusNotFound,
	model.ErrCodeServiceUnavailable:      http.StatusServiceUnavailable,
	model.ErrCodeReservationTimeout:      http.StatusGatewayTimeout,
}

// writeServiceError answers with the status of a domain error, or 500 for
// anything else. Internal error text is never returned to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := statusByCode[domainErr.Code]; ok {
			writeError(w, r, status, domainErr.Code, domainErr.Message, logger)
			return
		}
	}

	logger.Error().Err(err).Str("correlation_id", correlation.FromContext(r.Context())).Msg(fallback)
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, fallback, logger)
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads and validates a JSON body into dst. On failure it writes
// the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any, logger zerolog.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}

	if err := v.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed, validationMessage(err), logger)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
