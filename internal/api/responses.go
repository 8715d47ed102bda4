package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edgard/todobot/internal/database"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldError is a request validation failure on one field.
type fieldError struct {
	Field  string
	Reason string
}

func (e *fieldError) Error() string {
	return e.Field + " " + e.Reason
}

// decodeAndValidate reads a JSON body into v and validates it, either with
// its own Validate method or with struct tags.
func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &fieldError{Field: "body", Reason: "is not valid JSON"}
	}
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &fieldError{Field: fe.Field(), Reason: "is required"}
	case "max":
		return &fieldError{Field: fe.Field(), Reason: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return &fieldError{Field: fe.Field(), Reason: "is invalid"}
	}
}

// mapErrorToStatusCode maps store and validation errors to HTTP status
// codes.
func mapErrorToStatusCode(err error) int {
	var fe *fieldError
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidCategory),
		errors.Is(err, database.ErrInvalidInput),
		errors.As(err, &fe):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// safeErrorMessage returns the client-facing message for err. Internal
// errors never leak their text.
func safeErrorMessage(err error) string {
	var fe *fieldError
	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case errors.Is(err, database.ErrNotFound):
		return "Not found."
	case errors.Is(err, database.ErrConflict):
		return "Category with this name already exists."
	case errors.Is(err, database.ErrInvalidCategory):
		return "Category does not belong to this user."
	case errors.Is(err, database.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), database.ErrInvalidInput.Error()+": ")
	default:
		return "An unexpected error occurred"
	}
}

// respondWithJSON writes a JSON response with the given status code and data.
func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondWithError writes a JSON error response carrying the request's
// trace id.
func respondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, TraceID: traceID(r.Context())})
}

// respondWithErrorAndLog maps err to a status and safe message, logging the
// full error. Server errors are logged at ERROR, client errors at DEBUG.
func respondWithErrorAndLog(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := mapErrorToStatusCode(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "API error response",
		"trace_id", traceID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err,
	)
	respondWithError(w, r, status, safeErrorMessage(err))
}
