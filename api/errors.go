package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"

	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"github.com/linkmage/analyzer/supastore"
)

// Error codes returned in the "code" field
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeDuplicateEntry     = "DUPLICATE_ENTRY"
	CodeRelatedData        = "RELATED_DATA_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeDatabase           = "DATABASE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError is an error rendered as {error, code, message}
type APIError struct {
	Status  int    `json:"-"`
	Err     string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}
	return e.Err
}

func validationError(err, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Err: err, Code: CodeValidation, Message: message}
}

func notFoundError(resource string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Err:     resource + " not found",
		Code:    CodeNotFound,
		Message: resource + " not found or you do not have permission to access it",
	}
}

func unavailableError(message string) *APIError {
	return &APIError{Status: http.StatusServiceUnavailable, Err: "Service unavailable", Code: CodeServiceUnavailable, Message: message}
}

// classifyStoreError maps persistence errors onto the taxonomy. resource
// names the entity in not-found messages.
func classifyStoreError(err error, resource string) *APIError {
	if errors.Is(err, models.ErrNotFound) {
		return notFoundError(resource)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if e := classifyPostgresCode(string(pqErr.Code), pqErr.Message); e != nil {
			return e
		}
	}

	var restErr *supastore.Error
	if errors.As(err, &restErr) {
		switch restErr.Code {
		case "PGRST116":
			return notFoundError(resource)
		case "PGRST301", "PGRST302":
			return &APIError{Status: http.StatusUnauthorized, Err: "Unauthorized", Code: CodeUnauthorized, Message: restErr.Message}
		case "42501":
			return &APIError{Status: http.StatusForbidden, Err: "Forbidden", Code: CodeForbidden, Message: restErr.Message}
		}
		if e := classifyPostgresCode(restErr.Code, restErr.Message); e != nil {
			return e
		}
	}

	return &APIError{Status: http.StatusInternalServerError, Err: "Database error", Code: CodeDatabase, Message: err.Error()}
}

func classifyPostgresCode(code, message string) *APIError {
	switch code {
	case "23505":
		return &APIError{Status: http.StatusConflict, Err: "Duplicate entry", Code: CodeDuplicateEntry, Message: message}
	case "23503":
		return &APIError{Status: http.StatusConflict, Err: "Related data error", Code: CodeRelatedData, Message: message}
	case "23502", "22001", "22P02":
		return validationError("Invalid data", message)
	}
	return nil
}

// llmError maps completion failures: rate limits to 429, an open breaker or
// missing key to 503, anything else to 502.
func llmError(err error, message string) *APIError {
	switch {
	case errors.Is(err, groq.ErrRateLimited):
		return &APIError{Status: http.StatusTooManyRequests, Err: message, Code: CodeRateLimited, Message: err.Error()}
	case errors.Is(err, groq.ErrUnavailable), errors.Is(err, groq.ErrNotConfigured):
		return &APIError{Status: http.StatusServiceUnavailable, Err: message, Code: CodeServiceUnavailable, Message: err.Error()}
	default:
		return &APIError{Status: http.StatusBadGateway, Err: message, Code: CodeUpstream, Message: err.Error()}
	}
}

// fieldMessages renders validator failures the way the notes API reports them
var fieldMessages = map[string][2]string{
	"title.required":   {"Missing title or content", "Both title and content are required"},
	"content.required": {"Missing title or content", "Both title and content are required"},
	"title.max":        {"Title too long", "Title must be 255 characters or less"},
	"content.max":      {"Content too long", "Content must be 10,000 characters or less"},
	"link.required":    {"Missing link", "link is required"},
	"link.url":         {"Invalid link", "link must be an absolute URL"},
	"full_name.max":    {"Name too long", "full_name must be 255 characters or less"},
	"content_type.max": {"Content type too long", "content_type must be 100 characters or less"},
	"message.required": {"Missing message", "message is required"},
}

// validationFailure converts a validator error into an APIError
func validationFailure(err error) *APIError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return validationError("Invalid request", err.Error())
	}
	fe := errs[0]
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return validationError(msg[0], msg[1])
	}
	return validationError("Invalid "+fe.Field(), fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag()))
}

// newValidator reports field names using their json tags
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an {error} response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAPIError sends a taxonomy error
func respondAPIError(w http.ResponseWriter, err *APIError) {
	respondJSON(w, err.Status, err)
}
