// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/windforecast/windforecast/internal/api/middleware"
	"github.com/windforecast/windforecast/internal/api/models"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.At(r.URL.Path).Write(w)
}

func write(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string) {
	Error(w, r, models.NewProblem(kind, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewProblem(models.KindValidation, middleware.GetRequestID(r.Context()), detail).WithErrors(errors))
}

// ValidationFailed writes a 400 problem listing every field rejected by
// validator. Other errors become a plain bad request.
func ValidationFailed(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(w, r, err.Error(), nil)
		return
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	BadRequest(w, r, "request body failed validation", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "excludesall":
		return "must not contain whitespace"
	default:
		return "is invalid"
	}
}

// MissingConfiguration writes a 400 problem for an incomplete station credential.
func MissingConfiguration(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindMissingConfig, detail)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindNotFound, detail)
}

// Conflict writes a 409 Conflict error response.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindConflict, detail)
}

// UpstreamFailure writes a 500 problem for a failed upstream fetch.
func UpstreamFailure(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindUpstream, detail)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindInternal, detail)
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	write(w, r, models.KindUnavailable, detail)
}
