// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/capsula-erp/capsula/internal/shared"
)

// Problem types returned in the RFC7807 "type" member.
const (
	TypeValidation = "validation-error"
	TypeNotFound   = "not-found"
	TypeDuplicate  = "duplicate"
	TypeProtected  = "referential-protection"
	TypeInternal   = "internal-error"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Errors
// outside the shared taxonomy are logged and reported without detail.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var fieldErrs *shared.ValidationError
	switch {
	case errors.As(err, &fieldErrs):
		problem := ProblemDetail{
			Type:   TypeValidation,
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Errors: fieldErrs.Fields,
		}
		JSON(w, problem.Status, problem)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, TypeValidation, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, TypeNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrProtected):
		Problem(w, http.StatusConflict, TypeProtected, "Protected", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, TypeDuplicate, "Duplicate", err.Error())
	default:
		if logger != nil {
			logger.Error("request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
		}
		Problem(w, http.StatusInternalServerError, TypeInternal, "Internal Error", "")
	}
}
