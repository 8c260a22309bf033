package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the HTTP boundary.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrRetryable  = errors.New("temporarily unavailable")
)

// RespondError maps boundary errors to HTTP responses using RFC7807.
// Unrecognised errors surface as a generic 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrRetryable):
		Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
