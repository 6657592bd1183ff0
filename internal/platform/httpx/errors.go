// Package httpx writes the dashboard's JSON envelopes and RFC 7807 problems.
package httpx

import (
	"errors"
	"net/http"

	"github.com/alfozan/insights/internal/shared"
)

var (
	// ErrValidation marks input rejected before it reaches a store.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized means the request carries no authenticated identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps err onto a problem response. Unknown errors become an
// opaque 500 so internals never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Login Required", "Please log in to access this page.")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Fail(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Denied sends a 403 problem naming the caller's role.
func Denied(w http.ResponseWriter, role string) {
	writeProblem(w, ProblemDetail{
		Title:  "Access Denied",
		Status: http.StatusForbidden,
		Detail: "You don't have permission to access this resource. Contact your administrator if you believe this is an error.",
		Role:   role,
	})
}
