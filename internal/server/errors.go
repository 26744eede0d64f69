package server

import (
	"net/http"

	apperrors "github.com/waypost/waypost/internal/errors"
)

// HandleError is the single funnel for HTTP error responses. Handlers and
// router fallbacks all route through here so the envelope shape, status
// mapping, and Retry-After behavior stay consistent.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
