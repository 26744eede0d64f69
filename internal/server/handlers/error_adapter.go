package handlers

import (
	"net/http"

	apperrors "github.com/waypost/waypost/internal/errors"
)

// The server package injects its central error funnel here so handler code
// stays decoupled from the router. Until injection happens (and in handler
// unit tests) errors go straight to the envelope responder.

type errorResponder func(http.ResponseWriter, *http.Request, error)

var defaultHTTPErrorResponder errorResponder = apperrors.RespondWithError

var httpErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder installs the responder used by all handlers. A nil
// responder restores the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
