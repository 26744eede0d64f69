package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/waypost/waypost/internal/metrics"
)

// Recovery turns handler panics into 500 envelope responses. The stack trace
// goes into the envelope context for the structured log, never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", err)).
					WithCorrelationID(GetRequestID(r.Context()))
				panicErr, _ = panicErr.WithContext(map[string]interface{}{
					"stack_trace": string(debug.Stack()),
				})
				panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

				metrics.RecordPanic()

				writePanicResponse(w, panicErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorHandler aliases Recovery; kept so the middleware stack reads in the
// same order it executes.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

type panicResponse struct {
	Error panicDetail `json:"error"`
}

type panicDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// writePanicResponse mirrors the envelope shape from internal/errors without
// importing it, which would cycle through the handlers package.
func writePanicResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope) {
	response := panicResponse{
		Error: panicDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(response)
}
