package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/waypost/waypost/internal/core/provider"
	apperrors "github.com/waypost/waypost/internal/errors"
)

var guards *provider.Registry

// SetGuards injects the admission registry exposed by the limits endpoint.
func SetGuards(r *provider.Registry) {
	guards = r
}

// LimitState is the live view of one fixed-window quota.
type LimitState struct {
	Name      string    `json:"name"`
	Limit     uint32    `json:"limit"`
	Window    string    `json:"window"`
	Used      uint32    `json:"used"`
	NextReset time.Time `json:"next_reset"`
}

// EndpointLimits is the admission state of one upstream endpoint.
type EndpointLimits struct {
	Endpoint     string       `json:"endpoint"`
	BackoffUntil *time.Time   `json:"backoff_until,omitempty"`
	Limits       []LimitState `json:"limits"`
}

// LimitsHandler reports the live admission state of every guarded endpoint.
func LimitsHandler(w http.ResponseWriter, r *http.Request) {
	if guards == nil {
		respondWithError(w, r, apperrors.NewInternalError("admission registry is not configured"))
		return
	}
	respondJSON(w, SnapshotLimits(guards))
}

// SnapshotLimits collects the current admission state from a registry.
func SnapshotLimits(registry *provider.Registry) []EndpointLimits {
	names := registry.Names()
	sort.Strings(names)

	endpoints := make([]EndpointLimits, 0, len(names))
	for _, name := range names {
		guard := registry.Guard(name)
		entry := EndpointLimits{Endpoint: name}
		if until := guard.Backoff().RetryUntil(); until != nil {
			entry.BackoffUntil = until
		}
		for _, limit := range guard.Limits().Limits() {
			entry.Limits = append(entry.Limits, LimitState{
				Name:      limit.Name(),
				Limit:     limit.Limit(),
				Window:    limit.Window().String(),
				Used:      limit.Used(),
				NextReset: limit.NextReset(),
			})
		}
		endpoints = append(endpoints, entry)
	}
	return endpoints
}
