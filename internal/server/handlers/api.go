package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/core/admission"
	"github.com/waypost/waypost/internal/core/engine"
	"github.com/waypost/waypost/internal/core/provider"
	apperrors "github.com/waypost/waypost/internal/errors"
)

// RoutePlanner is the slice of the planner the HTTP handlers need.
type RoutePlanner interface {
	Route(ctx context.Context, start core.Position, query string) (*core.RouteResult, error)
	Geocode(ctx context.Context, query string, anchor *core.Position, limit int) (*core.GeocodeResult, error)
	Reverse(ctx context.Context, pos core.Position) (*core.GeocodeResult, error)
}

var planner RoutePlanner

// SetPlanner injects the planner used by the API handlers.
func SetPlanner(p RoutePlanner) {
	planner = p
}

// RouteRequest is the body of POST /route: where the caller is and what they
// are looking for.
type RouteRequest struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Query string  `json:"query"`
}

// RouteHandler plans a route from the caller's position to the best geocoding
// match for the query.
func RouteHandler(w http.ResponseWriter, r *http.Request) {
	if planner == nil {
		respondWithError(w, r, apperrors.NewInternalError("route planner is not configured"))
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be valid JSON"))
		return
	}
	if err := validateCoordinates(req.Lat, req.Lon); err != nil {
		respondWithError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondWithError(w, r, apperrors.NewValidationError("query is required"))
		return
	}

	result, err := planner.Route(r.Context(), core.Position{req.Lon, req.Lat}, req.Query)
	if err != nil {
		respondWithError(w, r, mapDomainError(r.Context(), err))
		return
	}
	respondJSON(w, result)
}

// GeocodeHandler resolves ?q= to candidate places, optionally anchored at
// ?lat=&lon= and capped at ?limit=.
func GeocodeHandler(w http.ResponseWriter, r *http.Request) {
	if planner == nil {
		respondWithError(w, r, apperrors.NewInternalError("route planner is not configured"))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondWithError(w, r, apperrors.NewValidationError("q parameter is required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, r, apperrors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	var anchor *core.Position
	latRaw, lonRaw := r.URL.Query().Get("lat"), r.URL.Query().Get("lon")
	if latRaw != "" || lonRaw != "" {
		lat, lon, err := parseCoordinates(latRaw, lonRaw)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		anchor = &core.Position{lon, lat}
	}

	result, err := planner.Geocode(r.Context(), query, anchor, limit)
	if err != nil {
		respondWithError(w, r, mapDomainError(r.Context(), err))
		return
	}
	respondJSON(w, result)
}

// ReverseHandler resolves ?lat=&lon= to the places at or near it.
func ReverseHandler(w http.ResponseWriter, r *http.Request) {
	if planner == nil {
		respondWithError(w, r, apperrors.NewInternalError("route planner is not configured"))
		return
	}

	lat, lon, err := parseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	result, planErr := planner.Reverse(r.Context(), core.Position{lon, lat})
	if planErr != nil {
		respondWithError(w, r, mapDomainError(r.Context(), planErr))
		return
	}
	respondJSON(w, result)
}

func parseCoordinates(latRaw, lonRaw string) (lat, lon float64, err error) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if latErr != nil || lonErr != nil {
		return 0, 0, apperrors.NewValidationError("lat and lon must be decimal coordinates")
	}
	if vErr := validateCoordinates(lat, lon); vErr != nil {
		return 0, 0, vErr
	}
	return lat, lon, nil
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return apperrors.NewValidationError(fmt.Sprintf("latitude %v is out of range [-90, 90]", lat))
	}
	if lon < -180 || lon > 180 {
		return apperrors.NewValidationError(fmt.Sprintf("longitude %v is out of range [-180, 180]", lon))
	}
	return nil
}

// mapDomainError translates planner and admission failures into API error
// envelopes. Admission failures become 503 with a Retry-After hint.
func mapDomainError(ctx context.Context, err error) *gferrors.ErrorEnvelope {
	var quota *admission.QuotaError
	if errors.As(err, &quota) {
		return apperrors.NewUpstreamRateLimitedError(
			fmt.Sprintf("outbound quota %q is exhausted", quota.Name), quota.NextReset)
	}

	var backoff *admission.BackoffError
	if errors.As(err, &backoff) {
		return apperrors.NewUpstreamBackedOffError(
			fmt.Sprintf("upstream %q asked us to back off", backoff.Name), backoff.Until)
	}

	var noMatch *engine.NoMatchError
	if errors.As(err, &noMatch) {
		return apperrors.NewNotFoundError(noMatch.Error())
	}

	var upstream *provider.UpstreamError
	if errors.As(err, &upstream) {
		return apperrors.WrapExternalService(ctx, err, "upstream request failed")
	}

	return apperrors.WrapInternal(ctx, err, "request failed")
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
