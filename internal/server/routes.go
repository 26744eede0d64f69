package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/waypost/waypost/internal/appid"
	"github.com/waypost/waypost/internal/observability"
	"github.com/waypost/waypost/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	// Operational surface
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)
	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	// Gateway API: geocode/reverse front Photon, route composes
	// geocode + ORS directions.
	s.router.Post("/route", handlers.RouteHandler)
	s.router.Get("/geocode", handlers.GeocodeHandler)
	s.router.Get("/reverse", handlers.ReverseHandler)

	// Live admission state for the guarded upstream endpoints; backs the
	// `rate-limit show` CLI command.
	s.router.Get("/limits", handlers.LimitsHandler)

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes POST /admin/signal when an admin token is
// configured. Without a token the endpoint is not registered at all.
func (s *Server) registerAdminEndpoint() {
	identity, _ := appid.Get(context.Background())
	envPrefix := "WAYPOST_"
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10, // requests per minute
		RateBurst: 5,
		Manager:   nil, // default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
