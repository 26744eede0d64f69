package cmd

import (
	"context"
	"net/http"
	"os"

	"github.com/spf13/viper"

	"github.com/waypost/waypost/internal/core/engine"
	"github.com/waypost/waypost/internal/core/provider"
	"github.com/waypost/waypost/internal/core/store"
	"github.com/waypost/waypost/internal/observability"
)

// newPlanner builds a one-shot planner for CLI commands: guards from the
// configured policy, upstream clients from viper, and the result cache when
// enabled. The cleanup function stops the guards and closes the store.
func newPlanner(ctx context.Context, noCache bool) (*engine.Planner, func(), error) {
	registry, err := buildCLIRegistry()
	if err != nil {
		return nil, nil, err
	}

	photon := &provider.PhotonClient{
		Client:       &http.Client{Timeout: upstreamTimeout("upstreams.photon.timeout")},
		BaseURL:      viper.GetString("upstreams.photon.base_url"),
		GeocodeGuard: registry.Guard(provider.EndpointPhotonGeocode),
		ReverseGuard: registry.Guard(provider.EndpointPhotonReverse),
	}
	ors := &provider.ORSClient{
		Client:  &http.Client{Timeout: upstreamTimeout("upstreams.ors.timeout")},
		BaseURL: viper.GetString("upstreams.ors.base_url"),
		APIKey:  viper.GetString("upstreams.ors.api_key"),
		Guard:   registry.Guard(provider.EndpointORSDirections),
	}

	planner := &engine.Planner{
		Geocoder:    photon,
		Router:      ors,
		ToolVersion: versionInfo.Version,
	}

	if noCache || !viper.GetBool("cache.enabled") {
		return planner, registry.Close, nil
	}

	db, err := store.Open(ctx, storeConfigFromViper())
	if err != nil {
		registry.Close()
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		registry.Close()
		_ = db.Close()
		return nil, nil, err
	}

	planner.Cache = db
	planner.UseCache = true
	planner.CacheTTL = viper.GetDuration("cache.ttl")

	cleanup := func() {
		registry.Close()
		_ = db.Close()
	}
	return planner, cleanup, nil
}

func buildCLIRegistry() (*provider.Registry, error) {
	policy, err := loadPolicy()
	if err != nil {
		return nil, err
	}
	return provider.NewRegistry(policy, observability.CLILogger)
}

// loadPolicy returns the outbound limit policy: the override file named in
// config when set, otherwise the embedded default.
func loadPolicy() (*provider.Policy, error) {
	if policyPath := viper.GetString("limits.policy_path"); policyPath != "" {
		data, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, err
		}
		return provider.ParsePolicy(data)
	}
	return provider.DefaultPolicy()
}
