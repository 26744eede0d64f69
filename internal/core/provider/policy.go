package provider

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"gopkg.in/yaml.v3"

	"github.com/waypost/waypost/internal/core/admission"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Endpoint names used throughout the gateway. The policy file keys guards by
// these names; handlers and CLI commands look guards up by them.
const (
	EndpointORSDirections = "ors-directions"
	EndpointPhotonGeocode = "photon-geocode"
	EndpointPhotonReverse = "photon-reverse"
)

// Window is a duration that decodes from Go duration strings like "1m" or
// "24h" in YAML.
type Window time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *Window) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid window %q: %w", raw, err)
	}
	*w = Window(d)
	return nil
}

// Duration converts the window back to a time.Duration.
func (w Window) Duration() time.Duration { return time.Duration(w) }

// LimitPolicy is one fixed-window quota in the policy file.
type LimitPolicy struct {
	Limit  uint32 `yaml:"limit"`
	Window Window `yaml:"window"`
}

// EndpointPolicy names an upstream endpoint and its quota chain.
type EndpointPolicy struct {
	Name   string        `yaml:"name"`
	Limits []LimitPolicy `yaml:"limits"`
}

// Policy is the full outbound admission policy.
type Policy struct {
	Endpoints []EndpointPolicy `yaml:"endpoints"`
}

// DefaultPolicy parses the policy embedded in the binary.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicyYAML)
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse admission policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if len(p.Endpoints) == 0 {
		return fmt.Errorf("admission policy declares no endpoints")
	}
	seen := make(map[string]struct{}, len(p.Endpoints))
	for _, ep := range p.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("admission policy endpoint with empty name")
		}
		if _, dup := seen[ep.Name]; dup {
			return fmt.Errorf("admission policy endpoint %q declared twice", ep.Name)
		}
		seen[ep.Name] = struct{}{}
		if len(ep.Limits) == 0 {
			return fmt.Errorf("endpoint %q declares no limits", ep.Name)
		}
		for _, l := range ep.Limits {
			if l.Limit == 0 {
				return fmt.Errorf("endpoint %q declares a zero-capacity limit", ep.Name)
			}
			if l.Window.Duration() <= 0 {
				return fmt.Errorf("endpoint %q declares a non-positive window", ep.Name)
			}
		}
	}
	return nil
}

// Registry holds one guard per upstream endpoint.
type Registry struct {
	guards map[string]*Guard
}

// NewRegistry builds guards for every endpoint in the policy. Each limit in a
// chain gets its own reset goroutine; Close stops them all.
func NewRegistry(policy *Policy, logger *logging.Logger) (*Registry, error) {
	if policy == nil {
		return nil, fmt.Errorf("nil admission policy")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	guards := make(map[string]*Guard, len(policy.Endpoints))
	for _, ep := range policy.Endpoints {
		limits := make([]*admission.RateLimit, 0, len(ep.Limits))
		for _, l := range ep.Limits {
			window := l.Window.Duration()
			name := fmt.Sprintf("%s-per-%s", ep.Name, windowLabel(window))
			limits = append(limits, admission.NewRateLimit(l.Limit, window, name).WithLogger(logger))
		}
		backoff := admission.NewBackerOff(ep.Name).WithLogger(logger)
		guards[ep.Name] = NewGuard(ep.Name, backoff, admission.NewLimitChain(limits...)).WithLogger(logger)
	}
	return &Registry{guards: guards}, nil
}

// Guard returns the guard for an endpoint, or nil when none is registered.
func (r *Registry) Guard(name string) *Guard {
	if r == nil {
		return nil
	}
	return r.guards[name]
}

// Names returns the registered endpoint names in no particular order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	return names
}

// Close stops every guard's reset goroutines.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for _, g := range r.guards {
		g.Close()
	}
}

func windowLabel(w time.Duration) string {
	switch {
	case w%(24*time.Hour) == 0 && w >= 24*time.Hour:
		return "day"
	case w%time.Hour == 0 && w >= time.Hour:
		return "hour"
	case w%time.Minute == 0 && w >= time.Minute:
		return "minute"
	case w%time.Second == 0 && w >= time.Second:
		return "second"
	default:
		return w.String()
	}
}
