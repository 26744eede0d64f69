package provider

import (
	"errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/waypost/waypost/internal/core/admission"
	"github.com/waypost/waypost/internal/metrics"
)

// Guard gates outbound calls to one upstream endpoint. Admission runs the
// backoff gate before the quota chain so a server-imposed cool-down is
// honored without burning local quota.
type Guard struct {
	name    string
	backoff *admission.BackerOff
	limits  *admission.LimitChain
	logger  *logging.Logger
}

// NewGuard wires a backoff gate and a quota chain under a shared endpoint name.
func NewGuard(name string, backoff *admission.BackerOff, limits *admission.LimitChain) *Guard {
	return &Guard{name: name, backoff: backoff, limits: limits}
}

// WithLogger attaches a structured logger for admission decisions.
func (g *Guard) WithLogger(logger *logging.Logger) *Guard {
	if g != nil {
		g.logger = logger
	}
	return g
}

// Name returns the endpoint name the guard protects.
func (g *Guard) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// Limits exposes the quota chain for introspection (CLI, status endpoints).
func (g *Guard) Limits() *admission.LimitChain {
	if g == nil {
		return nil
	}
	return g.limits
}

// Backoff exposes the backoff gate for introspection.
func (g *Guard) Backoff() *admission.BackerOff {
	if g == nil {
		return nil
	}
	return g.backoff
}

// Admit consumes n units of quota, or reports why the call must not be made.
// The error is *admission.BackoffError when the upstream asked us to wait and
// *admission.QuotaError when local quota is exhausted.
func (g *Guard) Admit(n uint32) error {
	if g == nil {
		return nil
	}
	if g.backoff != nil {
		if err := g.backoff.CanRequest(); err != nil {
			metrics.RecordAdmissionRejected(g.name, "backoff")
			return err
		}
	}
	if err := g.limits.TryConsume(n); err != nil {
		metrics.RecordAdmissionRejected(g.name, "quota")
		return err
	}
	if g.limits != nil {
		for _, l := range g.limits.Limits() {
			metrics.SetQuotaUsage(l.Name(), l.Used(), l.Limit())
		}
	}
	return nil
}

// Undo returns n units to every limit in the chain. Call it when an admitted
// request was never sent.
func (g *Guard) Undo(n uint32) {
	if g == nil || g.limits == nil {
		return
	}
	for _, l := range g.limits.Limits() {
		l.Undo(n)
	}
}

// Observe inspects an upstream response and arms the backoff gate when the
// server signals overload. 429 and 503 responses set the gate from the
// Retry-After header; a missing or malformed header falls back to the
// default cool-down, and a date already in the past is ignored.
func (g *Guard) Observe(resp *http.Response) {
	if g == nil || resp == nil {
		return
	}
	metrics.RecordUpstreamRequest(g.name, resp.StatusCode)
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}
	if g.backoff == nil {
		return
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		g.warn("overloaded upstream sent no Retry-After header, applying default backoff",
			zap.Int("status", resp.StatusCode))
		g.backoff.SetDefaultBackoff()
		metrics.RecordBackoffArmed(g.name)
		return
	}
	err := g.backoff.ParseAndSet(header)
	switch {
	case err == nil:
		metrics.RecordBackoffArmed(g.name)
	case errors.Is(err, admission.ErrRetryAfterFromPast):
		g.warn("ignoring Retry-After header already in the past",
			zap.String("retry_after", header))
	default:
		g.warn("unparseable Retry-After header, applying default backoff",
			zap.String("retry_after", header), zap.Error(err))
		g.backoff.SetDefaultBackoff()
		metrics.RecordBackoffArmed(g.name)
	}
}

// Close stops the background reset loops of every limit in the chain.
func (g *Guard) Close() {
	if g == nil || g.limits == nil {
		return
	}
	for _, l := range g.limits.Limits() {
		l.Close()
	}
}

func (g *Guard) warn(msg string, fields ...zap.Field) {
	if g == nil || g.logger == nil {
		return
	}
	g.logger.Warn(msg, append([]zap.Field{zap.String("endpoint", g.name)}, fields...)...)
}
