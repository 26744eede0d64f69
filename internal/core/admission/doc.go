// Package admission implements outbound admission control for upstream
// endpoints: lock-free fixed-window rate limits, all-or-nothing limit chains,
// and Retry-After driven backoff gates.
//
// Nothing in this package blocks or takes a lock. Counters and deadlines are
// plain atomics updated with compare-and-swap retry loops, so checks stay on
// the request path of every outbound call without contention surprises.
package admission
