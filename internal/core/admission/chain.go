package admission

// LimitChain is an ordered, read-only view over independent rate limits that
// all guard the same upstream (for example a per-minute and a per-day quota).
// Consumption is all-or-nothing: the chain admits n units only if every member
// does, and rolls back the members that had already accepted on failure.
type LimitChain struct {
	limits []*RateLimit
}

// NewLimitChain builds a chain over the given limiters. The chain does not own
// them: callers remain responsible for closing each RateLimit.
func NewLimitChain(limits ...*RateLimit) *LimitChain {
	return &LimitChain{limits: limits}
}

// Limits exposes the member limiters in consumption order, for diagnostics.
func (c *LimitChain) Limits() []*RateLimit {
	if c == nil {
		return nil
	}
	return c.limits
}

// TryConsume consumes n units from every member limiter in order. On the first
// rejection it undoes the consumption on the members that had already accepted
// and returns the rejecting limiter's *QuotaError.
//
// Known caveat: member windows reset independently, so a rollback can land in
// a different window than the original consume and transiently under-count
// usage there. That behavior is intentional and kept observable; see the
// package tests.
func (c *LimitChain) TryConsume(n uint32) error {
	if c == nil {
		return nil
	}

	for i, limit := range c.limits {
		if err := limit.TryConsume(n); err != nil {
			for _, consumed := range c.limits[:i] {
				consumed.Undo(n)
			}
			return err
		}
	}

	return nil
}
