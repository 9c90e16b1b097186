package cache

import "time"

// ttlPolicy derives an entry lifetime from observed access cadence.
// An entry revisited every few minutes should outlive its next
// predicted access; one never revisited gets the base lifetime.
type ttlPolicy struct {
	base time.Duration
	min  time.Duration
	max  time.Duration
}

// forInterval returns the TTL for a key whose mean access interval is
// known. The predicted next access gets a 20% margin, clamped to the
// configured bounds. Zero interval means no usable history.
func (p ttlPolicy) forInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return p.base
	}
	ttl := interval + interval/5
	if ttl < p.min {
		return p.min
	}
	if ttl > p.max {
		return p.max
	}
	return ttl
}
