package cache

import "time"

// DefaultTTLs is used when no table is configured.
var DefaultTTLs = map[string]time.Duration{
	"1d":        4 * time.Hour,
	"1h":        30 * time.Minute,
	"5m":        5 * time.Minute,
	chainPrefix: 15 * time.Minute,
}

// Policy maps intervals to freshness windows.
type Policy struct {
	ttls     map[string]time.Duration
	shortest time.Duration
}

// NewPolicy copies the table; non-positive entries are ignored.
func NewPolicy(ttls map[string]time.Duration) Policy {
	if len(ttls) == 0 {
		ttls = DefaultTTLs
	}
	p := Policy{ttls: make(map[string]time.Duration, len(ttls))}
	for k, v := range ttls {
		if v <= 0 {
			continue
		}
		p.ttls[k] = v
		if p.shortest == 0 || v < p.shortest {
			p.shortest = v
		}
	}
	return p
}

// TTL returns the window for interval. Unknown intervals get the shortest configured TTL.
func (p Policy) TTL(interval string) time.Duration {
	if ttl, ok := p.ttls[PolicyInterval(interval)]; ok {
		return ttl
	}
	return p.shortest
}
