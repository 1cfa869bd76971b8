package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
	// Buckets untouched for this long are dropped; a fresh bucket starts full anyway.
	bucketIdleTTL = time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per caller address.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*bucket
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		m:       make(map[string]*bucket),
		rps:     rps,
		burst:   burst,
		idleTTL: bucketIdleTTL,
		now:     time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastPrune) >= p.idleTTL {
		p.prune(now)
	}
	if b, ok := p.m[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst), lastSeen: now}
	p.m[key] = b
	return b.limiter
}

// prune must be called with mu held.
func (p *limiterPool) prune(now time.Time) {
	for key, b := range p.m {
		if now.Sub(b.lastSeen) >= p.idleTTL {
			delete(p.m, key)
		}
	}
	p.lastPrune = now
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
