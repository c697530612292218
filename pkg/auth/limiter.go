package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultKeyRPS   = 5
	defaultKeyBurst = 10
)

// keyLimits holds one token bucket per API key, created lazily on the
// key's first request. The gateway buckets unauthenticated requests by
// client address instead of by key.
type keyLimits struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newKeyLimits(rps float64, burst int) *keyLimits {
	if rps <= 0 {
		rps = defaultKeyRPS
	}
	if burst <= 0 {
		burst = defaultKeyBurst
	}
	return &keyLimits{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (k *keyLimits) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.buckets[key]
	if !ok {
		b = rate.NewLimiter(k.rps, k.burst)
		k.buckets[key] = b
	}
	return b.Allow()
}
