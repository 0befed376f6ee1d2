package blockchain

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// circuitBreaker trips after threshold consecutive failures and stays
// open for cooldown before the transport is allowed to try the
// primary endpoint again.
type circuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu          sync.RWMutex
	failures    int
	lastFailure time.Time
	open        bool
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (b *circuitBreaker) isOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return false
	}
	return time.Since(b.lastFailure) <= b.cooldown
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	if b.failures >= b.threshold {
		b.open = true
		log.Warn().Int("failures", b.failures).Msg("rpc circuit breaker opened")
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}
