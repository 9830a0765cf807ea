package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// resetLimiter throttles password reset requests per username. Entries that
// go idle are evicted so the map doesn't grow with every name an attacker
// probes.
type resetLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newResetLimiter(limit rate.Limit, burst int) *resetLimiter {
	rl := &resetLimiter{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a reset request for the given username may proceed.
func (rl *resetLimiter) Allow(username string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[username]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[username] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

func (rl *resetLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for name, e := range rl.entries {
				if time.Since(e.lastSeen) > 5*time.Minute {
					delete(rl.entries, name)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *resetLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}
