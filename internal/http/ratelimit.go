package http

import (
	"sync"
	"time"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitMax      = 60
	rateLimitSweepGap = 5 * time.Minute
)

// rateLimiter tracks request timestamps per client IP over a sliding
// window. Entries for idle clients are swept in the background.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time

	stopSweep chan struct{}
	sweepDone chan struct{}
	stopOnce  sync.Once
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:   make(map[string][]time.Time),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)

	recent := rl.clients[clientIP][:0]
	for _, t := range rl.clients[clientIP] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rateLimitMax {
		rl.clients[clientIP] = recent
		return false
	}

	rl.clients[clientIP] = append(recent, now)
	return true
}

func (rl *rateLimiter) sweep() {
	defer close(rl.sweepDone)

	ticker := time.NewTicker(rateLimitSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rateLimitWindow)
			for ip, times := range rl.clients {
				if len(times) == 0 || !times[len(times)-1].After(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopSweep:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopSweep)
		<-rl.sweepDone
	})
}
