package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Upload rate limiting guards the OCR/AI calls, which are by far the most
// expensive thing a single user can trigger.
const (
	uploadsPerMinute   = 10
	uploadBurst        = 3
	limiterIdleTTL     = 30 * time.Minute
	limiterSweepPeriod = 5 * time.Minute
)

// userLimiter pairs a token bucket with its last use so idle entries can
// be swept.
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// UploadLimiter tracks a per-user token bucket for /upload.
type UploadLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	stopCh   chan struct{}
}

// NewUploadLimiter creates an UploadLimiter and starts its background
// cleanup loop.
func NewUploadLimiter() *UploadLimiter {
	ul := &UploadLimiter{
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go ul.sweepLoop()
	return ul
}

// Allow reports whether userID may start another upload right now.
func (ul *UploadLimiter) Allow(userID string) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	entry, ok := ul.limiters[userID]
	if !ok {
		entry = &userLimiter{
			limiter: rate.NewLimiter(rate.Limit(uploadsPerMinute)/60, uploadBurst),
		}
		ul.limiters[userID] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

// Stop terminates the cleanup goroutine.
func (ul *UploadLimiter) Stop() {
	close(ul.stopCh)
}

func (ul *UploadLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ul.sweep(time.Now())
		case <-ul.stopCh:
			return
		}
	}
}

// sweep drops limiters idle for longer than limiterIdleTTL.
func (ul *UploadLimiter) sweep(now time.Time) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	for id, entry := range ul.limiters {
		if now.Sub(entry.lastAccess) > limiterIdleTTL {
			delete(ul.limiters, id)
		}
	}
}
