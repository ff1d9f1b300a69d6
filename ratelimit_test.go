package main

import (
	"testing"
	"time"
)

func TestUploadLimiterBurst(t *testing.T) {
	ul := NewUploadLimiter()
	defer ul.Stop()

	for i := 0; i < uploadBurst; i++ {
		if !ul.Allow("patient1") {
			t.Fatalf("upload %d within burst was denied", i+1)
		}
	}

	if ul.Allow("patient1") {
		t.Error("upload beyond burst was allowed immediately")
	}
}

func TestUploadLimiterPerUser(t *testing.T) {
	ul := NewUploadLimiter()
	defer ul.Stop()

	for i := 0; i < uploadBurst; i++ {
		ul.Allow("patient1")
	}

	// Exhausting one user's bucket must not affect another's.
	if !ul.Allow("patient2") {
		t.Error("fresh user was denied after a different user hit their limit")
	}
}

func TestUploadLimiterSweep(t *testing.T) {
	ul := NewUploadLimiter()
	defer ul.Stop()

	ul.Allow("patient1")
	ul.Allow("patient2")

	// Age one entry past the TTL by sweeping from the future.
	ul.mu.Lock()
	ul.limiters["patient1"].lastAccess = time.Now().Add(-limiterIdleTTL - time.Minute)
	ul.mu.Unlock()

	ul.sweep(time.Now())

	ul.mu.Lock()
	defer ul.mu.Unlock()
	if _, ok := ul.limiters["patient1"]; ok {
		t.Error("idle limiter survived sweep")
	}
	if _, ok := ul.limiters["patient2"]; !ok {
		t.Error("active limiter was swept")
	}
}
