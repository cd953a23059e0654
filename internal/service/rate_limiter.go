package service

import (
	"sync"
	"time"
)

// RateLimit is a sliding-window request limiter keyed by client IP.
type RateLimit struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	window   time.Duration
	maxReqs  int
	now      func() time.Time
}

// NewRateLimit allows maxReqs requests per key within window.
func NewRateLimit(window time.Duration, maxReqs int) *RateLimit {
	return &RateLimit{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (r *RateLimit) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	valid := r.requests[key][:0]
	for _, t := range r.requests[key] {
		if now.Sub(t) < r.window {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.maxReqs {
		r.requests[key] = valid
		return false
	}

	r.requests[key] = append(valid, now)
	return true
}

// Sweep forgets keys with no request inside the window.
func (r *RateLimit) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, reqs := range r.requests {
		if len(reqs) == 0 || now.Sub(reqs[len(reqs)-1]) >= r.window {
			delete(r.requests, key)
		}
	}
}
