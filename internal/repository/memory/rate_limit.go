// Package memory holds in-process fallbacks used when no shared store is
// configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

var _ repository.RateLimitStore = (*RateLimitStore)(nil)

type window struct {
	start time.Time
	count int
}

// RateLimitStore is a fixed-window limiter local to this process.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewRateLimitStore creates an empty RateLimitStore.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]*window), now: time.Now}
}

func (s *RateLimitStore) Allow(_ context.Context, key string, limit int, w time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	win, ok := s.windows[key]
	if !ok || now.Sub(win.start) >= w {
		s.evict(now, w)
		win = &window{start: now}
		s.windows[key] = win
	}
	win.count++
	return win.count <= limit, nil
}

// evict drops expired windows so idle clients do not accumulate.
func (s *RateLimitStore) evict(now time.Time, w time.Duration) {
	for k, win := range s.windows {
		if now.Sub(win.start) >= w {
			delete(s.windows, k)
		}
	}
}
