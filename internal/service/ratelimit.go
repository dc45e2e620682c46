package service

import (
	"sync"
	"time"
)

// SlidingWindow counts accepted validations per token id over a rolling
// window. It is in-process state owned by the gate, constructed at startup;
// under a multi-process deployment the count is approximate, which the
// design accepts. Only accepted validations consume window slots.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
}

// NewSlidingWindow creates a counter with a 60-second window.
func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{
		window: time.Minute,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records one validation for id if fewer than limit validations fall
// inside the window ending at now, and reports whether it was admitted.
func (w *SlidingWindow) Allow(id string, limit int, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.hits[id][:0]
	for _, t := range w.hits[id] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		w.hits[id] = kept
		return false
	}
	w.hits[id] = append(kept, now)
	return true
}

// Forget drops the window state for a token, used when a token is deleted.
func (w *SlidingWindow) Forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, id)
}
