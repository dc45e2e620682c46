package service

import (
	"testing"
	"time"
)

func TestSlidingWindowBoundary(t *testing.T) {
	w := NewSlidingWindow()
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !w.Allow("tok", 5, now) {
			t.Fatalf("validation %d refused below the limit", i+1)
		}
	}
	if w.Allow("tok", 5, now) {
		t.Error("validation above the limit was admitted")
	}
	// Refused validations must not consume slots: once the window slides
	// past the recorded hits, capacity comes back.
	later := now.Add(61 * time.Second)
	if !w.Allow("tok", 5, later) {
		t.Error("slot did not free after the window advanced")
	}
}

func TestSlidingWindowPerToken(t *testing.T) {
	w := NewSlidingWindow()
	now := time.Now()

	if !w.Allow("a", 1, now) {
		t.Fatal("first validation for a refused")
	}
	if w.Allow("a", 1, now) {
		t.Error("second validation for a admitted over limit")
	}
	if !w.Allow("b", 1, now) {
		t.Error("token b throttled by token a's window")
	}
}

func TestSlidingWindowForget(t *testing.T) {
	w := NewSlidingWindow()
	now := time.Now()

	w.Allow("tok", 1, now)
	if w.Allow("tok", 1, now) {
		t.Fatal("limit not enforced before Forget")
	}
	w.Forget("tok")
	if !w.Allow("tok", 1, now) {
		t.Error("window state survived Forget")
	}
}
