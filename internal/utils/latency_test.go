package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	for _, d := range []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
	} {
		tracker.Observe(d)
	}

	if got := tracker.Count(); got != 5 {
		t.Fatalf("count: got %d want 5", got)
	}
	if p95 := tracker.Percentile(95); p95 < 40*time.Millisecond {
		t.Fatalf("p95: got %v want >= 40ms", p95)
	}
	if min := tracker.Percentile(0); min != 10*time.Millisecond {
		t.Fatalf("p0: got %v want 10ms", min)
	}
	if max := tracker.Percentile(100); max != 50*time.Millisecond {
		t.Fatalf("p100: got %v want 50ms", max)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker percentile: got %v want 0", got)
	}
}

func TestLatencyTrackerRingOverwrite(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Count(); got != 3 {
		t.Fatalf("count: got %d want 3", got)
	}
	// Only the last three observations remain.
	if min := tracker.Percentile(0); min != 8*time.Millisecond {
		t.Fatalf("window minimum: got %v want 8ms", min)
	}
	if max := tracker.Percentile(100); max != 10*time.Millisecond {
		t.Fatalf("window maximum: got %v want 10ms", max)
	}
}
