package utils

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded ring of duration samples and answers
// percentile queries over the current window. Once the ring fills, new
// observations overwrite the oldest.
type LatencyTracker struct {
	mu     sync.Mutex
	window []time.Duration
	next   int
	filled bool
}

// NewLatencyTracker creates a tracker holding up to size samples.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{window: make([]time.Duration, size)}
}

// Observe records one duration.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	l.window[l.next] = d
	l.next++
	if l.next == len(l.window) {
		l.next = 0
		l.filled = true
	}
	l.mu.Unlock()
}

// Percentile returns the p-th percentile (0-100) of the window, or zero when
// nothing has been observed yet. p <= 0 yields the minimum, p >= 100 the
// maximum.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	n := l.next
	if l.filled {
		n = len(l.window)
	}
	sorted := append([]time.Duration(nil), l.window[:n]...)
	l.mu.Unlock()

	if n == 0 {
		return 0
	}
	slices.Sort(sorted)
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}
	return sorted[int(p/100*float64(n-1))]
}

// Count reports how many samples the window currently holds.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.filled {
		return len(l.window)
	}
	return l.next
}
