package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestOverlapSuppression(t *testing.T) {
	var inFlight, maxInFlight, fetches int32
	fetch := func(ctx context.Context) (int, error) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			observed := atomic.LoadInt32(&maxInFlight)
			if current <= observed || atomic.CompareAndSwapInt32(&maxInFlight, observed, current) {
				break
			}
		}
		atomic.AddInt32(&fetches, 1)
		// Slower than the interval: ticks falling due mid-fetch must be
		// skipped, not queued.
		time.Sleep(30 * time.Millisecond)
		return 0, nil
	}

	p := New("slow", 5*time.Millisecond, fetch, func(int) {}, nil, nil)
	p.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	p.Stop()
	<-p.Done()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("expected at most one in-flight fetch, observed %d", got)
	}
	if got := atomic.LoadInt32(&fetches); got > 6 {
		t.Fatalf("expected skipped ticks to coalesce, got %d fetches in 120ms", got)
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	}

	var applied atomic.Bool
	p := New("fenced", time.Hour, fetch, func(string) { applied.Store(true) }, nil, nil)
	p.Start(context.Background())

	<-started
	p.Stop()
	close(release)
	<-p.Done()

	if applied.Load() {
		t.Fatalf("result arriving after Stop must be discarded")
	}
}

func TestFailedFetchDoesNotStopSchedule(t *testing.T) {
	var calls int32
	var errored atomic.Bool
	fetch := func(ctx context.Context) (int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return 0, errors.New("transient")
		}
		return int(n), nil
	}

	applied := make(chan int, 1)
	p := New("flaky", 5*time.Millisecond, fetch,
		func(v int) {
			select {
			case applied <- v:
			default:
			}
		},
		func(error) { errored.Store(true) }, nil)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case v := <-applied:
		if v < 3 {
			t.Fatalf("apply fired for a failed fetch: %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("schedule stopped after fetch failures")
	}
	if !errored.Load() {
		t.Fatalf("expected onError to observe the failures")
	}
}

func TestParentCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("cancelled", time.Millisecond, func(ctx context.Context) (int, error) { return 1, nil }, func(int) {}, nil, nil)
	p.Start(ctx)
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatalf("loop did not exit on parent context cancellation")
	}
}
