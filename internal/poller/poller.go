// Package poller provides the fixed-interval scheduler that keeps each
// console view in sync with the platform backend.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/autonexops/autonex-console/internal/metrics"
)

// Poller repeatedly invokes a fetch function at a fixed wall-clock interval
// and hands the result to an apply function. At most one fetch is in flight
// per instance: the loop runs fetches synchronously, so a tick that falls due
// while a fetch is still running is skipped rather than queued. A failed fetch
// is reported and does not stop subsequent ticks.
//
// After Stop, a fetch already in flight is allowed to complete but its result
// is discarded on arrival.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    func(context.Context) (T, error)
	apply    func(T)
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New constructs a poller. apply receives each successful fetch result;
// onError may be nil, in which case failures are only logged.
func New[T any](name string, interval time.Duration, fetch func(context.Context) (T, error), apply func(T), onError func(error), logger *slog.Logger) *Poller[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		apply:    apply,
		onError:  onError,
		logger:   logger,
	}
}

// Start fires the first fetch immediately and then every interval, until Stop
// is called or ctx is cancelled. Calling Start twice is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, runCtx)
}

// loop drives the schedule. fetchCtx is the parent context: Stop does not
// abort an in-flight fetch mid-call, it only prevents the result from being
// applied. runCtx governs scheduling and result application.
func (p *Poller[T]) loop(fetchCtx, runCtx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fire(fetchCtx, runCtx)
	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			p.fire(fetchCtx, runCtx)
		}
	}
}

func (p *Poller[T]) fire(fetchCtx, runCtx context.Context) {
	result, err := p.fetch(fetchCtx)
	if err != nil {
		metrics.ObservePollerFetch(p.name, metrics.OutcomeError)
		p.logger.Warn("poll fetch failed", slog.String("poller", p.name), slog.Any("error", err))
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	// A result that lands after Stop is stale: the view that wanted it is
	// gone or retargeted.
	if runCtx.Err() != nil {
		metrics.ObservePollerFetch(p.name, metrics.OutcomeDiscarded)
		return
	}
	metrics.ObservePollerFetch(p.name, metrics.OutcomeSuccess)
	p.apply(result)
}

// Stop cancels all future firings. It does not wait for an in-flight fetch.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.cancel()
}

// Done returns a channel closed once the polling loop has exited. Nil before
// Start.
func (p *Poller[T]) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
