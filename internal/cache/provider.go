// Package cache provides byte-oriented caching behind a small Provider
// interface, with Valkey, in-memory and no-op implementations.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals that a cache key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the cache surface consumed by the telemetry client.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything: every Get misses,
// every write succeeds. Used when caching is disabled.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
