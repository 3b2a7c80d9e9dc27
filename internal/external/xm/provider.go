package xm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Builder constructs the shared source. It may probe the remote API.
type Builder func(ctx context.Context) (Source, error)

// Provider hands out one lazily built Source. A failed build is remembered
// as ErrUnavailable and retried only after RetryAfter.
type Provider struct {
	mu         sync.Mutex
	build      Builder
	src        Source
	lastErr    error
	failedAt   time.Time
	retryAfter time.Duration
	now        func() time.Time
}

// NewProvider creates a provider; nothing is built until Get
func NewProvider(build Builder, retryAfter time.Duration) *Provider {
	return &Provider{
		build:      build,
		retryAfter: retryAfter,
		now:        time.Now,
	}
}

// Unavailable returns a provider that always reports ErrUnavailable
func Unavailable(reason string) *Provider {
	return NewProvider(func(context.Context) (Source, error) {
		return nil, fmt.Errorf("%s", reason)
	}, 0)
}

// Get returns the shared source or an error wrapping ErrUnavailable
func (p *Provider) Get(ctx context.Context) (Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src != nil {
		return p.src, nil
	}

	if p.lastErr != nil && (p.retryAfter <= 0 || p.now().Sub(p.failedAt) < p.retryAfter) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, p.lastErr)
	}

	src, err := p.build(ctx)
	if err == nil && src == nil {
		err = fmt.Errorf("builder returned no source")
	}
	if err != nil {
		p.lastErr = err
		p.failedAt = p.now()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.src = src
	p.lastErr = nil
	return src, nil
}
