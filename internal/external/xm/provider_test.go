package xm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_BuildsOnce(t *testing.T) {
	builds := 0
	p := NewProvider(func(context.Context) (Source, error) {
		builds++
		return SourceFunc(func(context.Context, Request) ([]RawRow, error) { return nil, nil }), nil
	}, time.Minute)

	for i := 0; i < 3; i++ {
		src, err := p.Get(context.Background())
		require.NoError(t, err)
		require.NotNil(t, src)
	}
	assert.Equal(t, 1, builds)
}

func TestProvider_UnavailableUntilRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	builds := 0
	fail := true

	p := NewProvider(func(context.Context) (Source, error) {
		builds++
		if fail {
			return nil, errors.New("probe failed")
		}
		return SourceFunc(func(context.Context, Request) ([]RawRow, error) { return nil, nil }), nil
	}, 5*time.Minute)
	p.now = func() time.Time { return now }

	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = p.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, builds)

	fail = false
	now = now.Add(6 * time.Minute)
	src, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, src)
	assert.Equal(t, 2, builds)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable("XM_ENABLED=false").Get(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "XM_ENABLED=false")
}
