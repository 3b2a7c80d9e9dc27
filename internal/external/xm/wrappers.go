package xm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/energia/backend/internal/cache"
	"github.com/wonny/energia/backend/pkg/httputil"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/retry"
)

// WithTimeout bounds every call to src by d
func WithTimeout(src Source, d time.Duration) Source {
	return SourceFunc(func(ctx context.Context, req Request) ([]RawRow, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		rows, err := src.Fetch(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s/%s timed out after %s: %w", req.Metric, req.Entity, d, err)
		}
		return rows, err
	})
}

// WithRetry retries failed calls with exponential backoff. Empty responses
// and client errors are returned at once.
func WithRetry(src Source, cfg retry.Config, log *logger.Logger) Source {
	return SourceFunc(func(ctx context.Context, req Request) ([]RawRow, error) {
		op := fmt.Sprintf("xm fetch %s/%s %s", req.Metric, req.Entity, req.Resource)
		return retry.Do(ctx, cfg, log, op, func() ([]RawRow, error) {
			rows, err := src.Fetch(ctx, req)
			if err != nil && !retryable(err) {
				return nil, retry.Permanent(err)
			}
			return rows, err
		})
	})
}

// WithCache memoizes successful calls in c
func WithCache(src Source, c *cache.TTLCache[[]RawRow]) Source {
	return SourceFunc(func(ctx context.Context, req Request) ([]RawRow, error) {
		return c.GetOrLoad(ctx, CacheKey(req), func(ctx context.Context) ([]RawRow, error) {
			return src.Fetch(ctx, req)
		})
	})
}

// CacheKey identifies a request
func CacheKey(req Request) string {
	kind := "daily"
	if req.Hourly {
		kind = "hourly"
	}
	return strings.Join([]string{
		kind, req.Metric, req.Entity, req.Resource,
		req.From.Format(apiDateLayout), req.To.Format(apiDateLayout),
	}, "|")
}

func retryable(err error) bool {
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return httputil.IsRetryableError(statusErr.StatusCode) || statusErr.StatusCode == http.StatusRequestTimeout
	}
	return true
}
