package xm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/energia/backend/internal/cache"
	"github.com/wonny/energia/backend/pkg/config"
	"github.com/wonny/energia/backend/pkg/httputil"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
	"github.com/wonny/energia/backend/pkg/retry"
)

// Stack composes a source: a timeout per attempt, retries around it, and
// an optional cache in front. A nil cache disables caching.
func Stack(base Source, timeout time.Duration, retryCfg retry.Config, c *cache.TTLCache[[]RawRow], log *logger.Logger) Source {
	src := WithTimeout(base, timeout)
	src = WithRetry(src, retryCfg, log)
	if c != nil {
		src = WithCache(src, c)
	}
	return src
}

// NewHTTPClient builds the rate-limited HTTP client used for XM
func NewHTTPClient(cfg config.XMConfig, rdb *redis.Client, log *logger.Logger) *httputil.Client {
	// retries happen in the source stack, one level up
	client := httputil.New(log, cfg.Timeout).
		DisableRetry().
		WithLocalLimit(cfg.RateLimit, cfg.RateBurst)

	if rdb != nil && rdb.Enabled() {
		client.WithRateLimiter(redis.NewRateLimiter(rdb, "energia"), redis.XMRateLimit)
	}
	return client
}

// ClientBuilder returns a Builder that creates the XM client, probes it
// once and wraps it in the production stack
func ClientBuilder(cfg config.XMConfig, client *Client, c *cache.TTLCache[[]RawRow], log *logger.Logger) Builder {
	return func(ctx context.Context) (Source, error) {
		if !cfg.Enabled {
			return nil, errors.New("XM_ENABLED=false")
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("xm health probe: %w", err)
		}

		retryCfg := retry.Config{
			MaxRetries:    cfg.MaxRetries,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2,
			JitterEnabled: true,
		}
		return Stack(client, cfg.Timeout, retryCfg, c, log.Module("xm")), nil
	}
}
