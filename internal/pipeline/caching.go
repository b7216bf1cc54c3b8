package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"orderflow/internal/cache"
	"orderflow/internal/platform/metrics"
)

// Caching short-circuits cacheable queries and invalidates declared keys after
// successful writes. The cache is an optimization: every store failure is
// logged and treated as a miss (reads) or a no-op (writes and invalidation).
func Caching[Req, Res any](store cache.Store, logger *slog.Logger, m *metrics.Metrics) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			if query, ok := any(req).(CacheableQuery); ok && query.CacheKey() != "" {
				return serveCached(ctx, store, query, next, req, logger, m)
			}

			res, err := next(ctx, req)
			if err != nil {
				return res, err
			}

			// Invalidation runs only after a successful write.
			if inv, ok := any(req).(CacheInvalidator); ok {
				invalidate(ctx, store, inv.InvalidatesCacheKeys(), logger)
			}
			return res, nil
		}
	}
}

func serveCached[Req, Res any](
	ctx context.Context,
	store cache.Store,
	query CacheableQuery,
	next Handler[Req, Res],
	req Req,
	logger *slog.Logger,
	m *metrics.Metrics,
) (Res, error) {
	key := query.CacheKey()

	res, hit, err := cache.GetJSON[Res](ctx, store, key)
	if err != nil {
		logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
	}
	if hit {
		if m != nil {
			m.CacheHits.Inc()
		}
		return res, nil
	}
	if m != nil {
		m.CacheMisses.Inc()
	}

	res, err = next(ctx, req)
	if err != nil {
		return res, err
	}
	if err := cache.SetJSON(ctx, store, key, res, query.CacheTTL()); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
	return res, nil
}

func invalidate(ctx context.Context, store cache.Store, keys []string, logger *slog.Logger) {
	for _, key := range keys {
		var err error
		if strings.Contains(key, "*") {
			err = store.RemoveByPattern(ctx, key)
		} else {
			err = store.Remove(ctx, key)
		}
		if err != nil {
			logger.Warn("cache invalidation failed", "key", key, "error", err)
		}
	}
}
