package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orderflow/internal/idempotency"
	"orderflow/internal/platform/metrics"
	"orderflow/pkg/platform/sentinel"
)

// StatusCoded lets a response carry a status code into its idempotency record
// so transports can replay it faithfully.
type StatusCoded interface {
	ResponseStatus() int
}

// Idempotency short-circuits retried requests. State machine per key:
// absent -> reserved -> completed. A completed record answers the retry with
// the stored response; a live reservation rejects it with
// sentinel.ErrInProgress. Store failures degrade to "no protection" rather
// than failing the request.
func Idempotency[Req, Res any](store idempotency.Store, logger *slog.Logger, m *metrics.Metrics) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			var zero Res

			idem, ok := any(req).(Idempotent)
			if !ok {
				return next(ctx, req)
			}
			key := idem.IdempotencyKey()
			if key == "" {
				return next(ctx, req)
			}

			record, err := store.GetByKey(ctx, key)
			if err != nil {
				logger.Warn("idempotency lookup failed, continuing unprotected",
					"key", key, "error", err)
				return next(ctx, req)
			}
			if record != nil {
				if record.Completed() {
					var res Res
					if err := json.Unmarshal(record.Response, &res); err != nil {
						logger.Warn("stored idempotent response unreadable, re-executing",
							"key", key, "error", err)
						return next(ctx, req)
					}
					if m != nil {
						m.IdempotentReplays.Inc()
					}
					return res, nil
				}
				if m != nil {
					m.IdempotentRejects.Inc()
				}
				return zero, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrInProgress)
			}

			reserved := true
			err = store.Add(ctx, idempotency.Record{Key: key, CreatedAt: time.Now()})
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				// Lost the reservation race to a concurrent request.
				if m != nil {
					m.IdempotentRejects.Inc()
				}
				return zero, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrInProgress)
			case err != nil:
				logger.Warn("idempotency reserve failed, continuing unprotected",
					"key", key, "error", err)
				reserved = false
			}

			res, err := next(ctx, req)
			if err != nil {
				if reserved {
					// Release the key so the caller may retry the failed request.
					if remErr := store.Remove(ctx, key); remErr != nil {
						logger.Warn("idempotency release failed", "key", key, "error", remErr)
					}
				}
				return zero, err
			}

			if reserved {
				completeRecord(ctx, store, key, res, logger)
			}
			return res, nil
		}
	}
}

func completeRecord[Res any](ctx context.Context, store idempotency.Store, key string, res Res, logger *slog.Logger) {
	body, err := json.Marshal(res)
	if err != nil {
		logger.Warn("idempotent response not serializable, releasing key",
			"key", key, "error", err)
		if remErr := store.Remove(ctx, key); remErr != nil {
			logger.Warn("idempotency release failed", "key", key, "error", remErr)
		}
		return
	}

	record := idempotency.Record{Key: key, Response: body}
	if coded, ok := any(res).(StatusCoded); ok {
		record.Status = coded.ResponseStatus()
	}
	if err := store.Update(ctx, record); err != nil {
		logger.Warn("idempotency completion failed", "key", key, "error", err)
	}
}
