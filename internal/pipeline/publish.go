package pipeline

import (
	"context"
	"log/slog"
)

// PublishOutbound attempts immediate broker delivery for publishable responses
// and, regardless of the outcome, submits the envelope to the retry queue.
// The queue's entity-id dedup makes the unconditional submit a no-op when the
// event is already pending, so a transient broker outage self-heals without
// replaying the original request.
func PublishOutbound[Req, Res any](publisher TryPublisher, queue Enqueuer, logger *slog.Logger) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			res, err := next(ctx, req)
			if err != nil {
				return res, err
			}

			publishable, ok := any(res).(Publishable)
			if !ok {
				return res, nil
			}
			env, ok := publishable.OutboundEvent()
			if !ok {
				return res, nil
			}

			if !publisher.TryPublish(ctx, env) {
				logger.Warn("immediate publish failed, retry queue will deliver",
					"kind", env.Kind, "entityId", env.EntityID)
			}
			queue.Enqueue(ctx, env)
			return res, nil
		}
	}
}
