package pipeline

import (
	"context"
	"log/slog"

	"orderflow/internal/domain"
	"orderflow/internal/notify"
)

// DomainEvents scopes the request to its own unit-of-work session, then
// collects the events raised by the entities that session committed. Taking
// events is atomic per entity, so neither a second pass nor a concurrent
// pipeline can dispatch the same event twice; entities staged by other,
// still-uncommitted requests are never collected. Unmapped event kinds are
// dropped deliberately; handler failures are contained by the bus and never
// fail the request.
func DomainEvents[Req, Res any](uow domain.UnitOfWork, bus *notify.Bus, logger *slog.Logger) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			ctx, _ = domain.Begin(ctx)

			res, err := next(ctx, req)
			if err != nil {
				return res, err
			}

			for _, source := range uow.EntitiesWithPendingEvents(ctx) {
				for _, event := range source.TakeEvents() {
					notification, ok := bus.Convert(event)
					if !ok {
						logger.Debug("no notification mapping for event, dropping",
							"kind", event.Kind())
						continue
					}
					bus.Publish(ctx, notification)
				}
			}
			return res, nil
		}
	}
}
