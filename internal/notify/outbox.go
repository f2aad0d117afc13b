// internal/notify/outbox.go
package notify

import (
	"context"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var failures, _ = otel.Meter("barternexus/notify").Int64Counter(
	"notify.failures",
	metric.WithDescription("Notifications that could not be handed to the sink"),
)

// Outbox collects notifications while a transaction runs. Flush is called
// only after the transaction committed, so a rolled back operation never
// notifies anyone.
type Outbox struct {
	pending []market.Notification
}

func (o *Outbox) Add(userID uuid.UUID, kind market.NotificationKind, payload map[string]interface{}) {
	o.pending = append(o.pending, market.Notification{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
	})
}

// Pending returns the notifications collected so far.
func (o *Outbox) Pending() []market.Notification {
	return o.pending
}

// Flush hands every collected notification to sink. Failures are logged and
// counted but never returned: delivery must not decide the outcome of the
// operation that produced them.
func (o *Outbox) Flush(ctx context.Context, sink market.NotificationSink, logger *zap.Logger) {
	if sink == nil {
		o.pending = nil
		return
	}
	for _, n := range o.pending {
		if err := sink.Notify(ctx, n); err != nil {
			failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
			logger.Warn("Failed to deliver notification",
				zap.String("user_id", n.UserID.String()),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
		}
	}
	o.pending = nil
}
