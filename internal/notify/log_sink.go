// internal/notify/log_sink.go
package notify

import (
	"context"

	"barternexus/internal/market"

	"go.uber.org/zap"
)

// LogSink writes notifications to the log. It is used when no broker is
// configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, n market.Notification) error {
	s.logger.Info("Notification",
		zap.String("user_id", n.UserID.String()),
		zap.String("kind", string(n.Kind)),
		zap.Any("payload", n.Payload),
	)
	return nil
}
