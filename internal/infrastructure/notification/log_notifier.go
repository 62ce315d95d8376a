package notification

import (
	"context"

	"github.com/leorit/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the application log. It is the
// default driver for development.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogNotifier{logger: l.Named("notification")}
}

// Notify logs n at info level
func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	recipients := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		if r.ActorID != nil {
			recipients = append(recipients, string(r.Role)+":"+r.ActorID.String())
			continue
		}
		recipients = append(recipients, string(r.Role))
	}

	logger.For(ctx, n.logger).Info("notification",
		zap.String("notification_id", msg.ID.String()),
		zap.String("type", msg.Type),
		zap.String("order_number", msg.OrderNumber),
		zap.String("subject", msg.Subject),
		zap.Strings("recipients", recipients),
	)
	return nil
}

// Close implements Notifier
func (n *LogNotifier) Close() error { return nil }
