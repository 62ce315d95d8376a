package notification

import (
	"fmt"

	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New builds the notifier selected by cfg.Driver. The redis driver needs a
// connected client.
func New(cfg config.NotificationConfig, client *redis.Client, logger *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case config.NotificationDriverKafka:
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case config.NotificationDriverRedis:
		if client == nil {
			return nil, fmt.Errorf("notification driver %q requires a Redis connection", cfg.Driver)
		}
		return NewRedisStreamNotifier(client, cfg.RedisStream, cfg.StreamMaxLen), nil
	case config.NotificationDriverLog, "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}
