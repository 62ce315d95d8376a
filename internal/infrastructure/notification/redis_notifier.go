package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStreamNotifier appends notifications to a Redis stream. Downstream
// channels (email, push) read it with consumer groups.
type RedisStreamNotifier struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisStreamNotifier creates a notifier on stream. maxLen caps the stream
// with approximate trimming; zero disables trimming.
func NewRedisStreamNotifier(client redis.Cmdable, stream string, maxLen int64) *RedisStreamNotifier {
	return &RedisStreamNotifier{client: client, stream: stream, maxLen: maxLen}
}

// Notify adds n as one stream entry
func (r *RedisStreamNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := n.Encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"id":           n.ID.String(),
			"type":         n.Type,
			"order_id":     n.OrderID.String(),
			"order_number": n.OrderNumber,
			"payload":      payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append notification to stream %s: %w", r.stream, err)
	}
	return nil
}

// Close is a no-op; the client is shared and owned by the caller
func (r *RedisStreamNotifier) Close() error { return nil }
