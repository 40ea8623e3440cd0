package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// OutboxStream is the Redis stream a delivery worker consumes.
	OutboxStream = "notify:v1:outbox"

	outboxMaxLen = 10000
)

// RedisOutboxNotifier appends messages to a capped Redis stream. Send returns
// only after the entry is written, so a caller that gets nil knows the
// message will be delivered.
type RedisOutboxNotifier struct {
	client *redis.Client
	stream string
}

// NewRedisOutboxNotifier constructs a notifier writing to OutboxStream.
func NewRedisOutboxNotifier(client *redis.Client) *RedisOutboxNotifier {
	return &RedisOutboxNotifier{client: client, stream: OutboxStream}
}

// Send appends the message to the outbox stream.
func (n *RedisOutboxNotifier) Send(ctx context.Context, message Message) error {
	if message.Destination == "" {
		return fmt.Errorf("notification %s: destination is required", message.Kind)
	}
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: outboxMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":        message.Kind,
			"destination": message.Destination,
			"body":        message.Body,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
