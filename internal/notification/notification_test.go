package notification

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerNotifierWithholdsBody(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Send(context.Background(), Message{Kind: KindPasswordReset, Destination: "a@x.com", Body: "secret-ticket"}))

	out := buf.String()
	assert.Contains(t, out, KindPasswordReset)
	assert.Contains(t, out, "a@x.com")
	assert.NotContains(t, out, "secret-ticket")
}

func TestNilLoggerNotifierIsNoop(t *testing.T) {
	var n *LoggerNotifier
	assert.NoError(t, n.Send(context.Background(), Message{Kind: KindPasswordReset}))
}

func TestRedisOutboxNotifierAppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	n := NewRedisOutboxNotifier(client)

	require.NoError(t, n.Send(ctx, Message{Kind: KindPasswordReset, Destination: "a@x.com", Body: "ticket"}))

	entries, err := client.XRange(ctx, OutboxStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindPasswordReset, entries[0].Values["kind"])
	assert.Equal(t, "a@x.com", entries[0].Values["destination"])
	assert.Equal(t, "ticket", entries[0].Values["body"])

	assert.Error(t, n.Send(ctx, Message{Kind: KindPasswordReset}), "destination is required")
}

func TestRedisOutboxNotifierReportsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisOutboxNotifier(client).Send(context.Background(), Message{Kind: KindPasswordReset, Destination: "a@x.com"})
	assert.Error(t, err)
}
