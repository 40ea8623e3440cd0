package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()
	_, err := NewRedisClient(ctx, "")
	assert.Error(t, err)
	_, err = NewRedisClient(ctx, "not a url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "")
	assert.Error(t, err)
	_, err = NewPostgresPool(context.Background(), "://bad")
	assert.Error(t, err)
}
