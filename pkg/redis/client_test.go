package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
)

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSetAndFlush(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("searchclient-test-%d:", time.Now().UnixNano())

	_, found, err := c.Get(ctx, prefix+"missing")
	require.NoError(t, err)
	assert.False(t, found)

	for i := 0; i < 250; i++ {
		idx := "books"
		if i%2 == 1 {
			idx = "films"
		}
		require.NoError(t, c.Set(ctx, fmt.Sprintf("%s|%s|:%d", prefix, idx, i), []byte("v"), time.Minute))
	}

	v, found, err := c.Get(ctx, prefix+"|books|:0")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	n, err := c.FlushByPattern(ctx, prefix+"*|books|*")
	require.NoError(t, err)
	assert.Equal(t, int64(125), n)

	n, err = c.FlushByPattern(ctx, prefix+"*")
	require.NoError(t, err)
	assert.Equal(t, int64(125), n)
	assert.NoError(t, c.Ping(ctx))
}

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(fmt.Errorf("get: %w", goredis.Nil)))
	assert.False(t, IsNilError(nil))
	assert.False(t, IsNilError(context.Canceled))
}
