package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/logger"
)

type entry struct {
	Name string `json:"name"`
}

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *Client {
	t.Helper()
	rc := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rc.Close() })
	return NewFromClient(rc, logger.NewNop())
}

func TestNewCache_Validation(t *testing.T) {
	client := unreachableClient(t)

	_, err := NewCache[entry](nil, "tool", time.Minute)
	assert.Error(t, err)

	_, err = NewCache[entry](client, "", time.Minute)
	assert.Error(t, err)

	_, err = NewCache[entry](client, "tool", 0)
	assert.Error(t, err)

	c, err := NewCache[entry](client, "tool", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "tool", c.Prefix())
	assert.Equal(t, time.Minute, c.TTL())
	assert.Equal(t, "tool:slug:calculator", c.buildKey("slug:calculator"))
}

func TestGetOrSetFallback_LoadsWhenRedisIsDown(t *testing.T) {
	c, err := NewCache[entry](unreachableClient(t), "tool", time.Minute)
	require.NoError(t, err)

	calls := 0
	got, err := c.GetOrSetFallback(context.Background(), "k", func(context.Context) (*entry, error) {
		calls++
		return &entry{Name: "calculator"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "calculator", got.Name)
	assert.Equal(t, 1, calls)
}

func TestGetOrSetFallback_PropagatesLoaderError(t *testing.T) {
	c, err := NewCache[entry](unreachableClient(t), "tool", time.Minute)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.GetOrSetFallback(context.Background(), "k", func(context.Context) (*entry, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCache_RejectsEmptyKeys(t *testing.T) {
	c, err := NewCache[entry](unreachableClient(t), "tool", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Get(ctx, "")
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, "", entry{}))
	assert.Error(t, c.Delete(ctx, ""))
	assert.Error(t, c.DeletePattern(ctx, ""))
	_, err = c.GetOrSetFallback(ctx, "k", nil)
	assert.Error(t, err)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, retryBackoff(0, 100*time.Millisecond, time.Second))
	assert.Equal(t, 400*time.Millisecond, retryBackoff(2, 100*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, retryBackoff(5, 100*time.Millisecond, time.Second))
}
