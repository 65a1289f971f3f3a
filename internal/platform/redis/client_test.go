package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorkyc/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("configured values override url defaults", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://:secret@cache.internal:6380/2",
			PoolSize:    20,
			DialTimeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://not-redis"})
		assert.Error(t, err)
	})
}

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}
