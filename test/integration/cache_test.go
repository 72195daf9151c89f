//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicez/internal/cache"
)

func TestRemoteCaches(t *testing.T) {
	url := startValkey(t)

	drivers := []struct {
		name string
		opts cache.Options
	}{
		{"valkey", cache.Options{Driver: cache.DriverValkey, ValkeyURL: url}},
		{"redis client", cache.Options{Driver: cache.DriverRedis, RedisURL: url}},
		{"valkey with l1", cache.Options{Driver: cache.DriverValkey, ValkeyURL: url, L1MaxItems: 16, L1TTL: time.Second}},
	}

	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			c, err := cache.New(d.opts)
			require.NoError(t, err)
			defer c.Close()

			require.NoError(t, c.Health(ctx))

			key := "it:" + d.name
			miss, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, miss)

			require.NoError(t, c.Set(ctx, key, []byte(`{"ok":true}`), time.Minute))
			got, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"ok":true}`), got)

			exists, err := c.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, c.Delete(ctx, key))
			exists, err = c.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}
