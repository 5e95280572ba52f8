package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/internal/cache"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc
}

// implementations returns every Cache under test. Redis is skipped in -short mode.
func implementations(t *testing.T) map[string]func(t *testing.T) cache.Cache {
	t.Helper()
	return map[string]func(t *testing.T) cache.Cache{
		"local": func(t *testing.T) cache.Cache {
			return cache.NewLocalCache(time.Minute)
		},
		"redis": func(t *testing.T) cache.Cache {
			if testing.Short() {
				t.Skip("skipping integration test")
			}
			return setupRedis(t)
		},
	}
}

// --- Ping ---

func TestPing(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			assert.NoError(t, c.Ping(context.Background()))
		})
	}
}

// --- Set / Get roundtrip ---

func TestSetGet_Roundtrip(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "test:key", []byte("hello"), 10*time.Second))

			val, found, err := c.Get(ctx, "test:key")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("hello"), val)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)

			val, found, err := c.Get(context.Background(), "nonexistent:key")
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, val)
		})
	}
}

func TestSet_TTLExpiry(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second))

			_, found, err := c.Get(ctx, "expiry:key")
			require.NoError(t, err)
			assert.True(t, found)

			time.Sleep(1500 * time.Millisecond)

			_, found, err = c.Get(ctx, "expiry:key")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "del:key", []byte("bye"), 10*time.Second))
			require.NoError(t, c.Delete(ctx, "del:key"))

			_, found, err := c.Get(ctx, "del:key")
			require.NoError(t, err)
			assert.False(t, found)

			assert.NoError(t, c.Delete(ctx, "does:not:exist"))
		})
	}
}

// --- Job Status ---

func TestSetGetJobStatus(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()
			jobID := uuid.NewString()

			require.NoError(t, c.SetJobStatus(ctx, models.JobKindFace, jobID, models.JobStatusInProgress, 10*time.Second))

			status, found, err := c.GetJobStatus(ctx, models.JobKindFace, jobID)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, models.JobStatusInProgress, status)

			_, found, err = c.GetJobStatus(ctx, models.JobKindSTT, jobID)
			require.NoError(t, err)
			assert.False(t, found, "kinds must not share keys")
		})
	}
}

// --- IncrWithExpiry ---

func TestIncrWithExpiry(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()
			key := "ratelimit:test:" + uuid.NewString()[:8]

			for want := int64(1); want <= 3; want++ {
				val, err := c.IncrWithExpiry(ctx, key, 10*time.Second)
				require.NoError(t, err)
				assert.Equal(t, want, val)
			}
		})
	}
}

func TestIncrWithExpiry_Expires(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			ctx := context.Background()
			key := "ratelimit:expiry:" + uuid.NewString()[:8]

			_, err := c.IncrWithExpiry(ctx, key, 1*time.Second)
			require.NoError(t, err)

			time.Sleep(1500 * time.Millisecond)

			// After expiry, should start from 1 again
			val, err := c.IncrWithExpiry(ctx, key, 10*time.Second)
			require.NoError(t, err)
			assert.Equal(t, int64(1), val)
		})
	}
}

// --- Cache Key Builders ---

func TestJobStatusKey(t *testing.T) {
	assert.Equal(t, "job:face:abc-123", cache.JobStatusKey(models.JobKindFace, "abc-123"))
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "ratelimit:10.0.0.1", cache.RateLimitKey("10.0.0.1"))
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	keys := map[string]bool{
		cache.JobStatusKey(models.JobKindSTT, "1"):  true,
		cache.JobStatusKey(models.JobKindFace, "1"): true,
		cache.RateLimitKey("client"):                true,
		cache.HealthProbeKey():                      true,
	}
	assert.Len(t, keys, 4, "all keys should be unique")
}
