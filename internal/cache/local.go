package cache

import (
	"context"
	"time"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
	gocache "github.com/patrickmn/go-cache"
)

// LocalCache is an in-process Cache backed by go-cache, used when no Redis
// URL is configured.
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a LocalCache. Items without a TTL never expire.
func NewLocalCache(cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *LocalCache) Ping(context.Context) error {
	return nil
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.cache.Set(key, append([]byte(nil), value...), expiration(ttl))
	return nil
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *LocalCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *LocalCache) SetJobStatus(_ context.Context, kind models.JobKind, jobID string, status models.JobStatus, ttl time.Duration) error {
	c.cache.Set(JobStatusKey(kind, jobID), status, expiration(ttl))
	return nil
}

func (c *LocalCache) GetJobStatus(_ context.Context, kind models.JobKind, jobID string) (models.JobStatus, bool, error) {
	v, found := c.cache.Get(JobStatusKey(kind, jobID))
	if !found {
		return "", false, nil
	}
	status, ok := v.(models.JobStatus)
	return status, ok, nil
}

// IncrWithExpiry increments key, creating it with the given expiry on first
// use. Unlike the Redis pipeline, later increments keep the original expiry.
func (c *LocalCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	if err := c.cache.Add(key, int64(1), expiration(expiry)); err == nil {
		return 1, nil
	}
	n, err := c.cache.IncrementInt64(key, 1)
	if err != nil {
		// Expired between Add and Increment.
		c.cache.Set(key, int64(1), expiration(expiry))
		return 1, nil
	}
	return n, nil
}

func (c *LocalCache) Close() error {
	c.cache.Flush()
	return nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

var _ Cache = (*LocalCache)(nil)
