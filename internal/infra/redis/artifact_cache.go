package redis

import (
	"context"
	"time"
)

// ArtifactCache keeps generated prompt artifacts hot for the retention
// window. Keys expire with the record, so the cache purges itself.
type ArtifactCache struct {
	client RedisClient
}

func NewArtifactCache(client RedisClient) *ArtifactCache {
	return &ArtifactCache{client: client}
}

func (c *ArtifactCache) Put(ctx context.Context, promptID, artifact string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already past retention, nothing to cache
	}
	return c.client.Set(ctx, key(promptID), artifact, ttl)
}

func (c *ArtifactCache) Get(ctx context.Context, promptID string) (string, error) {
	return c.client.Get(ctx, key(promptID))
}

func (c *ArtifactCache) Invalidate(ctx context.Context, promptID string) error {
	return c.client.Del(ctx, key(promptID))
}

func key(promptID string) string { return "prompt_artifact:" + promptID }
