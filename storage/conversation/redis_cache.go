package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"openwork-backend/core/conversation"
)

// JobCache fronts the indexer with a Redis-backed snapshot cache so hot job
// lookups skip the GraphQL round trip. Misses and transport errors both read
// as cache misses; the cache is never authoritative.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobCache connects to Redis at addr. A zero ttl falls back to 30s.
func NewJobCache(addr string, ttl time.Duration) *JobCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &JobCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func jobCacheKey(id string) string { return "conv:job:" + id }

// Get returns the cached snapshot if present and fresh.
func (c *JobCache) Get(ctx context.Context, id string) (conversation.Job, bool) {
	raw, err := c.client.Get(ctx, jobCacheKey(id)).Bytes()
	if err != nil {
		return conversation.Job{}, false
	}
	var job conversation.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return conversation.Job{}, false
	}
	return job, true
}

// Set stores a snapshot with the cache TTL.
func (c *JobCache) Set(ctx context.Context, job conversation.Job) {
	raw, err := json.Marshal(job)
	if err != nil {
		return
	}
	c.client.Set(ctx, jobCacheKey(job.ID), raw, c.ttl)
}

// Invalidate drops the cached snapshot, e.g. after observing a state
// transition in the event log.
func (c *JobCache) Invalidate(ctx context.Context, id string) {
	c.client.Del(ctx, jobCacheKey(id))
}

// Close releases the Redis connection.
func (c *JobCache) Close() error {
	return c.client.Close()
}
