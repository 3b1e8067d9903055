package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"quiz-kiosk-service/internal/catalog"
	"quiz-kiosk-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "quiz:catalog"

// CatalogCache caches the question document in Redis as a JSON blob and
// falls back to the underlying loader on cache miss. Concurrent misses are
// collapsed through singleflight so the backing store is hit once.
type CatalogCache struct {
	client *redis.Client
	loader catalog.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader catalog.Loader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) Load(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if questions, ok := c.cached(ctx); ok {
			return questions, nil
		}

		questions, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			// Cache fill is best-effort; a failed write just means the next
			// process hits the loader again.
			_ = c.client.Set(ctx, catalogKey, data, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.Question, bool) {
	// An unreachable cache is treated the same as a miss; the loader decides.
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	questions, err := catalog.Parse(data)
	if err != nil {
		return nil, false
	}
	return questions, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
