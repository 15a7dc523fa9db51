package metadata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"elsa-fe/internal/domain"
)

// DescriptorSource fetches session descriptors from the metadata API.
type DescriptorSource interface {
	SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error)
}

// DescriptorCache caches descriptors with a short TTL so repeated lookups of
// the same code (retries, lobby refreshes) avoid extra round-trips. The TTL
// is kept short because the descriptor's status field goes stale once the
// host starts the session.
type DescriptorCache struct {
	source DescriptorSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDescriptor
}

type cachedDescriptor struct {
	desc      domain.SessionDescriptor
	expiresAt time.Time
}

func NewDescriptorCache(source DescriptorSource, ttl time.Duration) *DescriptorCache {
	return &DescriptorCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDescriptor),
	}
}

func (c *DescriptorCache) SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.desc, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.desc, nil
		}
		c.mu.RUnlock()

		desc, err := c.source.SessionByCode(ctx, code)
		if err != nil {
			return domain.SessionDescriptor{}, err
		}

		c.mu.Lock()
		c.cache[code] = cachedDescriptor{
			desc:      desc,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return desc, nil
	})
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	return result.(domain.SessionDescriptor), nil
}

// Invalidate drops a cached descriptor, forcing the next lookup to refetch.
func (c *DescriptorCache) Invalidate(code string) {
	c.mu.Lock()
	delete(c.cache, code)
	c.mu.Unlock()
}

func (c *DescriptorCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
