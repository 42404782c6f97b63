package nodes

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/arborlabs/arbor/models"
)

// DefaultCacheTTL mirrors the store's practical staleness window for
// display reads. Mutable fields are never served from cache on
// read-modify-write paths regardless of TTL.
const DefaultCacheTTL = 5 * time.Minute

// NewCache builds the node cache the repository is constructed with. The
// cache is explicit and injected so ownership of invalidation is visible:
// every repository write path deletes the ids it touched.
func NewCache(ttl time.Duration) *ttlcache.Cache[string, models.Node] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, models.Node](ttl),
		ttlcache.WithDisableTouchOnHit[string, models.Node](),
	)
	go cache.Start()
	return cache
}
