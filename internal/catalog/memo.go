package catalog

import (
	"context"
	"strconv"
	"time"

	"github.com/viccon/sturdyc"
)

const (
	memoShards          = 64
	memoEvictionPercent = 10
)

// MemoResolver decorates a Source with a short-lived in-process cache.
// Concurrent lookups for the same id collapse into one inner resolve and
// hot ids skip the store entirely for a TTL. The durable store stays the
// cache of record; this layer only trades staleness it cannot have (records
// are immutable) for fewer reads.
type MemoResolver struct {
	inner Source
	cache *sturdyc.Client[Anime]
}

func NewMemoResolver(inner Source, capacity int, ttl time.Duration) *MemoResolver {
	return &MemoResolver{
		inner: inner,
		cache: sturdyc.New[Anime](capacity, memoShards, ttl, memoEvictionPercent),
	}
}

func (m *MemoResolver) Resolve(ctx context.Context, malID int64) (Anime, error) {
	key := "anime:" + strconv.FormatInt(malID, 10)
	return m.cache.GetOrFetch(ctx, key, func(ctx context.Context) (Anime, error) {
		return m.inner.Resolve(ctx, malID)
	})
}
