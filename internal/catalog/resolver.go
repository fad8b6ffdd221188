package catalog

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Fetcher is the upstream side of the resolver.
type Fetcher interface {
	FetchAnime(ctx context.Context, malID int64) (Anime, error)
}

// Source is anything that can resolve a MAL id to a canonical record.
// Implemented by Resolver and by MemoResolver.
type Source interface {
	Resolve(ctx context.Context, malID int64) (Anime, error)
}

// Resolver serves anime records cache-aside: the store is consulted first,
// the upstream only on a miss, and the fetched record is written back so
// later lookups stay local.
type Resolver struct {
	store    Store
	upstream Fetcher
	log      *zap.Logger
}

func NewResolver(store Store, upstream Fetcher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, upstream: upstream, log: log}
}

// Resolve returns the record for malID. Concurrent misses for the same id
// may each fetch upstream; whichever insert loses the uniqueness race reads
// the winner's row and succeeds. The store never ends up with more than one
// row per id.
func (r *Resolver) Resolve(ctx context.Context, malID int64) (Anime, error) {
	a, ok, err := r.store.Get(ctx, malID)
	if err != nil {
		return Anime{}, err
	}
	if ok {
		return a, nil
	}

	fetched, err := r.upstream.FetchAnime(ctx, malID)
	if err != nil {
		return Anime{}, err
	}

	if err := r.store.Insert(ctx, fetched); err != nil {
		if errors.Is(err, ErrAnimeExists) {
			// Lost the population race; the row is there now.
			cached, ok, gerr := r.store.Get(ctx, malID)
			if gerr != nil {
				return Anime{}, gerr
			}
			if ok {
				return cached, nil
			}
			// Rows are never deleted, so the insert conflict guarantees
			// presence; fall back to our own fetch just in case.
			return fetched, nil
		}
		return Anime{}, err
	}

	r.log.Info("anime cached", zap.Int64("mal_id", malID))
	return fetched, nil
}
