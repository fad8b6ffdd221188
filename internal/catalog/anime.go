package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the upstream has no anime with the requested MAL id.
	ErrNotFound = errors.New("anime not found")
	// ErrUpstreamUnavailable means the anime API could not be reached or
	// answered with a server error. Safe to retry later; never retried here.
	ErrUpstreamUnavailable = errors.New("anime api unavailable")
	// ErrAnimeExists is returned by Store.Insert when the MAL id is already
	// cached. The resolver absorbs it; it never reaches handlers.
	ErrAnimeExists = errors.New("anime already cached")
)

// Anime is the canonical catalog record. Rows are written once on first
// resolve and never updated or deleted afterwards.
type Anime struct {
	MalID    int64    `json:"mal_id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"image_url,omitempty"`
	Episodes *int64   `json:"episodes"`
	Synopsis string   `json:"synopsis,omitempty"`
	URL      string   `json:"url"`
	Genres   []string `json:"genres"`
	Year     *int     `json:"year"`
}

// Store is the durable anime cache, keyed by MAL id. Insert must enforce
// uniqueness and report a duplicate as ErrAnimeExists.
type Store interface {
	Get(ctx context.Context, malID int64) (Anime, bool, error)
	GetMany(ctx context.Context, malIDs []int64) (map[int64]Anime, error)
	Insert(ctx context.Context, a Anime) error
	Ping(ctx context.Context) error
}
