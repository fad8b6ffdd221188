package watchlist_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"AniTrack/internal/catalog"
	"AniTrack/internal/watchlist"
)

type fakeFetcher struct {
	calls  atomic.Int64
	animes map[int64]catalog.Anime
}

func (f *fakeFetcher) FetchAnime(ctx context.Context, malID int64) (catalog.Anime, error) {
	f.calls.Add(1)
	a, ok := f.animes[malID]
	if !ok {
		return catalog.Anime{}, catalog.ErrNotFound
	}
	return a, nil
}

type fixture struct {
	entries *watchlist.MemStore
	animes  *catalog.MemStore
	fetcher *fakeFetcher
	svc     *watchlist.Service
	userID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		entries: watchlist.NewMemStore(),
		animes:  catalog.NewMemStore(),
		fetcher: &fakeFetcher{animes: map[int64]catalog.Anime{}},
		userID:  "u_" + uuid.NewString(),
	}
	resolver := catalog.NewResolver(f.animes, f.fetcher, nil)
	f.svc = watchlist.NewService(f.entries, f.animes, resolver, nil)
	return f
}

func (f *fixture) upstreamAnime(malID int64, title string) {
	f.fetcher.animes[malID] = catalog.Anime{
		MalID:  malID,
		Title:  title,
		URL:    fmt.Sprintf("https://myanimelist.net/anime/%d", malID),
		Genres: []string{"Action"},
	}
}

// cacheAnime writes the catalog row directly, bypassing the upstream.
func (f *fixture) cacheAnime(t *testing.T, malID int64, title string) {
	t.Helper()
	err := f.animes.Insert(context.Background(), catalog.Anime{
		MalID: malID,
		Title: title,
		URL:   fmt.Sprintf("https://myanimelist.net/anime/%d", malID),
	})
	if err != nil {
		t.Fatalf("cache anime %d: %v", malID, err)
	}
}

func (f *fixture) insertEntry(t *testing.T, malID int64, status watchlist.Status, started *time.Time) {
	t.Helper()
	now := time.Now().UTC()
	err := f.entries.Insert(context.Background(), watchlist.Entry{
		UserID:      f.userID,
		MalID:       malID,
		Status:      status,
		StartedDate: started,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("insert entry %d: %v", malID, err)
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAddResolvesAndCreatesDefaultEntry(t *testing.T) {
	f := newFixture(t)
	f.upstreamAnime(5141, "Ergo Proxy")
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, 5141); err != nil {
		t.Fatalf("add: %v", err)
	}

	// The catalog gained the record.
	if _, ok, _ := f.animes.Get(ctx, 5141); !ok {
		t.Fatal("anime 5141 not cached by add")
	}

	// The entry exists with the default status.
	e, ok, err := f.entries.Get(ctx, f.userID, 5141)
	if err != nil || !ok {
		t.Fatalf("entry: ok=%v err=%v", ok, err)
	}
	if e.Status != watchlist.StatusWatching {
		t.Errorf("status = %q, want watching", e.Status)
	}

	// A later resolve is a cache hit.
	resolver := catalog.NewResolver(f.animes, f.fetcher, nil)
	if _, err := resolver.Resolve(ctx, 5141); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.fetcher.calls.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1", got)
	}
}

func TestAddIsIdempotentAndPreservesFields(t *testing.T) {
	f := newFixture(t)
	f.upstreamAnime(20, "Naruto")
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, 20); err != nil {
		t.Fatalf("add: %v", err)
	}

	completed := watchlist.StatusCompleted
	if err := f.svc.Update(ctx, f.userID, 20, watchlist.Patch{Status: &completed}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := f.svc.Add(ctx, f.userID, 20); err != nil {
		t.Fatalf("second add: %v", err)
	}

	e, _, _ := f.entries.Get(ctx, f.userID, 20)
	if e.Status != watchlist.StatusCompleted {
		t.Errorf("second add reset status to %q", e.Status)
	}
}

func TestAddPropagatesResolverErrors(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Add(context.Background(), f.userID, 404404)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("want catalog.ErrNotFound, got %v", err)
	}
	if _, ok, _ := f.entries.Get(context.Background(), f.userID, 404404); ok {
		t.Error("entry must not be created when the resolve fails")
	}
}

func TestUpdateUnknownEntry(t *testing.T) {
	f := newFixture(t)

	notes := "great"
	err := f.svc.Update(context.Background(), f.userID, 77, watchlist.Patch{Notes: &notes})
	if !errors.Is(err, watchlist.ErrEntryNotFound) {
		t.Fatalf("want ErrEntryNotFound, got %v", err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)
	f.cacheAnime(t, 9, "Monster")
	f.insertEntry(t, 9, watchlist.StatusWatching, nil)
	ctx := context.Background()

	score := 10
	notes := "masterpiece"
	err := f.svc.Update(ctx, f.userID, 9, watchlist.Patch{Score: &score, Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	e, _, _ := f.entries.Get(ctx, f.userID, 9)
	if e.Score == nil || *e.Score != 10 || e.Notes != "masterpiece" {
		t.Fatalf("patch not applied: %+v", e)
	}
	if e.Status != watchlist.StatusWatching {
		t.Errorf("status touched by unrelated patch: %q", e.Status)
	}

	// Explicit null clears; absent leaves alone.
	err = f.svc.Update(ctx, f.userID, 9, watchlist.Patch{ClearScore: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	e, _, _ = f.entries.Get(ctx, f.userID, 9)
	if e.Score != nil {
		t.Errorf("score not cleared: %v", *e.Score)
	}
	if e.Notes != "masterpiece" {
		t.Errorf("notes lost on unrelated clear: %q", e.Notes)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.cacheAnime(t, 5, "Hellsing")
	f.insertEntry(t, 5, watchlist.StatusWatching, nil)
	ctx := context.Background()

	if err := f.svc.Remove(ctx, f.userID, 5); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := f.entries.Get(ctx, f.userID, 5); ok {
		t.Fatal("entry still present")
	}
	if err := f.svc.Remove(ctx, f.userID, 5); err != nil {
		t.Fatalf("second remove must be a no-op: %v", err)
	}
}

func TestListStatusFilter(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 5; id++ {
		f.cacheAnime(t, id, fmt.Sprintf("Anime %d", id))
	}
	f.insertEntry(t, 1, watchlist.StatusCompleted, nil)
	f.insertEntry(t, 2, watchlist.StatusCompleted, nil)
	f.insertEntry(t, 3, watchlist.StatusCompleted, nil)
	f.insertEntry(t, 4, watchlist.StatusWatching, nil)
	f.insertEntry(t, 5, watchlist.StatusWatching, nil)

	items, total, err := f.svc.List(context.Background(), f.userID, 1, "", watchlist.StatusCompleted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("total=%d len=%d, want 3/3", total, len(items))
	}
	for _, it := range items {
		if it.Status != watchlist.StatusCompleted {
			t.Errorf("entry %d has status %q", it.MalID, it.Status)
		}
	}
}

func TestListSearchFilterComposesWithStatus(t *testing.T) {
	f := newFixture(t)
	f.cacheAnime(t, 1, "Neon Genesis Evangelion")
	f.cacheAnime(t, 2, "The End of Evangelion")
	f.cacheAnime(t, 3, "Cowboy Bebop")
	f.insertEntry(t, 1, watchlist.StatusCompleted, nil)
	f.insertEntry(t, 2, watchlist.StatusWatching, nil)
	f.insertEntry(t, 3, watchlist.StatusCompleted, nil)

	// Case-insensitive substring on the joined title, AND the status.
	items, total, err := f.svc.List(context.Background(), f.userID, 1, "EVANGELION", watchlist.StatusCompleted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].MalID != 1 {
		t.Fatalf("want only entry 1, got total=%d items=%+v", total, items)
	}
}

func TestListExcludesDanglingEntries(t *testing.T) {
	f := newFixture(t)
	f.cacheAnime(t, 1, "Trigun")
	f.insertEntry(t, 1, watchlist.StatusWatching, nil)
	// Entry 2 has no catalog row: the resolver never ran for it.
	f.insertEntry(t, 2, watchlist.StatusWatching, nil)

	items, total, err := f.svc.List(context.Background(), f.userID, 1, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].MalID != 1 {
		t.Fatalf("dangling entry leaked: total=%d items=%+v", total, items)
	}
}

func TestListSortOrder(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 4; id++ {
		f.cacheAnime(t, id, fmt.Sprintf("Anime %d", id))
	}
	f.insertEntry(t, 1, watchlist.StatusWatching, datePtr(2024, time.March, 1))
	f.insertEntry(t, 2, watchlist.StatusWatching, datePtr(2025, time.January, 15))
	f.insertEntry(t, 3, watchlist.StatusWatching, nil)
	f.insertEntry(t, 4, watchlist.StatusWatching, nil)

	items, _, err := f.svc.List(context.Background(), f.userID, 1, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	// Newest started first, undated entries last ordered by MAL id.
	want := []int64{2, 1, 3, 4}
	if len(items) != len(want) {
		t.Fatalf("len = %d", len(items))
	}
	for i, id := range want {
		if items[i].MalID != id {
			t.Fatalf("position %d: got %d, want %d", i, items[i].MalID, id)
		}
	}
}

func TestListPaginationIsConsistentWithTotal(t *testing.T) {
	f := newFixture(t)
	const n = 95

	for id := int64(1); id <= n; id++ {
		f.cacheAnime(t, id, fmt.Sprintf("Anime %03d", id))
		var started *time.Time
		if id%3 != 0 {
			s := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).
				Add(time.Duration(id) * 24 * time.Hour)
			started = &s
		}
		f.insertEntry(t, id, watchlist.StatusWatching, started)
	}

	seen := map[int64]bool{}
	var fetched int
	for page := 1; ; page++ {
		items, total, err := f.svc.List(context.Background(), f.userID, page, "", "")
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if total != n {
			t.Fatalf("page %d: total = %d, want %d", page, total, n)
		}
		if len(items) == 0 {
			break
		}
		if len(items) > watchlist.PerPage {
			t.Fatalf("page %d overflows: %d", page, len(items))
		}
		for _, it := range items {
			if seen[it.MalID] {
				t.Fatalf("entry %d appeared twice", it.MalID)
			}
			seen[it.MalID] = true
		}
		fetched += len(items)
	}

	if fetched != n {
		t.Fatalf("concatenated pages hold %d entries, want %d", fetched, n)
	}
}

func TestListNormalizesPage(t *testing.T) {
	f := newFixture(t)
	f.cacheAnime(t, 1, "Akira")
	f.insertEntry(t, 1, watchlist.StatusWatching, nil)

	items, total, err := f.svc.List(context.Background(), f.userID, -3, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("page <= 0 must behave as page 1, got total=%d len=%d", total, len(items))
	}
}

func TestListInvalidUserID(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.List(context.Background(), "not-a-user", 1, "", "")
	if !errors.Is(err, watchlist.ErrInvalidUserID) {
		t.Fatalf("want ErrInvalidUserID, got %v", err)
	}
}
