package watchlist

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"AniTrack/internal/catalog"
)

// PerPage bounds list responses. Fixed by policy, not user-controlled.
const PerPage = 40

// AnimeSummary is the slice of the catalog record the list view carries.
// Synopsis, canonical URL and episode count are deliberately left out.
type AnimeSummary struct {
	MalID    int64    `json:"mal_id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"image_url,omitempty"`
	Genres   []string `json:"genres"`
	Year     *int     `json:"year"`
}

// ListItem is one watch-list row joined with its catalog record.
type ListItem struct {
	Entry
	Anime AnimeSummary `json:"anime"`
}

// Service composes the entry store, the catalog store and the resolver
// into the watch-list operations. All dependencies are injected; there is
// no ambient state.
type Service struct {
	entries  Store
	catalog  catalog.Store
	resolver catalog.Source
	log      *zap.Logger
}

func NewService(entries Store, cat catalog.Store, resolver catalog.Source, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{entries: entries, catalog: cat, resolver: resolver, log: log}
}

// List returns one page of the user's entries joined against the catalog,
// plus the total count under the same filters.
//
// The join is inner: an entry whose catalog row was never resolved is
// invisible, in the page and in the total alike. Both filters (status,
// case-insensitive title substring) apply to the full set before paging,
// so total can never drift from the page contents.
func (s *Service) List(ctx context.Context, userID string, page int, search string, status Status) ([]ListItem, int, error) {
	if err := validateUserID(userID); err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}

	entries, err := s.entries.Find(ctx, userID, status)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.MalID)
	}
	animes, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	needle := strings.ToLower(search)
	items := make([]ListItem, 0, len(entries))
	for _, e := range entries {
		a, ok := animes[e.MalID]
		if !ok {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(a.Title), needle) {
			continue
		}
		items = append(items, ListItem{
			Entry: e,
			Anime: AnimeSummary{
				MalID:    a.MalID,
				Title:    a.Title,
				ImageURL: a.ImageURL,
				Genres:   a.Genres,
				Year:     a.Year,
			},
		})
	}

	sortItems(items)

	total := len(items)
	lo := (page - 1) * PerPage
	if lo > total {
		lo = total
	}
	hi := lo + PerPage
	if hi > total {
		hi = total
	}

	return items[lo:hi], total, nil
}

// sortItems orders by started date descending. Entries without a started
// date come after all dated ones; ties break by MAL id ascending.
func sortItems(items []ListItem) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].StartedDate, items[j].StartedDate
		switch {
		case si == nil && sj == nil:
			return items[i].MalID < items[j].MalID
		case si == nil:
			return false
		case sj == nil:
			return true
		case !si.Equal(*sj):
			return si.After(*sj)
		}
		return items[i].MalID < items[j].MalID
	})
}

// Add resolves the anime first (populating the catalog cache if needed),
// then creates a default entry. An existing entry makes this a no-op; its
// fields are never touched.
func (s *Service) Add(ctx context.Context, userID string, malID int64) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	a, err := s.resolver.Resolve(ctx, malID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.entries.Insert(ctx, Entry{
		UserID:    userID,
		MalID:     a.MalID,
		Status:    StatusWatching,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, ErrEntryExists) {
		s.log.Info("anime already in list",
			zap.Int64("mal_id", malID), zap.String("user_id", userID))
		return nil
	}
	return err
}

// Update applies a partial update to an existing entry. A missing entry is
// an error, never an implicit create.
func (s *Service) Update(ctx context.Context, userID string, malID int64, p Patch) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	found, err := s.entries.Update(ctx, userID, malID, p)
	if err != nil {
		return err
	}
	if !found {
		return ErrEntryNotFound
	}

	s.log.Info("anime entry updated",
		zap.Int64("mal_id", malID), zap.String("user_id", userID))
	return nil
}

// Remove deletes the entry if present. Absence is a no-op.
func (s *Service) Remove(ctx context.Context, userID string, malID int64) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	found, err := s.entries.Delete(ctx, userID, malID)
	if err != nil {
		return err
	}
	if !found {
		s.log.Info("no anime entry to delete",
			zap.Int64("mal_id", malID), zap.String("user_id", userID))
	}
	return nil
}

// Ping reports entry store health for readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.entries.Ping(ctx)
}

// validateUserID accepts the ids issued at registration: "u_" + UUID.
func validateUserID(userID string) error {
	raw, ok := strings.CutPrefix(userID, "u_")
	if !ok || uuid.Validate(raw) != nil {
		return ErrInvalidUserID
	}
	return nil
}
