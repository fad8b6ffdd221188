package watchlist

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEntryNotFound means the (user, MAL id) pair has no entry.
	ErrEntryNotFound = errors.New("anime entry not found")
	// ErrEntryExists is returned by Store.Insert on a duplicate pair. Add
	// absorbs it to stay idempotent.
	ErrEntryExists = errors.New("anime entry already exists")
	// ErrInvalidUserID means the user id is not in the shape this service
	// issues. Caller's fault, not retryable.
	ErrInvalidUserID = errors.New("invalid user id")
)

type Status string

const (
	StatusWatching  Status = "watching"
	StatusCompleted Status = "completed"
	StatusPlanning  Status = "planning to watch"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWatching, StatusCompleted, StatusPlanning:
		return true
	}
	return false
}

// Entry is one user's tracking record for one anime. The pair
// (UserID, MalID) is unique; the MAL id is the join key to the catalog, so
// an entry can exist before its catalog row does.
type Entry struct {
	UserID       string     `json:"user_id"`
	MalID        int64      `json:"mal_id"`
	Status       Status     `json:"status"`
	StartedDate  *time.Time `json:"started_date"`
	FinishedDate *time.Time `json:"finished_date"`
	Notes        string     `json:"notes,omitempty"`
	Score        *int       `json:"score"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Patch carries a partial update. Nil pointer fields were not provided and
// leave the entry untouched. For the nullable fields an explicit null in
// the request sets the Clear flag instead, which wipes the stored value.
type Patch struct {
	Status *Status
	Notes  *string

	StartedDate  *time.Time
	ClearStarted bool

	FinishedDate  *time.Time
	ClearFinished bool

	Score      *int
	ClearScore bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Notes == nil &&
		p.StartedDate == nil && !p.ClearStarted &&
		p.FinishedDate == nil && !p.ClearFinished &&
		p.Score == nil && !p.ClearScore
}

// Store is the durable entry store. Find filters by user and optionally by
// status (empty means all) and returns entries ordered by MAL id ascending
// so downstream sorting is deterministic. Insert enforces pair uniqueness.
type Store interface {
	Find(ctx context.Context, userID string, status Status) ([]Entry, error)
	Get(ctx context.Context, userID string, malID int64) (Entry, bool, error)
	Insert(ctx context.Context, e Entry) error
	Update(ctx context.Context, userID string, malID int64, p Patch) (bool, error)
	Delete(ctx context.Context, userID string, malID int64) (bool, error)
	Ping(ctx context.Context) error
}
