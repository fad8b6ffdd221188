package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var entryColumns = []string{
	"user_id", "mal_id", "status", "started_date", "finished_date",
	"notes", "score", "created_at", "updated_at",
}

// PostgresStore persists entries in the anime_entries table. The primary
// key (user_id, mal_id) enforces the one-entry-per-title invariant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Find(ctx context.Context, userID string, status Status) ([]Entry, error) {
	b := qb.Select(entryColumns...).
		From("anime_entries").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("mal_id ASC")
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var out []Entry
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Entry, 0, 16)
		for rows.Next() {
			var e Entry
			if err := scanEntry(rows, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string, malID int64) (Entry, bool, error) {
	query, args, err := qb.Select(entryColumns...).
		From("anime_entries").
		Where(sq.Eq{"user_id": userID, "mal_id": malID}).
		ToSql()
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return scanEntry(s.db.QueryRowContext(ctx, query, args...), &e)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	query, args, err := qb.Insert("anime_entries").
		Columns(entryColumns...).
		Values(e.UserID, e.MalID, e.Status, e.StartedDate, e.FinishedDate,
			e.Notes, e.Score, e.CreatedAt, e.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return ErrEntryExists
		}
		return err
	})
}

func (s *PostgresStore) Update(ctx context.Context, userID string, malID int64, p Patch) (bool, error) {
	b := qb.Update("anime_entries").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"user_id": userID, "mal_id": malID})

	if p.Status != nil {
		b = b.Set("status", *p.Status)
	}
	if p.Notes != nil {
		b = b.Set("notes", *p.Notes)
	}
	if p.StartedDate != nil || p.ClearStarted {
		b = b.Set("started_date", p.StartedDate)
	}
	if p.FinishedDate != nil || p.ClearFinished {
		b = b.Set("finished_date", p.FinishedDate)
	}
	if p.Score != nil || p.ClearScore {
		b = b.Set("score", p.Score)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return false, err
	}

	var found bool
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		found = n > 0
		return err
	})
	return found, err
}

func (s *PostgresStore) Delete(ctx context.Context, userID string, malID int64) (bool, error) {
	query, args, err := qb.Delete("anime_entries").
		Where(sq.Eq{"user_id": userID, "mal_id": malID}).
		ToSql()
	if err != nil {
		return false, err
	}

	var found bool
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		found = n > 0
		return err
	})
	return found, err
}

type rowScanner interface {
	Scan(dst ...any) error
}

func scanEntry(row rowScanner, e *Entry) error {
	return row.Scan(
		&e.UserID,
		&e.MalID,
		&e.Status,
		&e.StartedDate,
		&e.FinishedDate,
		&e.Notes,
		&e.Score,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
