package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var animeColumns = []string{"mal_id", "title", "image_url", "episodes", "synopsis", "url", "genres", "year"}

// PostgresStore persists anime records in the animes table. mal_id carries
// a unique constraint; Insert maps its violation to ErrAnimeExists.
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

func (s *PostgresStore) Get(ctx context.Context, malID int64) (Anime, bool, error) {
	query, args, err := qb.Select(animeColumns...).
		From("animes").
		Where(sq.Eq{"mal_id": malID}).
		ToSql()
	if err != nil {
		return Anime{}, false, err
	}

	var a Anime
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return scanAnime(s.db.QueryRowContext(ctx, query, args...), &a)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Anime{}, false, nil
	}
	if err != nil {
		return Anime{}, false, err
	}
	return a, true, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, malIDs []int64) (map[int64]Anime, error) {
	if len(malIDs) == 0 {
		return map[int64]Anime{}, nil
	}

	query, args, err := qb.Select(animeColumns...).
		From("animes").
		Where(sq.Eq{"mal_id": malIDs}).
		ToSql()
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Anime, len(malIDs))
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a Anime
			if err := scanAnime(rows, &a); err != nil {
				return err
			}
			out[a.MalID] = a
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, a Anime) error {
	query, args, err := qb.Insert("animes").
		Columns(animeColumns...).
		Values(a.MalID, a.Title, a.ImageURL, a.Episodes, a.Synopsis, a.URL, pq.StringArray(a.Genres), a.Year).
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
			return ErrAnimeExists
		}
		return err
	})
}

type rowScanner interface {
	Scan(dst ...any) error
}

func scanAnime(row rowScanner, a *Anime) error {
	return row.Scan(
		&a.MalID,
		&a.Title,
		&a.ImageURL,
		&a.Episodes,
		&a.Synopsis,
		&a.URL,
		(*pq.StringArray)(&a.Genres),
		&a.Year,
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
