// Package seasons manages the competitive seasons that rooms and star
// awards attach to via season_id.
package seasons

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("SEASON_NOT_FOUND")

type Season struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, name string, startsAt, endsAt time.Time) (Season, error) {
	if name == "" {
		return Season{}, errors.New("name is required")
	}
	if !endsAt.After(startsAt) {
		return Season{}, errors.New("season must end after it starts")
	}
	var season Season
	err := s.pool.QueryRow(ctx,
		`insert into seasons (name, starts_at, ends_at, created_at)
		 values ($1,$2,$3,$4)
		 returning id, name, starts_at, ends_at, created_at`,
		name, startsAt.UTC(), endsAt.UTC(), time.Now().UTC(),
	).Scan(&season.ID, &season.Name, &season.StartsAt, &season.EndsAt, &season.CreatedAt)
	return season, err
}

func (s *Store) Get(ctx context.Context, id string) (Season, error) {
	var season Season
	err := s.pool.QueryRow(ctx,
		"select id, name, starts_at, ends_at, created_at from seasons where id = $1", id,
	).Scan(&season.ID, &season.Name, &season.StartsAt, &season.EndsAt, &season.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return season, ErrNotFound
	}
	return season, err
}

// Active returns the season whose window covers now. Overlapping
// windows resolve to the most recently started one.
func (s *Store) Active(ctx context.Context, now time.Time) (Season, error) {
	var season Season
	err := s.pool.QueryRow(ctx,
		`select id, name, starts_at, ends_at, created_at from seasons
		 where starts_at <= $1 and ends_at > $1
		 order by starts_at desc limit 1`,
		now.UTC(),
	).Scan(&season.ID, &season.Name, &season.StartsAt, &season.EndsAt, &season.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return season, ErrNotFound
	}
	return season, err
}

func (s *Store) List(ctx context.Context) ([]Season, error) {
	rows, err := s.pool.Query(ctx,
		"select id, name, starts_at, ends_at, created_at from seasons order by starts_at desc")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Season
	for rows.Next() {
		var season Season
		if err := rows.Scan(&season.ID, &season.Name, &season.StartsAt, &season.EndsAt, &season.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, season)
	}
	return out, rows.Err()
}
