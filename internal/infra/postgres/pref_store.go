package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// PreferenceStore keeps the user scalars in a single-row table. The row is
// created lazily on first write; reads of a missing row yield the defaults.
// GREATEST on the high-score column gives the monotonic-max policy without a
// read-modify-write race.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

func (s *PreferenceStore) UserName(ctx context.Context) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(user_name), '') FROM preferences`).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("read user name: %w", err)
	}
	return name, nil
}

func (s *PreferenceStore) SetUserName(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (id, user_name) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET user_name = EXCLUDED.user_name`, name)
	if err != nil {
		return fmt.Errorf("write user name: %w", err)
	}
	return nil
}

func (s *PreferenceStore) HighScore(ctx context.Context) (int, error) {
	var score int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(high_score), 0) FROM preferences`).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("read high score: %w", err)
	}
	return score, nil
}

func (s *PreferenceStore) SetHighScore(ctx context.Context, score int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (id, high_score) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE
		SET high_score = GREATEST(preferences.high_score, EXCLUDED.high_score)`, score)
	if err != nil {
		return fmt.Errorf("write high score: %w", err)
	}
	return nil
}

func (s *PreferenceStore) DarkTheme(ctx context.Context) (bool, error) {
	var dark bool
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(BOOL_OR(dark_theme), FALSE) FROM preferences`).Scan(&dark)
	if err != nil {
		return false, fmt.Errorf("read theme: %w", err)
	}
	return dark, nil
}

func (s *PreferenceStore) SetDarkTheme(ctx context.Context, dark bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (id, dark_theme) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET dark_theme = EXCLUDED.dark_theme`, dark)
	if err != nil {
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}
