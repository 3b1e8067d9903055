package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PreferenceStore keeps the three user scalars as plain Redis strings:
//
//	SET quiz:prefs:user_name  {name}
//	SET quiz:prefs:high_score {score}
//	SET quiz:prefs:dark_theme {0|1}
//
// Missing keys read as the documented defaults.
type PreferenceStore struct {
	client *redis.Client
}

func NewPreferenceStore(client *redis.Client) *PreferenceStore {
	return &PreferenceStore{client: client}
}

func (s *PreferenceStore) UserName(ctx context.Context) (string, error) {
	name, err := s.client.Get(ctx, s.key("user_name")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read user name: %w", err)
	}
	return name, nil
}

func (s *PreferenceStore) SetUserName(ctx context.Context, name string) error {
	if err := s.client.Set(ctx, s.key("user_name"), name, 0).Err(); err != nil {
		return fmt.Errorf("write user name: %w", err)
	}
	return nil
}

func (s *PreferenceStore) HighScore(ctx context.Context) (int, error) {
	score, err := s.client.Get(ctx, s.key("high_score")).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read high score: %w", err)
	}
	return score, nil
}

// SetHighScore persists the score only when it beats the stored one. The
// check-then-set runs inside a WATCH transaction so racing writers still
// converge on the max.
func (s *PreferenceStore) SetHighScore(ctx context.Context, score int) error {
	key := s.key("high_score")

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if score <= current {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, score, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write high score: %w", err)
		}
		return nil
	}
	return fmt.Errorf("write high score: %w", redis.TxFailedErr)
}

func (s *PreferenceStore) DarkTheme(ctx context.Context) (bool, error) {
	dark, err := s.client.Get(ctx, s.key("dark_theme")).Bool()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read theme: %w", err)
	}
	return dark, nil
}

func (s *PreferenceStore) SetDarkTheme(ctx context.Context, dark bool) error {
	if err := s.client.Set(ctx, s.key("dark_theme"), dark, 0).Err(); err != nil {
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}

func (s *PreferenceStore) key(field string) string {
	return "quiz:prefs:" + field
}
