package memory

import (
	"context"
	"sync"
)

// PreferenceStore is an in-memory implementation of app.PreferenceStore.
// It is the default wiring when neither Redis nor Postgres is configured;
// values last for the process lifetime only.
type PreferenceStore struct {
	mu        sync.RWMutex
	userName  string
	highScore int
	darkTheme bool
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{}
}

func (s *PreferenceStore) UserName(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName, nil
}

func (s *PreferenceStore) SetUserName(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userName = name
	return nil
}

func (s *PreferenceStore) HighScore(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highScore, nil
}

// SetHighScore keeps the maximum ever written; lower or equal values are
// silently ignored.
func (s *PreferenceStore) SetHighScore(_ context.Context, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score > s.highScore {
		s.highScore = score
	}
	return nil
}

func (s *PreferenceStore) DarkTheme(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkTheme, nil
}

func (s *PreferenceStore) SetDarkTheme(_ context.Context, dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkTheme = dark
	return nil
}
