package memory

import (
	"context"

	"quiz-kiosk-service/internal/domain"
)

// StaticLoader is a catalog.Loader backed by a fixed slice (useful for
// tests/demos).
type StaticLoader struct {
	questions []domain.Question
}

func NewStaticLoader(questions []domain.Question) *StaticLoader {
	return &StaticLoader{questions: questions}
}

func (l *StaticLoader) Load(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}

// FailingLoader always returns the given error (useful to exercise the
// best-effort load path).
type FailingLoader struct {
	Err error
}

func (l *FailingLoader) Load(_ context.Context) ([]domain.Question, error) {
	return nil, l.Err
}
