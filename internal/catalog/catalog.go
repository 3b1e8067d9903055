package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"quiz-kiosk-service/internal/domain"
)

// Loader fetches the question document from a backing store (file, DB, cache).
type Loader interface {
	Load(ctx context.Context) ([]domain.Question, error)
}

//go:embed questions.json
var defaultCatalogJSON []byte

// FileLoader reads the question document from a JSON file on disk.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) Load(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// EmbeddedLoader serves the catalog bundled into the binary.
type EmbeddedLoader struct{}

func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{}
}

func (l *EmbeddedLoader) Load(_ context.Context) ([]domain.Question, error) {
	return Parse(defaultCatalogJSON)
}

// Parse decodes a question document.
func Parse(data []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return questions, nil
}

// LoadBestEffort loads the catalog, swallowing failures. The app cannot do
// anything useful without questions but must not crash either, so errors are
// logged and an empty slice returned; callers see "no categories available".
func LoadBestEffort(ctx context.Context, loader Loader) []domain.Question {
	questions, err := loader.Load(ctx)
	if err != nil {
		log.Printf("catalog load failed, continuing with empty catalog: %v", err)
		return nil
	}
	return questions
}

// Categories returns each distinct category label exactly once, in
// first-occurrence order.
func Categories(questions []domain.Question) []string {
	seen := make(map[string]struct{}, len(questions))
	var categories []string
	for _, q := range questions {
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}
	return categories
}

// FilterByCategory returns the questions whose category matches exactly,
// preserving their relative order. No normalization is applied.
func FilterByCategory(questions []domain.Question, category string) []domain.Question {
	var filtered []domain.Question
	for _, q := range questions {
		if q.Category == category {
			filtered = append(filtered, q)
		}
	}
	return filtered
}
