package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiz-kiosk-service/internal/catalog"
	"quiz-kiosk-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DefaultCatalogID is the document id used when none is configured.
const DefaultCatalogID = "default"

// CatalogLoader loads the question document JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
	id   string
}

func NewCatalogLoader(pool *pgxpool.Pool, id string) *CatalogLoader {
	if id == "" {
		id = DefaultCatalogID
	}
	return &CatalogLoader{pool: pool, id: id}
}

func (l *CatalogLoader) Load(ctx context.Context) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM catalog WHERE id=$1`, l.id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCatalogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	questions, err := catalog.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return questions, nil
}
