package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// GetEmbedding implements similarity.EmbeddingCache.
func (s *GraphDBStorage) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := s.conn.QueryRow(ctx, `SELECT embedding FROM embedding_cache WHERE key = $1`, key).Scan(&vec)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

func (s *GraphDBStorage) PutEmbedding(ctx context.Context, key string, vec []float32) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO embedding_cache (key, embedding) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, pgvector.NewVector(vec),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}
