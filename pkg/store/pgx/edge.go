package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

const upsertEdgeSQL = `
INSERT INTO graph_edges (kind, from_id, to_id, attributes)
VALUES ($1, $2, $3, $4)
ON CONFLICT (kind, from_id, to_id) DO UPDATE
SET attributes = graph_edges.attributes || EXCLUDED.attributes`

const queryEdgesSQL = `
SELECT from_id, to_id, attributes
FROM graph_edges
WHERE kind = $1
  AND ($2 = '' OR from_id = $2)
  AND ($3 = '' OR to_id = $3)
ORDER BY seq`

func (s *GraphDBStorage) UpsertEdge(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
	attrs map[string]any,
) error {
	if attrs == nil {
		attrs = map[string]any{}
	}
	if _, err := s.conn.Exec(ctx, upsertEdgeSQL, string(kind), fromID, toID, attrs); err != nil {
		return fmt.Errorf("failed to upsert %s edge %s -> %s: %w", kind, fromID, toID, err)
	}
	return nil
}

func (s *GraphDBStorage) QueryEdges(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
) ([]store.Edge, error) {
	rows, err := s.conn.Query(ctx, queryEdgesSQL, string(kind), fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s edges: %w", kind, err)
	}
	defer rows.Close()

	var edges []store.Edge
	for rows.Next() {
		e := store.Edge{Kind: kind}
		if err := rows.Scan(&e.From, &e.To, &e.Attributes); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
