package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

const upsertNodeSQL = `
INSERT INTO graph_nodes (id, kind, natural_key, attributes)
VALUES ($1, $2, $3, $4)
ON CONFLICT (kind, natural_key) DO UPDATE
SET attributes = graph_nodes.attributes || (EXCLUDED.attributes - $5::text),
    updated_at = now()
RETURNING id`

const queryNodesSQL = `
SELECT id, natural_key, attributes
FROM graph_nodes
WHERE kind = $1
  AND ($2 = '' OR natural_key = $2)
  AND attributes @> $3
ORDER BY seq`

// UpsertNode relies on the (kind, natural_key) unique constraint, so a
// concurrent create of the same key resolves to the row that won.
func (s *GraphDBStorage) UpsertNode(
	ctx context.Context,
	kind common.EntityKind,
	naturalKey string,
	attrs map[string]any,
) (string, error) {
	prepared, id, err := store.PrepareAttributes(kind, attrs)
	if err != nil {
		return "", err
	}
	idField := common.MustSchema(kind).IDField
	sanitizeAttributes(prepared)

	var stored string
	err = s.conn.QueryRow(ctx, upsertNodeSQL, id, string(kind), util.SanitizePostgresText(naturalKey), prepared, idField).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to upsert %s %q: %w", kind, naturalKey, err)
	}
	return stored, nil
}

func (s *GraphDBStorage) QueryNodes(
	ctx context.Context,
	kind common.EntityKind,
	filter store.Filter,
) ([]store.Node, error) {
	contains := filter.Attributes
	if contains == nil {
		contains = map[string]any{}
	}
	rows, err := s.conn.Query(ctx, queryNodesSQL, string(kind), filter.NaturalKey, contains)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s nodes: %w", kind, err)
	}
	defer rows.Close()

	var nodes []store.Node
	for rows.Next() {
		n := store.Node{Kind: kind}
		if err := rows.Scan(&n.ID, &n.NaturalKey, &n.Attributes); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// sanitizeAttributes cleans every string jsonb would reject, in place.
func sanitizeAttributes(attrs map[string]any) {
	for k, v := range attrs {
		attrs[k] = sanitizeValue(v)
	}
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return util.SanitizePostgresText(val)
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			out[i] = util.SanitizePostgresText(s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeValue(item)
		}
		return out
	}
	return v
}
