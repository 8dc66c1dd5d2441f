package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

type nodeKey struct {
	kind common.EntityKind
	key  string
}

type edgeKey struct {
	kind     common.EdgeKind
	from, to string
}

// GraphMemoryStorage is an in-process GraphStore. Query results come back in
// insertion order.
type GraphMemoryStorage struct {
	mu sync.RWMutex

	nodes     map[nodeKey]*store.Node
	nodeOrder []nodeKey
	edges     map[edgeKey]*store.Edge
	edgeOrder []edgeKey

	embeddings map[string][]float32
}

func NewGraphMemoryStorage() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		nodes:      make(map[nodeKey]*store.Node),
		edges:      make(map[edgeKey]*store.Edge),
		embeddings: make(map[string][]float32),
	}
}

func (s *GraphMemoryStorage) UpsertNode(
	ctx context.Context,
	kind common.EntityKind,
	naturalKey string,
	attrs map[string]any,
) (string, error) {
	prepared, id, err := store.PrepareAttributes(kind, attrs)
	if err != nil {
		return "", err
	}
	normalized, err := store.Normalize(prepared)
	if err != nil {
		return "", err
	}
	idField := common.MustSchema(kind).IDField

	s.mu.Lock()
	defer s.mu.Unlock()

	k := nodeKey{kind: kind, key: naturalKey}
	if existing, ok := s.nodes[k]; ok {
		delete(normalized, idField)
		maps.Copy(existing.Attributes, normalized)
		return existing.ID, nil
	}
	s.nodes[k] = &store.Node{
		ID:         id,
		Kind:       kind,
		NaturalKey: naturalKey,
		Attributes: normalized,
	}
	s.nodeOrder = append(s.nodeOrder, k)
	return id, nil
}

func (s *GraphMemoryStorage) UpsertEdge(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
	attrs map[string]any,
) error {
	normalized, err := store.Normalize(attrs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := edgeKey{kind: kind, from: fromID, to: toID}
	if existing, ok := s.edges[k]; ok {
		maps.Copy(existing.Attributes, normalized)
		return nil
	}
	s.edges[k] = &store.Edge{Kind: kind, From: fromID, To: toID, Attributes: normalized}
	s.edgeOrder = append(s.edgeOrder, k)
	return nil
}

func (s *GraphMemoryStorage) QueryNodes(
	ctx context.Context,
	kind common.EntityKind,
	filter store.Filter,
) ([]store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Node
	for _, k := range s.nodeOrder {
		if k.kind != kind {
			continue
		}
		n := s.nodes[k]
		if !store.Matches(*n, filter) {
			continue
		}
		cp := *n
		cp.Attributes = maps.Clone(n.Attributes)
		out = append(out, cp)
	}
	return out, nil
}

func (s *GraphMemoryStorage) QueryEdges(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
) ([]store.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Edge
	for _, k := range s.edgeOrder {
		if k.kind != kind {
			continue
		}
		if (fromID != "" && k.from != fromID) || (toID != "" && k.to != toID) {
			continue
		}
		e := s.edges[k]
		cp := *e
		cp.Attributes = maps.Clone(e.Attributes)
		out = append(out, cp)
	}
	return out, nil
}

// GetEmbedding and PutEmbedding make the store usable as a similarity
// embedding cache.
func (s *GraphMemoryStorage) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.embeddings[key]
	return slices.Clone(vec), ok, nil
}

func (s *GraphMemoryStorage) PutEmbedding(ctx context.Context, key string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[key] = slices.Clone(vec)
	return nil
}

func (s *GraphMemoryStorage) Close() error {
	return nil
}
