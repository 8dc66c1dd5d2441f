package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

// ErrNotFound is returned by lookups that expect exactly one node.
var ErrNotFound = errors.New("node not found")

// Node is a persisted graph node. ID is the value of the kind's id field.
type Node struct {
	ID         string            `json:"id"`
	Kind       common.EntityKind `json:"kind"`
	NaturalKey string            `json:"natural_key"`
	Attributes map[string]any    `json:"attributes"`
}

// Edge is a persisted relationship. (Kind, From, To) is unique.
type Edge struct {
	Kind       common.EdgeKind `json:"kind"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// Filter selects nodes of one kind. Empty fields match everything;
// Attributes match by equality on every listed key.
type Filter struct {
	NaturalKey string
	Attributes map[string]any
}

// GraphStore persists the process graph. Implementations enforce natural
// key uniqueness per kind.
type GraphStore interface {
	// UpsertNode creates the node or returns the id of the existing node
	// with the same natural key. The kind's id attribute is only written on
	// create; other attributes are merged into an existing node. A missing
	// id attribute gets a generated one.
	UpsertNode(ctx context.Context, kind common.EntityKind, naturalKey string, attrs map[string]any) (string, error)
	// UpsertEdge creates the edge or merges attrs into the existing one.
	UpsertEdge(ctx context.Context, kind common.EdgeKind, fromID, toID string, attrs map[string]any) error
	QueryNodes(ctx context.Context, kind common.EntityKind, filter Filter) ([]Node, error)
	// QueryEdges lists edges of kind; empty ids match any endpoint.
	QueryEdges(ctx context.Context, kind common.EdgeKind, fromID, toID string) ([]Edge, error)
	Close() error
}

// GetNode returns the single node of kind whose id attribute equals id.
func GetNode(ctx context.Context, s GraphStore, kind common.EntityKind, id string) (Node, error) {
	schema, err := common.SchemaFor(kind)
	if err != nil {
		return Node{}, err
	}
	nodes, err := s.QueryNodes(ctx, kind, Filter{Attributes: map[string]any{schema.IDField: id}})
	if err != nil {
		return Node{}, err
	}
	if len(nodes) == 0 {
		return Node{}, ErrNotFound
	}
	return nodes[0], nil
}
