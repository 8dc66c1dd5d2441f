package common

import "fmt"

// Dependent describes a foreign key held by another kind that points at the
// owning kind, and the edge that materialises it in the graph.
//
// ParentToChild edges run from the referenced node to the dependent
// (Process -HAS_TASK-> Task); otherwise the dependent is the edge source
// (Task -PERFORMED_BY-> Role).
type Dependent struct {
	Kind          EntityKind
	Field         string
	Edge          EdgeKind
	ParentToChild bool
}

// KindSchema is the per-kind descriptor used by persistence, restart
// recovery and review resolution.
type KindSchema struct {
	Kind EntityKind
	// IDField is the attribute under which the opaque id is stored.
	IDField string
	// Deduplicated kinds are keyed by normalized name and take part in
	// similarity normalization.
	Deduplicated bool
	Dependents   []Dependent
}

var schemas = map[EntityKind]KindSchema{
	KindProcess: {
		Kind:         KindProcess,
		IDField:      "proc_id",
		Deduplicated: true,
		Dependents: []Dependent{
			{Kind: KindTask, Field: "process_id", Edge: EdgeHasTask, ParentToChild: true},
			{Kind: KindGateway, Field: "process_id", Edge: EdgeHasGateway, ParentToChild: true},
			{Kind: KindEvent, Field: "process_id", Edge: EdgeHasEvent, ParentToChild: true},
		},
	},
	KindRole: {
		Kind:         KindRole,
		IDField:      "role_id",
		Deduplicated: true,
		Dependents: []Dependent{
			{Kind: KindTask, Field: "role_id", Edge: EdgePerformedBy},
		},
	},
	KindDecision: {
		Kind:         KindDecision,
		IDField:      "decision_id",
		Deduplicated: true,
		Dependents: []Dependent{
			{Kind: KindRule, Field: "decision_id", Edge: EdgeHasRule, ParentToChild: true},
		},
	},
	KindTask:       {Kind: KindTask, IDField: "task_id"},
	KindGateway:    {Kind: KindGateway, IDField: "gateway_id"},
	KindEvent:      {Kind: KindEvent, IDField: "event_id"},
	KindRule:       {Kind: KindRule, IDField: "rule_id"},
	KindAmbiguity:  {Kind: KindAmbiguity, IDField: "amb_id"},
	KindAlias:      {Kind: KindAlias, IDField: "alias_id"},
	KindChunk:      {Kind: KindChunk, IDField: "chunk_id"},
	KindCheckpoint: {Kind: KindCheckpoint, IDField: "checkpoint_id"},
}

// DeduplicatedKinds lists the kinds normalized by similarity, in the order
// the normalization pass visits them.
var DeduplicatedKinds = []EntityKind{KindProcess, KindRole, KindDecision}

// SchemaFor returns the descriptor for kind.
func SchemaFor(kind EntityKind) (KindSchema, error) {
	s, ok := schemas[kind]
	if !ok {
		return KindSchema{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return s, nil
}

// MustSchema is SchemaFor for kinds known at compile time.
func MustSchema(kind EntityKind) KindSchema {
	s, err := SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// NaturalKey returns the uniqueness key of n in the graph store: the
// normalized name for deduplicated kinds, the id otherwise.
func NaturalKey(n Node) string {
	s := MustSchema(n.Kind())
	if s.Deduplicated {
		if named, ok := n.(Named); ok {
			return NormalizeName(named.EntityName())
		}
	}
	if a, ok := n.(*Alias); ok {
		return string(a.EntityType) + ":" + a.Normalized
	}
	return n.NodeID()
}

// NodeAttributes returns the attributes of n including its id field.
func NodeAttributes(n Node) map[string]any {
	attrs := n.Attributes()
	attrs[MustSchema(n.Kind()).IDField] = n.NodeID()
	return attrs
}
