package common

import (
	"strings"
)

// EntityKind names a node label in the process graph.
type EntityKind string

const (
	KindProcess    EntityKind = "Process"
	KindTask       EntityKind = "Task"
	KindRole       EntityKind = "Role"
	KindGateway    EntityKind = "Gateway"
	KindEvent      EntityKind = "Event"
	KindDecision   EntityKind = "Decision"
	KindRule       EntityKind = "Rule"
	KindAmbiguity  EntityKind = "Ambiguity"
	KindAlias      EntityKind = "Alias"
	KindChunk      EntityKind = "ReferenceChunk"
	KindCheckpoint EntityKind = "Checkpoint"
)

// EdgeKind names a relationship type in the process graph.
type EdgeKind string

const (
	EdgeHasTask       EdgeKind = "HAS_TASK"
	EdgeHasGateway    EdgeKind = "HAS_GATEWAY"
	EdgeHasEvent      EdgeKind = "HAS_EVENT"
	EdgePerformedBy   EdgeKind = "PERFORMED_BY"
	EdgeNext          EdgeKind = "NEXT"
	EdgeHasRule       EdgeKind = "HAS_RULE"
	EdgeMakesDecision EdgeKind = "MAKES_DECISION"
	EdgeSupportedBy   EdgeKind = "SUPPORTED_BY"
	EdgeAliasOf       EdgeKind = "ALIAS_OF"
	EdgeAbout         EdgeKind = "ABOUT"
)

type TaskType string

const (
	TaskHuman  TaskType = "human"
	TaskAgent  TaskType = "agent"
	TaskSystem TaskType = "system"
)

type GatewayType string

const (
	GatewayExclusive GatewayType = "exclusive"
	GatewayParallel  GatewayType = "parallel"
	GatewayInclusive GatewayType = "inclusive"
)

type EventType string

const (
	EventStart        EventType = "start"
	EventEnd          EventType = "end"
	EventIntermediate EventType = "intermediate"
)

// NormalizeName produces the natural key for name-deduplicated entities:
// lowercase, trimmed, internal whitespace collapsed to single spaces.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Chunk is a contiguous, possibly overlapping, slice of document text and the
// unit of work for one extraction call. OrderIndex is global across the
// document and defines processing order.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	OrderIndex int    `json:"order_index"`
	Section    string `json:"section,omitempty"`
	Span       string `json:"span,omitempty"`
	Text       string `json:"text"`
	Hash       string `json:"hash,omitempty"`
}

// Process is a business process. At most one canonical Process exists per
// normalized name within a run.
type Process struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Purpose     string   `json:"purpose,omitempty"`
	Description string   `json:"description,omitempty"`
	Triggers    []string `json:"triggers,omitempty"`
	Outcomes    []string `json:"outcomes,omitempty"`
	// Seq is the creation order within the run; lower survives merges.
	Seq int `json:"seq"`
}

// Task is a unit of work inside a process. Tasks are only deduplicated by
// name within the same process.
type Task struct {
	ID          string   `json:"id"`
	ProcessID   string   `json:"process_id"`
	Name        string   `json:"name"`
	Type        TaskType `json:"task_type"`
	Description string   `json:"description,omitempty"`
	Order       int      `json:"order"`
	Seq         int      `json:"seq"`
}

// Role is an actor performing tasks. Roles are canonical across the run.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OrgUnit     string `json:"org_unit,omitempty"`
	PersonaHint string `json:"persona_hint,omitempty"`
	Seq         int    `json:"seq"`
}

type Gateway struct {
	ID          string      `json:"id"`
	ProcessID   string      `json:"process_id"`
	Type        GatewayType `json:"gateway_type"`
	Condition   string      `json:"condition,omitempty"`
	Description string      `json:"description,omitempty"`
}

type Event struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"process_id"`
	Type      EventType `json:"event_type"`
	Name      string    `json:"name"`
	Trigger   string    `json:"trigger,omitempty"`
}

// Decision is a DMN decision, deduplicated by name like processes and roles.
type Decision struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	InputData   []string `json:"input_data,omitempty"`
	OutputData  []string `json:"output_data,omitempty"`
	Seq         int      `json:"seq"`
}

// Rule is a single DMN rule row of a decision.
type Rule struct {
	ID         string  `json:"id"`
	DecisionID string  `json:"decision_id"`
	When       string  `json:"when"`
	Then       string  `json:"then"`
	Confidence float64 `json:"confidence"`
}

// Evidence links an entity to the chunk it was extracted from. The first
// chunk wins for display.
type Evidence struct {
	EntityID string `json:"entity_id"`
	ChunkID  string `json:"chunk_id"`
	Page     int    `json:"page"`
}

// SequenceFlow is a directed edge between two tasks. The (from, to) pair is
// unique and from never equals to.
type SequenceFlow struct {
	FromTaskID  string `json:"from_task_id"`
	ToTaskID    string `json:"to_task_id"`
	Condition   string `json:"condition,omitempty"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// Alias records a name that was merged into a canonical entity.
type Alias struct {
	ID         string     `json:"id"`
	EntityType EntityKind `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Text       string     `json:"text"`
	Normalized string     `json:"normalized"`
}
