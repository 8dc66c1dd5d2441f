package extract

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

// Placeholder names substituted for candidates the model left unnamed.
const (
	UnknownProcess  = "Unknown Process"
	UnknownRole     = "Unknown Role"
	UnnamedEvent    = "Event"
	UnnamedDecision = "Decision"
)

type ProcessCandidate struct {
	Name        string
	Purpose     string
	Description string
	Triggers    []string
	Outcomes    []string
}

type RoleCandidate struct {
	Name        string
	OrgUnit     string
	PersonaHint string
}

// TaskCandidate is a validated task mention. Index is the 0-based position
// in the chunk's task list; HasOrder reports whether Order came from the
// model rather than from Index.
type TaskCandidate struct {
	Index int
	Name  string
	// Unnamed marks a task the model gave no name; Name then holds a
	// placeholder that is only unique within the chunk.
	Unnamed       bool
	Type          common.TaskType
	Description   string
	Order         int
	HasOrder      bool
	ParentProcess string
	PerformerRole string
	NextTask      string
	PreviousTask  string
}

type GatewayCandidate struct {
	Type          common.GatewayType
	Condition     string
	Description   string
	ParentProcess string
}

type EventCandidate struct {
	Type          common.EventType
	Name          string
	Trigger       string
	ParentProcess string
}

type DecisionCandidate struct {
	Name        string
	Description string
	InputData   []string
	OutputData  []string
	RelatedRole string
}

// RuleCandidate references its decision by name or by an id the model made
// up; Decision holds whichever was given.
type RuleCandidate struct {
	Decision   string
	When       string
	Then       string
	Confidence float64
}

type TaskRoleLink struct {
	TaskName string
	RoleName string
}

type TaskProcessLink struct {
	TaskName    string
	ProcessName string
}

type SequenceLink struct {
	FromTask  string
	ToTask    string
	Condition string
}

// CandidateSet is the strict form of one chunk's extraction answer. Every
// entity carries a usable name; links may still name unknown entities and
// are resolved (or dropped) by the consolidation engine.
type CandidateSet struct {
	Processes []ProcessCandidate
	Roles     []RoleCandidate
	Tasks     []TaskCandidate
	Gateways  []GatewayCandidate
	Events    []EventCandidate
	Decisions []DecisionCandidate
	Rules     []RuleCandidate

	TaskRoleLinks    []TaskRoleLink
	TaskProcessLinks []TaskProcessLink
	SequenceLinks    []SequenceLink
}

// Empty reports whether the set holds no candidates at all.
func (s CandidateSet) Empty() bool {
	return len(s.Processes)+len(s.Roles)+len(s.Tasks)+len(s.Gateways)+len(s.Events)+
		len(s.Decisions)+len(s.Rules)+len(s.TaskRoleLinks)+len(s.TaskProcessLinks)+len(s.SequenceLinks) == 0
}

// Validate converts a raw payload into a CandidateSet. It never fails:
// missing or malformed fields are replaced with defaults.
func Validate(p Payload) CandidateSet {
	var set CandidateSet

	for _, b := range p.Processes {
		set.Processes = append(set.Processes, ProcessCandidate{
			Name:        orDefault(b.str("name"), UnknownProcess),
			Purpose:     b.str("purpose"),
			Description: b.str("description"),
			Triggers:    b.strList("triggers"),
			Outcomes:    b.strList("outcomes"),
		})
	}

	for _, b := range p.Roles {
		set.Roles = append(set.Roles, RoleCandidate{
			Name:        orDefault(b.str("name"), UnknownRole),
			OrgUnit:     b.str("org_unit", "department"),
			PersonaHint: b.str("persona_hint", "description"),
		})
	}

	for i, b := range p.Tasks {
		order, ok := b.integer("order")
		name := b.str("name")
		set.Tasks = append(set.Tasks, TaskCandidate{
			Index:         i,
			Name:          orDefault(name, fmt.Sprintf("Task %d", i+1)),
			Unnamed:       name == "",
			Type:          taskType(b.str("task_type", "type")),
			Description:   b.str("description"),
			Order:         order,
			HasOrder:      ok,
			ParentProcess: b.str("parent_process", "process_name", "process"),
			PerformerRole: b.str("performer_role", "role_name", "role"),
			NextTask:      b.str("next_task"),
			PreviousTask:  b.str("previous_task"),
		})
	}

	for _, b := range p.Gateways {
		set.Gateways = append(set.Gateways, GatewayCandidate{
			Type:          gatewayType(b.str("gateway_type", "type")),
			Condition:     b.str("condition"),
			Description:   b.str("description"),
			ParentProcess: b.str("parent_process", "process_name"),
		})
	}

	for _, b := range p.Events {
		set.Events = append(set.Events, EventCandidate{
			Type:          eventType(b.str("event_type", "type")),
			Name:          orDefault(b.str("name"), UnnamedEvent),
			Trigger:       b.str("trigger"),
			ParentProcess: b.str("parent_process", "process_name"),
		})
	}

	for _, b := range p.Decisions {
		set.Decisions = append(set.Decisions, DecisionCandidate{
			Name:        orDefault(b.str("name"), UnnamedDecision),
			Description: b.str("description"),
			InputData:   b.strList("input_data"),
			OutputData:  b.strList("output_data"),
			RelatedRole: b.str("related_role", "role"),
		})
	}

	for _, b := range p.Rules {
		confidence, ok := b.number("confidence")
		if !ok {
			confidence = 1
		}
		set.Rules = append(set.Rules, RuleCandidate{
			Decision:   b.str("decision", "decision_name", "decision_id"),
			When:       b.str("when", "condition"),
			Then:       b.str("then", "result"),
			Confidence: clamp01(confidence),
		})
	}

	for _, b := range p.TaskRoleMappings {
		set.TaskRoleLinks = append(set.TaskRoleLinks, TaskRoleLink{
			TaskName: b.str("task_name", "task"),
			RoleName: b.str("role_name", "role"),
		})
	}

	for _, b := range p.TaskProcessMappings {
		set.TaskProcessLinks = append(set.TaskProcessLinks, TaskProcessLink{
			TaskName:    b.str("task_name", "task"),
			ProcessName: b.str("process_name", "process"),
		})
	}

	for _, b := range p.SequenceFlows {
		set.SequenceLinks = append(set.SequenceLinks, SequenceLink{
			FromTask:  b.str("from_task", "from"),
			ToTask:    b.str("to_task", "to"),
			Condition: b.str("condition"),
		})
	}

	return set
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func taskType(s string) common.TaskType {
	switch common.TaskType(strings.ToLower(s)) {
	case common.TaskAgent:
		return common.TaskAgent
	case common.TaskSystem:
		return common.TaskSystem
	}
	return common.TaskHuman
}

func gatewayType(s string) common.GatewayType {
	switch common.GatewayType(strings.ToLower(s)) {
	case common.GatewayParallel:
		return common.GatewayParallel
	case common.GatewayInclusive:
		return common.GatewayInclusive
	}
	return common.GatewayExclusive
}

func eventType(s string) common.EventType {
	switch common.EventType(strings.ToLower(s)) {
	case common.EventEnd:
		return common.EventEnd
	case common.EventIntermediate:
		return common.EventIntermediate
	}
	return common.EventStart
}
