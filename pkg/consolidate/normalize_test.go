package consolidate

import (
	"context"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score float64
		want  Action
	}{
		{1, ActionMerge},
		{0.90, ActionMerge},
		{0.8999, ActionReview},
		{0.80, ActionReview},
		{0.7999, ActionCreate},
		{0, ActionCreate},
	}
	for _, tt := range tests {
		if got := Classify(tt.score, th); got != tt.want {
			t.Fatalf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func rolesState(e *Engine, names ...string) *State {
	st := e.NewState("doc")
	var roles []extract.RoleCandidate
	for _, n := range names {
		roles = append(roles, extract.RoleCandidate{Name: n})
	}
	e.IngestChunk(st, chunk(0), extract.CandidateSet{Roles: roles})
	return st
}

func TestNormalizeMergeAndRepair(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Purchaser", "Buyer", 0.95)
	e := newTestEngine(oracle)
	st := rolesState(e, "Buyer", "Purchaser")

	purchaser := st.Roles[1].ID
	st.TaskRoles["t1"] = RoleAssignment{RoleID: purchaser, Source: SourceLink}

	if err := e.Normalize(context.Background(), st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(st.Merges) != 1 {
		t.Fatalf("expected one merge, got %+v", st.Merges)
	}
	e.Repair(st)

	if len(st.Roles) != 1 || st.Roles[0].Name != "Buyer" {
		t.Fatalf("expected Buyer to survive, got %+v", st.Roles)
	}
	buyer := st.Roles[0].ID
	if got := st.TaskRoles["t1"]; got.RoleID != buyer || got.Source != SourceLink {
		t.Fatalf("expected assignment to move to survivor, got %+v", got)
	}
	if id, _ := st.Registry.Lookup(common.KindRole, "purchaser"); id != buyer {
		t.Fatalf("expected alias lookup to resolve to survivor")
	}
	if len(st.Aliases) != 1 || st.Aliases[0].Text != "Purchaser" {
		t.Fatalf("unexpected aliases %+v", st.Aliases)
	}

	before, _ := st.Snapshot()
	e.Repair(st)
	after, _ := st.Snapshot()
	if string(before) != string(after) {
		t.Fatalf("repair is not idempotent")
	}
}

func TestNormalizeReviewParksCandidate(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Team lead", "Team leader", 0.85)
	e := newTestEngine(oracle)
	st := rolesState(e, "Team leader", "Team lead")

	if err := e.Normalize(context.Background(), st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []Review{{
		Kind:      common.KindRole,
		EntityID:  st.Roles[1].ID,
		Name:      "Team lead",
		MatchID:   st.Roles[0].ID,
		MatchName: "Team leader",
		Score:     0.85,
	}}
	if !reflect.DeepEqual(st.Pending, want) {
		t.Fatalf("unexpected pending %+v", st.Pending)
	}
	if len(st.Merges) != 0 || len(st.Roles) != 2 {
		t.Fatalf("review must neither merge nor drop")
	}
}

func TestNormalizeTieGoesToFirst(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Controller", "Accountant", 0.95)
	oracle.set("Controller", "Auditor", 0.95)
	e := newTestEngine(oracle)
	st := rolesState(e, "Accountant", "Auditor", "Controller")

	if err := e.Normalize(context.Background(), st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(st.Merges) != 1 || st.Merges[0].To != st.Roles[0].ID {
		t.Fatalf("expected merge into first canonical role, got %+v", st.Merges)
	}
}

func TestNormalizeHighestScoreWins(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Controller", "Accountant", 0.91)
	oracle.set("Controller", "Auditor", 0.97)
	e := newTestEngine(oracle)
	st := rolesState(e, "Accountant", "Auditor", "Controller")

	if err := e.Normalize(context.Background(), st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(st.Merges) != 1 || st.Merges[0].To != st.Roles[1].ID {
		t.Fatalf("expected merge into Auditor, got %+v", st.Merges)
	}
}

func TestNormalizeOracleFailureCreates(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Clerk", "Office clerk", 0.99)
	oracle.failing[pair("Clerk", "Office clerk")] = true
	e := newTestEngine(oracle)
	st := rolesState(e, "Clerk", "Office clerk")

	if err := e.Normalize(context.Background(), st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(st.Merges) != 0 || len(st.Pending) != 0 {
		t.Fatalf("failed comparison must not merge")
	}
	if st.Stats.SimilarityErrors != 1 {
		t.Fatalf("expected failure to be counted, got %d", st.Stats.SimilarityErrors)
	}
}

func TestNormalizeSkipsDecidedEntities(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("A", "B", 0.95)
	e := newTestEngine(oracle)
	st := rolesState(e, "A", "B")

	ctx := context.Background()
	if err := e.Normalize(ctx, st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	calls := oracle.calls
	if err := e.Normalize(ctx, st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(st.Merges) != 1 || oracle.calls != calls {
		t.Fatalf("second pass should not rescore decided entities")
	}
}

func TestRepairProcessMovesDependents(t *testing.T) {
	oracle := newScoreOracle()
	oracle.set("Purchase approval", "Purchase approval process", 0.93)
	e := newTestEngine(oracle)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "Purchase approval"}},
		Tasks:     tasks("Purchase approval", "Request"),
	})
	e.IngestChunk(st, chunk(1), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "Purchase approval process", Description: "full"}},
		Tasks:     tasks("Purchase approval process", "Approve"),
		Gateways:  []extract.GatewayCandidate{{Type: common.GatewayExclusive, ParentProcess: "Purchase approval process"}},
	})

	ctx := context.Background()
	if err := e.Normalize(ctx, st); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	e.Repair(st)

	if len(st.Processes) != 1 {
		t.Fatalf("expected one process, got %d", len(st.Processes))
	}
	survivor := st.Processes[0]
	if survivor.Name != "Purchase approval" || survivor.Description != "full" {
		t.Fatalf("unexpected survivor %+v", survivor)
	}
	for _, task := range st.Tasks {
		if task.ProcessID != survivor.ID {
			t.Fatalf("task %q still points at %q", task.Name, task.ProcessID)
		}
	}
	if st.Gateways[0].ProcessID != survivor.ID {
		t.Fatalf("gateway not moved")
	}
}
