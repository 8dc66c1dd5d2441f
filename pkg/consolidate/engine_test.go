package consolidate

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
)

func TestIngestSameProcessAcrossChunks(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "구매요청 승인 프로세스", Purpose: "승인"}},
	})
	e.IngestChunk(st, chunk(1), extract.CandidateSet{
		Tasks: tasks("", "요청서 작성", "팀장 검토"),
	})
	e.IngestChunk(st, chunk(2), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: " 구매요청  승인 프로세스"}},
	})

	if len(st.Processes) != 1 {
		t.Fatalf("expected 1 process, got %d", len(st.Processes))
	}
	pid := st.Processes[0].ID
	for _, task := range st.Tasks {
		if task.ProcessID != pid {
			t.Fatalf("task %q not attached to %q", task.Name, pid)
		}
	}
	if ev := st.Evidence[pid]; ev.ChunkID != "doc-c0" {
		t.Fatalf("expected first chunk evidence, got %+v", ev)
	}
	if st.NextChunk != 3 || st.Stats.ChunksProcessed != 3 {
		t.Fatalf("unexpected progress %d/%d", st.NextChunk, st.Stats.ChunksProcessed)
	}
}

func TestIngestRoleRegisteredOnce(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	for i := 1; i <= 3; i++ {
		e.IngestChunk(st, chunk(i), extract.CandidateSet{
			Roles: []extract.RoleCandidate{{Name: "구매담당자"}},
		})
	}
	if len(st.Roles) != 1 || st.Registry.Len(common.KindRole) != 1 {
		t.Fatalf("expected a single role, got %d roles and %d keys", len(st.Roles), st.Registry.Len(common.KindRole))
	}
	if st.Stats.Absorbed != 2 {
		t.Fatalf("expected 2 absorbed mentions, got %d", st.Stats.Absorbed)
	}
}

func TestIngestTaskDefaults(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "Ordering"}, {Name: "Billing"}},
		Roles:     []extract.RoleCandidate{{Name: "Clerk"}},
		Tasks: []extract.TaskCandidate{
			{Index: 0, Name: "Send invoice", ParentProcess: "Billing", PerformerRole: "Clerk"},
			{Index: 1, Name: "Pick goods", ParentProcess: "Warehouse", PerformerRole: "Picker"},
			{Index: 2, Name: "Ship", Order: 7, HasOrder: true},
		},
	})

	billing, _ := st.Registry.Lookup(common.KindProcess, "Billing")
	ordering, _ := st.Registry.Lookup(common.KindProcess, "Ordering")
	clerk, _ := st.Registry.Lookup(common.KindRole, "Clerk")

	send, pick, ship := st.Tasks[0], st.Tasks[1], st.Tasks[2]
	if send.ProcessID != billing || pick.ProcessID != ordering || ship.ProcessID != ordering {
		t.Fatalf("unexpected process ids %q %q %q", send.ProcessID, pick.ProcessID, ship.ProcessID)
	}
	if got := st.TaskRoles[send.ID]; got.RoleID != clerk || got.Source != SourceExtracted {
		t.Fatalf("unexpected assignment %+v", got)
	}
	if _, ok := st.TaskRoles[pick.ID]; ok {
		t.Fatalf("unknown role must not be guessed")
	}
	if pick.Order != 1 || ship.Order != 7 {
		t.Fatalf("unexpected orders %d %d", pick.Order, ship.Order)
	}
}

func TestIngestTasksDedupedWithinProcess(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "A"}, {Name: "B"}},
		Tasks: []extract.TaskCandidate{
			{Name: "Check", ParentProcess: "A"},
			{Name: "Check", ParentProcess: "B"},
		},
	})
	e.IngestChunk(st, chunk(1), extract.CandidateSet{
		Tasks: []extract.TaskCandidate{{Name: "check", ParentProcess: "A", Description: "second mention"}},
	})

	if len(st.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %v", taskNames(st))
	}
	if st.Tasks[0].Description != "second mention" {
		t.Fatalf("expected empty description to be filled, got %q", st.Tasks[0].Description)
	}
}

func TestIngestUnnamedTasksStayDistinct(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "P"}},
		Tasks: []extract.TaskCandidate{
			{Name: "Task 1", Unnamed: true, ParentProcess: "P", Description: "collect forms", Order: 1, HasOrder: true},
		},
	})
	e.IngestChunk(st, chunk(1), extract.CandidateSet{
		Tasks: []extract.TaskCandidate{
			{Name: "Task 1", Unnamed: true, ParentProcess: "P", Description: "archive forms", Order: 2, HasOrder: true},
		},
	})

	if len(st.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %v", taskNames(st))
	}
	if got, want := taskNames(st), []string{"Task 1.1", "Task 2.1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	if st.Tasks[1].Description != "archive forms" || st.Tasks[1].Order != 2 {
		t.Fatalf("second task lost its data: %+v", st.Tasks[1])
	}

	e.Finalize(st)
	want := common.SequenceFlow{FromTaskID: st.Tasks[0].ID, ToTaskID: st.Tasks[1].ID, Synthesized: true}
	if len(st.Flows) != 1 || st.Flows[0] != want {
		t.Fatalf("flows = %+v, want [%+v]", st.Flows, want)
	}

	// The same chunk extracted again names its task the same way.
	again := e.NewState("doc")
	e.IngestChunk(again, chunk(1), extract.CandidateSet{
		Tasks: []extract.TaskCandidate{{Name: "Task 1", Unnamed: true, ParentProcess: "P"}},
	})
	if again.Tasks[0].Name != "Task 2.1" {
		t.Fatalf("rerun named the task %q", again.Tasks[0].Name)
	}
}

func TestIngestChunkScopedIDs(t *testing.T) {
	set := extract.CandidateSet{
		Gateways:  []extract.GatewayCandidate{{Type: common.GatewayExclusive}},
		Events:    []extract.EventCandidate{{Type: common.EventStart}},
		Decisions: []extract.DecisionCandidate{{Name: "Limit"}},
		Rules:     []extract.RuleCandidate{{Decision: "Limit", When: "amount > 100", Then: "escalate"}},
	}

	var ids [][3]string
	for range 2 {
		e := newTestEngine(nil)
		st := e.NewState("doc")
		e.IngestChunk(st, chunk(3), set)
		ids = append(ids, [3]string{st.Gateways[0].ID, st.Events[0].ID, st.Rules[0].ID})
	}
	if ids[0] != ids[1] {
		t.Fatalf("ids differ between runs: %v", ids)
	}
	if want := [3]string{"doc-c3-g0", "doc-c3-e0", "doc-c3-r0"}; ids[0] != want {
		t.Fatalf("ids = %v, want %v", ids[0], want)
	}
}

func TestIngestRules(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Rules: []extract.RuleCandidate{{Decision: "Nothing yet", When: "a", Then: "b", Confidence: 1}},
	})
	if len(st.Rules) != 0 || st.Stats.RulesDropped != 1 {
		t.Fatalf("expected orphan rule to be dropped")
	}

	e.IngestChunk(st, chunk(1), extract.CandidateSet{
		Roles: []extract.RoleCandidate{{Name: "Manager"}},
		Decisions: []extract.DecisionCandidate{
			{Name: "Approval limit", RelatedRole: "Manager"},
			{Name: "Supplier choice"},
		},
		Rules: []extract.RuleCandidate{
			{Decision: "approval limit", When: "amount > 1000", Then: "escalate", Confidence: 0.9},
			{Decision: "dec_42", When: "single source", Then: "justify", Confidence: 1},
		},
	})

	limit, _ := st.Registry.Lookup(common.KindDecision, "Approval limit")
	choice, _ := st.Registry.Lookup(common.KindDecision, "Supplier choice")
	if st.Rules[0].DecisionID != limit || st.Rules[1].DecisionID != choice {
		t.Fatalf("unexpected rule decisions %q %q", st.Rules[0].DecisionID, st.Rules[1].DecisionID)
	}
	manager, _ := st.Registry.Lookup(common.KindRole, "Manager")
	if !reflect.DeepEqual(st.RoleDecisions[manager], []string{limit}) {
		t.Fatalf("unexpected role decisions %v", st.RoleDecisions)
	}
}

func TestIngestLinks(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")

	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "Main"}, {Name: "Other"}},
		Roles:     []extract.RoleCandidate{{Name: "Approver"}},
		Tasks: []extract.TaskCandidate{
			{Index: 0, Name: "Submit request", NextTask: "Approve request"},
			{Index: 1, Name: "Approve request"},
			{Index: 2, Name: "Archive", PreviousTask: "approve"},
		},
		TaskRoleLinks: []extract.TaskRoleLink{
			{TaskName: "approve", RoleName: "Approver"},
			{TaskName: "Submit request", RoleName: "Ghost"},
		},
		TaskProcessLinks: []extract.TaskProcessLink{{TaskName: "Archive", ProcessName: "Other"}},
		SequenceLinks:    []extract.SequenceLink{{FromTask: "Submit request", ToTask: "Submit request"}},
	})

	submit, approve, archive := st.Tasks[0], st.Tasks[1], st.Tasks[2]
	want := []common.SequenceFlow{
		{FromTaskID: submit.ID, ToTaskID: approve.ID},
		{FromTaskID: approve.ID, ToTaskID: archive.ID},
	}
	if !reflect.DeepEqual(st.Flows, want) {
		t.Fatalf("unexpected flows %+v", st.Flows)
	}
	approver, _ := st.Registry.Lookup(common.KindRole, "Approver")
	if got := st.TaskRoles[approve.ID]; got.RoleID != approver || got.Source != SourceLink {
		t.Fatalf("unexpected link assignment %+v", got)
	}
	if _, ok := st.TaskRoles[submit.ID]; ok {
		t.Fatalf("link to unknown role must be dropped")
	}
	other, _ := st.Registry.Lookup(common.KindProcess, "Other")
	if archive.ProcessID != other {
		t.Fatalf("expected archive in %q, got %q", other, archive.ProcessID)
	}
}

func TestManualAssignmentIsTerminal(t *testing.T) {
	st := NewState("doc", NewRegistry(seqIDs()))
	st.TaskRoles["t1"] = RoleAssignment{RoleID: "r1", Source: SourceManual}

	if st.AssignRole("t1", "r2", SourceLink) {
		t.Fatalf("manual assignment must not be overwritten")
	}
	if !st.AssignRole("t2", "r2", SourceInferred) || !st.AssignRole("t2", "r1", SourceLink) {
		t.Fatalf("non-manual assignments should be replaceable")
	}
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine(nil)
	st := e.NewState("doc")
	e.IngestChunk(st, chunk(0), extract.CandidateSet{
		Processes: []extract.ProcessCandidate{{Name: "P"}},
		Roles:     []extract.RoleCandidate{{Name: "R"}},
		Tasks:     []extract.TaskCandidate{{Name: "T", PerformerRole: "R"}},
	})

	data, err := st.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored, err := LoadState(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e.Attach(restored)

	if restored.NextChunk != 1 || len(restored.Tasks) != 1 {
		t.Fatalf("unexpected restored state %+v", restored)
	}
	if !reflect.DeepEqual(restored.TaskRoles, st.TaskRoles) {
		t.Fatalf("task roles differ: %v vs %v", restored.TaskRoles, st.TaskRoles)
	}
	e.IngestChunk(restored, chunk(1), extract.CandidateSet{Roles: []extract.RoleCandidate{{Name: "r"}}})
	if len(restored.Roles) != 1 {
		t.Fatalf("expected restored registry to dedupe roles")
	}
}
