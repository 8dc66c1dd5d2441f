package consolidate

import "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"

// Restore adds an entity an earlier run persisted under its stored id, so
// later chunks naming it reuse that id. Tasks are keyed by their process
// like in IngestChunk, which means processes have to be restored first.
// Restore reports whether n was added; names st already knows are skipped.
func (st *State) Restore(n common.Node) bool {
	switch e := n.(type) {
	case *common.Process:
		if st.Process(e.ID) != nil || st.Registry.Seed(common.KindProcess, e.Name, e.ID) != e.ID {
			return false
		}
		e.Seq = st.nextSeq()
		st.Processes = append(st.Processes, e)
	case *common.Role:
		if st.Role(e.ID) != nil || st.Registry.Seed(common.KindRole, e.Name, e.ID) != e.ID {
			return false
		}
		e.Seq = st.nextSeq()
		st.Roles = append(st.Roles, e)
	case *common.Decision:
		if st.Decision(e.ID) != nil || st.Registry.Seed(common.KindDecision, e.Name, e.ID) != e.ID {
			return false
		}
		e.Seq = st.nextSeq()
		st.Decisions = append(st.Decisions, e)
	case *common.Task:
		if st.Task(e.ID) != nil || st.Registry.SeedIn(common.KindTask, e.ProcessID, e.Name, e.ID) != e.ID {
			return false
		}
		e.Seq = st.nextSeq()
		st.Tasks = append(st.Tasks, e)
	default:
		return false
	}
	return true
}

// RestoreAssignment puts back a restored task's stored role. A manual
// assignment with no role is kept; other empty assignments are dropped.
func (st *State) RestoreAssignment(taskID, roleID string, source AssignmentSource) {
	if st.Task(taskID) == nil || source == "" {
		return
	}
	if roleID == "" && source != SourceManual {
		return
	}
	if roleID != "" && st.Role(roleID) == nil {
		return
	}
	st.TaskRoles[taskID] = RoleAssignment{RoleID: roleID, Source: source}
}

// RestoreAmbiguity puts back a stored missing-role question about a
// restored task, so it is neither asked again nor lost.
func (st *State) RestoreAmbiguity(a common.Ambiguity) bool {
	if a.Reason != common.ReasonMissingRole || st.Task(a.EntityID) == nil || st.Ambiguity(a.ID) != nil {
		return false
	}
	st.Ambiguities = append(st.Ambiguities, a)
	return true
}
