package consolidate

import (
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// Finalize runs the post-ingestion steps that need the whole document:
// orphaned tasks, gateways and events get the first surviving process,
// sequence flows are synthesized from task order and missing roles are
// inferred. Repair must have run first.
func (e *Engine) Finalize(st *State) {
	if first := st.FirstProcessID(); first != "" {
		for _, t := range st.Tasks {
			if t.ProcessID == "" || st.Process(t.ProcessID) == nil {
				t.ProcessID = first
			}
		}
		for _, g := range st.Gateways {
			if g.ProcessID == "" || st.Process(g.ProcessID) == nil {
				g.ProcessID = first
			}
		}
		for _, ev := range st.Events {
			if ev.ProcessID == "" || st.Process(ev.ProcessID) == nil {
				ev.ProcessID = first
			}
		}
	}

	before := len(st.Flows)
	st.Flows = SynthesizeFlows(st.Tasks, st.Flows)
	st.Stats.FlowsSynthesized += len(st.Flows) - before

	inferred := InferTaskRoles(st)

	logger.Debug("[Consolidate] Finalized run",
		"document", st.DocumentID,
		"flows", len(st.Flows),
		"synthesized", len(st.Flows)-before,
		"inferred_roles", inferred,
	)
}
