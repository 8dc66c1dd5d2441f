package consolidate

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/similarity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Engine folds per-chunk candidates into a State. It holds configuration
// only; all accumulation lives in the State passed to each call.
type Engine struct {
	similarity similarity.Oracle
	thresholds Thresholds
	match      MatchOptions
	parallel   int
	newID      func() string
}

type NewEngineParams struct {
	Similarity similarity.Oracle
	Thresholds Thresholds
	Match      MatchOptions
	// Parallel bounds concurrent similarity calls per candidate.
	Parallel int
	// NewID mints entity ids. Defaults to nanoid.
	NewID func() string
}

// ChunkStats counts what one chunk contributed.
type ChunkStats struct {
	Created  int
	Absorbed int
	Dropped  int
	Flows    int
}

func NewEngine(params NewEngineParams) *Engine {
	th := params.Thresholds
	if th.Merge == 0 && th.Review == 0 {
		th = DefaultThresholds()
	}
	match := params.Match
	if match.MinSubstringLen < 1 {
		match.MinSubstringLen = 1
	}
	parallel := params.Parallel
	if parallel < 1 {
		parallel = 4
	}
	newID := params.NewID
	if newID == nil {
		newID = func() string { return gonanoid.Must() }
	}
	return &Engine{
		similarity: params.Similarity,
		thresholds: th,
		match:      match,
		parallel:   parallel,
		newID:      newID,
	}
}

// NewState returns an empty state whose registry mints ids like the engine.
func (e *Engine) NewState(documentID string) *State {
	return NewState(documentID, NewRegistry(e.newID))
}

// Attach rebinds a restored state's registry to the engine's id source.
func (e *Engine) Attach(st *State) {
	if st.Registry == nil {
		st.Registry = NewRegistry(e.newID)
		return
	}
	st.Registry.newID = e.newID
}

// IngestChunk merges one chunk's candidates into st. Processes and roles are
// reused on exact normalized match; similarity is left to Normalize.
func (e *Engine) IngestChunk(st *State, chunk common.Chunk, set extract.CandidateSet) ChunkStats {
	var cs ChunkStats
	reg := st.Registry

	for _, p := range set.Processes {
		id, created := reg.Register(common.KindProcess, p.Name)
		if created {
			st.Processes = append(st.Processes, &common.Process{
				ID:          id,
				Name:        strings.TrimSpace(p.Name),
				Purpose:     p.Purpose,
				Description: p.Description,
				Triggers:    p.Triggers,
				Outcomes:    p.Outcomes,
				Seq:         st.nextSeq(),
			})
			st.Stats.ProcessesCreated++
			cs.Created++
		} else {
			if proc := st.Process(id); proc != nil {
				fillProcess(proc, p)
			}
			st.Stats.Absorbed++
			cs.Absorbed++
		}
		st.addEvidence(id, chunk)
	}

	for _, r := range set.Roles {
		id, created := reg.Register(common.KindRole, r.Name)
		if created {
			st.Roles = append(st.Roles, &common.Role{
				ID:          id,
				Name:        strings.TrimSpace(r.Name),
				OrgUnit:     r.OrgUnit,
				PersonaHint: r.PersonaHint,
				Seq:         st.nextSeq(),
			})
			st.Stats.RolesCreated++
			cs.Created++
		} else {
			if role := st.Role(id); role != nil {
				role.OrgUnit = firstNonEmpty(role.OrgUnit, r.OrgUnit)
				role.PersonaHint = firstNonEmpty(role.PersonaHint, r.PersonaHint)
			}
			st.Stats.Absorbed++
			cs.Absorbed++
		}
		st.addEvidence(id, chunk)
	}

	type taskLink struct {
		taskID string
		next   string
		prev   string
	}
	var links []taskLink

	for _, t := range set.Tasks {
		processID := e.resolveProcess(st, t.ParentProcess)
		if t.Unnamed {
			t.Name = unnamedTaskName(chunk, t.Index)
		}
		id, created := reg.RegisterIn(common.KindTask, processID, t.Name)
		if created {
			order := t.Index
			if t.HasOrder {
				order = t.Order
			}
			st.Tasks = append(st.Tasks, &common.Task{
				ID:          id,
				ProcessID:   processID,
				Name:        strings.TrimSpace(t.Name),
				Type:        t.Type,
				Description: t.Description,
				Order:       order,
				Seq:         st.nextSeq(),
			})
			st.Stats.TasksCreated++
			cs.Created++
		} else {
			if task := st.Task(id); task != nil && task.Description == "" {
				task.Description = t.Description
			}
			st.Stats.Absorbed++
			cs.Absorbed++
		}
		st.addEvidence(id, chunk)

		if roleID, ok := reg.Lookup(common.KindRole, t.PerformerRole); ok {
			st.AssignRole(id, roleID, SourceExtracted)
		}
		if t.NextTask != "" || t.PreviousTask != "" {
			links = append(links, taskLink{taskID: id, next: t.NextTask, prev: t.PreviousTask})
		}
	}

	for i, g := range set.Gateways {
		id := e.chunkScopedID(chunk, "g", i)
		st.Gateways = append(st.Gateways, &common.Gateway{
			ID:          id,
			ProcessID:   e.resolveProcess(st, g.ParentProcess),
			Type:        g.Type,
			Condition:   g.Condition,
			Description: g.Description,
		})
		st.addEvidence(id, chunk)
		st.Stats.Gateways++
		cs.Created++
	}

	for i, ev := range set.Events {
		id := e.chunkScopedID(chunk, "e", i)
		st.Events = append(st.Events, &common.Event{
			ID:        id,
			ProcessID: e.resolveProcess(st, ev.ParentProcess),
			Type:      ev.Type,
			Name:      strings.TrimSpace(ev.Name),
			Trigger:   ev.Trigger,
		})
		st.addEvidence(id, chunk)
		st.Stats.Events++
		cs.Created++
	}

	lastDecision := ""
	for _, d := range set.Decisions {
		id, created := reg.Register(common.KindDecision, d.Name)
		if created {
			st.Decisions = append(st.Decisions, &common.Decision{
				ID:          id,
				Name:        strings.TrimSpace(d.Name),
				Description: d.Description,
				InputData:   d.InputData,
				OutputData:  d.OutputData,
				Seq:         st.nextSeq(),
			})
			st.Stats.Decisions++
			cs.Created++
		} else {
			st.Stats.Absorbed++
			cs.Absorbed++
		}
		st.addEvidence(id, chunk)
		lastDecision = id
		if roleID, ok := reg.Lookup(common.KindRole, d.RelatedRole); ok {
			st.linkRoleDecision(roleID, id)
		}
	}

	for i, r := range set.Rules {
		decisionID := e.resolveDecision(st, r.Decision, lastDecision)
		if decisionID == "" {
			st.Stats.RulesDropped++
			cs.Dropped++
			continue
		}
		id := e.chunkScopedID(chunk, "r", i)
		st.Rules = append(st.Rules, &common.Rule{
			ID:         id,
			DecisionID: decisionID,
			When:       r.When,
			Then:       r.Then,
			Confidence: r.Confidence,
		})
		st.addEvidence(id, chunk)
		st.Stats.Rules++
		cs.Created++
	}

	for _, l := range set.TaskRoleLinks {
		taskID, okTask := ResolveTaskName(st.Tasks, l.TaskName, e.match)
		roleID, okRole := reg.Lookup(common.KindRole, l.RoleName)
		if !okTask || !okRole {
			st.Stats.LinksDropped++
			cs.Dropped++
			continue
		}
		st.AssignRole(taskID, roleID, SourceLink)
		st.Stats.LinksResolved++
	}

	for _, l := range set.TaskProcessLinks {
		taskID, okTask := ResolveTaskName(st.Tasks, l.TaskName, e.match)
		processID, okProc := reg.Lookup(common.KindProcess, l.ProcessName)
		if !okTask || !okProc {
			st.Stats.LinksDropped++
			cs.Dropped++
			continue
		}
		st.Task(taskID).ProcessID = processID
		st.Stats.LinksResolved++
	}

	for _, l := range set.SequenceLinks {
		if e.addNamedFlow(st, l.FromTask, l.ToTask, l.Condition) {
			cs.Flows++
		} else {
			cs.Dropped++
		}
	}
	for _, l := range links {
		from := st.Task(l.taskID)
		if l.next != "" && e.addNamedFlow(st, from.Name, l.next, "") {
			cs.Flows++
		}
		if l.prev != "" && e.addNamedFlow(st, l.prev, from.Name, "") {
			cs.Flows++
		}
	}

	st.Chunks = append(st.Chunks, chunk)
	st.NextChunk = chunk.OrderIndex + 1
	st.Stats.ChunksProcessed++

	logger.Debug("[Consolidate] Ingested chunk",
		"chunk", chunk.ID,
		"created", cs.Created,
		"absorbed", cs.Absorbed,
		"dropped", cs.Dropped,
		"flows", cs.Flows,
	)
	return cs
}

// resolveProcess finds the process by exact name, falling back to the first
// process of the run. It returns "" when the run has no process yet.
func (e *Engine) resolveProcess(st *State, name string) string {
	if id, ok := st.Registry.Lookup(common.KindProcess, name); ok {
		return id
	}
	return st.FirstProcessID()
}

func (e *Engine) resolveDecision(st *State, ref, fallback string) string {
	if id, ok := st.Registry.Lookup(common.KindDecision, ref); ok {
		return id
	}
	if ref != "" && st.Decision(ref) != nil {
		return ref
	}
	return fallback
}

func (e *Engine) addNamedFlow(st *State, fromName, toName, condition string) bool {
	from, okFrom := ResolveTaskName(st.Tasks, fromName, e.match)
	to, okTo := ResolveTaskName(st.Tasks, toName, e.match)
	if !okFrom || !okTo {
		st.Stats.LinksDropped++
		return false
	}
	if !st.AddFlow(from, to, condition) {
		return false
	}
	st.Stats.LinksResolved++
	st.Stats.FlowsExplicit++
	return true
}

func fillProcess(p *common.Process, c extract.ProcessCandidate) {
	p.Purpose = firstNonEmpty(p.Purpose, c.Purpose)
	p.Description = firstNonEmpty(p.Description, c.Description)
	if len(p.Triggers) == 0 {
		p.Triggers = c.Triggers
	}
	if len(p.Outcomes) == 0 {
		p.Outcomes = c.Outcomes
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// unnamedTaskName names the i-th nameless task of chunk. The name is unique
// within a run and the same on every rerun of the chunk.
func unnamedTaskName(chunk common.Chunk, i int) string {
	return fmt.Sprintf("Task %d.%d", chunk.OrderIndex+1, i+1)
}

// chunkScopedID ids the i-th element of one kind extracted from chunk, so
// gateways, events and rules keep their ids when the chunk is extracted
// again.
func (e *Engine) chunkScopedID(chunk common.Chunk, tag string, i int) string {
	if chunk.ID == "" {
		return e.newID()
	}
	return fmt.Sprintf("%s-%s%d", chunk.ID, tag, i)
}
