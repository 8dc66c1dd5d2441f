package consolidate

import (
	"encoding/json"
	"slices"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

// AssignmentSource records how a task got its role. Manual assignments come
// from a resolved ambiguity and are never overwritten.
type AssignmentSource string

const (
	SourceExtracted AssignmentSource = "extracted"
	SourceLink      AssignmentSource = "link"
	SourceInferred  AssignmentSource = "inferred"
	SourceManual    AssignmentSource = "manual"
)

// RoleAssignment is a task's performer. A manual assignment with an empty
// RoleID means the reviewer explicitly left the task unassigned.
type RoleAssignment struct {
	RoleID string           `json:"role_id"`
	Source AssignmentSource `json:"source"`
}

// Merge is a decided, possibly not yet applied, merge of one deduplicated
// entity into another.
type Merge struct {
	Kind  common.EntityKind `json:"kind"`
	From  string            `json:"from"`
	To    string            `json:"to"`
	Score float64           `json:"score"`
}

// Review is a candidate parked because its best similarity score fell into
// the review band. It stays out of the graph until a reviewer decides.
type Review struct {
	Kind      common.EntityKind `json:"kind"`
	EntityID  string            `json:"entity_id"`
	Name      string            `json:"name"`
	MatchID   string            `json:"match_id"`
	MatchName string            `json:"match_name"`
	Score     float64           `json:"score"`
}

// RunStats are the counters reported at the end of a run.
type RunStats struct {
	ChunksTotal      int `json:"chunks_total"`
	ChunksProcessed  int `json:"chunks_processed"`
	ChunksFailed     int `json:"chunks_failed"`
	ProcessesCreated int `json:"processes_created"`
	RolesCreated     int `json:"roles_created"`
	TasksCreated     int `json:"tasks_created"`
	Absorbed         int `json:"absorbed"`
	Gateways         int `json:"gateways"`
	Events           int `json:"events"`
	Decisions        int `json:"decisions"`
	Rules            int `json:"rules"`
	RulesDropped     int `json:"rules_dropped"`
	LinksResolved    int `json:"links_resolved"`
	LinksDropped     int `json:"links_dropped"`
	Merged           int `json:"merged"`
	Parked           int `json:"parked"`
	SimilarityErrors int `json:"similarity_errors"`
	FlowsExplicit    int `json:"flows_explicit"`
	FlowsSynthesized int `json:"flows_synthesized"`
	RolesInferred    int `json:"roles_inferred"`
	Ambiguities      int `json:"ambiguities"`
}

// State is everything one run accumulates. It is owned by a single
// goroutine; the engine never shares it.
type State struct {
	DocumentID string    `json:"document_id"`
	NextChunk  int       `json:"next_chunk"`
	Registry   *Registry `json:"registry"`

	Processes []*common.Process  `json:"processes"`
	Tasks     []*common.Task     `json:"tasks"`
	Roles     []*common.Role     `json:"roles"`
	Gateways  []*common.Gateway  `json:"gateways"`
	Events    []*common.Event    `json:"events"`
	Decisions []*common.Decision `json:"decisions"`
	Rules     []*common.Rule     `json:"rules"`
	Chunks    []common.Chunk     `json:"chunks"`

	Flows         []common.SequenceFlow      `json:"flows"`
	TaskRoles     map[string]RoleAssignment  `json:"task_roles"`
	RoleDecisions map[string][]string        `json:"role_decisions"`
	Evidence      map[string]common.Evidence `json:"evidence"`
	Aliases       []common.Alias             `json:"aliases"`
	Merges        []Merge                    `json:"merges"`
	Pending       []Review                   `json:"pending"`
	Ambiguities   []common.Ambiguity         `json:"ambiguities"`

	Stats RunStats `json:"stats"`
	Seq   int      `json:"seq"`
}

// NewState returns an empty state for documentID.
func NewState(documentID string, registry *Registry) *State {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	return &State{
		DocumentID:    documentID,
		Registry:      registry,
		TaskRoles:     make(map[string]RoleAssignment),
		RoleDecisions: make(map[string][]string),
		Evidence:      make(map[string]common.Evidence),
	}
}

// LoadState restores a checkpointed state.
func LoadState(data []byte) (*State, error) {
	st := NewState("", nil)
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	if st.Registry == nil {
		st.Registry = NewRegistry(nil)
	}
	if st.TaskRoles == nil {
		st.TaskRoles = make(map[string]RoleAssignment)
	}
	if st.RoleDecisions == nil {
		st.RoleDecisions = make(map[string][]string)
	}
	if st.Evidence == nil {
		st.Evidence = make(map[string]common.Evidence)
	}
	return st, nil
}

// Snapshot serializes the state for a checkpoint.
func (st *State) Snapshot() ([]byte, error) {
	return json.Marshal(st)
}

func (st *State) nextSeq() int {
	st.Seq++
	return st.Seq
}

// AssignRole sets the task's performer unless a manual assignment exists.
// It reports whether the assignment changed.
func (st *State) AssignRole(taskID, roleID string, source AssignmentSource) bool {
	if cur, ok := st.TaskRoles[taskID]; ok {
		if cur.Source == SourceManual {
			return false
		}
		if cur.RoleID == roleID {
			return false
		}
	}
	st.TaskRoles[taskID] = RoleAssignment{RoleID: roleID, Source: source}
	return true
}

// RoleOf returns the task's role id, empty when unassigned.
func (st *State) RoleOf(taskID string) string {
	return st.TaskRoles[taskID].RoleID
}

func (st *State) addEvidence(entityID string, chunk common.Chunk) {
	if entityID == "" {
		return
	}
	if _, ok := st.Evidence[entityID]; ok {
		return
	}
	st.Evidence[entityID] = common.Evidence{
		EntityID: entityID,
		ChunkID:  chunk.ID,
		Page:     chunk.Page,
	}
}

func (st *State) linkRoleDecision(roleID, decisionID string) {
	if slices.Contains(st.RoleDecisions[roleID], decisionID) {
		return
	}
	st.RoleDecisions[roleID] = append(st.RoleDecisions[roleID], decisionID)
}

// AddFlow records an explicit flow. Self loops and duplicate pairs are
// ignored.
func (st *State) AddFlow(from, to, condition string) bool {
	if from == "" || to == "" || from == to {
		return false
	}
	for _, f := range st.Flows {
		if f.FromTaskID == from && f.ToTaskID == to {
			return false
		}
	}
	st.Flows = append(st.Flows, common.SequenceFlow{
		FromTaskID: from,
		ToTaskID:   to,
		Condition:  condition,
	})
	return true
}

// IsPending reports whether id is parked for review.
func (st *State) IsPending(id string) bool {
	for _, r := range st.Pending {
		if r.EntityID == id {
			return true
		}
	}
	return false
}

// FirstProcessID is the first process in creation order that is not parked.
func (st *State) FirstProcessID() string {
	for _, p := range st.Processes {
		if !st.IsPending(p.ID) {
			return p.ID
		}
	}
	return ""
}

func (st *State) Task(id string) *common.Task {
	for _, t := range st.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (st *State) Role(id string) *common.Role {
	for _, r := range st.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (st *State) Process(id string) *common.Process {
	for _, p := range st.Processes {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (st *State) Decision(id string) *common.Decision {
	for _, d := range st.Decisions {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// Named returns the entities of a deduplicated kind in creation order.
func (st *State) Named(kind common.EntityKind) []common.Named {
	var out []common.Named
	switch kind {
	case common.KindProcess:
		for _, p := range st.Processes {
			out = append(out, p)
		}
	case common.KindRole:
		for _, r := range st.Roles {
			out = append(out, r)
		}
	case common.KindDecision:
		for _, d := range st.Decisions {
			out = append(out, d)
		}
	}
	return out
}

// Ambiguity returns the stored ambiguity with id.
func (st *State) Ambiguity(id string) *common.Ambiguity {
	for i := range st.Ambiguities {
		if st.Ambiguities[i].ID == id {
			return &st.Ambiguities[i]
		}
	}
	return nil
}
