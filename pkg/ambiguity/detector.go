package ambiguity

import (
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Answer options offered next to the entity names.
const (
	OptionAddRole    = "add new role"
	OptionUnassigned = "unassigned"
	OptionCreateNew  = "create new"
)

const defaultBatchSize = 10

// Detector turns gaps in a finalized state into questions for a reviewer.
type Detector struct {
	batchSize int
	newID     func() string
}

type NewDetectorParams struct {
	// BatchSize caps the missing-role questions per run. Defaults to 10.
	BatchSize int
	NewID     func() string
}

func NewDetector(params NewDetectorParams) *Detector {
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	newID := params.NewID
	if newID == nil {
		newID = func() string { return gonanoid.Must() }
	}
	return &Detector{batchSize: batch, newID: newID}
}

// Detect asks who performs each task that has no role, up to the batch
// size. Nothing is asked when the run found no roles at all.
func (d *Detector) Detect(st *consolidate.State) []common.Ambiguity {
	var roleNames []string
	for _, r := range st.Roles {
		if !st.IsPending(r.ID) {
			roleNames = append(roleNames, r.Name)
		}
	}
	if len(roleNames) == 0 {
		return nil
	}
	asked := askedAbout(st)

	var out []common.Ambiguity
	for _, t := range st.Tasks {
		if len(out) >= d.batchSize {
			break
		}
		if _, assigned := st.TaskRoles[t.ID]; assigned || asked[t.ID] {
			continue
		}
		options := make([]string, 0, len(roleNames)+2)
		options = append(options, roleNames...)
		options = append(options, OptionAddRole, OptionUnassigned)
		out = append(out, common.Ambiguity{
			ID:         d.newID(),
			DocumentID: st.DocumentID,
			Reason:     common.ReasonMissingRole,
			EntityType: common.KindTask,
			EntityID:   t.ID,
			Question:   fmt.Sprintf("Who performs the task '%s'?", t.Name),
			Options:    options,
			Status:     common.AmbiguityOpen,
		})
	}
	return out
}

// ReviewQuestions asks about every candidate parked in the review band.
func (d *Detector) ReviewQuestions(st *consolidate.State) []common.Ambiguity {
	asked := askedAbout(st)

	var out []common.Ambiguity
	for _, r := range st.Pending {
		if asked[r.EntityID] {
			continue
		}
		out = append(out, common.Ambiguity{
			ID:         d.newID(),
			DocumentID: st.DocumentID,
			Reason:     common.ReasonSimilarEntity,
			EntityType: r.Kind,
			EntityID:   r.EntityID,
			Question: fmt.Sprintf("Is the %s '%s' the same as '%s' (similarity %.2f)?",
				kindNoun(r.Kind), r.Name, r.MatchName, r.Score),
			Options:   []string{r.MatchName, OptionCreateNew, OptionUnassigned},
			Status:    common.AmbiguityOpen,
			MatchID:   r.MatchID,
			MatchName: r.MatchName,
			Score:     r.Score,
		})
	}
	return out
}

// Run appends new questions of both kinds to st and returns how many were
// added. Entities that already have a question are skipped.
func (d *Detector) Run(st *consolidate.State) int {
	found := append(d.ReviewQuestions(st), d.Detect(st)...)
	st.Ambiguities = append(st.Ambiguities, found...)
	st.Stats.Ambiguities += len(found)
	return len(found)
}

func askedAbout(st *consolidate.State) map[string]bool {
	asked := make(map[string]bool, len(st.Ambiguities))
	for _, a := range st.Ambiguities {
		asked[a.EntityID] = true
	}
	return asked
}

func kindNoun(kind common.EntityKind) string {
	switch kind {
	case common.KindProcess:
		return "process"
	case common.KindRole:
		return "role"
	case common.KindDecision:
		return "decision"
	}
	return string(kind)
}
