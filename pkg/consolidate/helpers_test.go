package consolidate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
)

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// scoreOracle returns fixed scores per unordered name pair; unknown pairs
// score 0. Pairs listed in failing return an error.
type scoreOracle struct {
	mu      sync.Mutex
	scores  map[[2]string]float64
	failing map[[2]string]bool
	calls   int
}

func newScoreOracle() *scoreOracle {
	return &scoreOracle{
		scores:  make(map[[2]string]float64),
		failing: make(map[[2]string]bool),
	}
}

func pair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (o *scoreOracle) set(a, b string, score float64) { o.scores[pair(a, b)] = score }

func (o *scoreOracle) Similarity(
	ctx context.Context,
	kind common.EntityKind,
	nameA, descA string,
	nameB, descB string,
) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.failing[pair(nameA, nameB)] {
		return 0, errors.New("oracle unavailable")
	}
	return o.scores[pair(nameA, nameB)], nil
}

func newTestEngine(oracle *scoreOracle) *Engine {
	params := NewEngineParams{NewID: seqIDs(), Parallel: 2}
	if oracle != nil {
		params.Similarity = oracle
	}
	return NewEngine(params)
}

func chunk(i int) common.Chunk {
	return common.Chunk{
		ID:         fmt.Sprintf("doc-c%d", i),
		DocumentID: "doc",
		Page:       i + 1,
		OrderIndex: i,
	}
}

func tasks(process string, names ...string) []extract.TaskCandidate {
	out := make([]extract.TaskCandidate, len(names))
	for i, n := range names {
		out[i] = extract.TaskCandidate{
			Index:         i,
			Name:          n,
			Type:          common.TaskHuman,
			ParentProcess: process,
		}
	}
	return out
}

func taskNames(st *State) []string {
	var out []string
	for _, t := range st.Tasks {
		out = append(out, t.Name)
	}
	return out
}
