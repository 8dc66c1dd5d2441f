package consolidate

import (
	"sort"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

type flowKey struct{ from, to string }

// SynthesizeFlows returns flows plus one synthesized flow between each pair
// of adjacent tasks of a process, ordered by Order. Ties keep insertion
// order. Pairs already present are not duplicated.
func SynthesizeFlows(tasks []*common.Task, flows []common.SequenceFlow) []common.SequenceFlow {
	out := make([]common.SequenceFlow, 0, len(flows)+len(tasks))
	seen := make(map[flowKey]bool, len(flows))
	for _, f := range flows {
		k := flowKey{f.FromTaskID, f.ToTaskID}
		if seen[k] || f.FromTaskID == f.ToTaskID {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}

	var processOrder []string
	byProcess := make(map[string][]*common.Task)
	for _, t := range tasks {
		if _, ok := byProcess[t.ProcessID]; !ok {
			processOrder = append(processOrder, t.ProcessID)
		}
		byProcess[t.ProcessID] = append(byProcess[t.ProcessID], t)
	}

	for _, pid := range processOrder {
		group := byProcess[pid]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Order < group[j].Order
		})
		for i := 1; i < len(group); i++ {
			k := flowKey{group[i-1].ID, group[i].ID}
			if k.from == k.to || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, common.SequenceFlow{
				FromTaskID:  k.from,
				ToTaskID:    k.to,
				Synthesized: true,
			})
		}
	}
	return out
}
