package graph

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

// restoreKinds is the order entities are restored in; tasks are keyed by
// their process.
var restoreKinds = []common.EntityKind{
	common.KindProcess,
	common.KindRole,
	common.KindDecision,
	common.KindTask,
	common.KindAmbiguity,
}

// restore seeds a fresh state with what earlier runs of the document
// persisted. Without it a run that has no checkpoint would mint new ids for
// entities already in the store.
func (c *GraphClient) restore(ctx context.Context, st *consolidate.State) (int, error) {
	restored := 0
	for _, kind := range restoreKinds {
		nodes, err := c.store.QueryNodes(ctx, kind, store.Filter{
			Attributes: map[string]any{"document_id": st.DocumentID},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to restore %s nodes of %s: %w", kind, st.DocumentID, err)
		}
		slices.SortStableFunc(nodes, func(a, b store.Node) int {
			return cmp.Compare(store.Int(a.Attributes, "seq"), store.Int(b.Attributes, "seq"))
		})

		for _, n := range nodes {
			if kind == common.KindAmbiguity {
				if st.RestoreAmbiguity(ambiguity.FromNode(n)) {
					restored++
				}
				continue
			}
			entity := entityFromNode(kind, n)
			if entity == nil || !st.Restore(entity) {
				continue
			}
			restored++
			if kind == common.KindTask {
				st.RestoreAssignment(n.ID,
					store.String(n.Attributes, "role_id"),
					consolidate.AssignmentSource(store.String(n.Attributes, "role_source")))
			}
		}
	}
	if restored > 0 {
		logger.Info("[Graph] Restored document from store", "document", st.DocumentID, "entities", restored)
	}
	return restored, nil
}

func entityFromNode(kind common.EntityKind, n store.Node) common.Node {
	a := n.Attributes
	switch kind {
	case common.KindProcess:
		return &common.Process{
			ID:          n.ID,
			Name:        store.String(a, "name"),
			Purpose:     store.String(a, "purpose"),
			Description: store.String(a, "description"),
			Triggers:    store.Strings(a, "triggers"),
			Outcomes:    store.Strings(a, "outcomes"),
		}
	case common.KindRole:
		return &common.Role{
			ID:          n.ID,
			Name:        store.String(a, "name"),
			OrgUnit:     store.String(a, "org_unit"),
			PersonaHint: store.String(a, "persona_hint"),
		}
	case common.KindDecision:
		return &common.Decision{
			ID:          n.ID,
			Name:        store.String(a, "name"),
			Description: store.String(a, "description"),
			InputData:   store.Strings(a, "input_data"),
			OutputData:  store.Strings(a, "output_data"),
		}
	case common.KindTask:
		return &common.Task{
			ID:          n.ID,
			ProcessID:   store.String(a, "process_id"),
			Name:        store.String(a, "name"),
			Type:        common.TaskType(store.String(a, "task_type")),
			Description: store.String(a, "description"),
			Order:       store.Int(a, "order"),
		}
	}
	return nil
}
