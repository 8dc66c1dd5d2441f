package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

// syncAnswers folds answers given through the API since the last run into
// the state, so persisting it never undoes a reviewer's decision.
func (c *GraphClient) syncAnswers(ctx context.Context, st *consolidate.State) error {
	for _, a := range st.Ambiguities {
		if !a.IsOpen() {
			continue
		}
		n, err := store.GetNode(ctx, c.store, common.KindAmbiguity, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read ambiguity %s: %w", a.ID, err)
		}
		if store.String(n.Attributes, "status") != string(common.AmbiguityResolved) {
			continue
		}
		if err := c.engine.ApplyResolution(st, a.ID, store.String(n.Attributes, "answer")); err != nil {
			return err
		}
	}
	return nil
}

// persister writes one state into the store. ids maps local ids to the ids
// the store assigned; they differ when a node with the same natural key
// already existed.
type persister struct {
	store store.GraphStore
	st    *consolidate.State
	ids   map[string]string
}

// ref maps a local id to its store id. Ids of entities that were not
// persisted, such as parked review candidates, are returned unchanged.
func (p *persister) ref(id string) string {
	if sid, ok := p.ids[id]; ok {
		return sid
	}
	return id
}

func (p *persister) stored(id string) (string, bool) {
	sid, ok := p.ids[id]
	return sid, ok
}

func (p *persister) node(ctx context.Context, n common.Node, extra map[string]any) (string, error) {
	attrs := common.NodeAttributes(n)
	for k, v := range extra {
		attrs[k] = v
	}
	attrs["document_id"] = p.st.DocumentID
	id, err := p.store.UpsertNode(ctx, n.Kind(), store.ScopedKey(p.st.DocumentID, common.NaturalKey(n)), attrs)
	if err != nil {
		return "", fmt.Errorf("failed to upsert %s %s: %w", n.Kind(), n.NodeID(), err)
	}
	p.ids[n.NodeID()] = id
	return id, nil
}

func (p *persister) edge(ctx context.Context, kind common.EdgeKind, from, to string, attrs map[string]any) error {
	if err := p.store.UpsertEdge(ctx, kind, from, to, attrs); err != nil {
		return fmt.Errorf("failed to upsert %s %s->%s: %w", kind, from, to, err)
	}
	return nil
}

// persist writes the state's graph. Parked review candidates are not
// written; their dependents keep the candidate's local id in their
// reference field until the review is answered.
func (c *GraphClient) persist(ctx context.Context, st *consolidate.State) error {
	p := &persister{store: c.store, st: st, ids: make(map[string]string)}

	for i := range st.Chunks {
		if _, err := p.node(ctx, &st.Chunks[i], nil); err != nil {
			return err
		}
	}

	for _, proc := range st.Processes {
		if st.IsPending(proc.ID) {
			continue
		}
		if _, err := p.node(ctx, proc, nil); err != nil {
			return err
		}
	}
	for _, role := range st.Roles {
		if st.IsPending(role.ID) {
			continue
		}
		if _, err := p.node(ctx, role, nil); err != nil {
			return err
		}
	}
	for _, d := range st.Decisions {
		if st.IsPending(d.ID) {
			continue
		}
		if _, err := p.node(ctx, d, nil); err != nil {
			return err
		}
	}

	for _, t := range st.Tasks {
		assignment := st.TaskRoles[t.ID]
		id, err := p.node(ctx, t, map[string]any{
			"process_id":  p.ref(t.ProcessID),
			"role_id":     p.ref(assignment.RoleID),
			"role_source": string(assignment.Source),
		})
		if err != nil {
			return err
		}
		if procID, ok := p.stored(t.ProcessID); ok {
			if err := p.edge(ctx, common.EdgeHasTask, procID, id, nil); err != nil {
				return err
			}
		}
		if roleID, ok := p.stored(assignment.RoleID); ok {
			if err := p.edge(ctx, common.EdgePerformedBy, id, roleID, map[string]any{"source": string(assignment.Source)}); err != nil {
				return err
			}
		}
	}

	for _, g := range st.Gateways {
		id, err := p.node(ctx, g, map[string]any{"process_id": p.ref(g.ProcessID)})
		if err != nil {
			return err
		}
		if procID, ok := p.stored(g.ProcessID); ok {
			if err := p.edge(ctx, common.EdgeHasGateway, procID, id, nil); err != nil {
				return err
			}
		}
	}
	for _, ev := range st.Events {
		id, err := p.node(ctx, ev, map[string]any{"process_id": p.ref(ev.ProcessID)})
		if err != nil {
			return err
		}
		if procID, ok := p.stored(ev.ProcessID); ok {
			if err := p.edge(ctx, common.EdgeHasEvent, procID, id, nil); err != nil {
				return err
			}
		}
	}
	for _, r := range st.Rules {
		id, err := p.node(ctx, r, map[string]any{"decision_id": p.ref(r.DecisionID)})
		if err != nil {
			return err
		}
		if decID, ok := p.stored(r.DecisionID); ok {
			if err := p.edge(ctx, common.EdgeHasRule, decID, id, nil); err != nil {
				return err
			}
		}
	}

	for _, role := range st.Roles {
		roleID, ok := p.stored(role.ID)
		if !ok {
			continue
		}
		for _, d := range st.RoleDecisions[role.ID] {
			if decID, ok := p.stored(d); ok {
				if err := p.edge(ctx, common.EdgeMakesDecision, roleID, decID, nil); err != nil {
					return err
				}
			}
		}
	}

	for _, f := range st.Flows {
		from, okFrom := p.stored(f.FromTaskID)
		to, okTo := p.stored(f.ToTaskID)
		if !okFrom || !okTo {
			continue
		}
		if err := p.edge(ctx, common.EdgeNext, from, to, map[string]any{
			"condition":   f.Condition,
			"synthesized": f.Synthesized,
		}); err != nil {
			return err
		}
	}

	for i := range st.Aliases {
		a := st.Aliases[i]
		a.EntityID = p.ref(a.EntityID)
		id, err := p.node(ctx, &a, nil)
		if err != nil {
			return err
		}
		if target, ok := p.stored(st.Aliases[i].EntityID); ok {
			if err := p.edge(ctx, common.EdgeAliasOf, id, target, nil); err != nil {
				return err
			}
		}
	}

	for entityID, ev := range st.Evidence {
		from, ok := p.stored(entityID)
		if !ok {
			continue
		}
		chunkID, ok := p.stored(ev.ChunkID)
		if !ok {
			continue
		}
		if err := p.edge(ctx, common.EdgeSupportedBy, from, chunkID, map[string]any{"page": ev.Page}); err != nil {
			return err
		}
	}

	for i := range st.Ambiguities {
		if err := p.ambiguity(ctx, st.Ambiguities[i]); err != nil {
			return err
		}
	}

	logger.Debug("[Graph] Persisted document", "document", st.DocumentID, "nodes", len(p.ids))
	return nil
}

// ambiguity writes one question. Missing-role questions point at the stored
// task; review questions keep the candidate's local id and carry the
// candidate's attributes so the answer can create it later.
func (p *persister) ambiguity(ctx context.Context, a common.Ambiguity) error {
	about := a.EntityID
	switch a.Reason {
	case common.ReasonMissingRole:
		a.EntityID = p.ref(a.EntityID)
	case common.ReasonSimilarEntity:
		about = a.MatchID
		a.Candidate = p.candidate(a.EntityType, a.EntityID)
		a.MatchID = p.ref(a.MatchID)
	}

	id, err := p.node(ctx, &a, nil)
	if err != nil {
		return err
	}
	target, ok := p.stored(about)
	if !ok {
		return nil
	}
	return p.edge(ctx, common.EdgeAbout, id, target, nil)
}

// candidate returns the attributes of a parked entity. Roles also carry the
// stored ids of the decisions they make.
func (p *persister) candidate(kind common.EntityKind, id string) map[string]any {
	var n common.Node
	switch kind {
	case common.KindProcess:
		if proc := p.st.Process(id); proc != nil {
			n = proc
		}
	case common.KindRole:
		if role := p.st.Role(id); role != nil {
			n = role
		}
	case common.KindDecision:
		if d := p.st.Decision(id); d != nil {
			n = d
		}
	}
	if n == nil {
		return nil
	}
	attrs := common.NodeAttributes(n)
	if kind == common.KindRole {
		decisions := []string{}
		for _, d := range p.st.RoleDecisions[id] {
			if sid, ok := p.stored(d); ok {
				decisions = append(decisions, sid)
			}
		}
		attrs["decision_ids"] = decisions
	}
	return attrs
}
