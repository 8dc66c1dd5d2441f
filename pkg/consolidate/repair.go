package consolidate

import (
	"slices"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// Repair applies recorded merges: dependents of the absorbed entity are
// re-pointed at the survivor, the absorbed name becomes an alias and the
// absorbed entity is dropped. The survivor is whichever of the two was
// created first. Running Repair again is a no-op.
func (e *Engine) Repair(st *State) int {
	applied := 0
	for _, m := range st.Merges {
		from := st.Registry.Resolve(m.Kind, m.From)
		to := st.Registry.Resolve(m.Kind, m.To)
		if from == to {
			continue
		}
		fromSeq, okFrom := seqOf(st, m.Kind, from)
		toSeq, okTo := seqOf(st, m.Kind, to)
		if !okFrom || !okTo {
			continue
		}
		loser, survivor := from, to
		if fromSeq < toSeq {
			loser, survivor = to, from
		}
		e.absorb(st, m.Kind, loser, survivor)
		applied++
	}
	if applied > 0 {
		st.Stats.Merged += applied
		logger.Debug("[Consolidate] Repaired merges", "applied", applied)
	}
	return applied
}

func seqOf(st *State, kind common.EntityKind, id string) (int, bool) {
	switch kind {
	case common.KindProcess:
		if p := st.Process(id); p != nil {
			return p.Seq, true
		}
	case common.KindRole:
		if r := st.Role(id); r != nil {
			return r.Seq, true
		}
	case common.KindDecision:
		if d := st.Decision(id); d != nil {
			return d.Seq, true
		}
	}
	return 0, false
}

func (e *Engine) absorb(st *State, kind common.EntityKind, loser, survivor string) {
	var name string
	switch kind {
	case common.KindProcess:
		p := st.Process(loser)
		name = p.Name
		if s := st.Process(survivor); s != nil {
			s.Purpose = firstNonEmpty(s.Purpose, p.Purpose)
			s.Description = firstNonEmpty(s.Description, p.Description)
		}
		for _, t := range st.Tasks {
			if t.ProcessID == loser {
				t.ProcessID = survivor
			}
		}
		for _, g := range st.Gateways {
			if g.ProcessID == loser {
				g.ProcessID = survivor
			}
		}
		for _, ev := range st.Events {
			if ev.ProcessID == loser {
				ev.ProcessID = survivor
			}
		}
		st.Processes = slices.DeleteFunc(st.Processes, func(p *common.Process) bool { return p.ID == loser })

	case common.KindRole:
		r := st.Role(loser)
		name = r.Name
		if s := st.Role(survivor); s != nil {
			s.OrgUnit = firstNonEmpty(s.OrgUnit, r.OrgUnit)
			s.PersonaHint = firstNonEmpty(s.PersonaHint, r.PersonaHint)
		}
		for taskID, a := range st.TaskRoles {
			if a.RoleID == loser {
				a.RoleID = survivor
				st.TaskRoles[taskID] = a
			}
		}
		for _, decisionID := range st.RoleDecisions[loser] {
			st.linkRoleDecision(survivor, decisionID)
		}
		delete(st.RoleDecisions, loser)
		st.Roles = slices.DeleteFunc(st.Roles, func(r *common.Role) bool { return r.ID == loser })

	case common.KindDecision:
		d := st.Decision(loser)
		name = d.Name
		for _, r := range st.Rules {
			if r.DecisionID == loser {
				r.DecisionID = survivor
			}
		}
		for roleID, ids := range st.RoleDecisions {
			if !slices.Contains(ids, loser) {
				continue
			}
			ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == loser })
			if !slices.Contains(ids, survivor) {
				ids = append(ids, survivor)
			}
			st.RoleDecisions[roleID] = ids
		}
		st.Decisions = slices.DeleteFunc(st.Decisions, func(d *common.Decision) bool { return d.ID == loser })
	}

	if ev, ok := st.Evidence[loser]; ok {
		if _, has := st.Evidence[survivor]; !has {
			ev.EntityID = survivor
			st.Evidence[survivor] = ev
		}
		delete(st.Evidence, loser)
	}
	for i := range st.Pending {
		if st.Pending[i].MatchID == loser {
			st.Pending[i].MatchID = survivor
		}
	}

	st.Registry.Alias(kind, loser, survivor)
	st.Aliases = append(st.Aliases, common.Alias{
		ID:         e.newID(),
		EntityType: kind,
		EntityID:   survivor,
		Text:       name,
		Normalized: common.NormalizeName(name),
	})
}
