package common

// Node is implemented by every entity that is persisted as a graph node.
// Attributes never include the id field; the descriptor table names it.
type Node interface {
	Kind() EntityKind
	NodeID() string
	Attributes() map[string]any
}

// Named is implemented by the kinds deduplicated by name. The similarity
// oracle compares EntityName and EntityDescription.
type Named interface {
	Node
	EntityName() string
	EntityDescription() string
}

func (p *Process) Kind() EntityKind           { return KindProcess }
func (p *Process) NodeID() string             { return p.ID }
func (p *Process) EntityName() string         { return p.Name }
func (p *Process) EntityDescription() string  { return firstNonEmpty(p.Description, p.Purpose) }
func (r *Role) Kind() EntityKind              { return KindRole }
func (r *Role) NodeID() string                { return r.ID }
func (r *Role) EntityName() string            { return r.Name }
func (r *Role) EntityDescription() string     { return firstNonEmpty(r.PersonaHint, r.OrgUnit) }
func (d *Decision) Kind() EntityKind          { return KindDecision }
func (d *Decision) NodeID() string            { return d.ID }
func (d *Decision) EntityName() string        { return d.Name }
func (d *Decision) EntityDescription() string { return d.Description }
func (t *Task) Kind() EntityKind              { return KindTask }
func (t *Task) NodeID() string                { return t.ID }
func (g *Gateway) Kind() EntityKind           { return KindGateway }
func (g *Gateway) NodeID() string             { return g.ID }
func (e *Event) Kind() EntityKind             { return KindEvent }
func (e *Event) NodeID() string               { return e.ID }
func (r *Rule) Kind() EntityKind              { return KindRule }
func (r *Rule) NodeID() string                { return r.ID }
func (c *Chunk) Kind() EntityKind             { return KindChunk }
func (c *Chunk) NodeID() string               { return c.ID }
func (a *Alias) Kind() EntityKind             { return KindAlias }
func (a *Alias) NodeID() string               { return a.ID }
func (a *Ambiguity) Kind() EntityKind         { return KindAmbiguity }
func (a *Ambiguity) NodeID() string           { return a.ID }

func (p *Process) Attributes() map[string]any {
	return map[string]any{
		"name":        p.Name,
		"purpose":     p.Purpose,
		"description": p.Description,
		"triggers":    nonNil(p.Triggers),
		"outcomes":    nonNil(p.Outcomes),
		"seq":         p.Seq,
	}
}

func (r *Role) Attributes() map[string]any {
	return map[string]any{
		"name":         r.Name,
		"org_unit":     r.OrgUnit,
		"persona_hint": r.PersonaHint,
		"seq":          r.Seq,
	}
}

func (d *Decision) Attributes() map[string]any {
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"input_data":  nonNil(d.InputData),
		"output_data": nonNil(d.OutputData),
		"seq":         d.Seq,
	}
}

func (t *Task) Attributes() map[string]any {
	return map[string]any{
		"name":        t.Name,
		"process_id":  t.ProcessID,
		"task_type":   string(t.Type),
		"description": t.Description,
		"order":       t.Order,
		"seq":         t.Seq,
	}
}

func (g *Gateway) Attributes() map[string]any {
	return map[string]any{
		"process_id":   g.ProcessID,
		"gateway_type": string(g.Type),
		"condition":    g.Condition,
		"description":  g.Description,
	}
}

func (e *Event) Attributes() map[string]any {
	return map[string]any{
		"process_id": e.ProcessID,
		"event_type": string(e.Type),
		"name":       e.Name,
		"trigger":    e.Trigger,
	}
}

func (r *Rule) Attributes() map[string]any {
	return map[string]any{
		"decision_id": r.DecisionID,
		"when":        r.When,
		"then":        r.Then,
		"confidence":  r.Confidence,
	}
}

func (c *Chunk) Attributes() map[string]any {
	return map[string]any{
		"document_id": c.DocumentID,
		"page":        c.Page,
		"order_index": c.OrderIndex,
		"section":     c.Section,
		"span":        c.Span,
		"text":        c.Text,
		"hash":        c.Hash,
	}
}

func (a *Alias) Attributes() map[string]any {
	return map[string]any{
		"entity_type": string(a.EntityType),
		"entity_id":   a.EntityID,
		"text":        a.Text,
		"normalized":  a.Normalized,
	}
}

func (a *Ambiguity) Attributes() map[string]any {
	attrs := map[string]any{
		"document_id": a.DocumentID,
		"reason":      string(a.Reason),
		"entity_type": string(a.EntityType),
		"entity_id":   a.EntityID,
		"question":    a.Question,
		"options":     nonNil(a.Options),
		"status":      string(a.Status),
		"answer":      a.Answer,
	}
	if a.Reason == ReasonSimilarEntity {
		attrs["match_id"] = a.MatchID
		attrs["match_name"] = a.MatchName
		attrs["score"] = a.Score
		if len(a.Candidate) > 0 {
			attrs["candidate"] = a.Candidate
		}
	}
	return attrs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
