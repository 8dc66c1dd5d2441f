package consolidate

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/similarity"

	"golang.org/x/sync/errgroup"
)

// Thresholds split similarity scores into merge, review and create bands.
// Both bounds are inclusive: Merge <= s is a merge, Review <= s < Merge is a
// review.
type Thresholds struct {
	Merge  float64
	Review float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Merge: 0.90, Review: 0.80}
}

type Action int

const (
	ActionCreate Action = iota
	ActionReview
	ActionMerge
)

func (a Action) String() string {
	switch a {
	case ActionMerge:
		return "merge"
	case ActionReview:
		return "review"
	default:
		return "create"
	}
}

// Classify maps a score to an action.
func Classify(score float64, th Thresholds) Action {
	switch {
	case score >= th.Merge:
		return ActionMerge
	case score >= th.Review:
		return ActionReview
	default:
		return ActionCreate
	}
}

// Verdict is the outcome of comparing one candidate against the canonical
// entities seen before it. Match is -1 when nothing was scored.
type Verdict struct {
	Action Action
	Match  int
	Score  float64
}

// prefetcher is implemented by oracles that can warm their cache in bulk.
type prefetcher interface {
	Prefetch(ctx context.Context, entries []similarity.Entry) error
}

// Normalize compares every deduplicated entity against the canonical
// entities created before it and records merges and reviews. Merges are
// applied by Repair.
func (e *Engine) Normalize(ctx context.Context, st *State) error {
	if e.similarity == nil {
		return nil
	}
	for _, kind := range common.DeduplicatedKinds {
		if err := e.normalizeKind(ctx, st, kind); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) normalizeKind(ctx context.Context, st *State, kind common.EntityKind) error {
	entities := st.Named(kind)
	if len(entities) < 2 {
		return nil
	}

	if p, ok := e.similarity.(prefetcher); ok {
		entries := make([]similarity.Entry, len(entities))
		for i, ent := range entities {
			entries[i] = similarity.Entry{Name: ent.EntityName(), Description: ent.EntityDescription()}
		}
		if err := p.Prefetch(ctx, entries); err != nil {
			logger.Warn("[Consolidate] Similarity prefetch failed", "kind", kind, "err", err)
		}
	}

	decided := make(map[string]bool)
	for _, m := range st.Merges {
		decided[m.From] = true
	}
	for _, r := range st.Pending {
		decided[r.EntityID] = true
	}

	var canonical []common.Named
	merges, reviews := 0, 0
	for _, ent := range entities {
		if decided[ent.NodeID()] {
			continue
		}
		if len(canonical) == 0 {
			canonical = append(canonical, ent)
			continue
		}

		v, err := e.judge(ctx, st, kind, ent, canonical)
		if err != nil {
			return err
		}
		switch v.Action {
		case ActionMerge:
			match := canonical[v.Match]
			st.Merges = append(st.Merges, Merge{
				Kind:  kind,
				From:  ent.NodeID(),
				To:    match.NodeID(),
				Score: v.Score,
			})
			merges++
		case ActionReview:
			match := canonical[v.Match]
			st.Pending = append(st.Pending, Review{
				Kind:      kind,
				EntityID:  ent.NodeID(),
				Name:      ent.EntityName(),
				MatchID:   match.NodeID(),
				MatchName: match.EntityName(),
				Score:     v.Score,
			})
			st.Stats.Parked++
			reviews++
		default:
			canonical = append(canonical, ent)
		}
	}

	logger.Debug("[Consolidate] Normalized entities",
		"kind", kind,
		"count", len(entities),
		"merges", merges,
		"reviews", reviews,
	)
	return nil
}

// judge scores ent against every canonical entity concurrently and picks the
// highest score. Ties go to the earliest canonical entity. Oracle failures
// count as no score for that pair.
func (e *Engine) judge(
	ctx context.Context,
	st *State,
	kind common.EntityKind,
	ent common.Named,
	canonical []common.Named,
) (Verdict, error) {
	scores := make([]float64, len(canonical))
	scored := make([]bool, len(canonical))
	var failures atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, c := range canonical {
		g.Go(func() error {
			s, err := e.similarity.Similarity(gCtx, kind,
				ent.EntityName(), ent.EntityDescription(),
				c.EntityName(), c.EntityDescription(),
			)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failures.Add(1)
				logger.Warn("[Consolidate] Similarity failed",
					"kind", kind, "a", ent.EntityName(), "b", c.EntityName(), "err", err)
				return nil
			}
			scores[i] = s
			scored[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Verdict{}, fmt.Errorf("similarity for %s %q: %w", kind, ent.EntityName(), err)
	}
	st.Stats.SimilarityErrors += int(failures.Load())

	best := -1
	for i := range canonical {
		if !scored[i] {
			continue
		}
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return Verdict{Action: ActionCreate, Match: -1}, nil
	}
	return Verdict{
		Action: Classify(scores[best], e.thresholds),
		Match:  best,
		Score:  scores[best],
	}, nil
}
