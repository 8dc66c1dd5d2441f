package ambiguity

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

var (
	ErrNotFound        = errors.New("ambiguity not found")
	ErrAlreadyResolved = common.ErrAmbiguityResolved
)

// Service answers persisted ambiguities and applies the answers to the
// graph.
type Service struct {
	store  store.GraphStore
	locker leaselock.Locker
}

type NewServiceParams struct {
	Store store.GraphStore
	// Locker must be the one conversions of the same documents use.
	// Defaults to an in-process lock.
	Locker leaselock.Locker
}

func NewService(params NewServiceParams) *Service {
	locker := params.Locker
	if locker == nil {
		locker = leaselock.NewLocal()
	}
	return &Service{store: params.Store, locker: locker}
}

// ListOpen returns the open questions of a document in creation order.
func (s *Service) ListOpen(ctx context.Context, documentID string) ([]common.Ambiguity, error) {
	nodes, err := s.store.QueryNodes(ctx, common.KindAmbiguity, store.Filter{
		Attributes: map[string]any{
			"document_id": documentID,
			"status":      string(common.AmbiguityOpen),
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]common.Ambiguity, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, FromNode(n))
	}
	return out, nil
}

// Get returns a single question by id.
func (s *Service) Get(ctx context.Context, id string) (common.Ambiguity, error) {
	n, err := store.GetNode(ctx, s.store, common.KindAmbiguity, id)
	if errors.Is(err, store.ErrNotFound) {
		return common.Ambiguity{}, ErrNotFound
	}
	if err != nil {
		return common.Ambiguity{}, err
	}
	return FromNode(n), nil
}

// Resolve records answer and applies it. A question is answered once;
// answering again fails with ErrAlreadyResolved.
//
// Answers hold the document's conversion lease, so a conversion never
// persists over an answer it has not seen.
func (s *Service) Resolve(ctx context.Context, id, answer string) (common.Ambiguity, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return common.Ambiguity{}, err
	}

	var resolved common.Ambiguity
	err = s.locker.WithLease(ctx, leaselock.DocumentKey(current.DocumentID), leaselock.Options{Wait: true}, func(ctx context.Context) error {
		n, err := store.GetNode(ctx, s.store, common.KindAmbiguity, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		amb := FromNode(n)
		if err := amb.Resolve(answer); err != nil {
			return err
		}

		switch amb.Reason {
		case common.ReasonMissingRole:
			err = s.assignRole(ctx, amb, answer)
		case common.ReasonSimilarEntity:
			err = s.decideReview(ctx, amb, answer)
		}
		if err != nil {
			return fmt.Errorf("failed to apply answer to %s: %w", id, err)
		}

		if _, err := s.store.UpsertNode(ctx, common.KindAmbiguity, n.NaturalKey, map[string]any{
			"status": string(amb.Status),
			"answer": amb.Answer,
		}); err != nil {
			return err
		}
		resolved = amb
		return nil
	})
	if err != nil {
		return common.Ambiguity{}, err
	}
	logger.Info("[Ambiguity] Resolved", "id", id, "reason", resolved.Reason, "answer", answer)
	return resolved, nil
}

// assignRole makes a manual assignment. An answer that names no role of the
// document leaves the task explicitly unassigned.
func (s *Service) assignRole(ctx context.Context, amb common.Ambiguity, answer string) error {
	task, err := store.GetNode(ctx, s.store, common.KindTask, amb.EntityID)
	if err != nil {
		return err
	}

	roleID := ""
	roles, err := s.store.QueryNodes(ctx, common.KindRole, store.Filter{
		NaturalKey: store.ScopedKey(amb.DocumentID, common.NormalizeName(answer)),
	})
	if err != nil {
		return err
	}
	if len(roles) > 0 {
		roleID = roles[0].ID
	}

	if _, err := s.store.UpsertNode(ctx, common.KindTask, task.NaturalKey, map[string]any{
		"role_id":     roleID,
		"role_source": "manual",
	}); err != nil {
		return err
	}
	if roleID == "" {
		return nil
	}
	return s.store.UpsertEdge(ctx, common.EdgePerformedBy, task.ID, roleID, map[string]any{"source": "manual"})
}

// decideReview merges the parked candidate into the matched entity when the
// answer names it, otherwise creates it. Either way the candidate's
// dependents are re-pointed at the outcome.
func (s *Service) decideReview(ctx context.Context, amb common.Ambiguity, answer string) error {
	schema, err := common.SchemaFor(amb.EntityType)
	if err != nil {
		return err
	}
	candidate := amb.Candidate
	name := store.String(candidate, "name")

	var target string
	if common.NormalizeName(answer) == common.NormalizeName(amb.MatchName) {
		target = amb.MatchID
		alias := common.Alias{
			EntityType: amb.EntityType,
			EntityID:   target,
			Text:       name,
			Normalized: common.NormalizeName(name),
		}
		attrs := alias.Attributes()
		attrs["document_id"] = amb.DocumentID
		aliasID, err := s.store.UpsertNode(ctx, common.KindAlias,
			store.ScopedKey(amb.DocumentID, common.NaturalKey(&alias)), attrs)
		if err != nil {
			return err
		}
		if err := s.store.UpsertEdge(ctx, common.EdgeAliasOf, aliasID, target, nil); err != nil {
			return err
		}
	} else {
		attrs := maps.Clone(candidate)
		delete(attrs, "decision_ids")
		attrs["document_id"] = amb.DocumentID
		target, err = s.store.UpsertNode(ctx, amb.EntityType,
			store.ScopedKey(amb.DocumentID, common.NormalizeName(name)), attrs)
		if err != nil {
			return err
		}
	}

	for _, dep := range schema.Dependents {
		nodes, err := s.store.QueryNodes(ctx, dep.Kind, store.Filter{
			Attributes: map[string]any{
				"document_id": amb.DocumentID,
				dep.Field:     amb.EntityID,
			},
		})
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if _, err := s.store.UpsertNode(ctx, dep.Kind, n.NaturalKey, map[string]any{dep.Field: target}); err != nil {
				return err
			}
			from, to := n.ID, target
			if dep.ParentToChild {
				from, to = target, n.ID
			}
			if err := s.store.UpsertEdge(ctx, dep.Edge, from, to, nil); err != nil {
				return err
			}
		}
	}

	if amb.EntityType == common.KindRole {
		for _, decisionID := range store.Strings(candidate, "decision_ids") {
			if err := s.store.UpsertEdge(ctx, common.EdgeMakesDecision, target, decisionID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromNode decodes a persisted ambiguity.
func FromNode(n store.Node) common.Ambiguity {
	a := n.Attributes
	amb := common.Ambiguity{
		ID:         n.ID,
		DocumentID: store.String(a, "document_id"),
		Reason:     common.AmbiguityReason(store.String(a, "reason")),
		EntityType: common.EntityKind(store.String(a, "entity_type")),
		EntityID:   store.String(a, "entity_id"),
		Question:   store.String(a, "question"),
		Options:    store.Strings(a, "options"),
		Status:     common.AmbiguityStatus(store.String(a, "status")),
		Answer:     store.String(a, "answer"),
		MatchID:    store.String(a, "match_id"),
		MatchName:  store.String(a, "match_name"),
		Score:      store.Float(a, "score"),
	}
	if c, ok := a["candidate"].(map[string]any); ok {
		amb.Candidate = c
	}
	return amb
}
