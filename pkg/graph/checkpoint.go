package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

const (
	CheckpointRunning   = "running"
	CheckpointCompleted = "completed"
)

// DocumentStatus is the progress recorded by a document's checkpoint.
type DocumentStatus struct {
	DocumentID  string    `json:"document_id"`
	Status      string    `json:"status"`
	NextChunk   int       `json:"next_chunk"`
	ChunksTotal int       `json:"chunks_total"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func statusOf(n store.Node) DocumentStatus {
	updated, _ := time.Parse(time.RFC3339, store.String(n.Attributes, "updated_at"))
	return DocumentStatus{
		DocumentID:  store.String(n.Attributes, "document_id"),
		Status:      store.String(n.Attributes, "status"),
		NextChunk:   store.Int(n.Attributes, "next_chunk"),
		ChunksTotal: store.Int(n.Attributes, "chunks_total"),
		UpdatedAt:   updated,
	}
}

func checkpointKey(documentID string) string {
	return store.ScopedKey(documentID, "checkpoint")
}

// LoadCheckpoint returns the last saved state of a document, or nil when
// none was saved.
func (c *GraphClient) LoadCheckpoint(ctx context.Context, documentID string) (*consolidate.State, error) {
	nodes, err := c.store.QueryNodes(ctx, common.KindCheckpoint, store.Filter{
		NaturalKey: checkpointKey(documentID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	data := store.String(nodes[0].Attributes, "state")
	if data == "" {
		return nil, nil
	}
	st, err := consolidate.LoadState([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint of %s: %w", documentID, err)
	}
	return st, nil
}

// Status returns the progress of a document, or store.ErrNotFound when it
// was never converted.
func (c *GraphClient) Status(ctx context.Context, documentID string) (DocumentStatus, error) {
	nodes, err := c.store.QueryNodes(ctx, common.KindCheckpoint, store.Filter{
		NaturalKey: checkpointKey(documentID),
	})
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	if len(nodes) == 0 {
		return DocumentStatus{}, store.ErrNotFound
	}
	return statusOf(nodes[0]), nil
}

// StaleRuns lists running conversions whose checkpoint was not touched since
// before. Their worker most likely died.
func (c *GraphClient) StaleRuns(ctx context.Context, before time.Time) ([]DocumentStatus, error) {
	nodes, err := c.store.QueryNodes(ctx, common.KindCheckpoint, store.Filter{
		Attributes: map[string]any{"status": CheckpointRunning},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	var stale []DocumentStatus
	for _, n := range nodes {
		st := statusOf(n)
		if st.UpdatedAt.Before(before) {
			stale = append(stale, st)
		}
	}
	return stale, nil
}

func (c *GraphClient) saveCheckpoint(ctx context.Context, st *consolidate.State, status string) error {
	if !c.checkpoints && status != CheckpointCompleted {
		return nil
	}
	data, err := st.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	_, err = c.store.UpsertNode(ctx, common.KindCheckpoint, checkpointKey(st.DocumentID), map[string]any{
		"checkpoint_id": st.DocumentID,
		"document_id":   st.DocumentID,
		"next_chunk":    st.NextChunk,
		"chunks_total":  st.Stats.ChunksTotal,
		"status":        status,
		"state":         string(data),
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
