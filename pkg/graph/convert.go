package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// RunResult summarizes one conversion.
type RunResult struct {
	DocumentID  string               `json:"document_id"`
	Resumed     bool                 `json:"resumed"`
	Stats       consolidate.RunStats `json:"stats"`
	Issues      []consolidate.Issue  `json:"issues"`
	Ambiguities []common.Ambiguity   `json:"ambiguities"`
	Processes   []*common.Process    `json:"processes"`
}

// ConvertDocument extracts, consolidates and persists one document. Runs of
// the same document are serialized. A run interrupted after some chunks
// resumes from its checkpoint; rerunning a finished document is idempotent.
//
// A chunk whose extraction fails is logged, counted and skipped.
func (c *GraphClient) ConvertDocument(ctx context.Context, documentID string, source loader.ChunkSource) (*RunResult, error) {
	var result *RunResult
	err := c.locker.WithLease(ctx, leaselock.DocumentKey(documentID), leaselock.Options{Wait: true}, func(ctx context.Context) error {
		var err error
		result, err = c.convert(ctx, documentID, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *GraphClient) convert(ctx context.Context, documentID string, source loader.ChunkSource) (*RunResult, error) {
	st, err := c.LoadCheckpoint(ctx, documentID)
	if err != nil {
		return nil, err
	}
	resumed := st != nil
	if st == nil {
		st = c.engine.NewState(documentID)
		if _, err := c.restore(ctx, st); err != nil {
			return nil, err
		}
	} else {
		c.engine.Attach(st)
		logger.Info("[Graph] Resuming document", "document", documentID, "next_chunk", st.NextChunk)
	}

	chunks, err := source.Chunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks of %s: %w", documentID, err)
	}
	st.Stats.ChunksTotal = len(chunks)

	for _, chunk := range chunks {
		if chunk.OrderIndex < st.NextChunk {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := c.extractor.Extract(
			ctx,
			chunk,
			st.Registry.Names(common.KindProcess),
			st.Registry.Names(common.KindRole),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("[Graph] Chunk extraction failed", "document", documentID, "chunk", chunk.ID, "err", err)
			st.Stats.ChunksFailed++
			st.NextChunk = chunk.OrderIndex + 1
		} else {
			c.engine.IngestChunk(st, chunk, set)
		}

		if err := c.saveCheckpoint(ctx, st, CheckpointRunning); err != nil {
			return nil, err
		}
	}

	if err := c.engine.Normalize(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", documentID, err)
	}
	c.engine.Repair(st)
	c.engine.Finalize(st)
	c.detector.Run(st)

	if err := c.syncAnswers(ctx, st); err != nil {
		return nil, err
	}
	if err := c.persist(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to persist %s: %w", documentID, err)
	}
	issues := consolidate.Validate(st)
	for _, issue := range issues {
		logger.Warn("[Graph] Validation", "document", documentID, "severity", issue.Severity, "message", issue.Message)
	}

	if err := c.saveCheckpoint(ctx, st, CheckpointCompleted); err != nil {
		return nil, err
	}

	var open []common.Ambiguity
	for _, a := range st.Ambiguities {
		if a.IsOpen() {
			open = append(open, a)
		}
	}
	var processes []*common.Process
	for _, p := range st.Processes {
		if !st.IsPending(p.ID) {
			processes = append(processes, p)
		}
	}

	logger.Info("[Graph] Converted document",
		"document", documentID,
		"chunks", st.Stats.ChunksProcessed,
		"failed", st.Stats.ChunksFailed,
		"processes", len(processes),
		"tasks", len(st.Tasks),
		"roles", len(st.Roles),
		"ambiguities", len(open),
	)

	return &RunResult{
		DocumentID:  documentID,
		Resumed:     resumed,
		Stats:       st.Stats,
		Issues:      issues,
		Ambiguities: open,
		Processes:   processes,
	}, nil
}
