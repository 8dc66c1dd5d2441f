package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// StaleRunLister finds conversions whose worker stopped checkpointing.
type StaleRunLister interface {
	StaleRuns(ctx context.Context, before time.Time) ([]graph.DocumentStatus, error)
}

// RecoverStaleRuns requeues conversions whose checkpoint is older than
// maxAge. The new run resumes from the checkpoint.
func RecoverStaleRuns(ctx context.Context, runs StaleRunLister, ch Channel, maxAge time.Duration) error {
	stale, err := runs.StaleRuns(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return fmt.Errorf("failed to list stale runs: %w", err)
	}
	if len(stale) == 0 {
		logger.Debug("[Queue] No stale runs found")
		return nil
	}

	logger.Info("[Queue] Found stale runs", "count", len(stale))
	for _, run := range stale {
		msg, err := json.Marshal(ConvertMsg{
			DocumentID:    run.DocumentID,
			CorrelationID: "recovered",
		})
		if err != nil {
			logger.Error("[Queue] Failed to marshal queue message", "document", run.DocumentID, "err", err)
			continue
		}
		if err := PublishFIFO(ch, ConvertQueue, msg); err != nil {
			logger.Error("[Queue] Failed to requeue run", "document", run.DocumentID, "err", err)
			continue
		}
		logger.Info("[Queue] Recovered stale run", "document", run.DocumentID, "next_chunk", run.NextChunk)
	}
	return nil
}
