package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/storage"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader/pdf"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// ErrBadMessage marks messages that can never succeed. They go straight to
// the dead-letter queue.
var ErrBadMessage = errors.New("bad message")

// Converter runs one document conversion.
type Converter interface {
	ConvertDocument(ctx context.Context, documentID string, source loader.ChunkSource) (*graph.RunResult, error)
}

// Worker consumes convert messages.
type Worker struct {
	converter Converter
	files     func() loader.FileLoader
	ch        Channel
	count     pdf.TokenCounter

	maxTokens     int
	overlapTokens int
}

// NewWorkerParams configures a Worker. Files returns the loader for one
// message; a fresh loader per message keeps file caches short-lived.
type NewWorkerParams struct {
	Converter     Converter
	Files         func() loader.FileLoader
	Channel       Channel
	Count         pdf.TokenCounter
	MaxTokens     int
	OverlapTokens int
}

func NewWorker(params NewWorkerParams) *Worker {
	return &Worker{
		converter:     params.Converter,
		files:         params.Files,
		ch:            params.Channel,
		count:         params.Count,
		maxTokens:     params.MaxTokens,
		overlapTokens: params.OverlapTokens,
	}
}

func parseConvertMsg(body []byte) (ConvertMsg, error) {
	var data ConvertMsg
	if err := json.Unmarshal(body, &data); err != nil {
		return data, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if data.DocumentID == "" {
		return data, fmt.Errorf("%w: missing document_id", ErrBadMessage)
	}
	if data.FileKey == "" {
		data.FileKey = storage.DocumentKey(data.DocumentID)
	}
	return data, nil
}

// ProcessConvertMessage converts the document named by body and announces
// the result on TopicConverted.
func (w *Worker) ProcessConvertMessage(ctx context.Context, body []byte) error {
	data, err := parseConvertMsg(body)
	if err != nil {
		return err
	}
	start := time.Now()

	source, err := pdf.NewPDFChunkLoader(pdf.NewPDFChunkLoaderParams{
		Files:         w.files(),
		Path:          data.FileKey,
		MaxTokens:     w.maxTokens,
		OverlapTokens: w.overlapTokens,
		Count:         w.count,
	})
	if err != nil {
		return err
	}

	logger.Info("[Queue] Converting document", "document", data.DocumentID, "file", data.FileKey, "correlation_id", data.CorrelationID)
	result, err := w.converter.ConvertDocument(ctx, data.DocumentID, source)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", data.DocumentID, err)
	}

	out, err := json.Marshal(ConvertedMsg{
		DocumentID:     data.DocumentID,
		CorrelationID:  data.CorrelationID,
		Resumed:        result.Resumed,
		Stats:          result.Stats,
		Processes:      len(result.Processes),
		OpenQuestions:  len(result.Ambiguities),
		Issues:         result.Issues,
		DurationMillis: time.Since(start).Milliseconds(),
	})
	if err != nil {
		return err
	}
	if err := PublishTopic(w.ch, TopicConverted, out); err != nil {
		// The graph is persisted; a lost notification is not worth a rerun.
		logger.Error("[Queue] Failed to publish conversion result", "document", data.DocumentID, "err", err)
	}
	return nil
}
