package extract

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
)

// Oracle returns candidate entities and relationships found in one chunk.
// knownProcesses and knownRoles are the names registered so far in the run;
// implementations pass them to the model so it reuses them.
type Oracle interface {
	Extract(
		ctx context.Context,
		chunk common.Chunk,
		knownProcesses []string,
		knownRoles []string,
	) (CandidateSet, error)
}

// LLMExtractor implements Oracle with a structured-output completion.
type LLMExtractor struct {
	client   ai.GraphAIClient
	retries  int
	maxKnown int
}

// NewLLMExtractorParams configures an LLMExtractor.
//
// MaxKnown caps how many known names per kind are sent with each prompt
// (most recent registrations are dropped first); 0 sends all.
type NewLLMExtractorParams struct {
	Client   ai.GraphAIClient
	Retries  int
	MaxKnown int
}

func NewLLMExtractor(params NewLLMExtractorParams) *LLMExtractor {
	retries := params.Retries
	if retries <= 0 {
		retries = 3
	}
	return &LLMExtractor{
		client:   params.Client,
		retries:  retries,
		maxKnown: params.MaxKnown,
	}
}

// Extract asks the model for the chunk's entities. The answer is validated
// into a CandidateSet before it is returned, so callers never see raw bags.
func (e *LLMExtractor) Extract(
	ctx context.Context,
	chunk common.Chunk,
	knownProcesses []string,
	knownRoles []string,
) (CandidateSet, error) {
	prompt := buildPrompt(chunk.Text, e.cap(knownProcesses), e.cap(knownRoles), chunk.Section)

	payload, err := util.RetryWithContext(ctx, e.retries, func(ctx context.Context) (Payload, error) {
		var p Payload
		err := e.client.GenerateCompletionWithFormat(
			ctx,
			"bpmn_entities",
			"Business process entities and relationships found in a document chunk",
			prompt,
			&p,
			ai.WithSystemPrompts(extractionSystemPrompt),
			ai.WithTemperature(0),
			ai.WithLooseSchema(),
		)
		if err != nil {
			logger.Debug("[Extract] Attempt failed", "chunk", chunk.ID, "err", err)
		}
		return p, err
	})
	if err != nil {
		return CandidateSet{}, fmt.Errorf("extract chunk %s: %w", chunk.ID, err)
	}

	return Validate(payload), nil
}

func (e *LLMExtractor) cap(names []string) []string {
	if e.maxKnown <= 0 || len(names) <= e.maxKnown {
		return names
	}
	return names[:e.maxKnown]
}
