package ollama

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateEmbedding creates a vector embedding for input using the
// configured embedding model. Blank input yields a zero vector.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	})
	if err != nil {
		return nil, err
	}

	c.metrics.Add(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	var out []float32
	if len(res.Embeddings) > 0 {
		out = res.Embeddings[0]
	}
	if c.embeddingDim <= 0 || len(out) == c.embeddingDim {
		return out, nil
	}
	if len(out) > c.embeddingDim {
		return out[:c.embeddingDim], nil
	}
	padded := make([]float32, c.embeddingDim)
	copy(padded, out)
	return padded, nil
}
