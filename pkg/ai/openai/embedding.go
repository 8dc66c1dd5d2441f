package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateEmbedding creates a vector embedding for input using the
// configured embedding model. Blank input yields a zero vector.
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// GenerateEmbeddings creates embeddings for multiple inputs in a single
// request, preserving input order.
func (c *GraphOpenAIClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if c.EmbeddingClient == nil {
		return nil, errors.New("openai embedding client not configured")
	}

	idxMap := make([]int, 0, len(inputs))
	texts := make([]string, 0, len(inputs))
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(string(in)) == "" {
			out[i] = make([]float32, c.embeddingDim)
			continue
		}
		idxMap = append(idxMap, i)
		texts = append(texts, string(in))
	}
	if len(texts) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.embeddingLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.embeddingLock.Release(1)

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	c.metrics.Add(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(texts))
	}
	for _, embedding := range response.Data {
		dataIdx := int(embedding.Index)
		if dataIdx < 0 || dataIdx >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
		}
		vec := make([]float32, len(embedding.Embedding))
		for i, v := range embedding.Embedding {
			vec[i] = float32(v)
		}
		out[idxMap[dataIdx]] = fitDimensions(vec, c.embeddingDim)
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return out, nil
}

func fitDimensions(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	if len(vec) > dim {
		return vec[:dim]
	}
	padded := make([]float32, dim)
	copy(padded, vec)
	return padded
}
