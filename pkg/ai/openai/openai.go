package openai

import (
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient talks to OpenAI compatible endpoints. Chat (entity
// extraction) and embeddings may live on different hosts with different keys.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel  string
	extractionModel string
	embeddingDim    int
	timeout         time.Duration

	chatURL string

	embeddingLock *semaphore.Weighted
	metrics       ai.MetricsRecorder

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// EmbeddingDim truncates or zero-pads vectors to a fixed width so they fit a
// fixed pgvector column; 0 keeps the provider's width. Timeout bounds each
// request; 0 means five minutes.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel  string
	ExtractionModel string
	EmbeddingDim    int

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentEmbeddings int64
	Timeout                 time.Duration
}

// NewGraphOpenAIClient creates a new client configured with the provided
// parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		EmbeddingModel:  "text-embedding-3-small",
//		ExtractionModel: "gpt-4o",
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	maxEmbed := params.MaxConcurrentEmbeddings
	if maxEmbed <= 0 {
		maxEmbed = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &GraphOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		extractionModel: params.ExtractionModel,
		embeddingDim:    params.EmbeddingDim,
		timeout:         timeout,

		chatURL: params.ChatURL,

		embeddingLock: semaphore.NewWeighted(maxEmbed),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ResetMetrics clears all accumulated token and timing metrics.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns the accumulated metrics since the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}
