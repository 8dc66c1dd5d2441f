package ollama

import (
	"net/http"
	"net/url"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements ai.GraphAIClient on top of a locally hosted
// Ollama server.
type GraphOllamaClient struct {
	embeddingModel  string
	extractionModel string
	embeddingDim    int
	timeout         time.Duration

	reqLock *semaphore.Weighted
	metrics ai.MetricsRecorder
	enc     *tiktoken.Tiktoken

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	EmbeddingModel  string
	ExtractionModel string
	EmbeddingDim    int

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL (or the
// library default when empty). The API key, if set, is sent as a bearer
// token for servers behind an authenticating proxy.
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &GraphOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		extractionModel: params.ExtractionModel,
		embeddingDim:    params.EmbeddingDim,
		timeout:         timeout,

		reqLock: semaphore.NewWeighted(maxReq),
		enc:     enc,

		Client: api.NewClient(u, httpClient),
	}, nil
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *GraphOllamaClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *GraphOllamaClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}
