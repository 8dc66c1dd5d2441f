package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Oracle scores how likely two named entities of the same kind are the same
// real-world thing. Scores are in [0,1].
type Oracle interface {
	Similarity(
		ctx context.Context,
		kind common.EntityKind,
		nameA, descA string,
		nameB, descB string,
	) (float64, error)
}

// Embedder is the part of ai.GraphAIClient the oracle needs.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// EmbeddingCache persists embeddings across runs, keyed by CacheKey.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, key string, vec []float32) error
}

// Entry is a name/description pair to embed.
type Entry struct {
	Name        string
	Description string
}

const retryDelay = 500 * time.Millisecond

// EmbeddingOracle implements Oracle as the cosine similarity of embeddings
// of "name. description". Embeddings are memoised in process and, when a
// cache is configured, across runs.
type EmbeddingOracle struct {
	embedder Embedder
	cache    EmbeddingCache
	model    string
	retries  int

	mu    sync.RWMutex
	local map[string][]float32
	group singleflight.Group
}

// NewEmbeddingOracleParams configures an EmbeddingOracle. Model only
// namespaces cache keys so vectors of different models never mix.
// Retries bounds attempts per embedding call and defaults to 1.
type NewEmbeddingOracleParams struct {
	Embedder Embedder
	Cache    EmbeddingCache
	Model    string
	Retries  int
}

func NewEmbeddingOracle(params NewEmbeddingOracleParams) *EmbeddingOracle {
	return &EmbeddingOracle{
		embedder: params.Embedder,
		cache:    params.Cache,
		model:    params.Model,
		retries:  max(params.Retries, 1),
		local:    make(map[string][]float32),
	}
}

// EmbeddingText is the text embedded for an entity.
func EmbeddingText(name, description string) string {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if description == "" {
		return name
	}
	return name + ". " + description
}

// CacheKey derives the persistent cache key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (o *EmbeddingOracle) Similarity(
	ctx context.Context,
	kind common.EntityKind,
	nameA, descA string,
	nameB, descB string,
) (float64, error) {
	a, err := o.embed(ctx, EmbeddingText(nameA, descA))
	if err != nil {
		return 0, fmt.Errorf("embed %s %q: %w", kind, nameA, err)
	}
	b, err := o.embed(ctx, EmbeddingText(nameB, descB))
	if err != nil {
		return 0, fmt.Errorf("embed %s %q: %w", kind, nameB, err)
	}
	return Cosine(a, b), nil
}

// Prefetch embeds entries that are not cached yet, in one request when the
// embedder supports batching.
func (o *EmbeddingOracle) Prefetch(ctx context.Context, entries []Entry) error {
	batcher, ok := o.embedder.(ai.EmbeddingBatcher)
	if !ok {
		return nil
	}

	var texts []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		text := EmbeddingText(e.Name, e.Description)
		if _, dup := seen[text]; dup || text == "" {
			continue
		}
		seen[text] = struct{}{}
		if _, hit := o.lookupLocal(text); hit {
			continue
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return nil
	}

	inputs := make([][]byte, len(texts))
	for i, t := range texts {
		inputs[i] = []byte(t)
	}
	vecs, err := batcher.GenerateEmbeddings(ctx, inputs)
	if err != nil {
		return err
	}
	for i, text := range texts {
		o.store(ctx, text, vecs[i])
	}
	return nil
}

func (o *EmbeddingOracle) lookupLocal(text string) ([]float32, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.local[text]
	return v, ok
}

func (o *EmbeddingOracle) store(ctx context.Context, text string, vec []float32) {
	o.mu.Lock()
	o.local[text] = vec
	o.mu.Unlock()
	if o.cache != nil {
		if err := o.cache.PutEmbedding(ctx, CacheKey(o.model, text), vec); err != nil {
			logger.Warn("[Similarity] Failed to cache embedding", "err", err)
		}
	}
}

func (o *EmbeddingOracle) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := o.lookupLocal(text); ok {
		return v, nil
	}

	v, err, _ := o.group.Do(text, func() (any, error) {
		if v, ok := o.lookupLocal(text); ok {
			return v, nil
		}
		if o.cache != nil {
			vec, ok, err := o.cache.GetEmbedding(ctx, CacheKey(o.model, text))
			if err != nil {
				logger.Warn("[Similarity] Embedding cache read failed", "err", err)
			} else if ok {
				o.mu.Lock()
				o.local[text] = vec
				o.mu.Unlock()
				return vec, nil
			}
		}
		vec, err := util.RetryWithBackoff(ctx, o.retries, retryDelay, func(ctx context.Context) ([]float32, error) {
			return o.embedder.GenerateEmbedding(ctx, []byte(text))
		})
		if err != nil {
			return nil, err
		}
		o.store(ctx, text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
