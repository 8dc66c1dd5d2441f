package app

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/db"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"
	oai "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai/openai"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/similarity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store/memory"
	graphneo4j "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store/neo4j"
	graphpgx "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Graph store backends selectable with GRAPH_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMemory   = "memory"
)

// Components is everything a process needs to convert documents and answer
// questions about them.
type Components struct {
	Pool        *pgxpool.Pool
	Store       store.GraphStore
	Locker      leaselock.Locker
	AI          ai.GraphAIClient
	Graph       *graph.GraphClient
	Ambiguities *ambiguity.Service
}

// Close releases the store and the database pool.
func (c *Components) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Warn("[App] Failed to close graph store", "err", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// NewAIClient builds the model client selected by AI_ADAPTER.
func NewAIClient() (ai.GraphAIClient, error) {
	timeout := time.Duration(util.GetEnvInt("AI_TIMEOUT_SECONDS", 120)) * time.Second

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingDim:    util.GetEnvInt("AI_EMBED_DIM", 0),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
			Timeout:               timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, nil
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingDim:    util.GetEnvInt("AI_EMBED_DIM", 0),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentEmbeddings: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
			Timeout:                 timeout,
		}), nil
	}
}

// NewPool connects to DATABASE_URL with pgvector types registered and
// applies the migrations.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	url := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(url); err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := util.RetryErrWithContext(ctx, 5, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}

// NewStore opens the graph store selected by GRAPH_BACKEND. pool may be nil
// for backends that do not need Postgres.
func NewStore(ctx context.Context, backend string, pool *pgxpool.Pool) (store.GraphStore, error) {
	switch backend {
	case BackendMemory:
		return memory.NewGraphMemoryStorage(), nil
	case BackendNeo4j:
		s, err := graphneo4j.NewGraphNeo4jStorage(ctx, graphneo4j.NewGraphNeo4jStorageParams{
			URI:      util.GetEnv("NEO4J_URI"),
			User:     util.GetEnv("NEO4J_USER"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnv("NEO4J_DATABASE"),
			MaxPool:  util.GetEnvInt("NEO4J_MAX_POOL", 50),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres, "":
		if pool == nil {
			return nil, fmt.Errorf("postgres backend needs a database pool")
		}
		return graphpgx.NewGraphDBStorageWithConnection(pool), nil
	}
	return nil, fmt.Errorf("unknown graph backend %q", backend)
}

// Thresholds reads the similarity decision bands from the environment.
func Thresholds() consolidate.Thresholds {
	th := consolidate.DefaultThresholds()
	th.Merge = util.GetEnvNumeric("SIMILARITY_MERGE", th.Merge)
	th.Review = util.GetEnvNumeric("SIMILARITY_REVIEW", th.Review)
	return th
}

// MatchOptions reads how task mentions are matched by substring.
func MatchOptions() consolidate.MatchOptions {
	return consolidate.MatchOptions{
		MinSubstringLen: util.GetEnvInt("SUBSTRING_MIN_LEN", 1),
		CaseSensitive:   util.GetEnvBool("SUBSTRING_CASE_SENSITIVE", false),
	}
}

// Options override settings otherwise read from the environment.
type Options struct {
	// Backend overrides GRAPH_BACKEND.
	Backend            string
	DisableCheckpoints bool
}

// New wires all components from the environment. The database pool is
// opened when the graph backend or the lease lock needs it.
func New(ctx context.Context, opts Options) (*Components, error) {
	backend := opts.Backend
	if backend == "" {
		backend = util.GetEnvString("GRAPH_BACKEND", BackendPostgres)
	}
	useDB := backend == BackendPostgres || util.GetEnv("DATABASE_URL") != ""

	c := &Components{}
	if useDB {
		pool, err := NewPool(ctx)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		c.Locker = leaselock.New(pool)
	} else {
		c.Locker = leaselock.NewLocal()
	}

	s, err := NewStore(ctx, backend, c.Pool)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = s

	aiClient, err := NewAIClient()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.AI = aiClient

	var cache similarity.EmbeddingCache
	if ec, ok := s.(similarity.EmbeddingCache); ok {
		cache = ec
	}
	oracle := similarity.NewEmbeddingOracle(similarity.NewEmbeddingOracleParams{
		Embedder: aiClient,
		Cache:    cache,
		Model:    util.GetEnv("AI_EMBED_MODEL"),
		Retries:  util.GetEnvInt("AI_RETRIES", 3),
	})

	engine := consolidate.NewEngine(consolidate.NewEngineParams{
		Similarity: oracle,
		Thresholds: Thresholds(),
		Match:      MatchOptions(),
		Parallel:   util.GetEnvInt("SIMILARITY_PARALLEL", 4),
	})

	g, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Engine: engine,
		Extractor: extract.NewLLMExtractor(extract.NewLLMExtractorParams{
			Client:   aiClient,
			Retries:  util.GetEnvInt("AI_RETRIES", 3),
			MaxKnown: util.GetEnvInt("EXTRACT_MAX_KNOWN", 50),
		}),
		Store: s,
		Detector: ambiguity.NewDetector(ambiguity.NewDetectorParams{
			BatchSize: util.GetEnvInt("AMBIGUITY_BATCH_SIZE", 10),
		}),
		Locker:             c.Locker,
		DisableCheckpoints: opts.DisableCheckpoints,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Graph = g
	c.Ambiguities = ambiguity.NewService(ambiguity.NewServiceParams{Store: s, Locker: c.Locker})

	logger.Info("[App] Components ready", "backend", backend, "database", useDB)
	return c, nil
}
