package graph

import (
	"errors"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"
)

// GraphClient runs document conversions: chunk extraction, consolidation,
// ambiguity detection and persistence into a graph store.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	engine      *consolidate.Engine
	extractor   extract.Oracle
	store       store.GraphStore
	detector    *ambiguity.Detector
	locker      leaselock.Locker
	checkpoints bool
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Extractor and Store are required. Engine and Detector fall back to their
// defaults, which means no similarity normalization. Locker serializes runs
// of the same document and defaults to an in-process lock.
// DisableCheckpoints turns off per-chunk state snapshots. The state of a
// finished run is still saved.
type NewGraphClientParams struct {
	Engine             *consolidate.Engine
	Extractor          extract.Oracle
	Store              store.GraphStore
	Detector           *ambiguity.Detector
	Locker             leaselock.Locker
	DisableCheckpoints bool
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Engine:    consolidate.NewEngine(consolidate.NewEngineParams{Similarity: oracle}),
//		Extractor: extract.NewLLMExtractor(extract.NewLLMExtractorParams{Client: aiClient}),
//		Store:     pgxStore,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Extractor == nil {
		return nil, errors.New("graph client needs an extractor")
	}
	if params.Store == nil {
		return nil, errors.New("graph client needs a store")
	}

	engine := params.Engine
	if engine == nil {
		engine = consolidate.NewEngine(consolidate.NewEngineParams{})
	}
	detector := params.Detector
	if detector == nil {
		detector = ambiguity.NewDetector(ambiguity.NewDetectorParams{})
	}
	locker := params.Locker
	if locker == nil {
		locker = leaselock.NewLocal()
	}

	return &GraphClient{
		engine:      engine,
		extractor:   params.Extractor,
		store:       params.Store,
		detector:    detector,
		locker:      locker,
		checkpoints: !params.DisableCheckpoints,
	}, nil
}
