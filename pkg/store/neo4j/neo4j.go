package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// baseLabel is carried by every node so edges can match endpoints by id
// without knowing their kind.
const baseLabel = "GraphNode"

const (
	propNaturalKey = "natural_key"
	propNodeID     = "node_id"
	propCreated    = "created_at"
	jsonSuffix     = "_json"
)

// GraphNeo4jStorage implements store.GraphStore on Neo4j. Each kind is a
// label, natural keys are unique per label.
type GraphNeo4jStorage struct {
	driver   neo4jv5.DriverWithContext
	database string
}

type NewGraphNeo4jStorageParams struct {
	URI      string
	User     string
	Password string
	Database string
	MaxPool  int
	Timeout  time.Duration
}

func NewGraphNeo4jStorage(ctx context.Context, params NewGraphNeo4jStorageParams) (*GraphNeo4jStorage, error) {
	if params.User == "" {
		params.User = "neo4j"
	}
	if params.MaxPool <= 0 {
		params.MaxPool = 50
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}

	auth := neo4jv5.BasicAuth(params.User, params.Password, "")
	driver, err := neo4jv5.NewDriverWithContext(params.URI, auth, func(cfg *neo4jv5.Config) {
		cfg.MaxConnectionPoolSize = params.MaxPool
		cfg.SocketConnectTimeout = params.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &GraphNeo4jStorage{driver: driver, database: params.Database}
	s.ensureSchema(ctx)
	return s, nil
}

// ensureSchema creates the uniqueness constraints. Failures are logged and
// ignored; restricted users may not manage schema.
func (s *GraphNeo4jStorage) ensureSchema(ctx context.Context) {
	session := s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	stmts := []string{
		fmt.Sprintf("CREATE CONSTRAINT graph_node_id IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", baseLabel, propNodeID),
	}
	for _, kind := range kinds {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s_natural_key IF NOT EXISTS FOR (n:`%s`) REQUIRE n.%s IS UNIQUE",
			strings.ToLower(string(kind)), kind, propNaturalKey,
		))
	}
	for _, stmt := range stmts {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			logger.Warn("[Neo4j] Schema init failed (continuing)", "err", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

var kinds = []common.EntityKind{
	common.KindProcess,
	common.KindTask,
	common.KindRole,
	common.KindGateway,
	common.KindEvent,
	common.KindDecision,
	common.KindRule,
	common.KindAmbiguity,
	common.KindAlias,
	common.KindChunk,
	common.KindCheckpoint,
}

func (s *GraphNeo4jStorage) UpsertNode(
	ctx context.Context,
	kind common.EntityKind,
	naturalKey string,
	attrs map[string]any,
) (string, error) {
	prepared, id, err := store.PrepareAttributes(kind, attrs)
	if err != nil {
		return "", err
	}
	idField := common.MustSchema(kind).IDField

	onCreate := toProperties(prepared)
	onCreate[propNodeID] = id
	onMatch := toProperties(prepared)
	delete(onMatch, idField)

	cypher := fmt.Sprintf(`
MERGE (n:%s:`+"`%s`"+` {%s: $key})
ON CREATE SET n += $create, n.%s = timestamp()
ON MATCH SET n += $update
RETURN n.%s AS id`, baseLabel, kind, propNaturalKey, propCreated, propNodeID)

	session := s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"key":    naturalKey,
			"create": onCreate,
			"update": onMatch,
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		stored, _ := rec.Get("id")
		return stored, nil
	})
	if err != nil {
		return "", fmt.Errorf("neo4j: upsert %s %q: %w", kind, naturalKey, err)
	}
	stored, _ := out.(string)
	return stored, nil
}

func (s *GraphNeo4jStorage) UpsertEdge(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
	attrs map[string]any,
) error {
	cypher := fmt.Sprintf(`
MATCH (a:%[1]s {%[2]s: $from}), (b:%[1]s {%[2]s: $to})
MERGE (a)-[r:`+"`%[3]s`"+`]->(b)
ON CREATE SET r.%[4]s = timestamp()
SET r += $attrs
RETURN count(r) AS n`, baseLabel, propNodeID, kind, propCreated)

	session := s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"from":  fromID,
			"to":    toID,
			"attrs": toProperties(attrs),
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		return n, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: upsert %s edge %s -> %s: %w", kind, fromID, toID, err)
	}
	if n, _ := out.(int64); n == 0 {
		return fmt.Errorf("neo4j: upsert %s edge %s -> %s: %w", kind, fromID, toID, store.ErrNotFound)
	}
	return nil
}

func (s *GraphNeo4jStorage) QueryNodes(
	ctx context.Context,
	kind common.EntityKind,
	filter store.Filter,
) ([]store.Node, error) {
	cypher := fmt.Sprintf(`
MATCH (n:`+"`%s`"+`)
WHERE ($key = '' OR n.%s = $key)
  AND all(k IN keys($filter) WHERE n[k] = $filter[k])
RETURN n
ORDER BY n.%s, n.%s`, kind, propNaturalKey, propCreated, propNodeID)

	session := s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"key":    filter.NaturalKey,
			"filter": toProperties(filter.Attributes),
		})
		if err != nil {
			return nil, err
		}
		var nodes []store.Node
		for res.Next(ctx) {
			raw, _ := res.Record().Get("n")
			n, ok := raw.(neo4jv5.Node)
			if !ok {
				continue
			}
			node, err := toNode(kind, n.Props)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: query %s nodes: %w", kind, err)
	}
	nodes, _ := out.([]store.Node)
	return nodes, nil
}

func (s *GraphNeo4jStorage) QueryEdges(
	ctx context.Context,
	kind common.EdgeKind,
	fromID, toID string,
) ([]store.Edge, error) {
	cypher := fmt.Sprintf(`
MATCH (a:%[1]s)-[r:`+"`%[3]s`"+`]->(b:%[1]s)
WHERE ($from = '' OR a.%[2]s = $from) AND ($to = '' OR b.%[2]s = $to)
RETURN a.%[2]s AS src, b.%[2]s AS dst, properties(r) AS props
ORDER BY r.%[4]s`, baseLabel, propNodeID, kind, propCreated)

	session := s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
		if err != nil {
			return nil, err
		}
		var edges []store.Edge
		for res.Next(ctx) {
			rec := res.Record()
			from, _ := rec.Get("src")
			to, _ := rec.Get("dst")
			props, _ := rec.Get("props")
			attrs, err := fromProperties(asMap(props))
			if err != nil {
				return nil, err
			}
			delete(attrs, propCreated)
			edges = append(edges, store.Edge{
				Kind:       kind,
				From:       fmt.Sprint(from),
				To:         fmt.Sprint(to),
				Attributes: attrs,
			})
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: query %s edges: %w", kind, err)
	}
	edges, _ := out.([]store.Edge)
	return edges, nil
}

func (s *GraphNeo4jStorage) Close() error {
	return s.driver.Close(context.Background())
}

func toNode(kind common.EntityKind, props map[string]any) (store.Node, error) {
	attrs, err := fromProperties(props)
	if err != nil {
		return store.Node{}, err
	}
	n := store.Node{
		ID:         store.String(attrs, propNodeID),
		Kind:       kind,
		NaturalKey: store.String(attrs, propNaturalKey),
	}
	delete(attrs, propNodeID)
	delete(attrs, propNaturalKey)
	delete(attrs, propCreated)
	n.Attributes = attrs
	return n, nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// toProperties converts attributes into values Neo4j can store. Scalars and
// string lists are kept, everything else is stored as JSON under
// "<key>_json".
func toProperties(attrs map[string]any) map[string]any {
	props := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case nil, string, bool, int64, float64, []string:
			props[k] = val
		case int:
			props[k] = int64(val)
		case float32:
			props[k] = float64(val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				continue
			}
			props[k+jsonSuffix] = string(data)
		}
	}
	return props
}

func fromProperties(props map[string]any) (map[string]any, error) {
	attrs := make(map[string]any, len(props))
	for k, v := range props {
		if base, ok := strings.CutSuffix(k, jsonSuffix); ok {
			if s, isString := v.(string); isString {
				var decoded any
				if err := json.Unmarshal([]byte(s), &decoded); err != nil {
					return nil, fmt.Errorf("decode %s: %w", k, err)
				}
				attrs[base] = decoded
				continue
			}
		}
		attrs[k] = v
	}
	return store.Normalize(attrs)
}

var _ store.GraphStore = (*GraphNeo4jStorage)(nil)
