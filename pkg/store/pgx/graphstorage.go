package pgx

import (
	"context"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStore on PostgreSQL. Nodes and edges
// live in two generic tables keyed by kind; attributes are JSONB. The same
// database holds the pgvector embedding cache used by similarity.
type GraphDBStorage struct {
	conn  pgxIConn
	close func()
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithOwnedPool makes Close shut the pool down.
func WithOwnedPool(pool *pgxpool.Pool) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.close = pool.Close
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// pool, connection or transaction. The caller keeps ownership unless
// WithOwnedPool is given.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// NewGraphDBStorage connects to url and owns the resulting pool.
func NewGraphDBStorage(ctx context.Context, url string) (*GraphDBStorage, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewGraphDBStorageWithConnection(pool, WithOwnedPool(pool)), nil
}

func (s *GraphDBStorage) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ store.GraphStore = (*GraphDBStorage)(nil)
