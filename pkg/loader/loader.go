package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

// FileLoader fetches the raw bytes of a stored document. Implementations
// exist for the local filesystem and for S3-compatible object storage.
type FileLoader interface {
	GetFile(ctx context.Context, path string) ([]byte, error)
}

// ChunkSource yields the ordered chunks of one document. The returned slice
// is complete and ordered by OrderIndex; callers resume a run by skipping
// chunks below their checkpoint offset.
type ChunkSource interface {
	Chunks(ctx context.Context, documentID string) ([]common.Chunk, error)
}

// StaticChunkSource serves a fixed set of chunks regardless of the document
// id. Useful for pre-chunked input and tests.
type StaticChunkSource []common.Chunk

func (s StaticChunkSource) Chunks(ctx context.Context, documentID string) ([]common.Chunk, error) {
	out := make([]common.Chunk, len(s))
	copy(out, s)
	return out, nil
}

// ChunkID returns the deterministic id of the chunk at index within a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-c%d", documentID, index)
}

// TextHash returns the hex encoded SHA-256 of text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CacheKey builds the key loaders use for their content caches.
func CacheKey(scope, path string) string {
	return scope + ":" + path
}
