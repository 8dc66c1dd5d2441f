package loader

import (
	"context"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 7); got != "doc-1-c7" {
		t.Fatalf("ChunkID = %q", got)
	}
}

func TestTextHash(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := TextHash(""); got != empty {
		t.Fatalf("TextHash(\"\") = %q", got)
	}
	if TextHash("a") == TextHash("b") {
		t.Fatalf("distinct texts share a hash")
	}
}

func TestStaticChunkSourceCopies(t *testing.T) {
	src := StaticChunkSource{{ID: "c0", Text: "x"}}
	got, err := src.Chunks(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	got[0] = common.Chunk{ID: "changed"}
	if src[0].ID != "c0" {
		t.Fatalf("source was mutated")
	}
}
