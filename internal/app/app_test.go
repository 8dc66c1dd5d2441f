package app

import (
	"context"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store/memory"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, BackendMemory, nil)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := s.(*memory.GraphMemoryStorage); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}

	if _, err := NewStore(ctx, BackendPostgres, nil); err == nil {
		t.Fatalf("expected error for postgres without a pool")
	}
	if _, err := NewStore(ctx, "sqlite", nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestThresholdsFromEnv(t *testing.T) {
	t.Setenv("SIMILARITY_MERGE", "0.95")
	t.Setenv("SIMILARITY_REVIEW", "0.7")
	th := Thresholds()
	if th.Merge != 0.95 || th.Review != 0.7 {
		t.Fatalf("unexpected thresholds %+v", th)
	}
}

func TestThresholdsDefault(t *testing.T) {
	th := Thresholds()
	if th.Merge != 0.90 || th.Review != 0.80 {
		t.Fatalf("unexpected defaults %+v", th)
	}
}

func TestMatchOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		minLen  string
		caseSen string
		want    consolidate.MatchOptions
	}{
		{"defaults", "", "", consolidate.MatchOptions{MinSubstringLen: 1}},
		{"min length", "4", "", consolidate.MatchOptions{MinSubstringLen: 4}},
		{"case sensitive", "", "true", consolidate.MatchOptions{MinSubstringLen: 1, CaseSensitive: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SUBSTRING_MIN_LEN", tt.minLen)
			t.Setenv("SUBSTRING_CASE_SENSITIVE", tt.caseSen)
			if got := MatchOptions(); got != tt.want {
				t.Fatalf("MatchOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewWithMemoryBackend(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AI_ADAPTER", "openai")
	c, err := New(context.Background(), Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if c.Pool != nil || c.Graph == nil || c.Ambiguities == nil || c.Locker == nil {
		t.Fatalf("unexpected components %+v", c)
	}
}
