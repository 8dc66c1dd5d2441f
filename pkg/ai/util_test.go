package ai

import (
	"testing"
)

type processPayload struct {
	Name  string `json:"name"`
	Order int    `json:"order,omitempty"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  processPayload
	}{
		{
			name:  "valid json object",
			input: `{"name":"구매요청 승인 프로세스"}`,
			want:  processPayload{Name: "구매요청 승인 프로세스"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{name: '발주 처리'}`,
			want:  processPayload{Name: "발주 처리"},
		},
		{
			name:  "trailing comma",
			input: `{"name":"Order intake","order":2,}`,
			want:  processPayload{Name: "Order intake", Order: 2},
		},
		{
			name:  "missing endbracket",
			input: `{"name":"Order intake`,
			want:  processPayload{Name: "Order intake"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"name\": \"Order intake\"}\n```",
			want:  processPayload{Name: "Order intake"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{name: 'Order intake'}"`,
			want:  processPayload{Name: "Order intake"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"name\": \"Order intake\"\n}\n",
			want:  processPayload{Name: "Order intake"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got processPayload
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	input := `[{name:'A'},{name:'B',}]`
	var got []processPayload
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want two processes A,B", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got processPayload
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "```json\n{}\n```", want: "{}"},
		{in: "```\n[1]\n```", want: "[1]"},
		{in: `{"a":1}`, want: `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Add(ModelMetrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 1000})
	r.Add(ModelMetrics{InputTokens: 5, TotalTokens: 5, DurationMs: 1000})

	got := r.Snapshot()
	if got.TotalTokens != 20 || got.Requests != 2 || got.DurationMs != 2000 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got.TokenPerSecond != 10 {
		t.Fatalf("expected 10 tokens/s, got %v", got.TokenPerSecond)
	}

	r.Reset()
	if r.Snapshot() != (ModelMetrics{}) {
		t.Fatalf("expected zero metrics after reset, got %+v", r.Snapshot())
	}
}
