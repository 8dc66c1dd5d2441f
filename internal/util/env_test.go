package util

import "testing"

func TestGetEnvNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  float64
	}{
		{name: "unset", want: 0.9},
		{name: "float", value: "0.85", set: true, want: 0.85},
		{name: "padded", value: " 0.7 ", set: true, want: 0.7},
		{name: "garbage", value: "high", set: true, want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("TEST_THRESHOLD", tt.value)
			}
			got := GetEnvNumeric("TEST_THRESHOLD", 0.9)
			if got != tt.want {
				t.Fatalf("GetEnvNumeric() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "true", want: true},
		{value: "TRUE", want: true},
		{value: "1", want: true},
		{value: "no", want: false},
		{value: "maybe", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_FLAG", tt.value)
			if got := GetEnvBool("TEST_FLAG", true); got != tt.want {
				t.Fatalf("GetEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvStringBlankFallsBack(t *testing.T) {
	t.Setenv("TEST_MODEL", "  ")
	if got := GetEnvString("TEST_MODEL", "gpt-4o"); got != "gpt-4o" {
		t.Fatalf("expected default for blank value, got %q", got)
	}
}
