package openai

import (
	"reflect"
	"testing"
)

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		dim  int
		want []float32
	}{
		{name: "keep provider width", vec: []float32{1, 2, 3}, dim: 0, want: []float32{1, 2, 3}},
		{name: "truncate", vec: []float32{1, 2, 3}, dim: 2, want: []float32{1, 2}},
		{name: "pad", vec: []float32{1}, dim: 3, want: []float32{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fitDimensions(tt.vec, tt.dim); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("fitDimensions() = %v, want %v", got, tt.want)
			}
		})
	}
}
