package store

import (
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"

	"github.com/google/uuid"
)

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize over total items.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// PrepareAttributes copies attrs and makes sure the kind's id attribute is
// set, generating one when absent. It returns the copy and the id.
func PrepareAttributes(kind common.EntityKind, attrs map[string]any) (map[string]any, string, error) {
	schema, err := common.SchemaFor(kind)
	if err != nil {
		return nil, "", err
	}
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	id, _ := out[schema.IDField].(string)
	if id == "" {
		id = uuid.NewString()
		out[schema.IDField] = id
	}
	return out, id, nil
}

// Normalize round-trips attrs through JSON so every backend compares and
// returns the same value types (float64 numbers, []any lists).
func Normalize(attrs map[string]any) (map[string]any, error) {
	if attrs == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	out := make(map[string]any, len(attrs))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return out, nil
}

// Matches reports whether n satisfies f.
func Matches(n Node, f Filter) bool {
	if f.NaturalKey != "" && n.NaturalKey != f.NaturalKey {
		return false
	}
	for k, want := range f.Attributes {
		got, ok := n.Attributes[k]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// String returns attrs[key] as a string, empty when missing.
func String(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// Int returns attrs[key] as an int, accepting the numeric types backends
// produce.
func Int(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Float returns attrs[key] as a float64.
func Float(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Strings returns attrs[key] as a string slice.
func Strings(attrs map[string]any, key string) []string {
	switch v := attrs[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ScopedKey prefixes a natural key with the document it belongs to, so
// documents never share canonical entities.
func ScopedKey(documentID, key string) string {
	return documentID + "/" + key
}
