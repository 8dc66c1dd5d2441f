package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// FieldBag is one loosely typed element of an extraction answer. No key is
// guaranteed to be present and values may arrive as any JSON type.
type FieldBag map[string]any

// JSONSchema describes a FieldBag as a free-form object so providers accept
// whatever keys the model chooses to emit.
func (FieldBag) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: jsonschema.TrueSchema,
	}
}

// Payload is the raw answer of the extraction model for one chunk.
type Payload struct {
	Processes           []FieldBag `json:"processes" jsonschema_description:"Business processes or procedures: name, description, purpose, triggers, outcomes"`
	Roles               []FieldBag `json:"roles" jsonschema_description:"Actors performing work: name, org_unit, persona_hint"`
	Tasks               []FieldBag `json:"tasks" jsonschema_description:"Activities: name, description, task_type (human|agent|system), order, parent_process, performer_role, next_task, previous_task"`
	Gateways            []FieldBag `json:"gateways" jsonschema_description:"Decision points: gateway_type (exclusive|parallel|inclusive), condition, description, parent_process"`
	Events              []FieldBag `json:"events" jsonschema_description:"Start, end or intermediate triggers: event_type, name, trigger, parent_process"`
	Decisions           []FieldBag `json:"decisions" jsonschema_description:"Business decisions: name, description, input_data, output_data, related_role"`
	Rules               []FieldBag `json:"rules" jsonschema_description:"Decision rules: decision, when, then, confidence"`
	TaskRoleMappings    []FieldBag `json:"task_role_mappings" jsonschema_description:"Which role performs which task: task_name, role_name"`
	TaskProcessMappings []FieldBag `json:"task_process_mappings" jsonschema_description:"Which process contains which task: task_name, process_name"`
	SequenceFlows       []FieldBag `json:"sequence_flows" jsonschema_description:"Task order: from_task, to_task, condition"`
}

// str returns the first key holding a non-blank scalar, rendered as text.
func (b FieldBag) str(keys ...string) string {
	for _, k := range keys {
		v, ok := b[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		case int:
			s = strconv.Itoa(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// strList accepts a JSON array of scalars or a single string.
func (b FieldBag) strList(key string) []string {
	v, ok := b[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		return compact(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := (FieldBag{"v": item}).str("v"); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// integer reads an integral number from key. Strings such as "2" and "2.0"
// are accepted; fractional or non-numeric values report false.
func (b FieldBag) integer(key string) (int, bool) {
	v, ok := b[key]
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func (b FieldBag) number(key string) (float64, bool) {
	v, ok := b[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
