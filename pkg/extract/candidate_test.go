package extract

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

func TestFieldBagInteger(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int
		wantOK bool
	}{
		{name: "json number", value: float64(3), want: 3, wantOK: true},
		{name: "int", value: 4, want: 4, wantOK: true},
		{name: "numeric string", value: "2", want: 2, wantOK: true},
		{name: "padded string", value: " 7 ", want: 7, wantOK: true},
		{name: "integral float string", value: "2.0", want: 2, wantOK: true},
		{name: "fractional", value: 2.5, wantOK: false},
		{name: "word", value: "second", wantOK: false},
		{name: "null", value: nil, wantOK: false},
		{name: "bool", value: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FieldBag{"order": tt.value}.integer("order")
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Fatalf("integer() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFieldBagStrList(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "array", value: []any{"신청서", " ", 3.0}, want: []string{"신청서", "3"}},
		{name: "single string", value: "금액", want: []string{"금액"}},
		{name: "missing", value: nil, want: nil},
		{name: "object", value: map[string]any{"a": 1}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldBag{"input_data": tt.value}.strList("input_data")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("strList() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	raw := `{
		"processes": [{"description": "no name"}],
		"roles": [{"name": ""}, {"name": "구매담당자", "description": "handles purchasing"}],
		"tasks": [
			{"name": "요청 접수", "order": "2"},
			{"order": "first", "task_type": "SYSTEM"},
			{"name": "승인", "order": 3}
		],
		"gateways": [{"gateway_type": "XOR"}],
		"events": [{"event_type": "end"}],
		"rules": [{"condition": "금액 > 100", "result": "승인 필요", "confidence": "1.7"}],
		"sequence_flows": [{"from_task": "요청 접수"}]
	}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	set := Validate(p)

	if set.Processes[0].Name != UnknownProcess {
		t.Fatalf("expected placeholder process name, got %q", set.Processes[0].Name)
	}
	if set.Roles[0].Name != UnknownRole {
		t.Fatalf("expected placeholder role name, got %q", set.Roles[0].Name)
	}
	if set.Roles[1].PersonaHint != "handles purchasing" {
		t.Fatalf("expected description to fill persona_hint, got %q", set.Roles[1].PersonaHint)
	}

	first := set.Tasks[0]
	if !first.HasOrder || first.Order != 2 || first.Unnamed {
		t.Fatalf("string order must parse to 2, got %+v", first)
	}
	second := set.Tasks[1]
	if second.Name != "Task 2" || !second.Unnamed || second.HasOrder || second.Type != common.TaskSystem {
		t.Fatalf("unexpected defaults for second task: %+v", second)
	}
	if set.Tasks[2].Order != 3 || set.Tasks[2].Type != common.TaskHuman {
		t.Fatalf("unexpected third task: %+v", set.Tasks[2])
	}

	if set.Gateways[0].Type != common.GatewayExclusive {
		t.Fatalf("unknown gateway type must default to exclusive, got %q", set.Gateways[0].Type)
	}
	if set.Events[0].Type != common.EventEnd || set.Events[0].Name != UnnamedEvent {
		t.Fatalf("unexpected event: %+v", set.Events[0])
	}

	rule := set.Rules[0]
	if rule.When != "금액 > 100" || rule.Then != "승인 필요" || rule.Confidence != 1 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	if set.SequenceLinks[0].ToTask != "" {
		t.Fatalf("missing to_task must stay empty, got %q", set.SequenceLinks[0].ToTask)
	}
}

func TestValidateEmptyPayload(t *testing.T) {
	if !Validate(Payload{}).Empty() {
		t.Fatal("expected empty candidate set")
	}
}
