package consolidate

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(seqIDs())

	id1, created := r.Register(common.KindRole, "구매담당자")
	if !created {
		t.Fatalf("expected first register to create")
	}
	for _, name := range []string{"구매담당자", "  구매담당자 ", "구매담당자"} {
		id, created := r.Register(common.KindRole, name)
		if created || id != id1 {
			t.Fatalf("Register(%q) = %q, %v; want %q, false", name, id, created, id1)
		}
	}
	if got := r.Len(common.KindRole); got != 1 {
		t.Fatalf("expected 1 role key, got %d", got)
	}
}

func TestRegistryNormalizesNames(t *testing.T) {
	r := NewRegistry(seqIDs())
	id, _ := r.Register(common.KindProcess, "Purchase  Request\tApproval")

	got, ok := r.Lookup(common.KindProcess, " purchase request approval ")
	if !ok || got != id {
		t.Fatalf("Lookup = %q, %v; want %q", got, ok, id)
	}
	if _, ok := r.Lookup(common.KindRole, "purchase request approval"); ok {
		t.Fatalf("expected kinds to be separate")
	}
	if _, ok := r.Lookup(common.KindProcess, "   "); ok {
		t.Fatalf("expected blank lookup to miss")
	}
}

func TestRegistryScopes(t *testing.T) {
	r := NewRegistry(seqIDs())
	a, _ := r.RegisterIn(common.KindTask, "p1", "Review request")
	b, created := r.RegisterIn(common.KindTask, "p2", "Review request")
	if !created || a == b {
		t.Fatalf("expected same name in another scope to be a new entry")
	}
	c, created := r.RegisterIn(common.KindTask, "p1", "review  REQUEST")
	if created || c != a {
		t.Fatalf("expected same scope to reuse %q, got %q", a, c)
	}
}

func TestRegistryAliasAndNames(t *testing.T) {
	r := NewRegistry(seqIDs())
	buyer, _ := r.Register(common.KindRole, "Buyer")
	purchaser, _ := r.Register(common.KindRole, "Purchaser")
	r.Register(common.KindRole, "Approver")

	r.Alias(common.KindRole, purchaser, buyer)

	got, _ := r.Lookup(common.KindRole, "purchaser")
	if got != buyer {
		t.Fatalf("expected alias to resolve to %q, got %q", buyer, got)
	}
	if names := r.Names(common.KindRole); !reflect.DeepEqual(names, []string{"Buyer", "Approver"}) {
		t.Fatalf("unexpected names %v", names)
	}
	id, created := r.Register(common.KindRole, "PURCHASER")
	if created || id != buyer {
		t.Fatalf("expected register through alias to return %q", buyer)
	}
}

func TestRegistryJSONRoundTrip(t *testing.T) {
	r := NewRegistry(seqIDs())
	a, _ := r.Register(common.KindProcess, "Onboarding")
	b, _ := r.Register(common.KindProcess, "Employee onboarding")
	r.Alias(common.KindProcess, b, a)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewRegistry(nil)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, _ := restored.Lookup(common.KindProcess, "employee onboarding"); got != a {
		t.Fatalf("expected restored alias, got %q", got)
	}
	if !reflect.DeepEqual(restored.Names(common.KindProcess), []string{"Onboarding"}) {
		t.Fatalf("unexpected names %v", restored.Names(common.KindProcess))
	}
}

func TestRegistrySeedKeepsExisting(t *testing.T) {
	r := NewRegistry(seqIDs())
	if got := r.Seed(common.KindRole, "Clerk", "store-1"); got != "store-1" {
		t.Fatalf("expected seeded id, got %q", got)
	}
	if got := r.Seed(common.KindRole, "clerk", "store-2"); got != "store-1" {
		t.Fatalf("expected first seed to win, got %q", got)
	}
}
