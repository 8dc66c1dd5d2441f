package consolidate

import (
	"encoding/json"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const scopeSep = "\x1f"

// Registry maps normalized names to canonical ids per entity kind. It only
// grows: names are never removed, merged ids are recorded as aliases.
//
// Keys may be scoped (tasks are unique by name within their process only).
// Iteration order is insertion order, which is what makes tie-breaks in the
// normalization pass reproducible.
type Registry struct {
	newID func() string
	kinds map[common.EntityKind]*kindIndex
}

type kindIndex struct {
	IDs     map[string]string `json:"ids"`
	Keys    []string          `json:"keys"`
	Display map[string]string `json:"display"`
	Aliases map[string]string `json:"aliases,omitempty"`
}

// NewRegistry returns an empty registry minting ids with newID. A nil
// newID mints nanoids.
func NewRegistry(newID func() string) *Registry {
	return &Registry{
		newID: newID,
		kinds: make(map[common.EntityKind]*kindIndex),
	}
}

func (r *Registry) index(kind common.EntityKind) *kindIndex {
	if r.kinds == nil {
		r.kinds = make(map[common.EntityKind]*kindIndex)
	}
	idx, ok := r.kinds[kind]
	if !ok {
		idx = &kindIndex{
			IDs:     make(map[string]string),
			Display: make(map[string]string),
			Aliases: make(map[string]string),
		}
		r.kinds[kind] = idx
	}
	if idx.Aliases == nil {
		idx.Aliases = make(map[string]string)
	}
	return idx
}

func (r *Registry) mint() string {
	if r.newID != nil {
		return r.newID()
	}
	return gonanoid.Must()
}

func scopedKey(scope, name string) string {
	key := common.NormalizeName(name)
	if scope == "" {
		return key
	}
	return scope + scopeSep + key
}

// Register returns the id registered for name, minting and storing a new
// one when the normalized name is unknown. created reports which happened.
func (r *Registry) Register(kind common.EntityKind, name string) (id string, created bool) {
	return r.RegisterIn(kind, "", name)
}

// RegisterIn is Register with the name scoped, e.g. to a process id.
func (r *Registry) RegisterIn(kind common.EntityKind, scope, name string) (id string, created bool) {
	key := scopedKey(scope, name)
	idx := r.index(kind)
	if existing, ok := idx.IDs[key]; ok {
		return r.canonical(idx, existing), false
	}
	id = r.mint()
	idx.IDs[key] = id
	idx.Keys = append(idx.Keys, key)
	idx.Display[key] = name
	return id, true
}

// Seed registers name under a known id, used when rebuilding the registry
// from the graph store. An existing mapping wins.
func (r *Registry) Seed(kind common.EntityKind, name, id string) string {
	return r.SeedIn(kind, "", name, id)
}

// SeedIn is Seed with the name scoped like RegisterIn.
func (r *Registry) SeedIn(kind common.EntityKind, scope, name, id string) string {
	key := scopedKey(scope, name)
	idx := r.index(kind)
	if existing, ok := idx.IDs[key]; ok {
		return r.canonical(idx, existing)
	}
	idx.IDs[key] = id
	idx.Keys = append(idx.Keys, key)
	idx.Display[key] = name
	return id
}

// Lookup resolves name by exact normalized match only.
func (r *Registry) Lookup(kind common.EntityKind, name string) (string, bool) {
	return r.LookupIn(kind, "", name)
}

func (r *Registry) LookupIn(kind common.EntityKind, scope, name string) (string, bool) {
	if common.NormalizeName(name) == "" {
		return "", false
	}
	idx, ok := r.kinds[kind]
	if !ok {
		return "", false
	}
	id, ok := idx.IDs[scopedKey(scope, name)]
	if !ok {
		return "", false
	}
	return r.canonical(idx, id), true
}

// Alias makes every name registered for fromID resolve to toID.
func (r *Registry) Alias(kind common.EntityKind, fromID, toID string) {
	if fromID == toID {
		return
	}
	r.index(kind).Aliases[fromID] = toID
}

// Resolve follows aliases from id to the surviving id.
func (r *Registry) Resolve(kind common.EntityKind, id string) string {
	idx, ok := r.kinds[kind]
	if !ok {
		return id
	}
	return r.canonical(idx, id)
}

func (r *Registry) canonical(idx *kindIndex, id string) string {
	for hops := 0; hops < len(idx.Aliases)+1; hops++ {
		next, ok := idx.Aliases[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

// Names returns the display names of non-aliased entries in
// insertion order. This is the "already known" context for the oracle.
func (r *Registry) Names(kind common.EntityKind) []string {
	idx, ok := r.kinds[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(idx.Keys))
	for _, key := range idx.Keys {
		id := idx.IDs[key]
		if _, aliased := idx.Aliases[id]; aliased {
			continue
		}
		names = append(names, idx.Display[key])
	}
	return names
}

// Len is the number of registered keys of kind, aliases included.
func (r *Registry) Len(kind common.EntityKind) int {
	idx, ok := r.kinds[kind]
	if !ok {
		return 0
	}
	return len(idx.Keys)
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.kinds)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	kinds := make(map[common.EntityKind]*kindIndex)
	if err := json.Unmarshal(data, &kinds); err != nil {
		return err
	}
	r.kinds = kinds
	return nil
}
