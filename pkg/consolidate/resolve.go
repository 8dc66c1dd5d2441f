package consolidate

import (
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

// MatchOptions tune the substring fallback of ResolveTaskName.
type MatchOptions struct {
	// MinSubstringLen is the minimum rune length of the contained string
	// for a substring match. Values below 1 are treated as 1.
	MinSubstringLen int
	CaseSensitive   bool
}

func DefaultMatchOptions() MatchOptions {
	return MatchOptions{MinSubstringLen: 1}
}

// ResolveTaskName resolves a task mentioned by name in a link. An exact
// normalized match wins; otherwise the first task in tasks (insertion
// order) whose name contains the mention, or is contained in it, is used.
func ResolveTaskName(tasks []*common.Task, name string, opts MatchOptions) (string, bool) {
	key := common.NormalizeName(name)
	if key == "" {
		return "", false
	}
	for _, t := range tasks {
		if common.NormalizeName(t.Name) == key {
			return t.ID, true
		}
	}

	minLen := max(opts.MinSubstringLen, 1)
	mention := foldName(name, opts.CaseSensitive)
	for _, t := range tasks {
		candidate := foldName(t.Name, opts.CaseSensitive)
		if candidate == "" {
			continue
		}
		if utf8.RuneCountInString(mention) >= minLen && strings.Contains(candidate, mention) {
			return t.ID, true
		}
		if utf8.RuneCountInString(candidate) >= minLen && strings.Contains(mention, candidate) {
			return t.ID, true
		}
	}
	return "", false
}

func foldName(name string, caseSensitive bool) string {
	if caseSensitive {
		return strings.Join(strings.Fields(name), " ")
	}
	return common.NormalizeName(name)
}
