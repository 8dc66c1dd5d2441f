package consolidate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
)

const minKeywordLen = 3

// InferTaskRoles assigns a role to every task that has none by looking for a
// role's name or org unit in the task text. The first matching role in
// creation order wins. Tasks with any assignment, manual ones included, are
// left alone.
func InferTaskRoles(st *State) int {
	type roleKeywords struct {
		id       string
		keywords []string
	}
	var roles []roleKeywords
	for _, r := range st.Roles {
		if st.IsPending(r.ID) {
			continue
		}
		var kws []string
		for _, kw := range []string{r.Name, r.OrgUnit} {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if utf8.RuneCountInString(kw) >= minKeywordLen {
				kws = append(kws, kw)
			}
		}
		if len(kws) > 0 {
			roles = append(roles, roleKeywords{id: r.ID, keywords: kws})
		}
	}

	inferred := 0
	for _, t := range st.Tasks {
		if _, ok := st.TaskRoles[t.ID]; ok {
			continue
		}
		text := strings.ToLower(t.Name + " " + t.Description)
	roles:
		for _, r := range roles {
			for _, kw := range r.keywords {
				if strings.Contains(text, kw) {
					st.AssignRole(t.ID, r.id, SourceInferred)
					inferred++
					break roles
				}
			}
		}
	}
	st.Stats.RolesInferred += inferred
	return inferred
}

// ApplyResolution folds a resolved ambiguity back into the state. For a
// missing-role question an answer naming a known role becomes a manual
// assignment; any other answer manually leaves the task unassigned. For a
// similar-entity question the matched name merges the parked entity, any
// other answer keeps it as a distinct entity.
func (e *Engine) ApplyResolution(st *State, ambiguityID, answer string) error {
	amb := st.Ambiguity(ambiguityID)
	if amb == nil {
		return fmt.Errorf("ambiguity %s not found", ambiguityID)
	}
	if err := amb.Resolve(answer); err != nil {
		return err
	}

	switch amb.Reason {
	case common.ReasonMissingRole:
		roleID, _ := st.Registry.Lookup(common.KindRole, answer)
		if roleID != "" && st.Role(roleID) == nil {
			roleID = ""
		}
		st.TaskRoles[amb.EntityID] = RoleAssignment{RoleID: roleID, Source: SourceManual}

	case common.ReasonSimilarEntity:
		var review *Review
		for i := range st.Pending {
			if st.Pending[i].EntityID == amb.EntityID {
				review = &st.Pending[i]
				break
			}
		}
		if review == nil {
			return nil
		}
		merge := common.NormalizeName(answer) == common.NormalizeName(review.MatchName)
		if merge {
			st.Merges = append(st.Merges, Merge{
				Kind:  review.Kind,
				From:  review.EntityID,
				To:    review.MatchID,
				Score: review.Score,
			})
		}
		id := review.EntityID
		st.Pending = removeReview(st.Pending, id)
		if merge {
			e.Repair(st)
		}
	}
	return nil
}

func removeReview(reviews []Review, entityID string) []Review {
	out := reviews[:0]
	for _, r := range reviews {
		if r.EntityID != entityID {
			out = append(out, r)
		}
	}
	return out
}
