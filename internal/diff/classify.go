package diff

import (
	"fmt"
	"sort"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/snapshot"
)

// Kind is the single classification of one symbol between two versions.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
	Modified
	Deprecated
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case Deprecated:
		return "deprecated"
	default:
		return "unchanged"
	}
}

// Classification is the outcome of Classify. Changes is only set for Modified.
type Classification struct {
	Kind    Kind
	Changes []changelog.ChangeRecord
}

// visibilityRank orders visibilities from widest to narrowest. Unknown
// values rank with internal.
var visibilityRank = map[string]int{
	"public":    3,
	"protected": 2,
	"internal":  1,
	"package":   1,
	"private":   0,
}

// restrictiveModifiers narrow what callers may do when added.
var restrictiveModifiers = map[string]bool{
	"abstract": true,
	"final":    true,
	"sealed":   true,
	"readonly": true,
}

// Classify decides the one category a symbol falls into, in precedence
// order added, modified, deprecated, removed. A nil side means the symbol
// does not exist in that version.
func Classify(before, after *snapshot.Snapshot) Classification {
	switch {
	case before == nil && after == nil:
		return Classification{Kind: Unchanged}
	case before == nil:
		return Classification{Kind: Added}
	case after == nil:
		return Classification{Kind: Removed}
	case before.Equal(*after):
		return Classification{Kind: Unchanged}
	case !before.Deprecated && after.Deprecated && before.WithoutDeprecation().Equal(after.WithoutDeprecation()):
		return Classification{Kind: Deprecated}
	default:
		return Classification{Kind: Modified, Changes: describe(*before, *after)}
	}
}

// describe produces one change record per differing facet.
func describe(before, after snapshot.Snapshot) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	add := func(t changelog.ChangeType, breaking bool, format string, args ...any) {
		changes = append(changes, changelog.ChangeRecord{Type: t, Description: fmt.Sprintf(format, args...), Breaking: breaking})
	}

	if before.Kind != after.Kind {
		add(changelog.ChangeKind, true, "kind changed from %s to %s", before.Kind, after.Kind)
	}

	changes = append(changes, paramChanges(before.Params, after.Params)...)

	switch {
	case before.ReturnType == after.ReturnType:
	case before.ReturnType == "":
		add(changelog.ChangeReturn, false, "return type declared as %s", after.ReturnType)
	case after.ReturnType == "":
		add(changelog.ChangeReturn, true, "return type %s removed", before.ReturnType)
	default:
		add(changelog.ChangeReturn, true, "return type changed from %s to %s", before.ReturnType, after.ReturnType)
	}

	if before.Visibility != after.Visibility {
		if rankOf(after.Visibility) < rankOf(before.Visibility) {
			add(changelog.ChangeVisibility, true, "visibility reduced from %s to %s", before.Visibility, after.Visibility)
		} else {
			add(changelog.ChangeVisibility, false, "visibility changed from %s to %s", before.Visibility, after.Visibility)
		}
	}

	changes = append(changes, modifierChanges(before.Modifiers, after.Modifiers)...)
	changes = append(changes, memberChanges(before.Members, after.Members)...)

	if before.Signature != after.Signature && len(changes) == 0 {
		add(changelog.ChangeSignature, false, "signature changed from %q to %q", before.Signature, after.Signature)
	}

	switch {
	case !before.Deprecated && after.Deprecated:
		add(changelog.ChangeDeprecation, false, "marked as deprecated")
	case before.Deprecated && !after.Deprecated:
		add(changelog.ChangeDeprecation, false, "deprecation removed")
	}

	return changes
}

func rankOf(visibility string) int {
	if r, ok := visibilityRank[visibility]; ok {
		return r
	}
	return visibilityRank["internal"]
}

// paramChanges compares parameter lists by name. Both lists are sorted.
func paramChanges(before, after []snapshot.Param) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	old := make(map[string]snapshot.Param, len(before))
	for _, p := range before {
		old[p.Name] = p
	}
	cur := make(map[string]snapshot.Param, len(after))
	for _, p := range after {
		cur[p.Name] = p
	}

	for _, name := range unionNames(old, cur) {
		b, inBefore := old[name]
		a, inAfter := cur[name]
		switch {
		case !inBefore && a.Required:
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeParameter, Description: "added required parameter " + name, Breaking: true})
		case !inBefore:
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeParameter, Description: "added optional parameter " + name})
		case !inAfter:
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeParameter, Description: "removed parameter " + name, Breaking: true})
		default:
			if b.Type != a.Type {
				changes = append(changes, changelog.ChangeRecord{
					Type:        changelog.ChangeParameter,
					Description: fmt.Sprintf("parameter %s type changed from %s to %s", name, orUnknown(b.Type), orUnknown(a.Type)),
					Breaking:    true,
				})
			}
			if !b.Required && a.Required {
				changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeParameter, Description: "parameter " + name + " became required", Breaking: true})
			}
			if b.Required && !a.Required {
				changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeParameter, Description: "parameter " + name + " became optional"})
			}
		}
	}
	return changes
}

func modifierChanges(before, after []string) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	old := toSet(before)
	cur := toSet(after)

	for _, m := range unionNames(old, cur) {
		switch {
		case old[m] && !cur[m]:
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeModifier, Description: "removed modifier " + m, Breaking: true})
		case !old[m] && cur[m]:
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeModifier, Description: "added modifier " + m, Breaking: restrictiveModifiers[m]})
		}
	}
	return changes
}

// memberChanges matches members by name. Overloads are paired by
// pairMembers.
func memberChanges(before, after []snapshot.Member) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	old := groupMembers(before)
	cur := groupMembers(after)

	for _, name := range unionNames(old, cur) {
		b, a := old[name], cur[name]

		if len(b) == 1 && len(a) == 1 && b[0].Kind != a[0].Kind {
			changes = append(changes, changelog.ChangeRecord{
				Type:        changelog.ChangeMember,
				Description: fmt.Sprintf("member %s kind changed from %s to %s", name, b[0].Kind, a[0].Kind),
				Breaking:    true,
			})
			continue
		}

		changes = append(changes, pairMembers(b, a)...)
	}
	return changes
}

// pairMembers compares overloads sharing a name. Members with the same kind
// and signature are paired first, leftovers are paired by kind in canonical
// order, and whatever remains is added or removed.
func pairMembers(before, after []snapshot.Member) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	usedB := make([]bool, len(before))
	usedA := make([]bool, len(after))

	pass := func(match func(b, a snapshot.Member) bool) {
		for i, bm := range before {
			if usedB[i] {
				continue
			}
			for j, am := range after {
				if usedA[j] || !match(bm, am) {
					continue
				}
				usedB[i], usedA[j] = true, true
				changes = append(changes, compareMember(bm, am)...)
				break
			}
		}
	}
	pass(func(b, a snapshot.Member) bool { return b.Kind == a.Kind && b.Signature == a.Signature })
	pass(func(b, a snapshot.Member) bool { return b.Kind == a.Kind })

	for i, bm := range before {
		if !usedB[i] {
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeMember, Description: "removed member " + describeMember(bm), Breaking: true})
		}
	}
	for j, am := range after {
		if !usedA[j] {
			changes = append(changes, changelog.ChangeRecord{Type: changelog.ChangeMember, Description: "added member " + describeMember(am)})
		}
	}
	return changes
}

func compareMember(before, after snapshot.Member) []changelog.ChangeRecord {
	var changes []changelog.ChangeRecord
	if before.Visibility != after.Visibility {
		reduced := rankOf(after.Visibility) < rankOf(before.Visibility)
		verb := "changed"
		if reduced {
			verb = "reduced"
		}
		changes = append(changes, changelog.ChangeRecord{
			Type:        changelog.ChangeMember,
			Description: fmt.Sprintf("member %s visibility %s from %s to %s", before.Name, verb, before.Visibility, after.Visibility),
			Breaking:    reduced,
		})
	}
	if before.Signature != after.Signature {
		changes = append(changes, changelog.ChangeRecord{
			Type:        changelog.ChangeMember,
			Description: fmt.Sprintf("member %s signature changed from %q to %q", before.Name, before.Signature, after.Signature),
			Breaking:    true,
		})
	}
	return changes
}

func describeMember(m snapshot.Member) string {
	if m.Kind == "" {
		return m.Name
	}
	return m.Kind + " " + m.Name
}

func groupMembers(members []snapshot.Member) map[string][]snapshot.Member {
	out := make(map[string][]snapshot.Member, len(members))
	for _, m := range members {
		out[m.Name] = append(out[m.Name], m)
	}
	return out
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}

// unionNames returns the sorted union of the keys of two maps.
func unionNames[V any](a, b map[string]V) []string {
	names := make([]string, 0, len(a)+len(b))
	for k := range a {
		names = append(names, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func orUnknown(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}
