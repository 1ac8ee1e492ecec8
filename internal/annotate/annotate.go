// Package annotate derives per-symbol version metadata (introduced in,
// modified in, first deprecated in) from a changelog and attaches it to the
// symbols of the latest IR.
//
// The derivation is an explicit fold over history from oldest to newest.
// Step never mutates its input state, so intermediate states can be kept
// and compared.
package annotate

import (
	"maps"
	"slices"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
)

// Info is the folded metadata of one symbol.
type Info struct {
	Since       string
	ModifiedIn  []string
	Deprecation *ir.DeprecationRef
}

// State maps qualified names to their folded metadata. The zero value is
// the empty state.
type State struct {
	symbols map[string]Info
	// retired holds removed symbols so a re-add keeps its first since and
	// first deprecation.
	retired  map[string]Info
	earliest string
	last     string
}

// Lookup returns the metadata of a live symbol.
func (s State) Lookup(name string) (Info, bool) {
	info, ok := s.symbols[name]
	return info, ok
}

// Len returns the number of live symbols.
func (s State) Len() int { return len(s.symbols) }

// Version returns the version of the last folded delta.
func (s State) Version() string { return s.last }

// Earliest returns the version of the first folded delta.
func (s State) Earliest() string { return s.earliest }

// Step applies one delta and returns the new state.
//
// Since is the first version that added the symbol, even across a removal
// and re-add. Modifications accumulate in order. The first deprecation is
// definitive: later deprecations and un-deprecations do not replace it.
// Entries for a symbol the state has never seen fall back to the earliest
// folded version.
func Step(s State, d changelog.VersionDelta) State {
	next := State{
		symbols:  maps.Clone(s.symbols),
		retired:  maps.Clone(s.retired),
		earliest: s.earliest,
		last:     d.Version,
	}
	if next.symbols == nil {
		next.symbols = make(map[string]Info)
	}
	if next.retired == nil {
		next.retired = make(map[string]Info)
	}
	v := d.Version
	if next.earliest == "" {
		next.earliest = v
	}

	for _, r := range d.Removed {
		if info, ok := next.symbols[r.QualifiedName]; ok {
			next.retired[r.QualifiedName] = info
			delete(next.symbols, r.QualifiedName)
		}
	}

	for _, a := range d.Added {
		info, ok := next.retired[a.QualifiedName]
		if ok {
			delete(next.retired, a.QualifiedName)
		} else {
			info = Info{Since: v}
		}
		if a.Snapshot.Deprecated && info.Deprecation == nil {
			info.Deprecation = &ir.DeprecationRef{Since: v}
		}
		next.symbols[a.QualifiedName] = info
	}

	for _, m := range d.Modified {
		info := next.lookupOrEarliest(m.QualifiedName)
		info.ModifiedIn = append(slices.Clone(info.ModifiedIn), v)
		if m.HasChange(changelog.ChangeDeprecation) && m.SnapshotAfter.Deprecated && info.Deprecation == nil {
			info.Deprecation = &ir.DeprecationRef{Since: v}
		}
		next.symbols[m.QualifiedName] = info
	}

	for _, dep := range d.Deprecated {
		info := next.lookupOrEarliest(dep.QualifiedName)
		if info.Deprecation == nil {
			info.Deprecation = &ir.DeprecationRef{Since: v, Message: dep.Message, Replacement: dep.Replacement}
		}
		next.symbols[dep.QualifiedName] = info
	}

	return next
}

func (s State) lookupOrEarliest(name string) Info {
	if info, ok := s.symbols[name]; ok {
		return info
	}
	if info, ok := s.retired[name]; ok {
		delete(s.retired, name)
		return info
	}
	return Info{Since: s.earliest}
}

// Fold applies history (newest first, as stored) from oldest to newest.
func Fold(history []changelog.VersionDelta) State {
	var s State
	for i := len(history) - 1; i >= 0; i-- {
		s = Step(s, history[i])
	}
	return s
}

// AnnotateLatestIR returns a copy of symbols with VersionInfo attached.
// The input slice and its records are not modified. A symbol the changelog
// does not know has been present since the earliest recorded version.
func AnnotateLatestIR(symbols []ir.SymbolRecord, cl *changelog.PackageChangelog) []ir.SymbolRecord {
	var state State
	if cl != nil {
		state = Fold(cl.History)
	}

	out := make([]ir.SymbolRecord, len(symbols))
	for i, sym := range symbols {
		info, ok := state.Lookup(sym.QualifiedName)
		if !ok {
			info = Info{Since: state.Earliest()}
		}
		sym.VersionInfo = versionInfo(info, sym)
		out[i] = sym
	}
	return out
}

func versionInfo(info Info, sym ir.SymbolRecord) *ir.SymbolVersionInfo {
	vi := &ir.SymbolVersionInfo{
		Since:      info.Since,
		ModifiedIn: slices.Clone(info.ModifiedIn),
	}
	if info.Deprecation != nil {
		dep := *info.Deprecation
		if dep.Message == "" && dep.Replacement == "" {
			dep.Message, dep.Replacement = sym.Deprecation()
		}
		vi.Deprecation = &dep
	}
	return vi
}
