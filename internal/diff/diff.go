// Package diff computes the classified transition between two extracted
// versions of a package. It is pure and deterministic: identical inputs
// always produce byte-identical deltas.
package diff

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/snapshot"
)

// ContractError reports an IR that violates the structural contract
// (missing version, duplicate qualified names). Unlike malformed symbols,
// these cannot be routed around.
type ContractError struct {
	Side    string // "older" or "newer"
	Version string
	Err     error
}

func (e *ContractError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s IR %s violates contract: %v", e.Side, e.Version, e.Err)
	}
	return fmt.Sprintf("%s IR violates contract: %v", e.Side, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// IsContractError returns true if the error is a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// indexed is one side of a diff: valid snapshots by name plus the names of
// symbols skipped as malformed.
type indexed struct {
	snaps   map[string]snapshot.Snapshot
	records map[string]ir.SymbolRecord
	skipped map[string]bool
}

// ComputeVersionDelta diffs two IRs. A nil older produces the bootstrap
// delta in which every symbol of newer is added.
func ComputeVersionDelta(older, newer *ir.MinimalIR) (*changelog.VersionDelta, error) {
	if newer == nil {
		return nil, &ContractError{Side: "newer", Err: errors.New("IR is nil")}
	}
	if err := ir.Validate(newer); err != nil {
		return nil, &ContractError{Side: "newer", Version: newer.Version, Err: err}
	}
	if older != nil {
		if err := ir.Validate(older); err != nil {
			return nil, &ContractError{Side: "older", Version: older.Version, Err: err}
		}
	}

	var warnings []string
	cur := index(newer, &warnings)
	old := &indexed{snaps: map[string]snapshot.Snapshot{}, skipped: map[string]bool{}}
	if older != nil {
		old = index(older, &warnings)
	}

	// A symbol malformed in newer is excluded from both sides so it is not
	// reported as removed. One malformed only in older is reported as added
	// at its first valid appearance.
	for name := range cur.skipped {
		delete(old.snaps, name)
	}
	for _, name := range sortedKeys(old.skipped) {
		if _, ok := cur.snaps[name]; ok {
			warnings = append(warnings, fmt.Sprintf("%s: %q was malformed in %s, reported as added", newer.Version, name, older.Version))
		}
	}

	delta := &changelog.VersionDelta{
		Version:     newer.Version,
		SHA:         newer.SHA,
		ReleaseDate: newer.ReleaseDate,
		Added:       []changelog.AddedEntry{},
		Removed:     []changelog.RemovedEntry{},
		Modified:    []changelog.ModifiedEntry{},
		Deprecated:  []changelog.DeprecatedEntry{},
		Warnings:    warnings,
	}
	if older != nil {
		prev := older.Version
		delta.PreviousVersion = &prev
	}

	for _, name := range unionNames(old.snaps, cur.snaps) {
		before, after := lookup(old.snaps, name), lookup(cur.snaps, name)

		c := Classify(before, after)
		switch c.Kind {
		case Added:
			delta.Added = append(delta.Added, changelog.AddedEntry{QualifiedName: name, Snapshot: *after})
		case Removed:
			delta.Removed = append(delta.Removed, changelog.RemovedEntry{QualifiedName: name})
		case Modified:
			delta.Modified = append(delta.Modified, changelog.ModifiedEntry{
				QualifiedName:  name,
				Changes:        c.Changes,
				SnapshotBefore: *before,
				SnapshotAfter:  *after,
			})
		case Deprecated:
			msg, repl := cur.records[name].Deprecation()
			delta.Deprecated = append(delta.Deprecated, changelog.DeprecatedEntry{
				QualifiedName: name,
				Message:       msg,
				Replacement:   repl,
			})
		}
	}

	return delta, nil
}

// index builds snapshots for every symbol, recording malformed ones as
// warnings.
func index(m *ir.MinimalIR, warnings *[]string) *indexed {
	out := &indexed{
		snaps:   make(map[string]snapshot.Snapshot, len(m.Symbols)),
		records: make(map[string]ir.SymbolRecord, len(m.Symbols)),
		skipped: make(map[string]bool),
	}
	for _, w := range m.Skipped {
		*warnings = append(*warnings, fmt.Sprintf("%s: %s", m.Version, w))
		if w.QualifiedName != "" {
			out.skipped[w.QualifiedName] = true
		}
	}
	for i, rec := range m.Symbols {
		snap, err := snapshot.Build(rec)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("%s: symbols[%d] skipped: %v", m.Version, i, err))
			if rec.QualifiedName != "" {
				out.skipped[rec.QualifiedName] = true
			}
			continue
		}
		out.snaps[rec.QualifiedName] = snap
		out.records[rec.QualifiedName] = rec
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookup(m map[string]snapshot.Snapshot, name string) *snapshot.Snapshot {
	s, ok := m[name]
	if !ok {
		return nil
	}
	return &s
}

// CountSymbols returns the number of symbols of an IR that snapshot cleanly.
func CountSymbols(m *ir.MinimalIR) int {
	n := 0
	for _, rec := range m.Symbols {
		if _, err := snapshot.Build(rec); err == nil {
			n++
		}
	}
	return n
}
