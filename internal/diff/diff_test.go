package diff

import (
	"sort"
	"strings"
	"testing"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fn(name, sig string, params ...ir.Param) ir.SymbolRecord {
	return ir.SymbolRecord{
		Kind:          "function",
		QualifiedName: name,
		Signature:     sig,
		Params:        params,
		Returns:       &ir.Returns{Type: "void"},
	}
}

func deprecated(rec ir.SymbolRecord, msg, repl string) ir.SymbolRecord {
	rec.Docs = &ir.Docs{Deprecated: &ir.Deprecation{IsDeprecated: true, Message: msg, Replacement: repl}}
	return rec
}

// sortedNames returns the qualified names of each list of a delta.
func sortedNames(d *changelog.VersionDelta) (added, removed, modified, deprecated []string) {
	for _, a := range d.Added {
		added = append(added, a.QualifiedName)
	}
	for _, r := range d.Removed {
		removed = append(removed, r.QualifiedName)
	}
	for _, m := range d.Modified {
		modified = append(modified, m.QualifiedName)
	}
	for _, dep := range d.Deprecated {
		deprecated = append(deprecated, dep.QualifiedName)
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(modified)
	sort.Strings(deprecated)
	return added, removed, modified, deprecated
}

func version(v string, symbols ...ir.SymbolRecord) *ir.MinimalIR {
	return &ir.MinimalIR{Version: v, SHA: "sha-" + v, ReleaseDate: "2026-01-01T00:00:00Z", Symbols: symbols}
}

func TestComputeVersionDelta_AddedRequiredParameter(t *testing.T) {
	older := version("1.0.0", fn("Foo", "Foo(x: string): void", ir.Param{Name: "x", Type: "string", Required: true}))
	newer := version("1.1.0", fn("Foo", "Foo(x: string, y: number): void",
		ir.Param{Name: "x", Type: "string", Required: true},
		ir.Param{Name: "y", Type: "number", Required: true},
	))

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	require.Len(t, delta.Modified, 1)
	assert.Equal(t, "Foo", delta.Modified[0].QualifiedName)
	assert.Equal(t, []changelog.ChangeRecord{
		{Type: changelog.ChangeParameter, Description: "added required parameter y", Breaking: true},
	}, delta.Modified[0].Changes)
	assert.Equal(t, "Foo(x: string): void", delta.Modified[0].SnapshotBefore.Signature)
	assert.Equal(t, "Foo(x: string, y: number): void", delta.Modified[0].SnapshotAfter.Signature)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Removed)
	assert.Empty(t, delta.Deprecated)
	require.NotNil(t, delta.PreviousVersion)
	assert.Equal(t, "1.0.0", *delta.PreviousVersion)
	assert.Equal(t, "sha-1.1.0", delta.SHA)
}

func TestComputeVersionDelta_Removed(t *testing.T) {
	older := version("1.0.0", ir.SymbolRecord{Kind: "class", QualifiedName: "Bar"})
	newer := version("2.0.0")

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	assert.Equal(t, []changelog.RemovedEntry{{QualifiedName: "Bar"}}, delta.Removed)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Modified)
	assert.Empty(t, delta.Deprecated)
}

func TestComputeVersionDelta_Idempotent(t *testing.T) {
	m := version("1.0.0",
		fn("A", "A()"),
		deprecated(fn("B", "B()"), "old", ""),
		ir.SymbolRecord{Kind: "class", QualifiedName: "C", Members: []ir.Member{{Name: "run", Kind: "method"}}},
	)

	delta, err := ComputeVersionDelta(m, m)
	require.NoError(t, err)
	assert.True(t, delta.IsEmpty())
	assert.Empty(t, delta.Warnings)
}

func TestComputeVersionDelta_Bootstrap(t *testing.T) {
	newer := version("0.1.0", fn("B", "B()"), fn("A", "A()"))

	delta, err := ComputeVersionDelta(nil, newer)
	require.NoError(t, err)

	assert.Nil(t, delta.PreviousVersion)
	assert.True(t, delta.IsBootstrap())
	require.Len(t, delta.Added, 2)
	assert.Equal(t, "A", delta.Added[0].QualifiedName)
	assert.Equal(t, "B", delta.Added[1].QualifiedName)
	assert.Equal(t, "function", delta.Added[0].Snapshot.Kind)
}

func TestComputeVersionDelta_DeprecationOnly(t *testing.T) {
	older := version("1.0.0", fn("Old", "Old()"))
	newer := version("1.1.0", deprecated(fn("Old", "Old()"), "use New", "New"))

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	assert.Equal(t, []changelog.DeprecatedEntry{{QualifiedName: "Old", Message: "use New", Replacement: "New"}}, delta.Deprecated)
	assert.Empty(t, delta.Modified)
}

func TestComputeVersionDelta_DeprecationWithOtherChanges(t *testing.T) {
	older := version("1.0.0", fn("Old", "Old()"))
	newer := version("1.1.0", deprecated(fn("Old", "Old(a?)", ir.Param{Name: "a"}), "use New", ""))

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	assert.Empty(t, delta.Deprecated)
	require.Len(t, delta.Modified, 1)
	assert.Equal(t, []changelog.ChangeRecord{
		{Type: changelog.ChangeParameter, Description: "added optional parameter a"},
		{Type: changelog.ChangeDeprecation, Description: "marked as deprecated"},
	}, delta.Modified[0].Changes)
	assert.False(t, delta.Modified[0].IsBreaking())
}

func TestComputeVersionDelta_MalformedSymbolsSkipped(t *testing.T) {
	older := version("1.0.0",
		fn("Good", "Good()"),
		fn("Flaky", "Flaky(a)", ir.Param{Name: "a"}),
	)
	newer := version("1.1.0",
		fn("Good", "Good()"),
		fn("Flaky", "Flaky(a, a)", ir.Param{Name: "a"}, ir.Param{Name: "a"}),
		fn("Broken", "Broken()", ir.Param{Type: "string"}),
	)

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	assert.True(t, delta.IsEmpty(), "malformed symbols must be excluded from both sides")
	require.Len(t, delta.Warnings, 2)
	assert.Contains(t, delta.Warnings[0], "Flaky")
	assert.Contains(t, delta.Warnings[1], "Broken")
}

func TestComputeVersionDelta_MalformedOnlyInOlder(t *testing.T) {
	v1 := version("1.0.0",
		fn("Good", "Good()"),
		fn("X", "X(?)", ir.Param{Type: "string"}),
	)
	v2 := version("1.1.0",
		fn("Good", "Good()"),
		fn("X", "X(a)", ir.Param{Name: "a", Type: "string", Required: true}),
	)

	boot, err := ComputeVersionDelta(nil, v1)
	require.NoError(t, err)
	added, _, _, _ := sortedNames(boot)
	assert.Equal(t, []string{"Good"}, added)

	delta, err := ComputeVersionDelta(v1, v2)
	require.NoError(t, err)
	require.NoError(t, changelog.ValidateDelta(delta))

	added, removed, modified, deps := sortedNames(delta)
	assert.Equal(t, []string{"X"}, added, "first valid appearance is an addition")
	assert.Empty(t, removed)
	assert.Empty(t, modified)
	assert.Empty(t, deps)
	require.Len(t, delta.Warnings, 2)
	assert.Contains(t, delta.Warnings[0], "1.0.0")
	assert.Contains(t, delta.Warnings[1], `"X" was malformed in 1.0.0, reported as added`)
}

func TestComputeVersionDelta_DecodeSkippedSymbols(t *testing.T) {
	older := version("1.0.0", fn("Good", "Good()"), fn("Shaky", "Shaky()"))

	newer, _, err := ir.Decode(strings.NewReader(`{"version":"1.1.0","symbols":[
		{"kind":"function","qualifiedName":"Good","signature":"Good()","returns":{"type":"void"}},
		{"qualifiedName":"Shaky"}
	]}`))
	require.NoError(t, err)

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)

	assert.Empty(t, delta.Removed, "a symbol dropped while decoding is not reported as removed")
	require.Len(t, delta.Warnings, 1)
	assert.Contains(t, delta.Warnings[0], "1.1.0")
	assert.Contains(t, delta.Warnings[0], "Shaky")
}

func TestComputeVersionDelta_ContractViolations(t *testing.T) {
	dup := version("1.0.0", fn("A", "A()"), fn("A", "A(x)"))

	tests := map[string]struct {
		older, newer *ir.MinimalIR
		wantSide     string
	}{
		"nil newer":             {older: version("1.0.0"), newer: nil, wantSide: "newer"},
		"newer missing version": {older: version("1.0.0"), newer: version(""), wantSide: "newer"},
		"older missing version": {older: version(""), newer: version("1.0.0"), wantSide: "older"},
		"duplicate in newer":    {older: version("0.9.0"), newer: dup, wantSide: "newer"},
		"duplicate in older":    {older: dup, newer: version("2.0.0"), wantSide: "older"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeVersionDelta(tt.older, tt.newer)
			require.Error(t, err)
			var ce *ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantSide, ce.Side)
			assert.True(t, IsContractError(err))
		})
	}
}

func TestComputeVersionDelta_ExclusivityAndCompleteness(t *testing.T) {
	older := version("1.0.0",
		fn("Keep", "Keep()"),
		fn("Change", "Change(a)", ir.Param{Name: "a", Type: "string", Required: true}),
		fn("Dep", "Dep()"),
		fn("Gone", "Gone()"),
		ir.SymbolRecord{Kind: "class", QualifiedName: "Box", Members: []ir.Member{{Name: "open", Kind: "method"}}},
	)
	newer := version("2.0.0",
		fn("Keep", "Keep()"),
		fn("Change", "Change(a)", ir.Param{Name: "a", Type: "number", Required: true}),
		deprecated(fn("Dep", "Dep()"), "", ""),
		fn("Fresh", "Fresh()"),
		ir.SymbolRecord{Kind: "class", QualifiedName: "Box", Members: []ir.Member{{Name: "open", Kind: "method"}, {Name: "close", Kind: "method"}}},
	)

	delta, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)
	require.NoError(t, changelog.ValidateDelta(delta))

	added, removed, modified, deps := sortedNames(delta)
	assert.Equal(t, []string{"Fresh"}, added)
	assert.Equal(t, []string{"Gone"}, removed)
	assert.Equal(t, []string{"Box", "Change"}, modified)
	assert.Equal(t, []string{"Dep"}, deps)

	oldNames := toSet(older.Names())
	newNames := toSet(newer.Names())
	unchanged := map[string]bool{}
	for n := range oldNames {
		if newNames[n] && !contains(modified, n) && !contains(deps, n) {
			unchanged[n] = true
		}
	}

	covered := map[string]bool{}
	for _, list := range [][]string{added, modified, deps} {
		for _, n := range list {
			covered[n] = true
		}
	}
	for n := range unchanged {
		covered[n] = true
	}
	assert.Equal(t, newNames, covered, "added+modified+deprecated+unchanged must equal newer")

	coveredOld := map[string]bool{}
	for _, list := range [][]string{removed, modified, deps} {
		for _, n := range list {
			coveredOld[n] = true
		}
	}
	for n := range unchanged {
		coveredOld[n] = true
	}
	assert.Equal(t, oldNames, coveredOld, "removed+modified+deprecated+unchanged must equal older")
}

func TestComputeVersionDelta_Deterministic(t *testing.T) {
	older := version("1.0.0", fn("B", "B()"), fn("A", "A(x)", ir.Param{Name: "x"}), fn("C", "C()"))
	newer := version("1.1.0", fn("D", "D()"), fn("A", "A()"), fn("B", "B(): int"))
	newerShuffled := version("1.1.0", fn("B", "B(): int"), fn("D", "D()"), fn("A", "A()"))

	a, err := ComputeVersionDelta(older, newer)
	require.NoError(t, err)
	b, err := ComputeVersionDelta(older, newerShuffled)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCountSymbols(t *testing.T) {
	m := version("1.0.0", fn("A", "A()"), fn("B", "B()", ir.Param{}))
	assert.Equal(t, 1, CountSymbols(m))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
