package annotate

import (
	"testing"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prev(v string) *string { return &v }

func fnSnap(sig string, deprecated bool) snapshot.Snapshot {
	return snapshot.Snapshot{Kind: "function", Signature: sig, Deprecated: deprecated}
}

// history returns four versions newest first:
// 1.0.0 adds Foo and Bar, 1.1.0 modifies Foo, 1.2.0 deprecates Bar and
// marks Foo deprecated while changing it, 2.0.0 removes Bar and adds Qux.
func history() []changelog.VersionDelta {
	return []changelog.VersionDelta{
		{
			Version:         "2.0.0",
			PreviousVersion: prev("1.2.0"),
			Added:           []changelog.AddedEntry{{QualifiedName: "Qux", Snapshot: fnSnap("Qux()", false)}},
			Removed:         []changelog.RemovedEntry{{QualifiedName: "Bar"}},
		},
		{
			Version:         "1.2.0",
			PreviousVersion: prev("1.1.0"),
			Modified: []changelog.ModifiedEntry{{
				QualifiedName: "Foo",
				Changes: []changelog.ChangeRecord{
					{Type: changelog.ChangeParameter, Description: "added optional parameter z"},
					{Type: changelog.ChangeDeprecation, Description: "marked as deprecated"},
				},
				SnapshotBefore: fnSnap("Foo(x, y)", false),
				SnapshotAfter:  fnSnap("Foo(x, y, z?)", true),
			}},
			Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Bar", Message: "use Qux", Replacement: "Qux"}},
		},
		{
			Version:         "1.1.0",
			PreviousVersion: prev("1.0.0"),
			Modified: []changelog.ModifiedEntry{{
				QualifiedName:  "Foo",
				Changes:        []changelog.ChangeRecord{{Type: changelog.ChangeParameter, Description: "added required parameter y", Breaking: true}},
				SnapshotBefore: fnSnap("Foo(x)", false),
				SnapshotAfter:  fnSnap("Foo(x, y)", false),
			}},
		},
		{
			Version: "1.0.0",
			Added: []changelog.AddedEntry{
				{QualifiedName: "Bar", Snapshot: fnSnap("Bar()", false)},
				{QualifiedName: "Foo", Snapshot: fnSnap("Foo(x)", false)},
			},
		},
	}
}

func TestFold_OldestToNewest(t *testing.T) {
	h := history()
	state := Fold(h)

	var manual State
	for _, v := range []int{3, 2, 1, 0} {
		manual = Step(manual, h[v])
	}
	assert.Equal(t, manual, state)
	assert.Equal(t, "2.0.0", state.Version())
	assert.Equal(t, 2, state.Len())

	foo, ok := state.Lookup("Foo")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", foo.Since)
	assert.Equal(t, []string{"1.1.0", "1.2.0"}, foo.ModifiedIn)
	require.NotNil(t, foo.Deprecation)
	assert.Equal(t, "1.2.0", foo.Deprecation.Since)

	_, ok = state.Lookup("Bar")
	assert.False(t, ok, "removed symbols are forgotten")

	// Folding newest first gives a different answer.
	var reversed State
	for _, d := range h {
		reversed = Step(reversed, d)
	}
	assert.NotEqual(t, state, reversed)
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	h := history()
	s1 := Step(State{}, h[3])
	s2 := Step(s1, h[2])
	s3 := Step(s2, h[1])

	foo1, _ := s1.Lookup("Foo")
	foo2, _ := s2.Lookup("Foo")
	foo3, _ := s3.Lookup("Foo")
	assert.Empty(t, foo1.ModifiedIn)
	assert.Equal(t, []string{"1.1.0"}, foo2.ModifiedIn)
	assert.Equal(t, []string{"1.1.0", "1.2.0"}, foo3.ModifiedIn)
	assert.Nil(t, foo2.Deprecation)

	_, ok := s1.Lookup("Bar")
	assert.True(t, ok)
}

func TestStep_ReaddedSymbolKeepsFirstSince(t *testing.T) {
	s := Fold([]changelog.VersionDelta{
		{Version: "3.0.0", PreviousVersion: prev("2.0.0"), Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
		{Version: "2.0.0", PreviousVersion: prev("1.0.0"), Removed: []changelog.RemovedEntry{{QualifiedName: "Foo"}}},
		{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
	})

	foo, ok := s.Lookup("Foo")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", foo.Since)
	assert.Equal(t, "1.0.0", s.Earliest())
}

func TestStep_ReaddedSymbolKeepsFirstDeprecation(t *testing.T) {
	s := Fold([]changelog.VersionDelta{
		{Version: "4.0.0", PreviousVersion: prev("3.0.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo", Message: "again"}}},
		{Version: "3.0.0", PreviousVersion: prev("2.0.0"), Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
		{Version: "2.0.0", PreviousVersion: prev("1.1.0"), Removed: []changelog.RemovedEntry{{QualifiedName: "Foo"}}},
		{Version: "1.1.0", PreviousVersion: prev("1.0.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo", Message: "first"}}},
		{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
	})

	foo, ok := s.Lookup("Foo")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", foo.Since)
	assert.Equal(t, &ir.DeprecationRef{Since: "1.1.0", Message: "first"}, foo.Deprecation)
}

func TestStep_UnknownSymbolFallsBackToEarliest(t *testing.T) {
	tests := map[string]changelog.VersionDelta{
		"modified": {Version: "2.0.0", PreviousVersion: prev("1.0.0"), Modified: []changelog.ModifiedEntry{{
			QualifiedName:  "Foo",
			Changes:        []changelog.ChangeRecord{{Type: changelog.ChangeSignature, Description: "signature changed"}},
			SnapshotBefore: fnSnap("Foo()", false),
			SnapshotAfter:  fnSnap("Foo(x)", false),
		}}},
		"deprecated": {Version: "2.0.0", PreviousVersion: prev("1.0.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo"}}},
	}

	for name, d := range tests {
		t.Run(name, func(t *testing.T) {
			s := Fold([]changelog.VersionDelta{
				d,
				{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Bar", Snapshot: fnSnap("Bar()", false)}}},
			})
			foo, ok := s.Lookup("Foo")
			require.True(t, ok)
			assert.Equal(t, "1.0.0", foo.Since)
		})
	}
}

func TestStep_DeprecationLifecycle(t *testing.T) {
	tests := map[string]struct {
		history []changelog.VersionDelta
		want    *ir.DeprecationRef
	}{
		"added already deprecated": {
			history: []changelog.VersionDelta{
				{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", true)}}},
			},
			want: &ir.DeprecationRef{Since: "1.0.0"},
		},
		"first deprecation wins": {
			history: []changelog.VersionDelta{
				{Version: "1.2.0", PreviousVersion: prev("1.1.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo", Message: "second"}}},
				{Version: "1.1.0", PreviousVersion: prev("1.0.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo", Message: "first"}}},
				{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
			},
			want: &ir.DeprecationRef{Since: "1.1.0", Message: "first"},
		},
		"un-deprecation keeps the first": {
			history: []changelog.VersionDelta{
				{Version: "1.2.0", PreviousVersion: prev("1.1.0"), Modified: []changelog.ModifiedEntry{{
					QualifiedName:  "Foo",
					Changes:        []changelog.ChangeRecord{{Type: changelog.ChangeDeprecation, Description: "deprecation removed"}},
					SnapshotBefore: fnSnap("Foo()", true),
					SnapshotAfter:  fnSnap("Foo()", false),
				}}},
				{Version: "1.1.0", PreviousVersion: prev("1.0.0"), Deprecated: []changelog.DeprecatedEntry{{QualifiedName: "Foo"}}},
				{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
			},
			want: &ir.DeprecationRef{Since: "1.1.0"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			foo, ok := Fold(tt.history).Lookup("Foo")
			require.True(t, ok)
			assert.Equal(t, tt.want, foo.Deprecation)
		})
	}
}

func TestAnnotateLatestIR(t *testing.T) {
	cl := &changelog.PackageChangelog{PackageID: "acme", History: history()}
	symbols := []ir.SymbolRecord{
		{
			Kind:          "function",
			QualifiedName: "Foo",
			Docs:          &ir.Docs{Deprecated: &ir.Deprecation{IsDeprecated: true, Message: "use Qux", Replacement: "Qux"}},
		},
		{Kind: "function", QualifiedName: "Qux"},
		{Kind: "function", QualifiedName: "Unknown"},
	}

	out := AnnotateLatestIR(symbols, cl)
	require.Len(t, out, 3)

	for _, s := range symbols {
		assert.Nil(t, s.VersionInfo, "input records are not modified")
	}

	assert.Equal(t, &ir.SymbolVersionInfo{
		Since:       "1.0.0",
		ModifiedIn:  []string{"1.1.0", "1.2.0"},
		Deprecation: &ir.DeprecationRef{Since: "1.2.0", Message: "use Qux", Replacement: "Qux"},
	}, out[0].VersionInfo, "deprecation inside a modification counts and takes the symbol's own message")

	assert.Equal(t, &ir.SymbolVersionInfo{Since: "2.0.0"}, out[1].VersionInfo)
	assert.Equal(t, &ir.SymbolVersionInfo{Since: "1.0.0"}, out[2].VersionInfo, "unknown symbols default to the earliest version")
}

func TestAnnotateLatestIR_SymbolMissingFromHistory(t *testing.T) {
	cl := &changelog.PackageChangelog{PackageID: "acme", History: []changelog.VersionDelta{
		{Version: "2.0.0", PreviousVersion: prev("1.0.0"), Added: []changelog.AddedEntry{{QualifiedName: "Qux", Snapshot: fnSnap("Qux()", false)}}},
		{Version: "1.0.0", Added: []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: fnSnap("Foo()", false)}}},
	}}

	out := AnnotateLatestIR([]ir.SymbolRecord{{Kind: "function", QualifiedName: "Bar"}}, cl)
	require.Len(t, out, 1)
	assert.Equal(t, &ir.SymbolVersionInfo{Since: "1.0.0"}, out[0].VersionInfo)
}

func TestAnnotateLatestIR_Deterministic(t *testing.T) {
	cl := &changelog.PackageChangelog{PackageID: "acme", History: history()}
	symbols := []ir.SymbolRecord{{Kind: "function", QualifiedName: "Foo"}}

	assert.Equal(t, AnnotateLatestIR(symbols, cl), AnnotateLatestIR(symbols, cl))
}

func TestAnnotateLatestIR_NilChangelog(t *testing.T) {
	out := AnnotateLatestIR([]ir.SymbolRecord{{Kind: "function", QualifiedName: "Foo"}}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, &ir.SymbolVersionInfo{}, out[0].VersionInfo)
}
