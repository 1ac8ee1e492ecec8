package diff

import (
	"testing"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base() snapshot.Snapshot {
	return snapshot.Snapshot{
		Kind:       "function",
		Signature:  "f(a: string): int",
		Params:     []snapshot.Param{{Name: "a", Type: "string", Required: true}},
		ReturnType: "int",
		Visibility: "public",
		Modifiers:  []string{"static"},
		Members:    []snapshot.Member{{Name: "m", Kind: "method", Visibility: "public", Signature: "m()"}},
	}
}

func TestClassify_Kinds(t *testing.T) {
	b := base()
	dep := base()
	dep.Deprecated = true

	tests := map[string]struct {
		before, after *snapshot.Snapshot
		want          Kind
	}{
		"both missing":      {want: Unchanged},
		"added":             {after: &b, want: Added},
		"removed":           {before: &b, want: Removed},
		"identical":         {before: &b, after: &b, want: Unchanged},
		"deprecation only":  {before: &b, after: &dep, want: Deprecated},
		"undeprecated only": {before: &dep, after: &b, want: Modified},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := Classify(tt.before, tt.after)
			assert.Equal(t, tt.want, got.Kind)
			if tt.want != Modified {
				assert.Empty(t, got.Changes)
			}
		})
	}
}

func TestClassify_ChangeRecords(t *testing.T) {
	tests := map[string]struct {
		mutate func(s *snapshot.Snapshot)
		want   []changelog.ChangeRecord
	}{
		"optional parameter added": {
			mutate: func(s *snapshot.Snapshot) {
				s.Params = append(s.Params, snapshot.Param{Name: "b", Type: "int"})
				s.Signature = "f(a: string, b?: int): int"
			},
			want: []changelog.ChangeRecord{{Type: changelog.ChangeParameter, Description: "added optional parameter b"}},
		},
		"parameter removed": {
			mutate: func(s *snapshot.Snapshot) { s.Params = nil },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeParameter, Description: "removed parameter a", Breaking: true}},
		},
		"parameter retyped": {
			mutate: func(s *snapshot.Snapshot) { s.Params[0].Type = "number" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeParameter, Description: "parameter a type changed from string to number", Breaking: true,
			}},
		},
		"parameter became optional": {
			mutate: func(s *snapshot.Snapshot) { s.Params[0].Required = false },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeParameter, Description: "parameter a became optional"}},
		},
		"return type changed": {
			mutate: func(s *snapshot.Snapshot) { s.ReturnType = "string" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeReturn, Description: "return type changed from int to string", Breaking: true,
			}},
		},
		"visibility reduced": {
			mutate: func(s *snapshot.Snapshot) { s.Visibility = "protected" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeVisibility, Description: "visibility reduced from public to protected", Breaking: true,
			}},
		},
		"modifier removed": {
			mutate: func(s *snapshot.Snapshot) { s.Modifiers = nil },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeModifier, Description: "removed modifier static", Breaking: true}},
		},
		"restrictive modifier added": {
			mutate: func(s *snapshot.Snapshot) { s.Modifiers = []string{"final", "static"} },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeModifier, Description: "added modifier final", Breaking: true}},
		},
		"permissive modifier added": {
			mutate: func(s *snapshot.Snapshot) { s.Modifiers = []string{"async", "static"} },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeModifier, Description: "added modifier async"}},
		},
		"member added": {
			mutate: func(s *snapshot.Snapshot) {
				s.Members = append(s.Members, snapshot.Member{Name: "n", Kind: "method", Visibility: "public"})
			},
			want: []changelog.ChangeRecord{{Type: changelog.ChangeMember, Description: "added member method n"}},
		},
		"member removed": {
			mutate: func(s *snapshot.Snapshot) { s.Members = nil },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeMember, Description: "removed member method m", Breaking: true}},
		},
		"member kind changed": {
			mutate: func(s *snapshot.Snapshot) { s.Members[0].Kind = "property" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: "member m kind changed from method to property", Breaking: true,
			}},
		},
		"member visibility reduced": {
			mutate: func(s *snapshot.Snapshot) { s.Members[0].Visibility = "private" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: "member m visibility reduced from public to private", Breaking: true,
			}},
		},
		"member signature changed": {
			mutate: func(s *snapshot.Snapshot) { s.Members[0].Signature = "m(x)" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: `member m signature changed from "m()" to "m(x)"`, Breaking: true,
			}},
		},
		"kind changed": {
			mutate: func(s *snapshot.Snapshot) { s.Kind = "class" },
			want:   []changelog.ChangeRecord{{Type: changelog.ChangeKind, Description: "kind changed from function to class", Breaking: true}},
		},
		"signature text only": {
			mutate: func(s *snapshot.Snapshot) { s.Signature = "f(a: string) -> int" },
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeSignature, Description: `signature changed from "f(a: string): int" to "f(a: string) -> int"`,
			}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			before := base()
			after := base()
			after.Params = append([]snapshot.Param(nil), before.Params...)
			after.Members = append([]snapshot.Member(nil), before.Members...)
			tt.mutate(&after)

			got := Classify(&before, &after)
			require.Equal(t, Modified, got.Kind)
			assert.Equal(t, tt.want, got.Changes)
		})
	}
}

func TestClassify_Overloads(t *testing.T) {
	member := func(sig, vis string) snapshot.Member {
		return snapshot.Member{Name: "foo", Kind: "method", Visibility: vis, Signature: sig}
	}
	class := func(members ...snapshot.Member) *snapshot.Snapshot {
		return &snapshot.Snapshot{Kind: "class", Visibility: "public", Members: members}
	}

	tests := map[string]struct {
		before, after *snapshot.Snapshot
		wantKind      Kind
		want          []changelog.ChangeRecord
	}{
		"overload removed": {
			before:   class(member("foo(x: number)", "public"), member("foo(x: string)", "public")),
			after:    class(member("foo(x: string)", "public")),
			wantKind: Modified,
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: "removed member method foo", Breaking: true,
			}},
		},
		"overload added": {
			before:   class(member("foo(x: string)", "public")),
			after:    class(member("foo(x: number)", "public"), member("foo(x: string)", "public")),
			wantKind: Modified,
			want:     []changelog.ChangeRecord{{Type: changelog.ChangeMember, Description: "added member method foo"}},
		},
		"one overload changed": {
			before:   class(member("foo(x: number)", "public"), member("foo(x: string)", "public")),
			after:    class(member("foo(x: boolean)", "public"), member("foo(x: string)", "public")),
			wantKind: Modified,
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: `member foo signature changed from "foo(x: number)" to "foo(x: boolean)"`, Breaking: true,
			}},
		},
		"overload visibility reduced": {
			before:   class(member("foo(x: number)", "public"), member("foo(x: string)", "public")),
			after:    class(member("foo(x: number)", "private"), member("foo(x: string)", "public")),
			wantKind: Modified,
			want: []changelog.ChangeRecord{{
				Type: changelog.ChangeMember, Description: "member foo visibility reduced from public to private", Breaking: true,
			}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := Classify(tt.before, tt.after)
			require.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.want, got.Changes)
		})
	}
}

func TestComputeVersionDelta_ReorderedOverloadsUnchanged(t *testing.T) {
	class := func(v string, members ...ir.Member) *ir.MinimalIR {
		return &ir.MinimalIR{Version: v, Symbols: []ir.SymbolRecord{{Kind: "class", QualifiedName: "C", Members: members}}}
	}
	str := ir.Member{Name: "foo", Kind: "method", Signature: "foo(x: string)"}
	num := ir.Member{Name: "foo", Kind: "method", Signature: "foo(x: number)"}

	delta, err := ComputeVersionDelta(class("1.0.0", str, num), class("1.1.0", num, str))
	require.NoError(t, err)
	assert.True(t, delta.IsEmpty(), "modified: %+v", delta.Modified)
}

func TestClassify_ReturnTypeDeclared(t *testing.T) {
	before := base()
	before.ReturnType = ""
	after := base()

	got := Classify(&before, &after)
	require.Equal(t, Modified, got.Kind)
	require.Len(t, got.Changes, 1)
	assert.False(t, got.Changes[0].Breaking)
}

func TestClassify_DeprecationRemoved(t *testing.T) {
	before := base()
	before.Deprecated = true
	after := base()

	got := Classify(&before, &after)
	require.Equal(t, Modified, got.Kind)
	assert.Equal(t, []changelog.ChangeRecord{{Type: changelog.ChangeDeprecation, Description: "deprecation removed"}}, got.Changes)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "deprecated", Deprecated.String())
	assert.Equal(t, "unchanged", Unchanged.String())
}
