// Package snapshot reduces a symbol record to the structural facets that
// define its externally observable API. Two snapshots are equal iff their
// canonical JSON encodings are byte-identical.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/cespare/xxhash/v2"
)

// Param is the structural view of one parameter.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Member is the structural view of one member of a container symbol.
type Member struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Visibility string `json:"visibility"`
	Signature  string `json:"signature"`
}

// Snapshot is the canonical structural fingerprint of one symbol at one
// version. Field order is fixed so the JSON encoding is canonical.
type Snapshot struct {
	Kind       string   `json:"kind"`
	Signature  string   `json:"signature"`
	Params     []Param  `json:"params"`
	ReturnType string   `json:"returnType"`
	Visibility string   `json:"visibility"`
	Modifiers  []string `json:"modifiers"`
	Members    []Member `json:"members"`
	Deprecated bool     `json:"deprecated"`
}

// MalformedError reports a symbol record that cannot be snapshotted.
type MalformedError struct {
	QualifiedName string
	Reason        string
}

func (e *MalformedError) Error() string {
	if e.QualifiedName == "" {
		return "malformed symbol: " + e.Reason
	}
	return fmt.Sprintf("malformed symbol %q: %s", e.QualifiedName, e.Reason)
}

// Build converts a symbol record into its snapshot. Source locations, ids,
// documentation text and URLs never enter the snapshot.
func Build(rec ir.SymbolRecord) (Snapshot, error) {
	name := strings.TrimSpace(rec.QualifiedName)
	if name == "" {
		return Snapshot{}, &MalformedError{Reason: "empty qualifiedName"}
	}

	params := make([]Param, 0, len(rec.Params))
	seen := make(map[string]bool, len(rec.Params))
	for i, p := range rec.Params {
		pname := strings.TrimSpace(p.Name)
		if pname == "" {
			return Snapshot{}, &MalformedError{QualifiedName: name, Reason: fmt.Sprintf("parameter %d has no name", i)}
		}
		if seen[pname] {
			return Snapshot{}, &MalformedError{QualifiedName: name, Reason: fmt.Sprintf("duplicate parameter %q", pname)}
		}
		seen[pname] = true
		params = append(params, Param{Name: pname, Type: collapse(p.Type), Required: p.Required})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	members := make([]Member, 0, len(rec.Members))
	for i, m := range rec.Members {
		mname := strings.TrimSpace(m.Name)
		if mname == "" {
			return Snapshot{}, &MalformedError{QualifiedName: name, Reason: fmt.Sprintf("member %d has no name", i)}
		}
		vis := m.Visibility
		if vis == "" {
			vis = "public"
		}
		members = append(members, Member{
			Name:       mname,
			Kind:       m.Kind,
			Visibility: vis,
			Signature:  collapse(m.Signature),
		})
	}
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		switch {
		case a.Name != b.Name:
			return a.Name < b.Name
		case a.Kind != b.Kind:
			return a.Kind < b.Kind
		case a.Signature != b.Signature:
			return a.Signature < b.Signature
		}
		return a.Visibility < b.Visibility
	})

	return Snapshot{
		Kind:       rec.Kind,
		Signature:  collapse(rec.Signature),
		Params:     params,
		ReturnType: collapse(rec.ReturnType()),
		Visibility: rec.Visibility(),
		Modifiers:  modifiers(rec),
		Members:    members,
		Deprecated: rec.IsDeprecated(),
	}, nil
}

// modifiers merges explicit modifiers with the flags carried in tags,
// sorted and deduplicated.
func modifiers(rec ir.SymbolRecord) []string {
	set := make(map[string]bool, len(rec.Modifiers)+2)
	for _, m := range rec.Modifiers {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = true
		}
	}
	if rec.Tags != nil {
		if rec.Tags.IsAsync {
			set["async"] = true
		}
		if rec.Tags.IsAbstract {
			set["abstract"] = true
		}
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// collapse normalizes whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Canonical returns the canonical JSON encoding of the snapshot.
func (s Snapshot) Canonical() []byte {
	// Only strings, bools and slices of them; Marshal cannot fail.
	data, _ := json.Marshal(s.normalized())
	return data
}

// normalized replaces nil slices with empty ones so that a decoded snapshot
// and a freshly built one encode identically.
func (s Snapshot) normalized() Snapshot {
	if s.Params == nil {
		s.Params = []Param{}
	}
	if s.Modifiers == nil {
		s.Modifiers = []string{}
	}
	if s.Members == nil {
		s.Members = []Member{}
	}
	return s
}

// Equal reports whether two snapshots are structurally identical.
func (s Snapshot) Equal(other Snapshot) bool {
	return bytes.Equal(s.Canonical(), other.Canonical())
}

// Fingerprint is a 64-bit hash of the canonical encoding.
func (s Snapshot) Fingerprint() uint64 {
	return xxhash.Sum64(s.Canonical())
}

// WithoutDeprecation returns a copy with the deprecation flag cleared, used
// to test whether deprecation is the only facet that changed.
func (s Snapshot) WithoutDeprecation() Snapshot {
	s.Deprecated = false
	return s
}

// String renders a compact human-readable form used in before/after views.
func (s Snapshot) String() string {
	var b strings.Builder
	if s.Visibility != "" && s.Visibility != "public" {
		b.WriteString(s.Visibility + " ")
	}
	for _, m := range s.Modifiers {
		b.WriteString(m + " ")
	}
	b.WriteString(s.Kind)
	if s.Signature != "" {
		b.WriteString(" " + s.Signature)
	}
	b.WriteByte('\n')
	for _, p := range s.Params {
		opt := ""
		if !p.Required {
			opt = "?"
		}
		fmt.Fprintf(&b, "  param %s%s: %s\n", p.Name, opt, p.Type)
	}
	if s.ReturnType != "" {
		fmt.Fprintf(&b, "  returns %s\n", s.ReturnType)
	}
	for _, m := range s.Members {
		fmt.Fprintf(&b, "  %s %s %s", m.Visibility, m.Kind, m.Name)
		if m.Signature != "" {
			b.WriteString(" " + m.Signature)
		}
		b.WriteByte('\n')
	}
	if s.Deprecated {
		b.WriteString("  @deprecated\n")
	}
	return b.String()
}
