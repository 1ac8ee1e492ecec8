package changelog

import (
	"fmt"
	"time"

	"github.com/ariel-frischer/symlog/internal/snapshot"
)

// ChangeType is the facet of a symbol that a ChangeRecord describes.
type ChangeType string

const (
	ChangeSignature   ChangeType = "signature"
	ChangeParameter   ChangeType = "parameter"
	ChangeReturn      ChangeType = "return"
	ChangeModifier    ChangeType = "modifier"
	ChangeVisibility  ChangeType = "visibility"
	ChangeMember      ChangeType = "member"
	ChangeKind        ChangeType = "kind"
	ChangeDeprecation ChangeType = "deprecation"
)

// ChangeRecord is one classified difference between two snapshots of a symbol.
type ChangeRecord struct {
	Type        ChangeType `json:"type" validate:"required,oneof=signature parameter return modifier visibility member kind deprecation"`
	Description string     `json:"description" validate:"required"`
	Breaking    bool       `json:"breaking"`
}

// AddedEntry is a symbol that first appears in a version.
type AddedEntry struct {
	QualifiedName string            `json:"qualifiedName" validate:"required"`
	Snapshot      snapshot.Snapshot `json:"snapshot"`
}

// RemovedEntry is a symbol that no longer exists in a version.
type RemovedEntry struct {
	QualifiedName string `json:"qualifiedName" validate:"required"`
}

// ModifiedEntry is a symbol whose snapshot changed between versions.
type ModifiedEntry struct {
	QualifiedName  string            `json:"qualifiedName" validate:"required"`
	Changes        []ChangeRecord    `json:"changes" validate:"min=1,dive"`
	SnapshotBefore snapshot.Snapshot `json:"snapshotBefore"`
	SnapshotAfter  snapshot.Snapshot `json:"snapshotAfter"`
}

// IsBreaking reports whether any change of the entry is breaking.
func (m ModifiedEntry) IsBreaking() bool {
	for _, c := range m.Changes {
		if c.Breaking {
			return true
		}
	}
	return false
}

// HasChange reports whether the entry carries a change of the given type.
func (m ModifiedEntry) HasChange(t ChangeType) bool {
	for _, c := range m.Changes {
		if c.Type == t {
			return true
		}
	}
	return false
}

// DeprecatedEntry is a symbol whose only change is a new deprecation marker.
type DeprecatedEntry struct {
	QualifiedName string `json:"qualifiedName" validate:"required"`
	Message       string `json:"message,omitempty"`
	Replacement   string `json:"replacement,omitempty"`
}

// VersionDelta is the transition from PreviousVersion to Version. A qualified
// name appears in at most one of the four lists; each list is sorted by name.
type VersionDelta struct {
	Version         string            `json:"version" validate:"required"`
	PreviousVersion *string           `json:"previousVersion"`
	SHA             string            `json:"sha"`
	ReleaseDate     string            `json:"releaseDate"`
	Added           []AddedEntry      `json:"added" validate:"dive"`
	Removed         []RemovedEntry    `json:"removed" validate:"dive"`
	Modified        []ModifiedEntry   `json:"modified" validate:"dive"`
	Deprecated      []DeprecatedEntry `json:"deprecated" validate:"dive"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// IsEmpty reports whether the delta classifies no symbol at all.
func (d *VersionDelta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 && len(d.Deprecated) == 0
}

// BreakingCount counts removed symbols plus modified symbols with at least
// one breaking change.
func (d *VersionDelta) BreakingCount() int {
	n := len(d.Removed)
	for _, m := range d.Modified {
		if m.IsBreaking() {
			n++
		}
	}
	return n
}

// IsBootstrap reports whether the delta is the first recorded version.
func (d *VersionDelta) IsBootstrap() bool {
	return d.PreviousVersion == nil
}

// PackageChangelog is the durable, published history of one package.
type PackageChangelog struct {
	PackageID   string         `json:"packageId" validate:"required"`
	PackageName string         `json:"packageName"`
	GeneratedAt time.Time      `json:"generatedAt"`
	History     []VersionDelta `json:"history" validate:"dive"`
}

// Stats are per-version counts derived from a delta.
type Stats struct {
	Added        int `json:"added" validate:"gte=0"`
	Removed      int `json:"removed" validate:"gte=0"`
	Modified     int `json:"modified" validate:"gte=0"`
	Breaking     int `json:"breaking" validate:"gte=0"`
	TotalSymbols int `json:"totalSymbols" validate:"gte=0"`
}

// VersionSummary is the index entry of one published version.
type VersionSummary struct {
	Version     string    `json:"version" validate:"required"`
	SHA         string    `json:"sha"`
	Tag         string    `json:"tag"`
	ReleaseDate string    `json:"releaseDate"`
	ExtractedAt time.Time `json:"extractedAt"`
	Stats       Stats     `json:"stats"`
}

// PackageVersionIndex lists published versions newest first, in lockstep
// with PackageChangelog.History.
type PackageVersionIndex struct {
	PackageID   string           `json:"packageId" validate:"required"`
	PackageName string           `json:"packageName"`
	Latest      *VersionSummary  `json:"latest"`
	Versions    []VersionSummary `json:"versions" validate:"dive"`
}

// Published is the changelog and version index pair as stored.
type Published struct {
	Changelog    *PackageChangelog    `json:"changelog" validate:"required"`
	VersionIndex *PackageVersionIndex `json:"versionIndex" validate:"required"`
}

// Entry is a flattened view of one symbol event, used for per-symbol queries
// and terminal display.
type Entry struct {
	QualifiedName string         `json:"qualifiedName" yaml:"qualifiedName"`
	Category      string         `json:"category" yaml:"category"`
	Version       string         `json:"version" yaml:"version"`
	Breaking      bool           `json:"breaking,omitempty" yaml:"breaking,omitempty"`
	Changes       []ChangeRecord `json:"changes,omitempty" yaml:"changes,omitempty"`
	Message       string         `json:"message,omitempty" yaml:"message,omitempty"`
	// Fingerprint identifies the symbol's shape after the change. Entries
	// with equal fingerprints describe structurally identical symbols.
	Fingerprint   string         `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// Entries returns the flattened entries of the delta in category order.
func (d *VersionDelta) Entries() []Entry {
	entries := make([]Entry, 0, len(d.Added)+len(d.Modified)+len(d.Deprecated)+len(d.Removed))

	for _, a := range d.Added {
		entries = append(entries, Entry{
			QualifiedName: a.QualifiedName,
			Category:      "added",
			Version:       d.Version,
			Fingerprint:   fingerprint(a.Snapshot),
		})
	}
	for _, m := range d.Modified {
		entries = append(entries, Entry{
			QualifiedName: m.QualifiedName,
			Category:      "modified",
			Version:       d.Version,
			Breaking:      m.IsBreaking(),
			Changes:       m.Changes,
			Fingerprint:   fingerprint(m.SnapshotAfter),
		})
	}
	for _, dep := range d.Deprecated {
		entries = append(entries, Entry{QualifiedName: dep.QualifiedName, Category: "deprecated", Version: d.Version, Message: dep.Message})
	}
	for _, r := range d.Removed {
		entries = append(entries, Entry{QualifiedName: r.QualifiedName, Category: "removed", Version: d.Version, Breaking: true})
	}

	return entries
}

func fingerprint(s snapshot.Snapshot) string {
	return fmt.Sprintf("%016x", s.Fingerprint())
}

// Categories returns the classification lists in rendering order.
func Categories() []string {
	return []string{"added", "modified", "deprecated", "removed"}
}
