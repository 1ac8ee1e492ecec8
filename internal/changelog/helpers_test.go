package changelog

import (
	"time"

	"github.com/ariel-frischer/symlog/internal/snapshot"
)

func strPtr(s string) *string { return &s }

// sampleChangelog returns a three-version history newest first:
// 1.2.0 modifies Foo and removes Bar, 1.1.0 deprecates Baz, 1.0.0 bootstraps.
func sampleChangelog() *PackageChangelog {
	return &PackageChangelog{
		PackageID:   "acme-sdk",
		PackageName: "@acme/sdk",
		GeneratedAt: time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
		History: []VersionDelta{
			{
				Version:         "1.2.0",
				PreviousVersion: strPtr("1.1.0"),
				SHA:             "ccc",
				ReleaseDate:     "2026-01-15T10:00:00Z",
				Added:           []AddedEntry{{QualifiedName: "Qux", Snapshot: snapshot.Snapshot{Kind: "function"}}},
				Modified: []ModifiedEntry{{
					QualifiedName:  "Foo",
					Changes:        []ChangeRecord{{Type: ChangeParameter, Description: "added required parameter y", Breaking: true}},
					SnapshotBefore: snapshot.Snapshot{Kind: "function", Signature: "Foo(x: string): void"},
					SnapshotAfter:  snapshot.Snapshot{Kind: "function", Signature: "Foo(x: string, y: number): void"},
				}},
				Removed: []RemovedEntry{{QualifiedName: "Bar"}},
			},
			{
				Version:         "1.1.0",
				PreviousVersion: strPtr("1.0.0"),
				SHA:             "bbb",
				ReleaseDate:     "2025-12-01T10:00:00Z",
				Deprecated:      []DeprecatedEntry{{QualifiedName: "Baz", Message: "use Qux", Replacement: "Qux"}},
			},
			{
				Version:     "1.0.0",
				SHA:         "aaa",
				ReleaseDate: "2025-11-01T10:00:00Z",
				Added: []AddedEntry{
					{QualifiedName: "Bar", Snapshot: snapshot.Snapshot{Kind: "class"}},
					{QualifiedName: "Baz", Snapshot: snapshot.Snapshot{Kind: "function"}},
					{QualifiedName: "Foo", Snapshot: snapshot.Snapshot{Kind: "function"}},
				},
			},
		},
	}
}

func sampleIndex() *PackageVersionIndex {
	versions := []VersionSummary{
		{Version: "1.2.0", SHA: "ccc", Tag: "v1.2.0", Stats: Stats{Added: 1, Removed: 1, Modified: 1, Breaking: 2, TotalSymbols: 3}},
		{Version: "1.1.0", SHA: "bbb", Tag: "v1.1.0", Stats: Stats{TotalSymbols: 3}},
		{Version: "1.0.0", SHA: "aaa", Tag: "v1.0.0", Stats: Stats{Added: 3, TotalSymbols: 3}},
	}
	latest := versions[0]
	return &PackageVersionIndex{
		PackageID:   "acme-sdk",
		PackageName: "@acme/sdk",
		Latest:      &latest,
		Versions:    versions,
	}
}

func samplePublished() *Published {
	return &Published{Changelog: sampleChangelog(), VersionIndex: sampleIndex()}
}
