package store

import (
	"testing"
	"time"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/snapshot"
	"github.com/stretchr/testify/require"
)

func samplePublished(id string) *changelog.Published {
	prev := "1.0.0"
	cl := &changelog.PackageChangelog{
		PackageID:   id,
		PackageName: "@acme/sdk",
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		History: []changelog.VersionDelta{
			{
				Version:         "1.1.0",
				PreviousVersion: &prev,
				SHA:             "bbb",
				Added:           []changelog.AddedEntry{{QualifiedName: "Bar", Snapshot: snapshot.Snapshot{Kind: "function"}}},
				Removed:         []changelog.RemovedEntry{},
				Modified:        []changelog.ModifiedEntry{},
				Deprecated:      []changelog.DeprecatedEntry{},
			},
			{
				Version:    "1.0.0",
				SHA:        "aaa",
				Added:      []changelog.AddedEntry{{QualifiedName: "Foo", Snapshot: snapshot.Snapshot{Kind: "function"}}},
				Removed:    []changelog.RemovedEntry{},
				Modified:   []changelog.ModifiedEntry{},
				Deprecated: []changelog.DeprecatedEntry{},
			},
		},
	}
	versions := []changelog.VersionSummary{
		{Version: "1.1.0", SHA: "bbb", Tag: "v1.1.0", Stats: changelog.Stats{Added: 1, TotalSymbols: 2}},
		{Version: "1.0.0", SHA: "aaa", Tag: "v1.0.0", Stats: changelog.Stats{Added: 1, TotalSymbols: 1}},
	}
	latest := versions[0]
	return &changelog.Published{
		Changelog: cl,
		VersionIndex: &changelog.PackageVersionIndex{
			PackageID:   id,
			PackageName: "@acme/sdk",
			Latest:      &latest,
			Versions:    versions,
		},
	}
}

// requireSamePublished compares two pairs by their encoded form.
func requireSamePublished(t *testing.T, want, got *changelog.Published) {
	t.Helper()
	require.NotNil(t, got)
	wcl, widx, err := encodePair(want)
	require.NoError(t, err)
	gcl, gidx, err := encodePair(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wcl), string(gcl))
	require.JSONEq(t, string(widx), string(gidx))
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := t.Context()

	_, err := s.Fetch(ctx, "@acme/sdk")
	require.ErrorIs(t, err, ErrNotFound)

	p := samplePublished("@acme/sdk")
	require.NoError(t, s.Publish(ctx, p))

	got, err := s.Fetch(ctx, "@acme/sdk")
	require.NoError(t, err)
	requireSamePublished(t, p, got)

	// A second publish replaces the first.
	p2 := samplePublished("@acme/sdk")
	p2.Changelog.PackageName = "@acme/sdk-renamed"
	require.NoError(t, s.Publish(ctx, p2))
	got, err = s.Fetch(ctx, "@acme/sdk")
	require.NoError(t, err)
	require.Equal(t, "@acme/sdk-renamed", got.Changelog.PackageName)

	bad := samplePublished("@acme/sdk")
	bad.VersionIndex.Versions = bad.VersionIndex.Versions[:1]
	err = s.Publish(ctx, bad)
	require.Error(t, err)
	require.Contains(t, err.Error(), "refusing to publish")

	if sw, ok := s.(SymbolsWriter); ok {
		require.NoError(t, sw.PublishSymbols(ctx, "@acme/sdk", nil))
	}
}
