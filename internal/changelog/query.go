package changelog

import (
	"fmt"
	"strings"
)

// VersionNotFoundError is returned when a requested version doesn't exist.
type VersionNotFoundError struct {
	Version           string
	AvailableVersions []string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %q not found (available: %s)",
		e.Version, strings.Join(e.AvailableVersions, ", "))
}

// GetVersion retrieves the delta of a specific version.
// Accepts both "v0.6.0" and "0.6.0" formats (normalizes the input).
// Returns VersionNotFoundError if the version doesn't exist.
func (c *PackageChangelog) GetVersion(version string) (*VersionDelta, error) {
	normalized := NormalizeVersion(version)

	for i := range c.History {
		if NormalizeVersion(c.History[i].Version) == normalized {
			return &c.History[i], nil
		}
	}

	return nil, &VersionNotFoundError{
		Version:           version,
		AvailableVersions: c.ListVersions(),
	}
}

// ListVersions returns all version identifiers, newest first.
func (c *PackageChangelog) ListVersions() []string {
	versions := make([]string, len(c.History))
	for i, d := range c.History {
		versions[i] = d.Version
	}
	return versions
}

// HasVersion reports whether the version is already in history.
func (c *PackageChangelog) HasVersion(version string) bool {
	_, err := c.GetVersion(version)
	return err == nil
}

// Newest returns the most recent delta, or nil for an empty history.
func (c *PackageChangelog) Newest() *VersionDelta {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[0]
}

// GetLastN retrieves the N most recent entries across all versions.
// If N is greater than the total number of entries, all entries are returned.
func (c *PackageChangelog) GetLastN(n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}

	entries := c.AllEntries()
	if len(entries) <= n {
		return entries
	}
	return entries[:n]
}

// AllEntries returns all entries from all versions, newest first.
func (c *PackageChangelog) AllEntries() []Entry {
	var entries []Entry
	for i := range c.History {
		entries = append(entries, c.History[i].Entries()...)
	}
	return entries
}

// SymbolHistory returns every event recorded for one symbol, newest first.
func (c *PackageChangelog) SymbolHistory(qualifiedName string) []Entry {
	var entries []Entry
	for i := range c.History {
		for _, e := range c.History[i].Entries() {
			if e.QualifiedName == qualifiedName {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// BreakingEntries returns every breaking entry, newest first.
func (c *PackageChangelog) BreakingEntries() []Entry {
	var entries []Entry
	for _, e := range c.AllEntries() {
		if e.Breaking {
			entries = append(entries, e)
		}
	}
	return entries
}

// GetSummary returns the index entry of a specific version.
func (x *PackageVersionIndex) GetSummary(version string) (*VersionSummary, error) {
	normalized := NormalizeVersion(version)
	for i := range x.Versions {
		if NormalizeVersion(x.Versions[i].Version) == normalized {
			return &x.Versions[i], nil
		}
	}

	available := make([]string, len(x.Versions))
	for i, v := range x.Versions {
		available[i] = v.Version
	}
	return nil, &VersionNotFoundError{Version: version, AvailableVersions: available}
}
