// Package changelog defines the published symbol-level changelog documents.
//
// This package implements:
//   - PackageChangelog and PackageVersionIndex, the two documents written to storage
//   - VersionDelta and ChangeRecord, one classified transition between versions
//   - boundary validation of previously published documents
//   - per-symbol and per-version queries for the serving layer
//   - Keep a Changelog markdown and colored terminal rendering
//
// history and versions are ordered newest first and kept in lockstep.
// Incremental builds only ever prepend; existing entries are never rewritten.
package changelog
