package errors

import "fmt"

// Common error messages for the symlog CLI.

// NoPackagesConfigured is returned when a command needs packages but the
// configuration lists none.
func NoPackagesConfigured() *CLIError {
	return NewConfigError(
		"no packages configured",
		"Add a package under 'packages:' in .symlog/config.yml",
		"Run 'symlog config init' to write a commented template",
	)
}

// UnknownPackage is returned for a package id missing from the configuration.
func UnknownPackage(id string, known []string) *CLIError {
	remediation := []string{"Check the id against 'packages[].id' in your config"}
	if len(known) > 0 {
		remediation = append(remediation, fmt.Sprintf("Configured packages: %v", known))
	}
	return NewArgumentError(fmt.Sprintf("unknown package %q", id), remediation...)
}

// NoExtractorConfigured is returned when a build has no way to obtain IR.
func NoExtractorConfigured(id string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("no extractor configured for package %q", id),
		"Set 'extractor.command' to a command template containing {{SHA}}",
		"Or set 'packages[].extractor_command' for this package",
		"Or point 'extractor.dir' at pre-extracted <sha>.json files",
	)
}

// NoVersionsFound is returned when no tag matches the package's pattern.
func NoVersionsFound(id, pattern string, err error) *CLIError {
	return &CLIError{
		Category: Discovery,
		Message:  fmt.Sprintf("no versions of %q match tag pattern %q", id, pattern),
		Remediation: []string{
			"List the repository tags with 'git tag --list' and compare with 'tag_pattern'",
			"Check 'min_version' is not above every release",
			"For a remote repository, confirm credentials (GITHUB_TOKEN or an SSH agent)",
		},
		Err: err,
	}
}

// PublishedStateUnknown is returned when the existing changelog could not
// be read after retries. Building from scratch could overwrite history, so
// the run stops instead.
func PublishedStateUnknown(id string, err error) *CLIError {
	return &CLIError{
		Category: Storage,
		Message:  fmt.Sprintf("could not determine published state of %q: %v", id, err),
		Remediation: []string{
			"Check that the storage backend is reachable and retry",
			"Use 'symlog build --full' only if you intend to replace the published history",
		},
		Err: err,
	}
}

// ExtractionFailed wraps an extractor failure.
func ExtractionFailed(err error) *CLIError {
	return &CLIError{
		Category: Extraction,
		Message:  err.Error(),
		Remediation: []string{
			"Run the extractor command by hand for the failing SHA",
			"Raise 'extractor.timeout' if the extractor was killed",
			"Re-run with --log-level debug to see extractor output",
		},
		Err: err,
	}
}

// InvalidDocument wraps a contract violation in IR or a stored document.
func InvalidDocument(err error) *CLIError {
	return &CLIError{
		Category: Validation,
		Message:  err.Error(),
		Remediation: []string{
			"Inspect the document reported above",
			"Rebuild with 'symlog build --full' to replace a corrupted publication",
		},
		Err: err,
	}
}

// InvalidFormat is returned for an unsupported --format value.
func InvalidFormat(format string, allowed ...string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("unsupported format %q", format),
		fmt.Sprintf("Valid formats: %v", allowed),
	)
}
