package changelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a changelog validation error with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Document file names used by file-based storage and the CLI.
const (
	ChangelogFile = "changelog.json"
	IndexFile     = "versions.json"
	SymbolsFile   = "symbols.json"
)

var structValidator = validator.New()

// Load reads and validates the changelog and version index from a directory
// containing changelog.json and versions.json.
func Load(dir string) (*Published, error) {
	cf, err := os.Open(filepath.Join(dir, ChangelogFile))
	if err != nil {
		return nil, fmt.Errorf("opening changelog file: %w", err)
	}
	defer cf.Close()

	vf, err := os.Open(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("opening version index file: %w", err)
	}
	defer vf.Close()

	return LoadPair(cf, vf)
}

// LoadPair decodes and validates the two published documents.
func LoadPair(changelogR, indexR io.Reader) (*Published, error) {
	var cl PackageChangelog
	if err := json.NewDecoder(changelogR).Decode(&cl); err != nil {
		return nil, fmt.Errorf("parsing changelog JSON: %w", err)
	}

	var idx PackageVersionIndex
	if err := json.NewDecoder(indexR).Decode(&idx); err != nil {
		return nil, fmt.Errorf("parsing version index JSON: %w", err)
	}

	p := &Published{Changelog: &cl, VersionIndex: &idx}
	if err := ValidatePublished(p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFromReader reads a single JSON document holding both the changelog and
// the version index, as stored by the database backends.
func LoadFromReader(r io.Reader) (*Published, error) {
	var p Published
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing published changelog JSON: %w", err)
	}

	if err := ValidatePublished(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadChangelog reads and validates a lone changelog document.
func LoadChangelog(path string) (*PackageChangelog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening changelog file: %w", err)
	}
	defer f.Close()

	var cl PackageChangelog
	if err := json.NewDecoder(f).Decode(&cl); err != nil {
		return nil, fmt.Errorf("parsing changelog JSON: %w", err)
	}
	if err := ValidateChangelog(&cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// ValidatePublished checks the schema of both documents and the invariants
// that tie them together.
func ValidatePublished(p *Published) error {
	if p == nil || p.Changelog == nil {
		return &ValidationError{Field: "changelog", Message: "required document is missing"}
	}
	if p.VersionIndex == nil {
		return &ValidationError{Field: "versionIndex", Message: "required document is missing"}
	}

	if err := ValidateChangelog(p.Changelog); err != nil {
		return err
	}
	if err := validateStruct("versionIndex", p.VersionIndex); err != nil {
		return err
	}

	cl, idx := p.Changelog, p.VersionIndex
	if idx.PackageID != cl.PackageID {
		return &ValidationError{
			Field:   "versionIndex.packageId",
			Message: fmt.Sprintf("%q does not match changelog packageId %q", idx.PackageID, cl.PackageID),
		}
	}

	if len(idx.Versions) != len(cl.History) {
		return &ValidationError{
			Field:   "versionIndex.versions",
			Message: fmt.Sprintf("has %d entries but history has %d", len(idx.Versions), len(cl.History)),
		}
	}
	for i := range idx.Versions {
		if idx.Versions[i].Version != cl.History[i].Version {
			return &ValidationError{
				Field:   fmt.Sprintf("versionIndex.versions[%d].version", i),
				Message: fmt.Sprintf("%q is out of lockstep with history version %q", idx.Versions[i].Version, cl.History[i].Version),
			}
		}
	}

	if len(idx.Versions) > 0 {
		if idx.Latest == nil || idx.Latest.Version != idx.Versions[0].Version {
			return &ValidationError{Field: "versionIndex.latest", Message: "must point at the newest version"}
		}
	}

	return nil
}

// ValidateChangelog checks a changelog document on its own.
func ValidateChangelog(cl *PackageChangelog) error {
	if err := validateStruct("changelog", cl); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cl.History))
	for i := range cl.History {
		d := &cl.History[i]
		normalized := NormalizeVersion(d.Version)
		if seen[normalized] {
			return &ValidationError{
				Field:   fmt.Sprintf("history[%d].version", i),
				Message: fmt.Sprintf("duplicate version %q", d.Version),
			}
		}
		seen[normalized] = true

		if err := ValidateDelta(d); err != nil {
			return &ValidationError{Field: fmt.Sprintf("history[%d]", i), Message: err.Error()}
		}
	}

	for i := range cl.History {
		d := &cl.History[i]
		last := i == len(cl.History)-1
		switch {
		case last && d.PreviousVersion != nil:
			return &ValidationError{
				Field:   fmt.Sprintf("history[%d].previousVersion", i),
				Message: "oldest entry must have a null previousVersion",
			}
		case !last && (d.PreviousVersion == nil || *d.PreviousVersion != cl.History[i+1].Version):
			return &ValidationError{
				Field:   fmt.Sprintf("history[%d].previousVersion", i),
				Message: fmt.Sprintf("must be %q", cl.History[i+1].Version),
			}
		}
	}

	return nil
}

// ValidateDelta checks that no qualified name appears in more than one
// classification list of a delta.
func ValidateDelta(d *VersionDelta) error {
	owner := make(map[string]string)
	claim := func(list, name string) error {
		if prev, ok := owner[name]; ok {
			return fmt.Errorf("symbol %q appears in both %s and %s", name, prev, list)
		}
		owner[name] = list
		return nil
	}

	for _, a := range d.Added {
		if err := claim("added", a.QualifiedName); err != nil {
			return err
		}
	}
	for _, m := range d.Modified {
		if err := claim("modified", m.QualifiedName); err != nil {
			return err
		}
	}
	for _, dep := range d.Deprecated {
		if err := claim("deprecated", dep.QualifiedName); err != nil {
			return err
		}
	}
	for _, r := range d.Removed {
		if err := claim("removed", r.QualifiedName); err != nil {
			return err
		}
	}
	return nil
}

// validateStruct runs tag validation and reports the first failing field.
func validateStruct(root string, v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := root
		// Namespace is "<Type>.<Field>..."; swap the type name for the document name.
		if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
			field = root + "." + rest
		}
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return &ValidationError{Field: root, Message: err.Error()}
}

// NormalizeVersion normalizes a version string by removing the "v" prefix.
// This allows accepting both "v0.6.0" and "0.6.0" as input.
func NormalizeVersion(version string) string {
	return strings.TrimPrefix(strings.ToLower(version), "v")
}
