package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a structural contract violation in an IR document.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid IR: %s: %s", e.Field, e.Message)
	}
	return "invalid IR: " + e.Message
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Warning describes a malformed symbol that was skipped during decoding.
type Warning struct {
	Index         int    `json:"index"`
	QualifiedName string `json:"qualifiedName,omitempty"`
	Message       string `json:"message"`
}

func (w Warning) String() string {
	if w.QualifiedName != "" {
		return fmt.Sprintf("symbol %q skipped: %s", w.QualifiedName, w.Message)
	}
	return fmt.Sprintf("symbols[%d] skipped: %s", w.Index, w.Message)
}

// rawIR mirrors MinimalIR with symbols left undecoded so that one malformed
// symbol does not fail the whole document. The package block is the shape
// emitted by the language extractors; its version and sha are used when the
// top-level fields are absent.
type rawIR struct {
	Version     string             `json:"version"`
	SHA         string             `json:"sha"`
	ReleaseDate string             `json:"releaseDate"`
	Package     *rawPackage        `json:"package"`
	Symbols     *[]json.RawMessage `json:"symbols"`
}

type rawPackage struct {
	Version string `json:"version"`
	Repo    struct {
		SHA string `json:"sha"`
	} `json:"repo"`
}

var symbolValidator = validator.New()

// Load reads and decodes an IR document from a file.
func Load(path string) (*MinimalIR, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening IR file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses an IR document. Malformed symbols are skipped and returned
// as warnings; a missing symbols array or duplicate qualified names are
// returned as a ValidationError.
func Decode(r io.Reader) (*MinimalIR, []Warning, error) {
	var raw rawIR
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("parsing IR JSON: %w", err)
	}

	if raw.Symbols == nil {
		return nil, nil, &ValidationError{Field: "symbols", Message: "required field is missing"}
	}

	out := &MinimalIR{
		Version:     raw.Version,
		SHA:         raw.SHA,
		ReleaseDate: raw.ReleaseDate,
		Symbols:     make([]SymbolRecord, 0, len(*raw.Symbols)),
	}
	if raw.Package != nil {
		if out.Version == "" {
			out.Version = raw.Package.Version
		}
		if out.SHA == "" {
			out.SHA = raw.Package.Repo.SHA
		}
	}

	var warnings []Warning
	seen := make(map[string]int, len(*raw.Symbols))

	for i, msg := range *raw.Symbols {
		sym, err := decodeSymbol(msg)
		if err != nil {
			warnings = append(warnings, Warning{Index: i, QualifiedName: sym.QualifiedName, Message: err.Error()})
			continue
		}
		if first, dup := seen[sym.QualifiedName]; dup {
			return nil, warnings, &ValidationError{
				Field:   fmt.Sprintf("symbols[%d].qualifiedName", i),
				Message: fmt.Sprintf("duplicate qualifiedName %q (first at symbols[%d])", sym.QualifiedName, first),
			}
		}
		seen[sym.QualifiedName] = i
		out.Symbols = append(out.Symbols, sym)
	}

	out.Skipped = warnings
	return out, warnings, nil
}

// decodeSymbol unmarshals and validates one symbol. On failure the returned
// record still carries whatever qualified name could be read.
func decodeSymbol(msg json.RawMessage) (SymbolRecord, error) {
	var sym SymbolRecord
	if err := json.Unmarshal(msg, &sym); err != nil {
		var named struct {
			QualifiedName string `json:"qualifiedName"`
		}
		_ = json.Unmarshal(msg, &named)
		return SymbolRecord{QualifiedName: named.QualifiedName}, fmt.Errorf("malformed symbol: %w", err)
	}

	sym.QualifiedName = strings.TrimSpace(sym.QualifiedName)
	if err := symbolValidator.Struct(sym); err != nil {
		return sym, describeValidation(err)
	}
	return sym, nil
}

// describeValidation turns validator errors into a short message.
func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// Validate checks the top-level contract of an already-decoded IR: a version
// is required and qualified names must be unique.
func Validate(m *MinimalIR) error {
	if m == nil {
		return &ValidationError{Message: "IR is nil"}
	}
	if strings.TrimSpace(m.Version) == "" {
		return &ValidationError{Field: "version", Message: "required field is empty"}
	}
	seen := make(map[string]bool, len(m.Symbols))
	for i, s := range m.Symbols {
		if s.QualifiedName == "" {
			continue
		}
		if seen[s.QualifiedName] {
			return &ValidationError{
				Field:   fmt.Sprintf("symbols[%d].qualifiedName", i),
				Message: fmt.Sprintf("duplicate qualifiedName %q", s.QualifiedName),
			}
		}
		seen[s.QualifiedName] = true
	}
	return nil
}

// Encode writes the IR as JSON.
func Encode(w io.Writer, m *MinimalIR) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
