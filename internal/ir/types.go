package ir

// MinimalIR is the complete public-symbol extraction for exactly one released version.
type MinimalIR struct {
	Version     string         `json:"version"`
	SHA         string         `json:"sha"`
	ReleaseDate string         `json:"releaseDate,omitempty"`
	Symbols     []SymbolRecord `json:"symbols"`

	// Skipped lists symbols Decode dropped as malformed. It is not
	// serialized; the diff engine reports it as delta warnings.
	Skipped []Warning `json:"-"`
}

// SymbolRecord is one public symbol as emitted by an extractor.
// Only QualifiedName and Kind are mandatory; everything else is optional
// and extraction incidentals (Source, ID, URLs) never take part in diffing.
type SymbolRecord struct {
	ID            string   `json:"id,omitempty"`
	Kind          string   `json:"kind" validate:"required"`
	Name          string   `json:"name,omitempty"`
	QualifiedName string   `json:"qualifiedName" validate:"required"`
	Signature     string   `json:"signature,omitempty"`
	Params        []Param  `json:"params,omitempty" validate:"dive"`
	Returns       *Returns `json:"returns,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
	Tags          *Tags    `json:"tags,omitempty"`
	Members       []Member `json:"members,omitempty" validate:"dive"`
	Docs          *Docs    `json:"docs,omitempty"`
	Source        *Source  `json:"source,omitempty"`

	// VersionInfo is attached by the annotator to symbols of the latest IR.
	VersionInfo *SymbolVersionInfo `json:"versionInfo,omitempty"`
}

// Param is a single parameter of a callable symbol.
type Param struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Returns describes the return value of a callable symbol.
type Returns struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Tags carries extractor-inferred flags.
type Tags struct {
	Visibility string `json:"visibility,omitempty"`
	Stability  string `json:"stability,omitempty"`
	IsAsync    bool   `json:"isAsync,omitempty"`
	IsAbstract bool   `json:"isAbstract,omitempty"`
}

// Member summarizes a member of a container symbol (class, interface, module).
type Member struct {
	Name       string `json:"name" validate:"required"`
	Kind       string `json:"kind,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Signature  string `json:"signature,omitempty"`
	RefID      string `json:"refId,omitempty"`
}

// Docs holds documentation extracted alongside the symbol.
type Docs struct {
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Deprecated  *Deprecation `json:"deprecated,omitempty"`
}

// Deprecation marks a symbol as deprecated.
type Deprecation struct {
	IsDeprecated bool   `json:"isDeprecated"`
	Message      string `json:"message,omitempty"`
	Replacement  string `json:"replacement,omitempty"`
}

// Source locates the symbol in the extracted tree.
type Source struct {
	Repo    string `json:"repo,omitempty"`
	SHA     string `json:"sha,omitempty"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	EndLine int    `json:"endLine,omitempty"`
}

// SymbolVersionInfo is derived version metadata for one symbol of the latest IR.
type SymbolVersionInfo struct {
	Since       string          `json:"since"`
	ModifiedIn  []string        `json:"modifiedIn,omitempty"`
	Deprecation *DeprecationRef `json:"deprecation,omitempty"`
}

// DeprecationRef records when a symbol was first deprecated.
type DeprecationRef struct {
	Since       string `json:"since"`
	Message     string `json:"message,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}

// IsDeprecated reports whether the symbol carries an active deprecation marker.
func (s SymbolRecord) IsDeprecated() bool {
	return s.Docs != nil && s.Docs.Deprecated != nil && s.Docs.Deprecated.IsDeprecated
}

// Deprecation returns the message and replacement of an active deprecation.
func (s SymbolRecord) Deprecation() (message, replacement string) {
	if !s.IsDeprecated() {
		return "", ""
	}
	return s.Docs.Deprecated.Message, s.Docs.Deprecated.Replacement
}

// Visibility returns the declared visibility, defaulting to public.
func (s SymbolRecord) Visibility() string {
	if s.Tags != nil && s.Tags.Visibility != "" {
		return s.Tags.Visibility
	}
	return "public"
}

// ReturnType returns the declared return type or an empty string.
func (s SymbolRecord) ReturnType() string {
	if s.Returns == nil {
		return ""
	}
	return s.Returns.Type
}

// Names returns the qualified names of all symbols in extraction order.
func (m *MinimalIR) Names() []string {
	names := make([]string, len(m.Symbols))
	for i, s := range m.Symbols {
		names[i] = s.QualifiedName
	}
	return names
}
