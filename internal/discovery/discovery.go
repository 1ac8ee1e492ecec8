// Package discovery turns a repository's tag listing into the ordered list of
// released versions to process, newest first.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/gobwas/glob"
)

// ErrNoVersions is returned when no tag matches the pattern.
var ErrNoVersions = errors.New("no versions found matching tag pattern")

// TagRef is one tag as reported by the repository collaborator.
type TagRef struct {
	Tag  string
	SHA  string
	Date string // RFC3339
}

// TagLister lists the tags of a repository.
type TagLister interface {
	ListTags(ctx context.Context) ([]TagRef, error)
}

// TagListerFunc adapts a function to TagLister.
type TagListerFunc func(ctx context.Context) ([]TagRef, error)

// ListTags calls f.
func (f TagListerFunc) ListTags(ctx context.Context) ([]TagRef, error) { return f(ctx) }

// Version is one discovered release resolved to a commit.
type Version struct {
	Version     string `json:"version"`
	SHA         string `json:"sha"`
	Tag         string `json:"tag"`
	ReleaseDate string `json:"releaseDate"`
}

// Options bound the discovered list.
type Options struct {
	// MaxVersions keeps only the newest N versions (0 keeps all).
	MaxVersions int
	// MinVersion drops versions below this floor.
	MinVersion string
	// AlwaysInclude lists tags or versions kept regardless of floor and cap.
	AlwaysInclude []string
	Logger        *log.Logger
}

// Error wraps a failure of the repository collaborator.
type Error struct {
	Pattern string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovering versions for %q: %v", e.Pattern, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Pattern matches tags and extracts the version text covered by the first '*'.
type Pattern struct {
	raw    string
	glob   glob.Glob
	prefix string
	suffix string
}

// CompilePattern validates a tag pattern. The text before the first '*'
// must be literal so the version can be cut out of a matching tag.
func CompilePattern(pattern string) (*Pattern, error) {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return nil, fmt.Errorf("tag pattern %q has no '*' covering the version", pattern)
	}
	prefix := pattern[:star]
	if strings.ContainsAny(prefix, "?[]{}\\") {
		return nil, fmt.Errorf("tag pattern %q: text before '*' must be literal", pattern)
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling tag pattern %q: %w", pattern, err)
	}

	p := &Pattern{raw: pattern, glob: g, prefix: prefix}
	if rest := pattern[star+1:]; !strings.ContainsAny(rest, "*?[]{}\\") {
		p.suffix = rest
	}
	return p, nil
}

// Extract returns the version text of a matching tag.
func (p *Pattern) Extract(tag string) (string, bool) {
	if !p.glob.Match(tag) {
		return "", false
	}
	v := strings.TrimPrefix(tag, p.prefix)
	v = strings.TrimSuffix(v, p.suffix)
	return v, v != ""
}

type candidate struct {
	Version
	sv *semver.Version
}

// Discover lists tags, keeps those matching pattern and returns versions
// newest first after deduplication, floor and cap.
func Discover(ctx context.Context, lister TagLister, pattern string, opts Options) ([]Version, error) {
	lg := logger.OrDiscard(opts.Logger)

	pat, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var floor *semver.Version
	if opts.MinVersion != "" {
		floor, err = semver.NewVersion(opts.MinVersion)
		if err != nil {
			return nil, fmt.Errorf("parsing minimum version %q: %w", opts.MinVersion, err)
		}
	}

	tags, err := lister.ListTags(ctx)
	if err != nil {
		return nil, &Error{Pattern: pattern, Err: err}
	}

	candidates := match(tags, pat, lg)
	if len(candidates) == 0 {
		return nil, ErrNoVersions
	}

	pinned := make(map[string]bool, len(opts.AlwaysInclude))
	for _, s := range opts.AlwaysInclude {
		pinned[s] = true
		pinned[normalize(s)] = true
	}
	isPinned := func(c candidate) bool {
		return pinned[c.Tag] || pinned[c.Version.Version] || pinned[c.sv.String()]
	}

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if floor != nil && c.sv.LessThan(floor) && !isPinned(c) {
			lg.Debug("below minimum version", "tag", c.Tag, "min", opts.MinVersion)
			continue
		}
		kept = append(kept, c)
	}

	if opts.MaxVersions > 0 && len(kept) > opts.MaxVersions {
		capped := kept[:opts.MaxVersions:opts.MaxVersions]
		for _, c := range kept[opts.MaxVersions:] {
			if isPinned(c) {
				capped = append(capped, c)
			}
		}
		kept = capped
		sortNewestFirst(kept)
	}

	if len(kept) == 0 {
		return nil, ErrNoVersions
	}

	out := make([]Version, len(kept))
	for i, c := range kept {
		out[i] = c.Version
	}
	return out, nil
}

// match filters tags by pattern, parses versions, drops duplicates (first
// observed wins) and sorts newest first by semantic version precedence.
func match(tags []TagRef, pat *Pattern, lg *log.Logger) []candidate {
	lg = logger.OrDiscard(lg)
	seen := make(map[string]bool, len(tags))
	out := make([]candidate, 0, len(tags))

	for _, t := range tags {
		text, ok := pat.Extract(t.Tag)
		if !ok {
			continue
		}
		sv, err := semver.NewVersion(text)
		if err != nil {
			lg.Debug("skipping tag without semantic version", "tag", t.Tag, "err", err)
			continue
		}
		key := sv.String()
		if seen[key] {
			lg.Debug("skipping duplicate version", "tag", t.Tag, "version", key)
			continue
		}
		seen[key] = true

		out = append(out, candidate{
			Version: Version{Version: normalize(text), SHA: t.SHA, Tag: t.Tag, ReleaseDate: t.Date},
			sv:      sv,
		})
	}

	sortNewestFirst(out)
	return out
}

func sortNewestFirst(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].sv.GreaterThan(cs[j].sv)
	})
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
}

// Versions returns just the version strings, preserving order.
func Versions(vs []Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Version
	}
	return out
}

// String returns the pattern as written.
func (p *Pattern) String() string { return p.raw }
