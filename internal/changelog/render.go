package changelog

import (
	"fmt"
	"io"
	"strings"

	"github.com/ariel-frischer/symlog/internal/snapshot"
	"github.com/pmezard/go-difflib/difflib"
)

// RenderOptions controls markdown rendering.
type RenderOptions struct {
	// RepoURL, when set, adds compare links in the footer.
	RepoURL string
	// TagPrefix is prepended to versions in compare links (e.g. "v").
	TagPrefix string
	// Diffs includes a unified before/after diff for every modified symbol.
	Diffs bool
}

// RenderMarkdown generates a Keep a Changelog formatted markdown document
// from the given changelog. Given the same input it produces identical output.
func RenderMarkdown(c *PackageChangelog, w io.Writer, opts RenderOptions) error {
	if err := renderHeader(c, w); err != nil {
		return fmt.Errorf("rendering header: %w", err)
	}

	for i := range c.History {
		if err := renderVersion(&c.History[i], w, opts, i == 0); err != nil {
			return fmt.Errorf("rendering version %s: %w", c.History[i].Version, err)
		}
	}

	if err := renderFooterLinks(c, w, opts); err != nil {
		return fmt.Errorf("rendering footer links: %w", err)
	}

	return nil
}

// RenderMarkdownString is a convenience function that renders to a string.
func RenderMarkdownString(c *PackageChangelog, opts RenderOptions) (string, error) {
	var b strings.Builder
	if err := RenderMarkdown(c, &b, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// renderHeader writes the standard Keep a Changelog header.
func renderHeader(c *PackageChangelog, w io.Writer) error {
	name := c.PackageName
	if name == "" {
		name = c.PackageID
	}
	header := `# API Changelog

All notable changes to the public API of ` + name + ` are recorded here,
one section per released version.

The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/).

`
	_, err := io.WriteString(w, header)
	return err
}

// renderVersion writes a single version section with all its changes.
func renderVersion(d *VersionDelta, w io.Writer, opts RenderOptions, isFirst bool) error {
	if !isFirst {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, formatVersionHeader(d)+"\n"); err != nil {
		return err
	}

	if d.IsEmpty() {
		_, err := io.WriteString(w, "\nNo public API changes.\n")
		return err
	}

	if len(d.Added) > 0 {
		lines := make([]string, len(d.Added))
		for i, a := range d.Added {
			lines[i] = "`" + a.QualifiedName + "`"
		}
		if err := renderCategory("Added", lines, w); err != nil {
			return err
		}
	}

	if len(d.Modified) > 0 {
		if err := renderModified(d.Modified, w, opts); err != nil {
			return err
		}
	}

	if len(d.Deprecated) > 0 {
		lines := make([]string, len(d.Deprecated))
		for i, dep := range d.Deprecated {
			lines[i] = formatDeprecation(dep)
		}
		if err := renderCategory("Deprecated", lines, w); err != nil {
			return err
		}
	}

	if len(d.Removed) > 0 {
		lines := make([]string, len(d.Removed))
		for i, r := range d.Removed {
			lines[i] = "**BREAKING** `" + r.QualifiedName + "`"
		}
		if err := renderCategory("Removed", lines, w); err != nil {
			return err
		}
	}

	return nil
}

// formatVersionHeader formats the version header line.
func formatVersionHeader(d *VersionDelta) string {
	date := d.ReleaseDate
	if len(date) >= 10 {
		date = date[:10]
	}
	if date == "" {
		return fmt.Sprintf("## [%s]", d.Version)
	}
	return fmt.Sprintf("## [%s] - %s", d.Version, date)
}

func formatDeprecation(dep DeprecatedEntry) string {
	line := "`" + dep.QualifiedName + "`"
	if dep.Message != "" {
		line += ": " + dep.Message
	}
	if dep.Replacement != "" {
		line += " (use `" + dep.Replacement + "`)"
	}
	return line
}

// renderCategory writes a single category section with its entries.
func renderCategory(name string, entries []string, w io.Writer) error {
	if _, err := io.WriteString(w, "\n### "+name+"\n"); err != nil {
		return err
	}

	for _, entry := range entries {
		if _, err := io.WriteString(w, "- "+entry+"\n"); err != nil {
			return err
		}
	}

	return nil
}

// renderModified writes the Modified section with nested change records.
func renderModified(entries []ModifiedEntry, w io.Writer, opts RenderOptions) error {
	if _, err := io.WriteString(w, "\n### Modified\n"); err != nil {
		return err
	}

	for _, m := range entries {
		prefix := ""
		if m.IsBreaking() {
			prefix = "**BREAKING** "
		}
		if _, err := fmt.Fprintf(w, "- %s`%s`\n", prefix, m.QualifiedName); err != nil {
			return err
		}
		for _, c := range m.Changes {
			marker := ""
			if c.Breaking {
				marker = " (breaking)"
			}
			if _, err := fmt.Fprintf(w, "  - %s: %s%s\n", c.Type, c.Description, marker); err != nil {
				return err
			}
		}
		if opts.Diffs {
			if diff := SnapshotDiff(m.SnapshotBefore, m.SnapshotAfter); diff != "" {
				if _, err := fmt.Fprintf(w, "\n  ```diff\n%s\n  ```\n", indent(diff, "  ")); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// SnapshotDiff renders a unified diff between two snapshots. Identical
// snapshots yield an empty string.
func SnapshotDiff(before, after snapshot.Snapshot) string {
	previous, current := before.String(), after.String()
	if previous == current {
		return ""
	}

	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}

	res, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return strings.TrimSpace(current)
	}

	return strings.TrimSpace(res)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// renderFooterLinks writes the version comparison links at the end of the file.
func renderFooterLinks(c *PackageChangelog, w io.Writer, opts RenderOptions) error {
	if len(c.History) == 0 || opts.RepoURL == "" {
		return nil
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	repoURL := strings.TrimSuffix(opts.RepoURL, "/")
	for _, d := range c.History {
		var link string
		if d.PreviousVersion != nil {
			link = fmt.Sprintf("[%s]: %s/compare/%s%s...%s%s", d.Version, repoURL,
				opts.TagPrefix, *d.PreviousVersion, opts.TagPrefix, d.Version)
		} else {
			link = fmt.Sprintf("[%s]: %s/releases/tag/%s%s", d.Version, repoURL, opts.TagPrefix, d.Version)
		}
		if _, err := io.WriteString(w, link+"\n"); err != nil {
			return err
		}
	}
	return nil
}
