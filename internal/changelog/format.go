package changelog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

// CategoryStyle defines the color and icon for a changelog category.
type CategoryStyle struct {
	Color *color.Color
	Icon  string
}

// categoryStyles maps category names to their terminal styling.
var categoryStyles = map[string]CategoryStyle{
	"added":      {Color: color.New(color.FgGreen), Icon: "+"},
	"modified":   {Color: color.New(color.FgBlue), Icon: "~"},
	"deprecated": {Color: color.New(color.FgYellow), Icon: "⚠"},
	"removed":    {Color: color.New(color.FgRed), Icon: "✗"},
}

var breakingColor = color.New(color.FgRed, color.Bold)

// FormatOptions controls the terminal output formatting.
type FormatOptions struct {
	Plain    bool // Disable colors and icons
	MaxWidth int  // Maximum line width (0 = auto-detect)
	// SignatureDiffs shows an inline diff of the signature for modified symbols.
	SignatureDiffs bool
}

// FormatTerminal writes the deltas to the writer with terminal styling,
// grouped by version with color-coded category headers.
func FormatTerminal(history []VersionDelta, w io.Writer, opts FormatOptions) error {
	width := resolveWidth(opts.MaxWidth)

	for i := range history {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := FormatDelta(&history[i], w, opts, width); err != nil {
			return fmt.Errorf("formatting version %s: %w", history[i].Version, err)
		}
	}

	return nil
}

// FormatDelta writes a single delta to the writer.
func FormatDelta(d *VersionDelta, w io.Writer, opts FormatOptions, width int) error {
	if width <= 0 {
		width = resolveWidth(opts.MaxWidth)
	}

	if err := writeVersionHeader(d, w, opts); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if d.IsEmpty() {
		_, err := fmt.Fprintln(w, "  (no public API changes)")
		return err
	}

	byCategory := make(map[string][]Entry)
	for _, e := range d.Entries() {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	for _, cat := range Categories() {
		entries, ok := byCategory[cat]
		if !ok {
			continue
		}
		if err := writeCategorySection(cat, entries, w, opts, width); err != nil {
			return err
		}
		if cat == "modified" && opts.SignatureDiffs {
			if err := writeSignatureDiffs(d.Modified, w, opts); err != nil {
				return err
			}
		}
	}

	for _, warn := range d.Warnings {
		if _, err := fmt.Fprintf(w, "  warning: %s\n", warn); err != nil {
			return err
		}
	}

	return nil
}

// FormatEntries writes flattened entries, such as a symbol history.
func FormatEntries(entries []Entry, w io.Writer, opts FormatOptions) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.Version, FormatEntrySummary(e, opts)); err != nil {
			return err
		}
	}
	return nil
}

// writeVersionHeader writes the version header line.
func writeVersionHeader(d *VersionDelta, w io.Writer, opts FormatOptions) error {
	header := d.Version
	if d.PreviousVersion != nil {
		header = fmt.Sprintf("%s (from %s)", d.Version, *d.PreviousVersion)
	}
	if len(d.ReleaseDate) >= 10 {
		header += " " + d.ReleaseDate[:10]
	}

	if opts.Plain {
		_, err := fmt.Fprintf(w, "## %s\n", header)
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	_, err := fmt.Fprintf(w, "## %s\n", bold(header))
	return err
}

// writeCategorySection writes a single category with its entries.
func writeCategorySection(category string, entries []Entry, w io.Writer, opts FormatOptions, width int) error {
	style := categoryStyles[category]

	if err := writeCategoryHeader(category, style, w, opts); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := writeEntry(entry, style, w, opts, width); err != nil {
			return err
		}
	}

	return nil
}

// writeCategoryHeader writes the category header line.
func writeCategoryHeader(category string, style CategoryStyle, w io.Writer, opts FormatOptions) error {
	displayName := capitalizeFirst(category)

	if opts.Plain {
		_, err := fmt.Fprintf(w, "\n### %s\n", displayName)
		return err
	}

	colored := style.Color.SprintFunc()
	_, err := fmt.Fprintf(w, "\n%s %s\n", colored(style.Icon), colored(displayName))
	return err
}

// writeEntry writes a single entry and its change records with optional wrapping.
func writeEntry(entry Entry, style CategoryStyle, w io.Writer, opts FormatOptions, width int) error {
	prefix := "  - "
	text := entry.QualifiedName
	if entry.Message != "" {
		text += ": " + entry.Message
	}

	if opts.Plain {
		if entry.Breaking {
			text = "[BREAKING] " + text
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, text); err != nil {
			return err
		}
	} else {
		wrapped := wrapText(text, width-len(prefix), "    ")
		line := style.Color.Sprint(wrapped)
		if entry.Breaking {
			line = breakingColor.Sprint("BREAKING ") + line
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, line); err != nil {
			return err
		}
	}

	for _, c := range entry.Changes {
		desc := fmt.Sprintf("%s: %s", c.Type, c.Description)
		if c.Breaking && !opts.Plain {
			desc = breakingColor.Sprint(desc)
		} else if c.Breaking {
			desc += " (breaking)"
		}
		if _, err := fmt.Fprintf(w, "      %s\n", desc); err != nil {
			return err
		}
	}

	return nil
}

// writeSignatureDiffs writes an inline character diff of every modified
// symbol whose signature text changed.
func writeSignatureDiffs(modified []ModifiedEntry, w io.Writer, opts FormatOptions) error {
	for _, m := range modified {
		before, after := m.SnapshotBefore.Signature, m.SnapshotAfter.Signature
		if before == after {
			continue
		}
		if _, err := fmt.Fprintf(w, "    %s: %s\n", m.QualifiedName, InlineDiff(before, after, opts.Plain)); err != nil {
			return err
		}
	}
	return nil
}

// InlineDiff renders a character-level diff of two strings. Plain output
// marks deletions with [-...-] and insertions with {+...+}.
func InlineDiff(before, after string, plain bool) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			if plain {
				b.WriteString("[-" + d.Text + "-]")
			} else {
				b.WriteString(color.New(color.FgRed, color.CrossedOut).Sprint(d.Text))
			}
		case diffmatchpatch.DiffInsert:
			if plain {
				b.WriteString("{+" + d.Text + "+}")
			} else {
				b.WriteString(color.New(color.FgGreen, color.Underline).Sprint(d.Text))
			}
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// resolveWidth determines the terminal width to use.
func resolveWidth(maxWidth int) int {
	if maxWidth > 0 {
		return maxWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// wrapText wraps text to fit within maxWidth, using indent for continuation lines.
func wrapText(text string, maxWidth int, indent string) string {
	if maxWidth <= 0 || len(text) <= maxWidth {
		return text
	}

	var lines []string
	remaining := text

	for len(remaining) > maxWidth {
		breakPoint := maxWidth
		for i := maxWidth - 1; i > 0; i-- {
			if remaining[i] == ' ' {
				breakPoint = i
				break
			}
		}

		lines = append(lines, remaining[:breakPoint])
		remaining = strings.TrimLeft(remaining[breakPoint:], " ")
	}

	if len(remaining) > 0 {
		lines = append(lines, remaining)
	}

	return strings.Join(lines, "\n"+indent)
}

// FormatEntrySummary returns a brief one-line summary of an entry.
func FormatEntrySummary(entry Entry, opts FormatOptions) string {
	style := categoryStyles[entry.Category]
	text := truncateText(entry.QualifiedName, 60)
	if entry.Breaking {
		text += " (breaking)"
	}

	if opts.Plain || style.Color == nil {
		return fmt.Sprintf("[%s] %s", entry.Category, text)
	}

	colored := style.Color.SprintFunc()
	return fmt.Sprintf("%s %s", colored(style.Icon), text)
}

// truncateText truncates text to maxLen, adding ellipsis if needed.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-3] + "..."
}

// capitalizeFirst capitalizes the first letter of a string.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
