// Package history keeps a YAML log of package builds: when each ran, what
// it published and how it ended.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryEntry records one package build.
type HistoryEntry struct {
	Timestamp   time.Time `yaml:"timestamp" json:"timestamp"`
	RunID       string    `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	Command     string    `yaml:"command" json:"command"`
	Package     string    `yaml:"package" json:"package"`
	Mode        string    `yaml:"mode,omitempty" json:"mode,omitempty"`
	NewVersions []string  `yaml:"new_versions,omitempty" json:"new_versions,omitempty"`
	Latest      string    `yaml:"latest,omitempty" json:"latest,omitempty"`
	DryRun      bool      `yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
	ExitCode    int       `yaml:"exit_code" json:"exit_code"`
	Duration    string    `yaml:"duration" json:"duration"`
	Error       string    `yaml:"error,omitempty" json:"error,omitempty"`
}

// HistoryFile is the on-disk document, oldest entry first.
type HistoryFile struct {
	Entries []HistoryEntry `yaml:"entries" json:"entries"`
}

// LoadHistory reads the log at path. A missing file is an empty log.
func LoadHistory(path string) (*HistoryFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &HistoryFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	var h HistoryFile
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &h, nil
}

// SaveHistory replaces the log at path, creating its directory. The file is
// written to a temporary sibling and renamed into place.
func SaveHistory(path string, h *HistoryFile) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".history-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ClearHistory removes the log. Clearing a missing log is not an error.
func ClearHistory(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Filter returns the entries for pkg (all when empty), keeping at most the
// limit most recent ones when limit is positive.
func Filter(entries []HistoryEntry, pkg string, limit int) []HistoryEntry {
	var result []HistoryEntry
	for _, e := range entries {
		if pkg == "" || e.Package == pkg {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}
