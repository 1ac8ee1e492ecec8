// Package health runs the setup checks behind 'symlog doctor': whether the
// storage backend answers, and whether each package's repository, tags,
// extractor and publication are usable.
package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ariel-frischer/symlog/internal/config"
	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/google/shlex"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// PackageReport groups the checks of one configured package.
type PackageReport struct {
	ID     string        `json:"id"`
	Checks []CheckResult `json:"checks"`
	Passed bool          `json:"passed"`
}

// HealthReport contains all health check results
type HealthReport struct {
	Checks   []CheckResult   `json:"checks"`
	Packages []PackageReport `json:"packages"`
	Passed   bool            `json:"passed"`
}

// LookPathFunc resolves an executable name; exec.LookPath in production.
type LookPathFunc func(file string) (string, error)

// Checker runs health checks against one configuration.
type Checker struct {
	Config   *config.Configuration
	LookPath LookPathFunc
}

// RunHealthChecks checks cfg with the real PATH.
func RunHealthChecks(ctx context.Context, cfg *config.Configuration) *HealthReport {
	return (&Checker{Config: cfg, LookPath: exec.LookPath}).Run(ctx)
}

// Run executes every check. Package checks that depend on storage are
// skipped when the backend cannot be opened.
func (c *Checker) Run(ctx context.Context) *HealthReport {
	report := &HealthReport{Passed: true}
	add := func(r CheckResult) {
		report.Checks = append(report.Checks, r)
		if !r.Passed {
			report.Passed = false
		}
	}

	st, storageCheck := c.openStorage(ctx)
	add(storageCheck)
	if st != nil {
		defer st.Close()
	}
	add(CheckCache(c.Config.Cache.Path))

	if len(c.Config.Packages) == 0 {
		add(CheckResult{Name: "Packages", Passed: false, Message: "no packages configured"})
		return report
	}
	for _, pkg := range c.Config.Packages {
		pr := c.checkPackage(ctx, pkg, st)
		if !pr.Passed {
			report.Passed = false
		}
		report.Packages = append(report.Packages, pr)
	}
	return report
}

func (c *Checker) openStorage(ctx context.Context) (store.Store, CheckResult) {
	name := "Storage (" + backendOrDefault(c.Config.Storage.Backend) + ")"
	st, err := store.Open(ctx, c.Config.StoreConfig())
	if err != nil {
		return nil, CheckResult{Name: name, Passed: false, Message: err.Error()}
	}
	return st, CheckResult{Name: name, Passed: true, Message: "backend reachable"}
}

func backendOrDefault(b string) string {
	if b == "" {
		return "file"
	}
	return b
}

func (c *Checker) checkPackage(ctx context.Context, pkg config.PackageConfig, st store.Store) PackageReport {
	pr := PackageReport{ID: pkg.ID, Passed: true}
	add := func(r CheckResult) {
		pr.Checks = append(pr.Checks, r)
		if !r.Passed {
			pr.Passed = false
		}
	}

	src := git.NewTagSource(pkg.Repo)
	if _, err := src.Repository(ctx); err != nil {
		add(CheckResult{Name: "Repository", Passed: false, Message: err.Error()})
	} else {
		add(CheckResult{Name: "Repository", Passed: true, Message: repoLabel(pkg.Repo)})
		add(checkVersions(ctx, src, pkg))
	}

	add(CheckExtractor(c.Config.ExtractorCommand(pkg), c.Config.Extractor.Dir, c.LookPath))

	if st != nil {
		add(checkPublished(ctx, st, pkg.ID, c.Config.RetryOptions()))
	}
	return pr
}

func repoLabel(repo string) string {
	if repo == "" {
		return "current directory"
	}
	return repo
}

func checkVersions(ctx context.Context, lister discovery.TagLister, pkg config.PackageConfig) CheckResult {
	versions, err := discovery.Discover(ctx, lister, pkg.TagPattern, pkg.DiscoveryOptions())
	if err != nil {
		return CheckResult{Name: "Versions", Passed: false, Message: err.Error()}
	}
	return CheckResult{
		Name:    "Versions",
		Passed:  true,
		Message: fmt.Sprintf("%d matching %q, latest %s", len(versions), pkg.TagPattern, versions[0].Version),
	}
}

func checkPublished(ctx context.Context, st store.Store, id string, opts store.RetryOptions) CheckResult {
	opts.MaxTries = 1
	pub, err := store.FetchExistingChangelog(ctx, st, id, opts)
	switch {
	case err != nil:
		return CheckResult{Name: "Published", Passed: false, Message: err.Error()}
	case pub == nil:
		return CheckResult{Name: "Published", Passed: true, Message: "nothing published yet"}
	}
	msg := fmt.Sprintf("%d version(s)", len(pub.Changelog.History))
	if newest := pub.Changelog.Newest(); newest != nil {
		msg += ", latest " + newest.Version
	}
	return CheckResult{Name: "Published", Passed: true, Message: msg}
}

// CheckExtractor verifies that the program of a command template is on the
// PATH, or else that the IR directory exists.
func CheckExtractor(command, dir string, lookPath LookPathFunc) CheckResult {
	const name = "Extractor"
	switch {
	case command != "":
		parts, err := shlex.Split(command)
		if err != nil || len(parts) == 0 {
			return CheckResult{Name: name, Passed: false, Message: fmt.Sprintf("invalid command template %q", command)}
		}
		path, err := lookPath(parts[0])
		if err != nil {
			return CheckResult{Name: name, Passed: false, Message: parts[0] + " not found in PATH"}
		}
		return CheckResult{Name: name, Passed: true, Message: "command " + path}
	case dir != "":
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return CheckResult{Name: name, Passed: false, Message: "IR directory " + dir + " does not exist"}
		}
		return CheckResult{Name: name, Passed: true, Message: "directory " + dir}
	default:
		return CheckResult{Name: name, Passed: false, Message: "no extractor command or directory configured"}
	}
}

// CheckCache verifies that the IR cache can be created. An empty path means
// caching is disabled, which passes.
func CheckCache(path string) CheckResult {
	const name = "IR cache"
	if path == "" {
		return CheckResult{Name: name, Passed: true, Message: "disabled"}
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return CheckResult{Name: name, Passed: false, Message: path + " is a directory"}
		}
		return CheckResult{Name: name, Passed: true, Message: path}
	}

	// Walk up to the nearest existing parent; it must be a directory.
	dir := filepath.Dir(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return CheckResult{Name: name, Passed: false, Message: dir + " is not a directory"}
			}
			return CheckResult{Name: name, Passed: true, Message: path + " (created on first build)"}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return CheckResult{Name: name, Passed: false, Message: "no existing parent for " + path}
		}
		dir = parent
	}
}

// FormatReport formats the health report for console output
func FormatReport(report *HealthReport) string {
	var sb strings.Builder
	for _, check := range report.Checks {
		sb.WriteString(formatCheck("", check))
	}
	for _, pkg := range report.Packages {
		fmt.Fprintf(&sb, "\n%s:\n", pkg.ID)
		for _, check := range pkg.Checks {
			sb.WriteString(formatCheck("  ", check))
		}
	}
	return sb.String()
}

func formatCheck(indent string, check CheckResult) string {
	mark := "✓"
	if !check.Passed {
		mark = "✗"
	}
	return fmt.Sprintf("%s%s %s: %s\n", indent, mark, check.Name, check.Message)
}
