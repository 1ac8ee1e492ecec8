package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// Note: tests that execute commands cannot run in parallel because they
// share the global rootCmd, its flag variables and the working directory.

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default
// so values do not leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// isolate runs the test in an empty directory with no user config and no
// SYMLOG_* overrides from the caller's environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "SYMLOG_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}

// fixtureProject is a git repository with tagged releases, the IR of each
// release in a directory and a project config wiring them together.
type fixtureProject struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
	day  int
}

func newFixtureProject(t *testing.T) *fixtureProject {
	t.Helper()
	dir := isolate(t)

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	p := &fixtureProject{t: t, dir: dir, repo: repo, wt: wt}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ir"), 0o755))
	p.writeConfig("")
	return p
}

func (p *fixtureProject) path(parts ...string) string {
	return filepath.Join(append([]string{p.dir}, parts...)...)
}

// writeConfig writes .symlog/config.yml; extra is appended verbatim.
func (p *fixtureProject) writeConfig(extra string) {
	p.t.Helper()
	cfg := fmt.Sprintf(`log_level: error
output_dir: %s
storage:
  backend: file
  dir: %s
cache:
  path: %s
extractor:
  dir: %s
packages:
  - id: core
    name: Core SDK
    repo: %s
    tag_pattern: "v*"
%s`, p.path("out"), p.path("published"), p.path(".symlog", "ir-cache.db"), p.path("ir"), p.dir, extra)

	require.NoError(p.t, os.MkdirAll(p.path(".symlog"), 0o755))
	require.NoError(p.t, os.WriteFile(p.path(".symlog", "config.yml"), []byte(cfg), 0o644))
}

// release commits, tags v<version> and stores the IR for the commit.
func (p *fixtureProject) release(version string, symbols ...ir.SymbolRecord) string {
	p.t.Helper()
	p.day++
	when := time.Date(2026, 1, p.day, 12, 0, 0, 0, time.UTC)

	require.NoError(p.t, os.WriteFile(p.path("VERSION"), []byte(version), 0o644))
	_, err := p.wt.Add("VERSION")
	require.NoError(p.t, err)
	sig := &object.Signature{Name: "Release", Email: "release@example.com", When: when}
	h, err := p.wt.Commit("release "+version, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(p.t, err)
	_, err = p.repo.CreateTag("v"+version, h, nil)
	require.NoError(p.t, err)

	sha := h.String()
	writeIR(p.t, p.path("ir", sha+".json"), &ir.MinimalIR{Version: version, SHA: sha, Symbols: symbols})
	return sha
}

func writeIR(t *testing.T, path string, m *ir.MinimalIR) {
	t.Helper()
	data, err := json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func function(name, signature string, params ...string) ir.SymbolRecord {
	s := ir.SymbolRecord{Kind: "function", Name: name, QualifiedName: name, Signature: signature}
	for _, p := range params {
		s.Params = append(s.Params, ir.Param{Name: p, Type: "string"})
	}
	return s
}

// standardReleases tags 1.0.0 and 1.1.0: connect gains a parameter and
// disconnect is added.
func (p *fixtureProject) standardReleases() {
	p.release("1.0.0",
		function("connect", "connect(url: string): void", "url"),
		function("ping", "ping(): void"),
	)
	p.release("1.1.0",
		function("connect", "connect(url: string, token: string): void", "url", "token"),
		function("disconnect", "disconnect(): void"),
		function("ping", "ping(): void"),
	)
}
