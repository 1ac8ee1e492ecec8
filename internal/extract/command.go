package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/google/shlex"
)

const (
	shaPlaceholder  = "{{SHA}}"
	repoPlaceholder = "{{REPO}}"

	// waitDelay bounds how long output pipes are drained after the
	// extractor is killed.
	waitDelay = 2 * time.Second
)

// CommandExtractor runs an external extractor for each commit and decodes
// its stdout as an IR document.
type CommandExtractor struct {
	template string
	repo     string
	workDir  string
	timeout  time.Duration
	logger   *log.Logger
}

// CommandOption configures a CommandExtractor.
type CommandOption func(*CommandExtractor)

// WithRepo sets the value substituted for {{REPO}}.
func WithRepo(repo string) CommandOption {
	return func(c *CommandExtractor) { c.repo = repo }
}

// WithWorkDir runs the command in dir.
func WithWorkDir(dir string) CommandOption {
	return func(c *CommandExtractor) { c.workDir = dir }
}

// WithTimeout bounds a single extraction. Zero means no timeout.
func WithTimeout(d time.Duration) CommandOption {
	return func(c *CommandExtractor) { c.timeout = d }
}

// WithCommandLogger sets the logger for decode warnings.
func WithCommandLogger(l *log.Logger) CommandOption {
	return func(c *CommandExtractor) { c.logger = l }
}

// NewCommandExtractor validates the template and returns an extractor.
// The template must reference {{SHA}}.
func NewCommandExtractor(template string, opts ...CommandOption) (*CommandExtractor, error) {
	if !strings.Contains(template, shaPlaceholder) {
		return nil, fmt.Errorf("extractor command %q must contain %s", template, shaPlaceholder)
	}
	parts, err := shlex.Split(strings.ReplaceAll(template, shaPlaceholder, "0"))
	if err != nil {
		return nil, fmt.Errorf("extractor command: invalid template: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("extractor command: template produces no command")
	}

	c := &CommandExtractor{template: template}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildCommand expands the template for sha.
func (c *CommandExtractor) BuildCommand(ctx context.Context, sha string) (*exec.Cmd, error) {
	args, err := c.expandTemplate(sha)
	if err != nil {
		return nil, fmt.Errorf("expanding template: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("template expansion produced no command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if c.workDir != "" {
		cmd.Dir = c.workDir
	}
	cmd.Env = append(os.Environ(), "SYMLOG_SHA="+sha)
	cmd.WaitDelay = waitDelay
	return cmd, nil
}

// expandTemplate substitutes placeholders, quoting each value so it stays
// a single argument.
func (c *CommandExtractor) expandTemplate(sha string) ([]string, error) {
	expanded := strings.ReplaceAll(c.template, shaPlaceholder, quoteForShlex(sha))
	expanded = strings.ReplaceAll(expanded, repoPlaceholder, quoteForShlex(c.repo))
	return shlex.Split(expanded)
}

// quoteForShlex wraps s in single quotes, escaping embedded single quotes.
func quoteForShlex(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ExtractIR runs the command for sha and decodes its output.
func (c *CommandExtractor) ExtractIR(ctx context.Context, sha string) (*ir.MinimalIR, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd, err := c.BuildCommand(ctx, sha)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("running extractor: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("extractor exited with code %d: %s", exitErr.ExitCode(), lastLine(stderr.String()))
		}
		return nil, fmt.Errorf("running extractor: %w", err)
	}

	m, warnings, err := ir.Decode(&stdout)
	if err != nil {
		return nil, err
	}
	logWarnings(logger.OrDiscard(c.logger), sha, warnings)
	return m, nil
}

func logWarnings(lg *log.Logger, sha string, warnings []ir.Warning) {
	for _, w := range warnings {
		lg.Warn("malformed symbol in extractor output", "sha", shortSHA(sha), "detail", w.String())
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
