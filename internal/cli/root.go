// Package cli implements the symlog command line with cobra.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFile    string
	debug      bool
)

const (
	groupBuild   = "build"
	groupInspect = "inspect"
)

var rootCmd = &cobra.Command{
	Use:   "symlog",
	Short: "Symbol-level API changelogs across released versions",
	Long: `symlog tracks how a library's public API evolves across its released
versions. It discovers release tags, extracts the public symbols of each
release through a configured extractor, diffs consecutive releases symbol
by symbol and publishes an ordered changelog plus a version index.

Builds are incremental: only versions tagged since the last publication are
extracted and prepended. Published history is never rewritten unless a full
rebuild is requested.`,
	Example: `  # Build every configured package
  symlog build

  # Rebuild one package from scratch without publishing
  symlog build @acme/sdk --full --dry-run

  # Show the history of a single symbol
  symlog show @acme/sdk --symbol Client.connect`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging("", "")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "project config file (default .symlog/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging including git operations")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupBuild, Title: "Build Commands:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection Commands:"},
	)

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return clierrors.NewArgumentErrorWithUsage(err.Error(), cmd.UseLine(), "Run '"+cmd.CommandPath()+" --help' for usage")
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	cliErr := classifyError(err)
	clierrors.PrintError(cliErr)
	return ExitCodeFor(err)
}

// setupLogging configures the global logger. Flags win over the values
// passed in from configuration.
func setupLogging(cfgLevel, cfgFile string) error {
	level := firstNonEmpty(logLevel, cfgLevel)
	if debug {
		level = "debug"
	}
	if err := logger.Configure(level, firstNonEmpty(logFile, cfgFile)); err != nil {
		return clierrors.NewConfigError("opening log file: "+err.Error(), "Check that the log file directory exists and is writable")
	}

	if debug {
		git.SetDebugLogger(func(format string, args ...any) {
			logger.Logger.Debugf(format, args...)
		})
	} else {
		git.SetDebugLogger(nil)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// exactArgs is cobra.ExactArgs with a usage hint in the error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return clierrors.NewArgumentErrorWithUsage(
				argCountMessage(n, len(args)),
				cmd.UseLine(),
				"Run '"+cmd.CommandPath()+" --help' for examples",
			)
		}
		return nil
	}
}

func argCountMessage(want, got int) string {
	if want == 1 {
		return fmt.Sprintf("expected 1 argument, got %d", got)
	}
	return fmt.Sprintf("expected %d arguments, got %d", want, got)
}
