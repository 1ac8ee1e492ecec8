package cli

import (
	"fmt"
	"runtime"

	"github.com/ariel-frischer/symlog/internal/build"
	"github.com/spf13/cobra"
)

var versionPlain bool

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Display version information (v)",
	Long:    "Display version, commit, build date and Go version information for symlog",
	Example: `  # Show version info
  symlog version

  # Single line for scripts
  symlog version --plain`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionPlain {
			_, err := fmt.Fprintln(out, build.String())
			return err
		}
		fmt.Fprintf(out, "symlog %s\n", build.Version)
		fmt.Fprintf(out, "commit: %s\n", build.Commit)
		fmt.Fprintf(out, "built: %s\n", build.BuildDate)
		fmt.Fprintf(out, "go: %s\n", runtime.Version())
		fmt.Fprintf(out, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	versionCmd.GroupID = groupInspect
	versionCmd.Flags().BoolVar(&versionPlain, "plain", false, "Print a single line")
	rootCmd.AddCommand(versionCmd)
}
