package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ariel-frischer/symlog/internal/config"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/spf13/cobra"
)

var (
	configShowFormat string
	configSetUser    bool
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage symlog configuration",
	Long: `Manage symlog configuration settings.

Configuration is loaded with the following priority (highest to lowest):
  1. Environment variables (SYMLOG_*, "__" separates nested keys)
  2. Project config (.symlog/config.yml, or --config)
  3. User config (~/.config/symlog/config.yml)
  4. Built-in defaults

A .env file in the working directory is loaded first and never overrides
variables that are already set.`,
	Example: `  # Show the effective configuration
  symlog config show

  # Write a commented project config
  symlog config init

  # Set a value in the project config
  symlog config set storage.backend redis`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the configuration after merging every source. Credentials are masked.",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(configShowFormat, formatYAML, formatJSON); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if configShowFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), cfg.Redacted())
		}
		return writeConfigYAML(cmd, cfg.Redacted())
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys 'config set' accepts",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tTYPE\tDEFAULT\tDESCRIPTION")
		for _, key := range config.SortedKeys() {
			s := config.KnownKeys[key]
			typ := s.Type.String()
			if len(s.AllowedValues) > 0 {
				typ = strings.Join(s.AllowedValues, "|")
			}
			def := ""
			if s.Default != nil {
				def = fmt.Sprint(s.Default)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", key, typ, def, s.Description)
		}
		return tw.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a scalar configuration value in the project config, or in the user
config with --user. The value is checked against the key's type first.
Package definitions are edited in the YAML file directly.`,
	Example: `  symlog config set concurrency 8
  symlog config set fetch.max_interval 10s
  symlog config set log_level debug --user`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		path, scope, err := configTarget(configSetUser)
		if err != nil {
			return err
		}
		if err := config.SetConfigValue(path, key, value); err != nil {
			return clierrors.NewArgumentError(err.Error(), "Run 'symlog config keys' to list valid keys and types")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s config (%s)\n", key, value, scope, path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config template",
	Long: `Write a commented configuration template to the project config, or to
the user config with --user. An existing file is kept unless --force is
given.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, scope, err := configTarget(configSetUser)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return clierrors.NewArgumentError(
				fmt.Sprintf("%s config already exists: %s", scope, path),
				"Pass --force to overwrite it",
			)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return clierrors.WrapWithMessage(err, clierrors.Runtime, "creating config directory")
		}
		if err := os.WriteFile(path, []byte(config.GetDefaultConfigTemplate()), 0o644); err != nil {
			return clierrors.WrapWithMessage(err, clierrors.Runtime, "writing config")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config to %s\n", scope, path)
		return nil
	},
}

func init() {
	configCmd.GroupID = groupBuild
	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", formatYAML, "Output format: yaml, json")
	configSetCmd.Flags().BoolVar(&configSetUser, "user", false, "Write to the user config instead of the project config")
	configInitCmd.Flags().BoolVar(&configSetUser, "user", false, "Write to the user config instead of the project config")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd, configKeysCmd, configSetCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// configTarget returns the file 'config set' and 'config init' write to.
func configTarget(user bool) (path, scope string, err error) {
	if user {
		path, err = config.UserConfigPath()
		if err != nil {
			return "", "", clierrors.WrapWithMessage(err, clierrors.Configuration, "locating user config")
		}
		return path, "user", nil
	}
	if configPath != "" {
		return configPath, "project", nil
	}
	return config.ProjectConfigPath(), "project", nil
}

func writeConfigYAML(cmd *cobra.Command, cfg *config.Configuration) error {
	enc := newYAMLEncoder(cmd.OutOrStdout())
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
