package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-program-slicer/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the gslice configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize gslice configuration interactively",
		Long: `Guides you through setting up gslice configuration step by step and writes
it to the project config (./.gslice/config.yaml), or the global config with --global.
Without a terminal, or with --defaults, the current settings are written as is.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			global, _ := cmd.Flags().GetBool("global")
			defaults, _ := cmd.Flags().GetBool("defaults")

			path := config.ProjectConfigFilePath()
			if global {
				path = config.GlobalConfigFilePath()
			}

			cfg := *a.cfg
			if !defaults && isatty.IsTerminal(os.Stdin.Fd()) {
				if err := runConfigForm(&cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("global", false, "Write the global config instead of the project config")
	initCmd.Flags().Bool("defaults", false, "Write the current settings without prompting")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config to YAML: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show the config file locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "global:  %s\nproject: %s\n",
				config.GlobalConfigFilePath(), config.ProjectConfigFilePath())
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}

// runConfigForm edits cfg in place through an interactive form.
func runConfigForm(cfg *config.Config) error {
	workers := strconv.Itoa(cfg.Workers)
	entries := strconv.Itoa(cfg.CacheEntries)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error", "silent")...).
				Value(&cfg.LogLevel),
			huh.NewConfirm().
				Title("JSON logs").
				Description("Write log lines as JSON objects").
				Value(&cfg.JSONLogs),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot cache directory").
				Description("Leave empty to disable the on-disk PDG cache").
				Placeholder(".gslice/cache").
				Value(&cfg.CacheDir),
			huh.NewInput().
				Title("In-memory cache entries").
				Value(&entries).
				Validate(validatePositive),
			huh.NewInput().
				Title("Workers").
				Description("Functions analyzed concurrently by analyze").
				Value(&workers).
				Validate(validatePositive),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Coverage profile (optional, press Enter to skip)").
				Description("A go test -coverprofile file used to narrow slices").
				Placeholder("optional").
				Value(&cfg.CoverageProfile),
			huh.NewConfirm().
				Title("Show entry and exit nodes in graph output").
				Value(&cfg.IncludeSynthetic),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.CacheEntries, _ = strconv.Atoi(entries)
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
