// Package commands provides the CLI commands for the gslice tool.
package commands

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-program-slicer/internal/config"
	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/cache"
)

// app carries the state shared by every command of one invocation.
type app struct {
	cfg *config.Config

	storeOnce sync.Once
	store     *cache.Store
	storeErr  error
}

// NewRootCmd builds the gslice command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gslice",
		Short: "gslice - static program slicing for Go",
		Long: `gslice builds intraprocedural program dependence graphs for Go functions
and slices them.

Commands:
  cfg         Show the control-flow graph of a function
  pdt         Show the post-dominator tree of a function
  cdg         Show the control dependences of a function
  ddg         Show the data dependences of a function
  pdg         Show the program dependence graph of a function
  slice       Backward or forward slice from a line
  analyze     Dependence statistics for every function in a file
  config      Create or show the configuration

Use "gslice [command] --help" for more information about a command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Config file path (default: project, then global config)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().Bool("include-synthetic", false, "Show entry and exit nodes in graph output")

	root.AddCommand(
		newGraphCmd(a, cfgGraph),
		newGraphCmd(a, pdtGraph),
		newGraphCmd(a, cdgGraph),
		newGraphCmd(a, ddgGraph),
		newGraphCmd(a, pdgGraph),
		newSliceCmd(a),
		newAnalyzeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the gslice command tree.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	if cmd.Flags().Changed("include-synthetic") {
		cfg.IncludeSynthetic, _ = cmd.Flags().GetBool("include-synthetic")
	}

	a.cfg = cfg
	log.SetDefault(cfg.NewLogger())
	return nil
}

// cacheStore opens the snapshot store once per invocation. It returns nil
// when caching is disabled by an empty cache_dir.
func (a *app) cacheStore() (*cache.Store, error) {
	if a.cfg == nil || a.cfg.CacheDir == "" {
		return nil, nil
	}
	a.storeOnce.Do(func() {
		a.store, a.storeErr = cache.New(cache.Options{
			Dir:        a.cfg.CacheDir,
			MaxEntries: a.cfg.CacheEntries,
		})
	})
	return a.store, a.storeErr
}
