package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/internal/scanner"
	"github.com/l3aro/go-program-slicer/pkg/cfg"
	"github.com/l3aro/go-program-slicer/pkg/pdg"
)

// functionStats summarizes the dependence graphs of one function.
type functionStats struct {
	Name                 string `json:"name"`
	Line                 int    `json:"line"`
	Statements           int    `json:"statements"`
	CFGEdges             int    `json:"cfg_edges"`
	CyclomaticComplexity int    `json:"cyclomatic_complexity"`
	ControlDependences   int    `json:"control_dependences"`
	DataDependences      int    `json:"data_dependences"`
	Variables            int    `json:"variables"`
}

type analyzeResult struct {
	File      string          `json:"file"`
	Functions []functionStats `json:"functions"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file|dir> [function...]",
		Short: "Dependence statistics for the functions of a file or package tree",
		Long: `Builds the control-flow and program dependence graphs of every function in a
Go file (or only the named ones) and reports their size, cyclomatic
complexity and dependence counts. Given a directory, every Go file below it
is analyzed, skipping hidden, vendor and testdata directories and the paths
listed in .gsliceignore files. Functions are analyzed concurrently, at most
"workers" at a time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("stat file: %w", err)
			}
			if info.IsDir() && len(args) > 1 {
				return fmt.Errorf("function names require a file, got directory %s", root)
			}

			files := []string{root}
			if info.IsDir() {
				opts := scanner.DefaultOptions()
				opts.IncludeTests, _ = cmd.Flags().GetBool("tests")
				rel, err := scanner.Find(root, opts)
				if err != nil {
					return err
				}
				files = files[:0]
				for _, f := range rel {
					files = append(files, filepath.Join(root, filepath.FromSlash(f)))
				}
			}

			var results []analyzeResult
			for _, filePath := range files {
				content, err := readSource(filePath)
				if err != nil {
					return err
				}

				names := args[1:]
				if len(names) == 0 {
					names = cfg.ListFunctions(content)
				}

				stats, err := analyzeFunctions(cmd.Context(), filePath, content, names, a.cfg.Workers)
				if err != nil {
					return err
				}
				results = append(results, analyzeResult{File: filePath, Functions: stats})
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				var payload any = results
				if !info.IsDir() {
					payload = results[0]
				}
				data, err := json.MarshalIndent(payload, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			for i, r := range results {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printAnalysis(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().Bool("tests", false, "Also analyze _test.go files when given a directory")
	return cmd
}

// analyzeFunctions computes the statistics of names in content, in the
// order given. Each function is parsed and analyzed independently.
func analyzeFunctions(ctx context.Context, filePath string, content []byte, names []string, workers int) ([]functionStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if workers <= 0 {
		workers = 1
	}

	stats := make([]functionStats, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := analyzeFunction(filePath, content, name)
			if err != nil {
				return err
			}
			stats[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Default().Debug("Analyzed functions", "file", filePath, "count", len(names), "workers", workers)
	return stats, nil
}

func analyzeFunction(filePath string, content []byte, name string) (functionStats, error) {
	m, err := parseMethod(filePath, content, name)
	if err != nil {
		return functionStats{}, err
	}
	defer m.Close()

	p := pdg.ForMethod(m)
	p.Graph()

	s := functionStats{
		Name:                 name,
		Line:                 int(m.Decl.StartPoint().Row) + 1,
		CFGEdges:             m.CFG.EdgeCount(),
		CyclomaticComplexity: m.CyclomaticComplexity(),
		ControlDependences:   p.Control().EdgeCount(),
		DataDependences:      p.Data().EdgeCount(),
		Variables:            len(p.Variables()),
	}
	for _, n := range m.CFG.Nodes() {
		if !n.Synthetic() {
			s.Statements++
		}
	}
	return s, nil
}

func printAnalysis(w io.Writer, r analyzeResult) {
	fmt.Fprintf(w, "=== Analysis of %s (%d functions) ===\n\n", r.File, len(r.Functions))
	if len(r.Functions) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tLINE\tSTATEMENTS\tCC\tCONTROL\tDATA\tVARS")
	for _, s := range r.Functions {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Name, s.Line, s.Statements, s.CyclomaticComplexity,
			s.ControlDependences, s.DataDependences, s.Variables)
	}
	tw.Flush()
}
