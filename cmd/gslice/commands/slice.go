package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/coverage"
	"github.com/l3aro/go-program-slicer/pkg/graph"
	"github.com/l3aro/go-program-slicer/pkg/pdg"
)

// ErrNoCriterion is returned when the requested line holds no statement of
// the function, or none that was executed.
var ErrNoCriterion = errors.New("no statement on line")

type sliceResult struct {
	File            string         `json:"file"`
	FunctionName    string         `json:"function_name"`
	Line            int            `json:"line"`
	Direction       string         `json:"direction"`
	Variable        string         `json:"variable,omitempty"`
	CoverageProfile string         `json:"coverage_profile,omitempty"`
	SliceLines      []int          `json:"slice_lines"`
	Nodes           []pdg.NodeInfo `json:"nodes"`
}

func newSliceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slice <file> <function> [--line N] [--backward|--forward] [--var NAME] [--coverage PROFILE] [--json]",
		Short: "Perform backward or forward slice analysis on a function",
		Long: `Perform slice analysis on a specific function to find data and control dependencies.

Backward slice: Find all lines that may affect the statements at the target line.
Forward slice: Find all lines that may be affected by the statements at the source line.

With --coverage, the dependence graph is first narrowed to the lines a
"go test -coverprofile" run executed. Without --line, the line is picked
interactively when stdin is a terminal.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSlice(cmd, args[0], args[1])
		},
	}

	cmd.Flags().IntP("line", "l", 0, "Line number to slice from")
	cmd.Flags().BoolP("backward", "b", false, "Backward slice (default)")
	cmd.Flags().BoolP("forward", "f", false, "Forward slice")
	cmd.Flags().StringP("var", "v", "", "Only follow data dependences on this variable")
	cmd.Flags().StringP("coverage", "c", "", "Coverage profile restricting the slice to executed lines")
	cmd.Flags().Bool("keep-signature", false, "Keep the function signature line when filtering by coverage")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func (a *app) runSlice(cmd *cobra.Command, filePath, functionName string) error {
	backward, _ := cmd.Flags().GetBool("backward")
	forward, _ := cmd.Flags().GetBool("forward")
	if backward && forward {
		return fmt.Errorf("--backward and --forward are mutually exclusive")
	}
	opts := pdg.SliceOptions{Direction: pdg.Backward}
	if forward {
		opts.Direction = pdg.Forward
	}
	opts.Variable, _ = cmd.Flags().GetString("var")

	content, err := readSource(filePath)
	if err != nil {
		return err
	}
	p, err := a.loadPDG(filePath, content, functionName)
	if err != nil {
		return err
	}
	full := p.Graph()

	profile := a.cfg.CoverageProfile
	if cmd.Flags().Changed("coverage") {
		profile, _ = cmd.Flags().GetString("coverage")
	}
	if profile != "" {
		keep, _ := cmd.Flags().GetBool("keep-signature")
		p, err = restrictToCoverage(p, profile, filePath, coverage.FilterOptions{DropSignatureLine: !keep})
		if err != nil {
			return err
		}
	}

	lineNum, _ := cmd.Flags().GetInt("line")
	if !cmd.Flags().Changed("line") {
		lineNum, err = pickLine(p.Graph())
		if err != nil {
			return err
		}
	}
	if lineNum <= 0 {
		return fmt.Errorf("line number must be positive: %d", lineNum)
	}

	criteria := p.NodesAtLine(lineNum)
	if len(criteria) == 0 {
		if profile != "" && len(nodesAtLine(full, lineNum)) > 0 {
			return fmt.Errorf("line %d of %s was not executed: %w", lineNum, functionName, ErrNoCriterion)
		}
		return fmt.Errorf("line %d of %s: %w", lineNum, functionName, ErrNoCriterion)
	}

	slice, err := p.Slice(opts, criteria...)
	if err != nil {
		return fmt.Errorf("slicing: %w", err)
	}

	result := sliceResult{
		File:            filePath,
		FunctionName:    functionName,
		Line:            lineNum,
		Direction:       directionName(opts.Direction),
		Variable:        opts.Variable,
		CoverageProfile: profile,
		SliceLines:      slice.Lines(),
		Nodes:           []pdg.NodeInfo{},
	}
	for _, n := range slice.Sorted() {
		if n.Synthetic() && !a.cfg.IncludeSynthetic {
			continue
		}
		result.Nodes = append(result.Nodes, pdg.NodeInfo{ID: n.ID, Kind: n.Kind, Line: n.Line, Text: n.Text})
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printSliceInfo(cmd.OutOrStdout(), result)
	if len(result.SliceLines) > 0 {
		first, last := lineSpan(full)
		fmt.Fprintln(cmd.OutOrStdout(), "\n--- Source code with slice lines highlighted ---")
		printSourceWithHighlights(cmd.OutOrStdout(), content, first, last, result.SliceLines)
	}
	return nil
}

// restrictToCoverage narrows p to the lines of filePath executed according
// to profile. A profile without blocks for the file leaves p unchanged.
func restrictToCoverage(p *pdg.PDG, profile, filePath string, opts coverage.FilterOptions) (*pdg.PDG, error) {
	executed, err := coverage.LinesFromProfile(profile, filePath)
	if errors.Is(err, coverage.ErrFileNotInProfile) {
		log.Default().Warn("Coverage profile has no data for file, slicing without it", "profile", profile, "file", filePath)
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	filtered := coverage.FilterWith(p.Graph(), executed, opts)
	log.Default().Debug("Applied coverage filter",
		"profile", profile,
		"executed_lines", len(executed),
		"nodes_before", p.Graph().Len(),
		"nodes_after", filtered.Len(),
	)
	return p.Restrict(filtered), nil
}

// pickLine asks for a slicing criterion among the statement lines of g.
// It needs an interactive terminal on stdin.
func pickLine(g *graph.Graph) (int, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return 0, fmt.Errorf("--line is required when stdin is not a terminal")
	}

	options := criterionOptions(g)
	if len(options) == 0 {
		return 0, ErrNoCriterion
	}

	var line int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Slicing criterion").
				Description("Select the line to slice from").
				Options(options...).
				Value(&line),
		),
	)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("interactive prompt failed: %w", err)
	}
	return line, nil
}

// criterionOptions lists one option per source line holding a statement.
func criterionOptions(g *graph.Graph) []huh.Option[int] {
	nodes := g.Nodes()
	graph.SortNodes(nodes)

	var options []huh.Option[int]
	seen := make(map[int]bool)
	for _, n := range nodes {
		if n.Synthetic() || n.Line <= 0 || seen[n.Line] {
			continue
		}
		seen[n.Line] = true
		options = append(options, huh.NewOption(fmt.Sprintf("%4d  %s", n.Line, n.Text), n.Line))
	}
	return options
}

func nodesAtLine(g *graph.Graph, line int) []*graph.Node {
	var out []*graph.Node
	for _, n := range g.Nodes() {
		if n.Line == line {
			out = append(out, n)
		}
	}
	return out
}

func directionName(d pdg.Direction) string {
	if d == pdg.Forward {
		return "forward"
	}
	return "backward"
}

func printSliceInfo(w io.Writer, r sliceResult) {
	fmt.Fprintf(w, "=== Slice for function: %s (line %d, %s) ===\n", r.FunctionName, r.Line, r.Direction)

	if r.Variable != "" {
		fmt.Fprintf(w, "Variable filter: %s\n", r.Variable)
	}
	if r.CoverageProfile != "" {
		fmt.Fprintf(w, "Coverage profile: %s\n", r.CoverageProfile)
	}

	fmt.Fprintf(w, "\nSlice lines (%d): %s\n", len(r.SliceLines), formatLineRanges(r.SliceLines))
}

// formatLineRanges renders sorted lines as compact ranges, e.g. "3-5, 9".
func formatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}

	var ranges []string
	start := lines[0]
	end := lines[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, fmt.Sprintf("%d", start))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", start, end))
		}
	}

	for _, line := range lines[1:] {
		if line == end+1 {
			end = line
			continue
		}
		flush()
		start = line
		end = line
	}
	flush()

	return strings.Join(ranges, ", ")
}

// lineSpan returns the smallest and largest source line of g's nodes.
func lineSpan(g *graph.Graph) (int, int) {
	first, last := 0, 0
	for _, n := range g.Nodes() {
		if n.Line <= 0 {
			continue
		}
		if first == 0 || n.Line < first {
			first = n.Line
		}
		if n.Line > last {
			last = n.Line
		}
	}
	return first, last
}

func printSourceWithHighlights(w io.Writer, content []byte, first, last int, sliceLines []int) {
	highlighted := make(map[int]bool, len(sliceLines))
	for _, line := range sliceLines {
		highlighted[line] = true
	}

	for i, text := range bytes.Split(content, []byte("\n")) {
		lineNum := i + 1
		if lineNum < first || lineNum > last {
			continue
		}
		marker := "    "
		if highlighted[lineNum] {
			marker = " >>>"
		}
		fmt.Fprintf(w, "%5d:%s %s\n", lineNum, marker, strings.TrimRight(string(text), "\r"))
	}
}
