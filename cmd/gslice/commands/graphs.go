package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-program-slicer/pkg/cdg"
	"github.com/l3aro/go-program-slicer/pkg/cfg"
	"github.com/l3aro/go-program-slicer/pkg/dfg"
	"github.com/l3aro/go-program-slicer/pkg/dom"
	"github.com/l3aro/go-program-slicer/pkg/graph"
	"github.com/l3aro/go-program-slicer/pkg/pdg"
)

// graphKind describes one of the graph-printing commands.
type graphKind struct {
	name  string
	title string
	short string
	long  string
	build func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo)
}

var cfgGraph = graphKind{
	name:  "cfg",
	title: "CFG",
	short: "Show the control-flow graph of a function",
	long: `Builds the instruction-level control-flow graph of a Go function or method.
Every simple statement is one node and every if/for/switch header is a branch
node. Synthetic entry and exit nodes are hidden unless --include-synthetic is set.`,
	build: func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo) {
		return m.CFG, edgeInfos(m.CFG, "")
	},
}

var pdtGraph = graphKind{
	name:  "pdt",
	title: "Post-dominator tree",
	short: "Show the post-dominator tree of a function",
	long: `Builds the post-dominator tree of a function's control-flow graph.
Each edge points from a node to its immediate post-dominator.`,
	build: func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo) {
		tree := dom.BuildPostDominatorTree(m.CFG)
		return tree, edgeInfos(tree, "")
	},
}

var cdgGraph = graphKind{
	name:  "cdg",
	title: "CDG",
	short: "Show the control dependences of a function",
	long: `Builds the control-dependence graph of a function. An edge a -> b means
that the branch at a decides whether b executes.`,
	build: func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo) {
		g := cdg.Build(m.CFG)
		return g, edgeInfos(g, pdg.DepTypeControl)
	},
}

var ddgGraph = graphKind{
	name:  "ddg",
	title: "DDG",
	short: "Show the data dependences of a function",
	long: `Builds the data-dependence graph of a function from reaching definitions.
An edge a -> b means a definition at a may reach a use at b. Edges list the
variables that flow along them.`,
	build: func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo) {
		g, labels := dfg.BuildLabelledDataDependenceGraph(m.CFG, dfg.NewGoOracle(m))
		edges := edgeInfos(g, pdg.DepTypeData)
		for i, e := range g.Edges() {
			edges[i].Vars = labels[e]
		}
		return g, edges
	},
}

var pdgGraph = graphKind{
	name:  "pdg",
	title: "PDG",
	short: "Show the program dependence graph of a function",
	long: `Builds the program dependence graph of a function: the union of its
control and data dependences, each edge labelled with its type.`,
	build: func(m *cfg.Method) (*graph.Graph, []pdg.EdgeInfo) {
		p := pdg.ForMethod(m)
		return p.Graph(), p.Info(m.Name).Edges
	},
}

// graphView is the printable form of one graph of a function.
type graphView struct {
	FunctionName         string         `json:"function_name"`
	Graph                string         `json:"graph"`
	CyclomaticComplexity int            `json:"cyclomatic_complexity,omitempty"`
	Nodes                []pdg.NodeInfo `json:"nodes"`
	Edges                []pdg.EdgeInfo `json:"edges"`
}

func newGraphCmd(a *app, kind graphKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.name + " <file> <function>",
		Short: kind.short,
		Long:  kind.long,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			functionName := args[1]

			content, err := readSource(filePath)
			if err != nil {
				return err
			}
			m, err := parseMethod(filePath, content, functionName)
			if err != nil {
				return err
			}
			defer m.Close()

			g, edges := kind.build(m)
			view := newGraphView(kind.name, functionName, g, edges, a.cfg.IncludeSynthetic)
			if kind.name == cfgGraph.name {
				view.CyclomaticComplexity = m.CyclomaticComplexity()
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printGraphView(cmd.OutOrStdout(), kind.title, view)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func edgeInfos(g *graph.Graph, typ pdg.DepType) []pdg.EdgeInfo {
	edges := g.Edges()
	out := make([]pdg.EdgeInfo, 0, len(edges))
	for _, e := range edges {
		out = append(out, pdg.EdgeInfo{Source: e.From.ID, Target: e.To.ID, Type: typ})
	}
	return out
}

// newGraphView flattens g. Without includeSynthetic, entry and exit nodes
// and the edges touching them are left out.
func newGraphView(name, functionName string, g *graph.Graph, edges []pdg.EdgeInfo, includeSynthetic bool) graphView {
	view := graphView{
		FunctionName: functionName,
		Graph:        name,
		Nodes:        []pdg.NodeInfo{},
		Edges:        []pdg.EdgeInfo{},
	}

	hidden := make(map[string]bool)
	for _, n := range g.Nodes() {
		if !includeSynthetic && n.Synthetic() {
			hidden[n.ID] = true
			continue
		}
		view.Nodes = append(view.Nodes, pdg.NodeInfo{ID: n.ID, Kind: n.Kind, Line: n.Line, Text: n.Text})
	}
	for _, e := range edges {
		if hidden[e.Source] || hidden[e.Target] {
			continue
		}
		view.Edges = append(view.Edges, e)
	}
	return view
}

func printGraphView(w io.Writer, title string, view graphView) {
	fmt.Fprintf(w, "=== %s for function: %s ===\n", title, view.FunctionName)
	if view.CyclomaticComplexity > 0 {
		fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", view.CyclomaticComplexity)
	}

	fmt.Fprintf(w, "\nNodes (%d):\n", len(view.Nodes))
	for _, n := range view.Nodes {
		line := "-"
		if n.Line > 0 {
			line = fmt.Sprintf("%d", n.Line)
		}
		fmt.Fprintf(w, "  %-5s %-9s line %-4s %s\n", n.ID, n.Kind, line, n.Text)
	}

	fmt.Fprintf(w, "\nEdges (%d):\n", len(view.Edges))
	for _, e := range view.Edges {
		arrow := "-->"
		if e.Type != "" {
			arrow = "--" + string(e.Type) + "-->"
		}
		fmt.Fprintf(w, "  %s %s %s%s\n", e.Source, arrow, e.Target, formatVars(e.Vars))
	}
}

func formatVars(vars []dfg.Variable) string {
	if len(vars) == 0 {
		return ""
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return " [" + strings.Join(names, ", ") + "]"
}
