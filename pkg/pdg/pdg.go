package pdg

import (
	"fmt"
	"sync"

	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/cdg"
	"github.com/l3aro/go-program-slicer/pkg/dfg"
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// PDG is the program dependence graph of one method: the union of its
// control-dependence and data-dependence graphs.
//
// The graph is computed on first use and then shared by every caller; a PDG
// is safe for concurrent use.
type PDG struct {
	cfg    *graph.Graph
	oracle dfg.DefUseOracle

	once    sync.Once
	graph   *graph.Graph
	control *graph.Graph
	data    *graph.Graph
	vars    map[graph.Edge][]dfg.Variable
}

// New returns the PDG of cfg, reading definitions and uses through oracle.
// Nothing is computed until Graph or a slice is requested.
func New(cfg *graph.Graph, oracle dfg.DefUseOracle) *PDG {
	return &PDG{cfg: cfg, oracle: oracle}
}

// FromGraph wraps an already computed dependence graph. Its edges carry no
// dependence type.
func FromGraph(g *graph.Graph) *PDG {
	if g == nil {
		g = graph.New()
	}
	p := &PDG{graph: g}
	p.once.Do(func() {})
	return p
}

// FromDependences assembles a PDG from separate control and data graphs.
// vars may be nil.
func FromDependences(control, data *graph.Graph, vars map[graph.Edge][]dfg.Variable) *PDG {
	if control == nil {
		control = graph.New()
	}
	if data == nil {
		data = graph.New()
	}
	if vars == nil {
		vars = make(map[graph.Edge][]dfg.Variable)
	}
	p := &PDG{
		graph:   graph.Union(control, data),
		control: control,
		data:    data,
		vars:    vars,
	}
	p.once.Do(func() {})
	return p
}

// Graph returns the dependence graph. Every call returns the same graph,
// which callers must not modify.
func (p *PDG) Graph() *graph.Graph {
	p.once.Do(p.build)
	return p.graph
}

func (p *PDG) build() {
	p.control = cdg.Build(p.cfg)
	p.data, p.vars = dfg.BuildLabelledDataDependenceGraph(p.cfg, p.oracle)
	p.graph = graph.Union(p.control, p.data)

	log.Default().Debug("program dependence graph built",
		"nodes", p.graph.Len(),
		"control_edges", p.control.EdgeCount(),
		"data_edges", p.data.EdgeCount(),
	)
}

// Control returns the control-dependence part of the graph, or nil for a
// PDG created with FromGraph.
func (p *PDG) Control() *graph.Graph {
	p.Graph()
	return p.control
}

// Data returns the data-dependence part of the graph, or nil for a PDG
// created with FromGraph.
func (p *PDG) Data() *graph.Graph {
	p.Graph()
	return p.data
}

// Edges returns the labelled edges in graph order.
func (p *PDG) Edges() []Edge {
	g := p.Graph()
	var out []Edge
	for _, e := range g.Edges() {
		labelled := false
		if p.control != nil && p.control.HasEdge(e.From, e.To) {
			out = append(out, Edge{From: e.From, To: e.To, Type: DepTypeControl})
			labelled = true
		}
		if p.data != nil && p.data.HasEdge(e.From, e.To) {
			out = append(out, Edge{From: e.From, To: e.To, Type: DepTypeData, Vars: p.vars[e]})
			labelled = true
		}
		if !labelled {
			out = append(out, Edge{From: e.From, To: e.To})
		}
	}
	return out
}

// NodesAtLine returns the nodes of the graph on the given source line.
func (p *PDG) NodesAtLine(line int) []*graph.Node {
	var out []*graph.Node
	for _, n := range p.Graph().Nodes() {
		if n.Line == line {
			out = append(out, n)
		}
	}
	return out
}

// Info flattens the PDG for serialization.
func (p *PDG) Info(functionName string) *Info {
	g := p.Graph()
	info := &Info{
		FunctionName: functionName,
		Nodes:        make([]NodeInfo, 0, g.Len()),
		Edges:        make([]EdgeInfo, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		info.Nodes = append(info.Nodes, NodeInfo{ID: n.ID, Kind: n.Kind, Line: n.Line, Text: n.Text})
	}
	for _, e := range p.Edges() {
		info.Edges = append(info.Edges, EdgeInfo{
			Source: e.From.ID,
			Target: e.To.ID,
			Type:   e.Type,
			Vars:   e.Vars,
		})
	}
	return info
}

// FromInfo rebuilds a PDG from its serialized form. Restored nodes carry
// their text as instruction so that only entry and exit are synthetic, and
// untyped edges are restored as control dependences.
func FromInfo(info *Info) (*PDG, error) {
	if info == nil {
		return FromDependences(nil, nil, nil), nil
	}

	byID := make(map[string]*graph.Node, len(info.Nodes))
	control, data := graph.New(), graph.New()
	for _, ni := range info.Nodes {
		if _, dup := byID[ni.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", ni.ID)
		}
		var n *graph.Node
		switch ni.Kind {
		case graph.KindEntry, graph.KindExit:
			n = graph.NewSyntheticNode(ni.ID, ni.Kind)
		default:
			n = graph.NewNode(ni.ID, ni.Line, ni.Text)
			n.Kind = ni.Kind
		}
		n.Line = ni.Line
		n.Text = ni.Text
		byID[ni.ID] = n
		control.AddNode(n)
		data.AddNode(n)
	}

	vars := make(map[graph.Edge][]dfg.Variable)
	for _, ei := range info.Edges {
		from, ok := byID[ei.Source]
		if !ok {
			return nil, fmt.Errorf("edge source %q: %w", ei.Source, ErrNodeNotFound)
		}
		to, ok := byID[ei.Target]
		if !ok {
			return nil, fmt.Errorf("edge target %q: %w", ei.Target, ErrNodeNotFound)
		}
		switch ei.Type {
		case DepTypeData:
			data.AddEdge(from, to)
			if len(ei.Vars) > 0 {
				vars[graph.Edge{From: from, To: to}] = ei.Vars
			}
		default:
			control.AddEdge(from, to)
		}
	}
	return FromDependences(control, data, vars), nil
}

// Restrict returns the PDG induced by the nodes of sub, typically the result
// of coverage.Filter on p.Graph(). Edge types and variable labels are kept
// for the edges whose endpoints both survive. Passing p's own graph returns p.
func (p *PDG) Restrict(sub *graph.Graph) *PDG {
	g := p.Graph()
	if sub == g {
		return p
	}
	if sub == nil {
		sub = graph.New()
	}
	keep := sub.Contains
	if p.control == nil && p.data == nil {
		return FromGraph(graph.Induced(g, keep))
	}

	vars := make(map[graph.Edge][]dfg.Variable)
	for e, vs := range p.vars {
		if keep(e.From) && keep(e.To) {
			vars[e] = vs
		}
	}
	return FromDependences(graph.Induced(p.control, keep), graph.Induced(p.data, keep), vars)
}
