package dfg

import (
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// BuildDataDependenceGraph returns a graph over the CFG's nodes with an edge
// d -> u whenever a definition at d of some variable v reaches u and u uses v.
// A nil CFG yields an empty graph; a nil oracle yields the nodes without edges.
func BuildDataDependenceGraph(cfg *graph.Graph, oracle DefUseOracle) *graph.Graph {
	g, _ := BuildLabelledDataDependenceGraph(cfg, oracle)
	return g
}

// BuildLabelledDataDependenceGraph is BuildDataDependenceGraph that also
// reports, for every edge, the variables whose definitions flow along it.
func BuildLabelledDataDependenceGraph(cfg *graph.Graph, oracle DefUseOracle) (*graph.Graph, map[graph.Edge][]Variable) {
	out := graph.New()
	labels := make(map[graph.Edge][]Variable)
	if cfg == nil {
		return out, labels
	}
	for _, n := range cfg.Nodes() {
		out.AddNode(n)
	}
	if oracle == nil {
		return out, labels
	}

	rd := ComputeReachingDefinitions(cfg, oracle)
	for _, u := range rd.order {
		for _, v := range rd.Uses[u] {
			for _, d := range rd.ReachingDefiners(u, v) {
				out.AddEdge(d, u)
				e := graph.Edge{From: d, To: u}
				labels[e] = append(labels[e], v)
			}
		}
	}
	return out, labels
}
