// Package cdg derives control-dependence graphs from control-flow graphs.
package cdg

import (
	"github.com/l3aro/go-program-slicer/pkg/dom"
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// Build returns the control-dependence graph of cfg.
//
// The result has exactly the CFG's nodes. For every CFG edge n -> s it walks
// the immediate post-dominator chain starting at s and adds n -> w for each
// node w visited before reaching ipdom(n). Straight-line code therefore gets
// no edges, and a branch controls everything between itself and the point
// where its successors reconverge.
//
// A CFG without a unique exit has no post-dominator tree; its control
// dependence is unknown and the result carries the nodes but no edges.
func Build(cfg *graph.Graph) *graph.Graph {
	out := graph.New()
	if cfg == nil {
		return out
	}
	for _, n := range cfg.Nodes() {
		out.AddNode(n)
	}

	tree := dom.BuildPostDominatorTree(cfg)
	if tree.Len() == 0 {
		return out
	}

	ipdom := dom.ImmediatePostDominators(tree)
	for _, n := range cfg.Nodes() {
		stop := ipdom[n]
		for _, s := range cfg.Successors(n) {
			addControlDependencies(out, n, s, stop, ipdom)
		}
	}
	return out
}

// addControlDependencies adds controller -> w for every w on the ipdom chain
// from start up to, but excluding, stop. The walk ends early when the chain
// runs out or revisits a node.
func addControlDependencies(out *graph.Graph, controller, start, stop *graph.Node, ipdom map[*graph.Node]*graph.Node) {
	seen := make(graph.NodeSet)
	for w := start; w != nil && w != stop; w = ipdom[w] {
		if !seen.Add(w) {
			return
		}
		out.AddEdge(controller, w)
	}
}
