// Package dom computes post-dominator trees for control-flow graphs.
//
// Post-dominance in a CFG is dominance in the reversed CFG, so the analysis
// reverses the graph and runs the classic iterative dominator dataflow from
// the original exit node.
package dom

import "github.com/l3aro/go-program-slicer/pkg/graph"

type nodeSet = graph.NodeSet

// BuildPostDominatorTree returns the post-dominator forest of cfg.
//
// The result holds every CFG node and one edge n -> ipdom(n) for each node
// that has an immediate post-dominator. The exit node is the root and has no
// outgoing edge. A nil CFG, or one without a unique exit, yields an empty graph.
func BuildPostDominatorTree(cfg *graph.Graph) *graph.Graph {
	tree := graph.New()
	if cfg == nil || cfg.Len() == 0 {
		return tree
	}

	reversed := graph.Reverse(cfg)
	root, ok := reversed.Entry()
	if !ok {
		return tree
	}

	for _, n := range cfg.Nodes() {
		tree.AddNode(n)
	}
	for n, d := range immediateDominators(reversed, root) {
		tree.AddEdge(n, d)
	}
	return tree
}

// ImmediatePostDominators reads the node -> ipdom map off a tree built by
// BuildPostDominatorTree. Nodes without an outgoing tree edge are absent.
func ImmediatePostDominators(tree *graph.Graph) map[*graph.Node]*graph.Node {
	ipdom := make(map[*graph.Node]*graph.Node, tree.Len())
	for _, n := range tree.Nodes() {
		parents := tree.Successors(n)
		if len(parents) == 1 {
			ipdom[n] = parents[0]
		}
	}
	return ipdom
}

// Dominators runs the iterative dominator dataflow on g from root and
// returns Dom(n) for every node of g.
//
// Dom(root) = {root}; every other set starts as the full node set and
// shrinks to {n} ∪ ⋂ Dom(p) over the predecessors p of n until a full pass
// changes nothing. Nodes unreachable from root keep the full set.
func Dominators(g *graph.Graph, root *graph.Node) map[*graph.Node]nodeSet {
	nodes := g.Nodes()
	dom := make(map[*graph.Node]nodeSet, len(nodes))
	for _, n := range nodes {
		if n == root {
			dom[n] = graph.NewNodeSet(root)
			continue
		}
		dom[n] = graph.NewNodeSet(nodes...)
	}

	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if n == root {
				continue
			}
			next := meet(dom, g.Predecessors(n))
			next.Add(n)
			if !next.Equal(dom[n]) {
				dom[n] = next
				changed = true
			}
		}
	}
	return dom
}

// meet intersects the dominator sets of preds. No predecessors means an
// empty intersection.
func meet(dom map[*graph.Node]nodeSet, preds []*graph.Node) nodeSet {
	out := make(nodeSet)
	if len(preds) == 0 {
		return out
	}
	for n := range dom[preds[0]] {
		inAll := true
		for _, p := range preds[1:] {
			if !dom[p].Contains(n) {
				inAll = false
				break
			}
		}
		if inAll {
			out.Add(n)
		}
	}
	return out
}

// immediateDominators derives idom(n) for every node of g reachable from
// root. idom(n) is the strict dominator of n that all other strict
// dominators of n dominate as well; a node with no such unique candidate
// gets no entry.
func immediateDominators(g *graph.Graph, root *graph.Node) map[*graph.Node]*graph.Node {
	dom := Dominators(g, root)
	reachable := g.TransitiveSuccessors(root)

	idom := make(map[*graph.Node]*graph.Node)
	for _, n := range g.Nodes() {
		if n == root || !reachable.Contains(n) {
			continue
		}

		var found *graph.Node
		unique := true
		for candidate := range dom[n] {
			if candidate == n || !dominatesAllStrict(dom, candidate, n) {
				continue
			}
			if found != nil {
				unique = false
				break
			}
			found = candidate
		}
		if found != nil && unique {
			idom[n] = found
		}
	}
	return idom
}

// dominatesAllStrict reports whether every strict dominator of n other than
// candidate also dominates candidate.
func dominatesAllStrict(dom map[*graph.Node]nodeSet, candidate, n *graph.Node) bool {
	for other := range dom[n] {
		if other == n || other == candidate {
			continue
		}
		if !dom[candidate].Contains(other) {
			return false
		}
	}
	return true
}
