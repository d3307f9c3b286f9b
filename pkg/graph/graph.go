package graph

import "container/list"

// Edge is a directed edge between two nodes.
type Edge struct {
	From *Node
	To   *Node
}

// Graph is a directed graph over *Node identities with both successor and
// predecessor adjacency. Edges form a set: adding an edge twice is a no-op.
//
// Node and edge insertion order is preserved so that iteration, and therefore
// everything derived from it, is deterministic.
type Graph struct {
	nodes []*Node
	index map[*Node]struct{}
	succ  map[*Node][]*Node
	pred  map[*Node][]*Node
	edges map[Edge]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[*Node]struct{}),
		succ:  make(map[*Node][]*Node),
		pred:  make(map[*Node][]*Node),
		edges: make(map[Edge]struct{}),
	}
}

// AddNode adds n with no edges if it is not already present.
func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	if _, ok := g.index[n]; ok {
		return
	}
	g.index[n] = struct{}{}
	g.nodes = append(g.nodes, n)
}

// AddEdge adds the edge from -> to, adding missing endpoints first.
func (g *Graph) AddEdge(from, to *Node) {
	if from == nil || to == nil {
		return
	}
	g.AddNode(from)
	g.AddNode(to)

	e := Edge{From: from, To: to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// Contains reports whether n is a node of the graph.
func (g *Graph) Contains(n *Node) bool {
	if g == nil {
		return false
	}
	_, ok := g.index[n]
	return ok
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to *Node) bool {
	if g == nil {
		return false
	}
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	if g == nil {
		return nil
	}
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return len(g.edges)
}

// Edges returns every edge, grouped by source node in insertion order.
func (g *Graph) Edges() []Edge {
	if g == nil {
		return nil
	}
	out := make([]Edge, 0, len(g.edges))
	for _, from := range g.nodes {
		for _, to := range g.succ[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Successors returns the direct successors of n. Unknown nodes have none.
func (g *Graph) Successors(n *Node) []*Node {
	if g == nil {
		return nil
	}
	out := make([]*Node, len(g.succ[n]))
	copy(out, g.succ[n])
	return out
}

// Predecessors returns the direct predecessors of n. Unknown nodes have none.
func (g *Graph) Predecessors(n *Node) []*Node {
	if g == nil {
		return nil
	}
	out := make([]*Node, len(g.pred[n]))
	copy(out, g.pred[n])
	return out
}

// Entry returns the only node without predecessors.
// It reports false when there is no such node or more than one.
func (g *Graph) Entry() (*Node, bool) {
	if g == nil {
		return nil, false
	}
	return g.unique(g.pred)
}

// Exit returns the only node without successors.
// It reports false when there is no such node or more than one.
func (g *Graph) Exit() (*Node, bool) {
	if g == nil {
		return nil, false
	}
	return g.unique(g.succ)
}

func (g *Graph) unique(adj map[*Node][]*Node) (*Node, bool) {
	var found *Node
	for _, n := range g.nodes {
		if len(adj[n]) != 0 {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = n
	}
	return found, found != nil
}

// TransitiveSuccessors returns every node reachable from n through at least
// one forward edge. n itself is included only when it lies on a cycle.
func (g *Graph) TransitiveSuccessors(n *Node) NodeSet {
	reached := make(NodeSet)
	if g == nil {
		return reached
	}

	queue := list.New()
	for _, s := range g.succ[n] {
		if reached.Add(s) {
			queue.PushBack(s)
		}
	}
	for queue.Len() > 0 {
		current := queue.Remove(queue.Front()).(*Node)
		for _, s := range g.succ[current] {
			if reached.Add(s) {
				queue.PushBack(s)
			}
		}
	}
	return reached
}

// Clone returns a copy of g sharing the node values but not the edge storage.
func (g *Graph) Clone() *Graph {
	out := New()
	if g == nil {
		return out
	}
	for _, n := range g.nodes {
		out.AddNode(n)
	}
	for _, e := range g.Edges() {
		out.AddEdge(e.From, e.To)
	}
	return out
}

// Reverse returns a new graph with the same nodes and every edge flipped.
func Reverse(g *Graph) *Graph {
	out := New()
	if g == nil {
		return out
	}
	for _, n := range g.nodes {
		out.AddNode(n)
	}
	for _, e := range g.Edges() {
		out.AddEdge(e.To, e.From)
	}
	return out
}

// Union returns a new graph holding the nodes and edges of all inputs.
// Nil inputs are skipped.
func Union(graphs ...*Graph) *Graph {
	out := New()
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, n := range g.nodes {
			out.AddNode(n)
		}
	}
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, e := range g.Edges() {
			out.AddEdge(e.From, e.To)
		}
	}
	return out
}

// Induced returns the subgraph of g restricted to the nodes accepted by keep.
// Edges survive only when both endpoints do.
func Induced(g *Graph, keep func(*Node) bool) *Graph {
	out := New()
	if g == nil {
		return out
	}
	for _, n := range g.nodes {
		if keep(n) {
			out.AddNode(n)
		}
	}
	for _, e := range g.Edges() {
		if out.Contains(e.From) && out.Contains(e.To) {
			out.AddEdge(e.From, e.To)
		}
	}
	return out
}
