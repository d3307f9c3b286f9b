package pdg

import (
	"container/list"
	"fmt"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// Direction selects which way a slice follows dependences.
type Direction int

const (
	Backward Direction = iota // Everything the criterion depends on
	Forward                   // Everything that depends on the criterion
)

// SliceOptions configures Slice.
type SliceOptions struct {
	Direction Direction
	// Variable, when set, restricts data edges to those carrying a variable
	// of this name. Control edges are always followed.
	Variable string
}

// BackwardSlice returns every node the criterion transitively depends on,
// including the criterion itself.
func (p *PDG) BackwardSlice(criterion *graph.Node) (graph.NodeSet, error) {
	return p.Slice(SliceOptions{Direction: Backward}, criterion)
}

// ForwardSlice returns every node transitively depending on the criterion,
// including the criterion itself.
func (p *PDG) ForwardSlice(criterion *graph.Node) (graph.NodeSet, error) {
	return p.Slice(SliceOptions{Direction: Forward}, criterion)
}

// Slice computes the union of the slices of all criteria. It fails with
// ErrNodeNotFound if any criterion is not in the graph.
func (p *PDG) Slice(opts SliceOptions, criteria ...*graph.Node) (graph.NodeSet, error) {
	g := p.Graph()

	visited := make(graph.NodeSet)
	queue := list.New()
	for _, c := range criteria {
		if c == nil || !g.Contains(c) {
			return nil, fmt.Errorf("slicing criterion %s: %w", c, ErrNodeNotFound)
		}
		if visited.Add(c) {
			queue.PushBack(c)
		}
	}

	for queue.Len() > 0 {
		n := queue.Remove(queue.Front()).(*graph.Node)

		next := g.Predecessors(n)
		if opts.Direction == Forward {
			next = g.Successors(n)
		}
		for _, m := range next {
			e := graph.Edge{From: m, To: n}
			if opts.Direction == Forward {
				e = graph.Edge{From: n, To: m}
			}
			if !p.follows(e, opts.Variable) {
				continue
			}
			if visited.Add(m) {
				queue.PushBack(m)
			}
		}
	}
	return visited, nil
}

// follows reports whether a slice restricted to variable may cross e.
func (p *PDG) follows(e graph.Edge, variable string) bool {
	if variable == "" || p.data == nil {
		return true
	}
	if p.control != nil && p.control.HasEdge(e.From, e.To) {
		return true
	}
	for _, v := range p.vars[e] {
		if v.Name == variable {
			return true
		}
	}
	return false
}

// Dependencies returns the edges entering and leaving n, split by type.
func (p *PDG) Dependencies(n *graph.Node) (DependencyInfo, error) {
	if n == nil || !p.Graph().Contains(n) {
		return DependencyInfo{}, fmt.Errorf("%s: %w", n, ErrNodeNotFound)
	}

	var info DependencyInfo
	for _, e := range p.Edges() {
		switch {
		case e.To == n && e.Type == DepTypeData:
			info.DataIn = append(info.DataIn, e)
		case e.To == n:
			info.ControlIn = append(info.ControlIn, e)
		}
		switch {
		case e.From == n && e.Type == DepTypeData:
			info.DataOut = append(info.DataOut, e)
		case e.From == n:
			info.ControlOut = append(info.ControlOut, e)
		}
	}
	return info, nil
}

// Variables returns the distinct variable names carried by data edges, in
// edge order.
func (p *PDG) Variables() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, e := range p.Edges() {
		for _, v := range e.Vars {
			if _, ok := seen[v.Name]; ok {
				continue
			}
			seen[v.Name] = struct{}{}
			names = append(names, v.Name)
		}
	}
	return names
}
