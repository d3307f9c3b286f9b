// Package coverage narrows dependence graphs to the source lines a run
// actually executed.
package coverage

import (
	"sort"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// LineSet is an immutable set of executed source lines.
type LineSet map[int]struct{}

// NewLineSet returns a set holding the given lines.
func NewLineSet(lines ...int) LineSet {
	s := make(LineSet, len(lines))
	for _, l := range lines {
		s[l] = struct{}{}
	}
	return s
}

// Contains reports whether line is in the set.
func (s LineSet) Contains(line int) bool {
	_, ok := s[line]
	return ok
}

// Sorted returns the lines in ascending order.
func (s LineSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// FilterOptions tunes FilterWith.
type FilterOptions struct {
	// DropSignatureLine also removes the nodes on the smallest positive line
	// of the graph, which for a method is its signature.
	DropSignatureLine bool
}

// Filter keeps the nodes of g whose positive line was executed, and the
// edges between them. Synthetic nodes never survive. An empty line set
// means no coverage is known and g itself is returned unchanged.
func Filter(g *graph.Graph, executed LineSet) *graph.Graph {
	return FilterWith(g, executed, FilterOptions{})
}

// FilterWith is Filter with options.
func FilterWith(g *graph.Graph, executed LineSet, opts FilterOptions) *graph.Graph {
	if len(executed) == 0 {
		return g
	}
	if g == nil {
		return graph.New()
	}

	signature := graph.NoLine
	if opts.DropSignatureLine {
		signature = minLine(g)
	}

	return graph.Induced(g, func(n *graph.Node) bool {
		return n.Line > 0 && n.Line != signature && executed.Contains(n.Line)
	})
}

func minLine(g *graph.Graph) int {
	lowest := graph.NoLine
	for _, n := range g.Nodes() {
		if n.Line > 0 && (lowest == graph.NoLine || n.Line < lowest) {
			lowest = n.Line
		}
	}
	return lowest
}
