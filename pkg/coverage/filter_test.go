package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// method builds entry -> sig(10) -> a(11) -> b(12) -> c(13) -> exit with a
// second node d sharing line 12.
func method() (*graph.Graph, map[string]*graph.Node) {
	nodes := map[string]*graph.Node{
		"entry": graph.NewSyntheticNode("entry", graph.KindEntry),
		"sig":   graph.NewNode("sig", 10, "sig"),
		"a":     graph.NewNode("a", 11, "a"),
		"b":     graph.NewNode("b", 12, "b"),
		"d":     graph.NewNode("d", 12, "d"),
		"c":     graph.NewNode("c", 13, "c"),
		"exit":  graph.NewSyntheticNode("exit", graph.KindExit),
	}
	g := graph.New()
	for _, e := range [][2]string{
		{"entry", "sig"}, {"sig", "a"}, {"a", "b"}, {"b", "d"}, {"d", "c"}, {"a", "c"}, {"c", "exit"},
	} {
		g.AddEdge(nodes[e[0]], nodes[e[1]])
	}
	return g, nodes
}

func TestFilter_EmptyCoverageIsIdentity(t *testing.T) {
	g, _ := method()

	assert.Same(t, g, Filter(g, nil))
	assert.Same(t, g, Filter(g, NewLineSet()))
	assert.Same(t, g, FilterWith(g, LineSet{}, FilterOptions{DropSignatureLine: true}))
}

func TestFilter(t *testing.T) {
	g, n := method()

	out := Filter(g, NewLineSet(10, 11, 13, 99))

	assert.NotSame(t, g, out)
	assert.Equal(t, []*graph.Node{n["sig"], n["a"], n["c"]}, out.Nodes())
	assert.True(t, out.HasEdge(n["sig"], n["a"]))
	assert.True(t, out.HasEdge(n["a"], n["c"]))
	assert.Equal(t, 2, out.EdgeCount())
	assert.Equal(t, 7, g.Len(), "input is not modified")
}

func TestFilter_Properties(t *testing.T) {
	tests := []struct {
		name  string
		lines LineSet
	}{
		{name: "all lines", lines: NewLineSet(10, 11, 12, 13)},
		{name: "shared line", lines: NewLineSet(12)},
		{name: "unknown lines", lines: NewLineSet(1, 2, 3)},
		{name: "synthetic line", lines: NewLineSet(graph.NoLine, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := method()
			out := Filter(g, tt.lines)

			for _, node := range out.Nodes() {
				assert.Positive(t, node.Line)
				assert.True(t, tt.lines.Contains(node.Line))
				assert.True(t, g.Contains(node))
			}
			for _, e := range out.Edges() {
				assert.True(t, g.HasEdge(e.From, e.To))
			}
			for _, e := range g.Edges() {
				if out.Contains(e.From) && out.Contains(e.To) {
					assert.True(t, out.HasEdge(e.From, e.To), "edge %s -> %s dropped", e.From, e.To)
				}
			}
		})
	}
}

func TestFilter_SharedLineKeepsBothNodes(t *testing.T) {
	g, n := method()

	out := Filter(g, NewLineSet(12))

	assert.Equal(t, []*graph.Node{n["b"], n["d"]}, out.Nodes())
	assert.True(t, out.HasEdge(n["b"], n["d"]))
}

func TestFilterWith_DropSignatureLine(t *testing.T) {
	g, n := method()

	out := FilterWith(g, NewLineSet(10, 11, 12), FilterOptions{DropSignatureLine: true})

	assert.False(t, out.Contains(n["sig"]))
	assert.Equal(t, []*graph.Node{n["a"], n["b"], n["d"]}, out.Nodes())
}

func TestFilter_NilGraph(t *testing.T) {
	assert.Nil(t, Filter(nil, nil))

	out := Filter(nil, NewLineSet(1))
	require.NotNil(t, out)
	assert.Zero(t, out.Len())
}

func TestLineSet_Sorted(t *testing.T) {
	assert.Equal(t, []int{1, 5, 9}, NewLineSet(9, 1, 5, 1).Sorted())
	assert.Empty(t, LineSet{}.Sorted())
}
