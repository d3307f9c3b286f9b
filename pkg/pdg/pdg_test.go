package pdg

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-program-slicer/pkg/dfg"
	"github.com/l3aro/go-program-slicer/pkg/graph"
)

var (
	varX = dfg.Variable{Kind: dfg.VarLocal, Name: "x", Type: "int"}
	varY = dfg.Variable{Kind: dfg.VarLocal, Name: "y", Type: "int"}
)

type fixture struct {
	cfg    *graph.Graph
	nodes  map[string]*graph.Node
	oracle dfg.TableOracle
}

func newFixture(names []string, edges [][2]string) *fixture {
	f := &fixture{
		cfg:    graph.New(),
		nodes:  make(map[string]*graph.Node),
		oracle: dfg.TableOracle{Defs: map[any][]dfg.Variable{}, Used: map[any][]dfg.Variable{}},
	}
	for i, name := range names {
		n := graph.NewNode(name, i+1, name)
		f.nodes[name] = n
		f.cfg.AddNode(n)
	}
	for _, e := range edges {
		f.cfg.AddEdge(f.nodes[e[0]], f.nodes[e[1]])
	}
	return f
}

func (f *fixture) n(name string) *graph.Node { return f.nodes[name] }

func (f *fixture) set(names ...string) graph.NodeSet {
	s := make(graph.NodeSet)
	for _, name := range names {
		s.Add(f.nodes[name])
	}
	return s
}

// diamond: branch decides which side defines x, merge reads it.
func diamond() *fixture {
	f := newFixture(
		[]string{"entry", "branch", "left", "right", "merge"},
		[][2]string{
			{"entry", "branch"},
			{"branch", "left"},
			{"branch", "right"},
			{"left", "merge"},
			{"right", "merge"},
		},
	)
	f.oracle.Defs["left"] = []dfg.Variable{varX}
	f.oracle.Defs["right"] = []dfg.Variable{varX}
	f.oracle.Used["merge"] = []dfg.Variable{varX}
	return f
}

func TestBackwardSlice_Diamond(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	slice, err := p.BackwardSlice(f.n("merge"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("merge", "left", "right", "branch")), "got %v", slice.Sorted())

	slice, err = p.BackwardSlice(f.n("left"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("left", "branch")), "got %v", slice.Sorted())
}

func TestBackwardSlice_Cycle(t *testing.T) {
	f := newFixture(
		[]string{"A", "B", "C"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
	)
	p := FromGraph(f.cfg)

	slice, err := p.BackwardSlice(f.n("B"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("A", "B", "C")))
}

func TestBackwardSlice_ClosedUnderPredecessors(t *testing.T) {
	f := newFixture(
		[]string{"a", "b", "c", "d", "e", "f"},
		[][2]string{
			{"a", "b"}, {"b", "c"}, {"b", "d"}, {"c", "e"}, {"d", "e"}, {"e", "b"}, {"e", "f"},
		},
	)
	f.oracle.Defs["a"] = []dfg.Variable{varX, varY}
	f.oracle.Defs["c"] = []dfg.Variable{varX}
	f.oracle.Used["d"] = []dfg.Variable{varY}
	f.oracle.Used["e"] = []dfg.Variable{varX}
	f.oracle.Used["f"] = []dfg.Variable{varX, varY}

	p := New(f.cfg, f.oracle)
	g := p.Graph()

	for _, criterion := range g.Nodes() {
		slice, err := p.BackwardSlice(criterion)
		require.NoError(t, err)
		assert.True(t, slice.Contains(criterion), "criterion %s missing from its slice", criterion)
		for n := range slice {
			for _, pred := range g.Predecessors(n) {
				assert.True(t, slice.Contains(pred), "slice of %s holds %s but not its predecessor %s", criterion, n, pred)
			}
		}
	}
}

func TestBackwardSlice_CriterionWithoutDependences(t *testing.T) {
	f := newFixture([]string{"a", "b"}, [][2]string{{"a", "b"}})
	p := New(f.cfg, f.oracle)

	slice, err := p.BackwardSlice(f.n("b"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("b")))
}

func TestSlice_NodeNotFound(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)
	stranger := graph.NewNode("stranger", 99, "stranger")

	tests := []struct {
		name      string
		criterion *graph.Node
	}{
		{name: "foreign node", criterion: stranger},
		{name: "nil node", criterion: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slice, err := p.BackwardSlice(tt.criterion)
			assert.Nil(t, slice)
			assert.True(t, errors.Is(err, ErrNodeNotFound), "got %v", err)

			_, err = p.ForwardSlice(tt.criterion)
			assert.True(t, errors.Is(err, ErrNodeNotFound))
		})
	}

	_, err := New(nil, nil).BackwardSlice(f.n("merge"))
	assert.True(t, errors.Is(err, ErrNodeNotFound), "the empty graph contains nothing")
}

func TestForwardSlice(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	slice, err := p.ForwardSlice(f.n("branch"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("branch", "left", "right", "merge")))

	slice, err = p.ForwardSlice(f.n("merge"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("merge")))
}

func TestSlice_VariableFilter(t *testing.T) {
	f := newFixture(
		[]string{"defX", "defY", "use"},
		[][2]string{{"defX", "defY"}, {"defY", "use"}},
	)
	f.oracle.Defs["defX"] = []dfg.Variable{varX}
	f.oracle.Defs["defY"] = []dfg.Variable{varY}
	f.oracle.Used["use"] = []dfg.Variable{varX, varY}
	p := New(f.cfg, f.oracle)

	slice, err := p.Slice(SliceOptions{Variable: "x"}, f.n("use"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("use", "defX")))

	slice, err = p.Slice(SliceOptions{}, f.n("use"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("use", "defX", "defY")))

	assert.Equal(t, []string{"x", "y"}, p.Variables())
}

func TestSlice_MultipleCriteria(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	slice, err := p.Slice(SliceOptions{}, f.n("left"), f.n("right"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("left", "right", "branch")))
}

func TestSingleNode(t *testing.T) {
	f := newFixture([]string{"only"}, nil)
	f.oracle.Defs["only"] = []dfg.Variable{varX}
	f.oracle.Used["only"] = []dfg.Variable{varX}

	p := New(f.cfg, f.oracle)
	g := p.Graph()

	assert.Equal(t, 1, g.Len())
	assert.Zero(t, g.EdgeCount())
	assert.Zero(t, p.Control().EdgeCount())
	assert.Zero(t, p.Data().EdgeCount())

	slice, err := p.BackwardSlice(f.n("only"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("only")))
}

func TestGraph_Memoized(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	var wg sync.WaitGroup
	graphs := make([]*graph.Graph, 8)
	for i := range graphs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			graphs[i] = p.Graph()
		}(i)
	}
	wg.Wait()

	for _, g := range graphs {
		assert.Same(t, graphs[0], g)
	}
	assert.Same(t, graphs[0], p.Graph())
}

func TestGraph_UnionOfDependences(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)
	g := p.Graph()

	assert.Equal(t, f.cfg.Nodes(), g.Nodes())
	for _, e := range p.Control().Edges() {
		assert.True(t, g.HasEdge(e.From, e.To))
	}
	for _, e := range p.Data().Edges() {
		assert.True(t, g.HasEdge(e.From, e.To))
	}
	assert.Equal(t, p.Control().EdgeCount()+p.Data().EdgeCount(), g.EdgeCount())
}

func TestEdgesAndDependencies(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	var control, data int
	for _, e := range p.Edges() {
		switch e.Type {
		case DepTypeControl:
			control++
			assert.Empty(t, e.Vars)
		case DepTypeData:
			data++
			assert.Equal(t, []dfg.Variable{varX}, e.Vars)
		default:
			t.Errorf("unexpected edge type %q", e.Type)
		}
	}
	assert.Equal(t, 2, control)
	assert.Equal(t, 2, data)

	deps, err := p.Dependencies(f.n("left"))
	require.NoError(t, err)
	assert.Len(t, deps.ControlIn, 1)
	assert.Len(t, deps.DataOut, 1)
	assert.Empty(t, deps.DataIn)
	assert.Empty(t, deps.ControlOut)

	_, err = p.Dependencies(nil)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestFromInfo(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	restored, err := FromInfo(p.Info("diamond"))
	require.NoError(t, err)

	nodes := restored.NodesAtLine(f.n("merge").Line)
	require.Len(t, nodes, 1)
	slice, err := restored.BackwardSlice(nodes[0])
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, slice.Lines())
	assert.Equal(t, len(p.Edges()), len(restored.Edges()))

	t.Run("dangling edge", func(t *testing.T) {
		_, err := FromInfo(&Info{
			Nodes: []NodeInfo{{ID: "a", Kind: graph.KindStatement, Line: 1}},
			Edges: []EdgeInfo{{Source: "a", Target: "b", Type: DepTypeData}},
		})
		assert.True(t, errors.Is(err, ErrNodeNotFound))
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := FromInfo(&Info{
			Nodes: []NodeInfo{{ID: "a"}, {ID: "a"}},
		})
		assert.Error(t, err)
	})
}

func TestParseGoPDG(t *testing.T) {
	src := `package p

func sum(xs []int, limit int) int {
	total := 0
	count := 0
	for _, x := range xs {
		if x > limit {
			continue
		}
		total += x
		count++
	}
	return total
}
`
	m, p, err := ParseGoPDG([]byte(src), "sum")
	require.NoError(t, err)
	defer m.Close()

	criteria := p.NodesAtLine(13)
	require.Len(t, criteria, 1)

	slice, err := p.BackwardSlice(criteria[0])
	require.NoError(t, err)

	lines := slice.Lines()
	assert.Contains(t, lines, 3, "parameters")
	assert.Contains(t, lines, 4, "total := 0")
	assert.Contains(t, lines, 6, "range header")
	assert.Contains(t, lines, 7, "guard")
	assert.Contains(t, lines, 10, "total += x")
	assert.NotContains(t, lines, 5, "count is irrelevant to total")
	assert.NotContains(t, lines, 11, "count++ is irrelevant to total")
}

func TestRestrict(t *testing.T) {
	f := diamond()
	p := New(f.cfg, f.oracle)

	assert.Same(t, p, p.Restrict(p.Graph()))

	executed := graph.Induced(p.Graph(), func(n *graph.Node) bool { return n != f.n("right") })
	r := p.Restrict(executed)

	slice, err := r.BackwardSlice(f.n("merge"))
	require.NoError(t, err)
	assert.True(t, slice.Equal(f.set("merge", "left", "branch")), "got %v", slice.Sorted())

	_, err = r.BackwardSlice(f.n("right"))
	assert.ErrorIs(t, err, ErrNodeNotFound)

	var data []Edge
	for _, e := range r.Edges() {
		if e.Type == DepTypeData {
			data = append(data, e)
		}
	}
	require.Len(t, data, 1)
	assert.Equal(t, f.n("left"), data[0].From)
	assert.Equal(t, []dfg.Variable{varX}, data[0].Vars)

	t.Run("untyped graph", func(t *testing.T) {
		g := graph.New()
		a, b := graph.NewNode("a", 1, "a"), graph.NewNode("b", 2, "b")
		g.AddEdge(a, b)
		r := FromGraph(g).Restrict(graph.Induced(g, func(n *graph.Node) bool { return n == b }))
		assert.Equal(t, 1, r.Graph().Len())
		assert.Zero(t, r.Graph().EdgeCount())
	})
}
