package cfg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

func parse(t *testing.T, src, fn string) *Method {
	t.Helper()
	m, err := ParseGo([]byte(src), fn)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// byText finds the unique node whose statement text is text.
func byText(t *testing.T, m *Method, text string) *graph.Node {
	t.Helper()
	var found *graph.Node
	for _, n := range m.CFG.Nodes() {
		if n.Text == text {
			require.Nil(t, found, "more than one node with text %q", text)
			found = n
		}
	}
	require.NotNil(t, found, "no node with text %q", text)
	return found
}

func lines(nodes []*graph.Node) []int {
	graph.SortNodes(nodes)
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Line)
	}
	return out
}

const straightLine = `package p

func f(a int) int {
	b := a + 1
	c := b * 2
	return c
}
`

func TestParseGo_StraightLine(t *testing.T) {
	m := parse(t, straightLine, "f")

	assert.Equal(t, 6, m.CFG.Len())
	assert.Equal(t, 5, m.CFG.EdgeCount())

	entry, ok := m.CFG.Entry()
	require.True(t, ok)
	assert.Same(t, m.Entry, entry)
	exit, ok := m.CFG.Exit()
	require.True(t, ok)
	assert.Same(t, m.Exit, exit)

	params := m.CFG.Successors(m.Entry)
	require.Len(t, params, 1)
	assert.Equal(t, 3, params[0].Line)
	assert.Equal(t, StmtParams, StatementOf(params[0]).Kind)

	ret := byText(t, m, "return c")
	assert.Equal(t, StmtReturn, StatementOf(ret).Kind)
	assert.Equal(t, []*graph.Node{m.Exit}, m.CFG.Successors(ret))
	assert.Equal(t, 1, m.CyclomaticComplexity())
}

func TestParseGo_IfElse(t *testing.T) {
	src := `package p

func g(x int) int {
	y := 0
	if x > 0 {
		y = 1
	} else {
		y = 2
	}
	return y
}
`
	m := parse(t, src, "g")

	cond := byText(t, m, "x > 0")
	assert.Equal(t, graph.KindBranch, cond.Kind)
	assert.Equal(t, []int{6, 8}, lines(m.CFG.Successors(cond)))
	assert.Equal(t, []int{6, 8}, lines(m.CFG.Predecessors(byText(t, m, "return y"))))
	assert.Equal(t, 2, m.CyclomaticComplexity())
}

func TestParseGo_IfWithoutElse(t *testing.T) {
	src := `package p

func g(x int) int {
	if v := x * 2; v > 10 {
		x = v
	}
	return x
}
`
	m := parse(t, src, "g")

	init := byText(t, m, "v := x * 2")
	cond := byText(t, m, "v > 10")
	ret := byText(t, m, "return x")

	assert.Equal(t, []*graph.Node{cond}, m.CFG.Successors(init))
	assert.Equal(t, []int{5, 7}, lines(m.CFG.Successors(cond)))
	assert.True(t, m.CFG.HasEdge(cond, ret))
}

func TestParseGo_ForClauseWithJumps(t *testing.T) {
	src := `package p

func h(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		if i == 3 {
			continue
		}
		if i == 7 {
			break
		}
		s += i
	}
	return s
}
`
	m := parse(t, src, "h")

	init := byText(t, m, "i := 0")
	cond := byText(t, m, "i < n")
	post := byText(t, m, "i++")
	cont := byText(t, m, "continue")
	brk := byText(t, m, "break")
	body := byText(t, m, "s += i")
	ret := byText(t, m, "return s")

	assert.Len(t, m.NodesAtLine(5), 3)
	assert.True(t, m.CFG.HasEdge(init, cond))
	assert.True(t, m.CFG.HasEdge(post, cond))
	assert.True(t, m.CFG.HasEdge(cond, ret), "loop exit")
	assert.Equal(t, []*graph.Node{post}, m.CFG.Successors(cont))
	assert.Equal(t, []*graph.Node{ret}, m.CFG.Successors(brk))
	assert.Equal(t, []*graph.Node{post}, m.CFG.Successors(body))
}

func TestParseGo_RangeAndInfiniteLoops(t *testing.T) {
	src := `package p

func r(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	for {
		if total > 100 {
			return total
		}
		total *= 2
	}
}
`
	m := parse(t, src, "r")

	rng := byText(t, m, "_, x := range xs")
	assert.Equal(t, StmtRange, StatementOf(rng).Kind)
	assert.True(t, m.CFG.HasEdge(byText(t, m, "total += x"), rng))

	loop := byText(t, m, "for")
	assert.True(t, m.CFG.HasEdge(rng, loop))
	assert.True(t, m.CFG.HasEdge(byText(t, m, "total *= 2"), loop))

	ret := byText(t, m, "return total")
	assert.Equal(t, []*graph.Node{m.Exit}, m.CFG.Successors(ret))
	assert.Equal(t, []*graph.Node{ret}, m.CFG.Predecessors(m.Exit), "the infinite loop only leaves through return")
}

func TestParseGo_Switch(t *testing.T) {
	src := `package p

func s(k int) string {
	name := ""
	switch k {
	case 1:
		name = "one"
		fallthrough
	case 2:
		name += "two"
	default:
		name = "many"
	}
	return name
}
`
	m := parse(t, src, "s")

	header := byText(t, m, "k")
	assert.Equal(t, StmtSwitch, StatementOf(header).Kind)
	one, two, def := byText(t, m, "1"), byText(t, m, "2"), byText(t, m, "default:")
	assert.Equal(t, []*graph.Node{one}, m.CFG.Successors(header))

	assert.Equal(t, graph.KindBranch, one.Kind)
	assert.Equal(t, []*graph.Node{byText(t, m, `name = "one"`), two}, m.CFG.Successors(one))
	assert.Equal(t, graph.KindBranch, two.Kind)
	assert.Equal(t, []*graph.Node{byText(t, m, `name += "two"`), def}, m.CFG.Successors(two))
	assert.Equal(t, []*graph.Node{byText(t, m, `name = "many"`)}, m.CFG.Successors(def))

	ft := byText(t, m, "fallthrough")
	assert.Equal(t, []*graph.Node{byText(t, m, `name += "two"`)}, m.CFG.Successors(ft))

	ret := byText(t, m, "return name")
	assert.Equal(t, []int{10, 12}, lines(m.CFG.Predecessors(ret)))
}

func TestParseGo_SwitchWithoutDefault(t *testing.T) {
	src := `package p

func s(k int) int {
	switch {
	case k < 0:
		return -1
	case k > 0:
		k = 1
	}
	return k
}
`
	m := parse(t, src, "s")

	header := byText(t, m, "switch {")
	negative, positive := byText(t, m, "k < 0"), byText(t, m, "k > 0")
	ret := byText(t, m, "return k")
	assert.Equal(t, []*graph.Node{negative}, m.CFG.Successors(header))
	assert.True(t, m.CFG.HasEdge(negative, positive))
	assert.True(t, m.CFG.HasEdge(positive, ret), "no clause matched")
	assert.False(t, m.CFG.HasEdge(header, ret))
	assert.True(t, m.CFG.HasEdge(byText(t, m, "k = 1"), ret))
}

func TestParseGo_TypeSwitch(t *testing.T) {
	src := `package p

func size(v any) int {
	switch x := v.(type) {
	case string:
		return len(x)
	default:
		return 1
	case []int:
		return len(x)
	}
}
`
	m := parse(t, src, "size")

	header := byText(t, m, "switch x := v.(type)")
	str, ints, def := byText(t, m, "case string:"), byText(t, m, "case []int:"), byText(t, m, "default:")
	assert.Equal(t, StmtTypeSwitch, StatementOf(header).Kind)
	assert.Equal(t, []*graph.Node{str}, m.CFG.Successors(header))
	assert.True(t, m.CFG.HasEdge(str, ints), "default is tried last")
	assert.True(t, m.CFG.HasEdge(ints, def))
	assert.False(t, m.CFG.HasEdge(str, def))
	assert.Equal(t, "type_case", StatementOf(str).Syntax.Type())
}

func TestParseGo_Method(t *testing.T) {
	src := `package p

type counter struct{ n int }

func (c *counter) Inc(by int) {
	c.n += by
}
`
	m := parse(t, src, "Inc")

	assert.Equal(t, "method_declaration", m.Decl.Type())
	assert.Equal(t, 4, m.CFG.Len())
}

func TestParseGo_MethodsSharingAName(t *testing.T) {
	src := `package p

type A struct{}

func (A) String() string { return "a" }

type B[T any] struct{ v T }

func (b *B[T]) String() string {
	s := "b"
	return s
}
`
	tests := []struct {
		fn       string
		wantName string
		wantLen  int
	}{
		{fn: "A.String", wantName: "A.String", wantLen: 4},
		{fn: "B.String", wantName: "B.String", wantLen: 5},
		{fn: "(*B).String", wantName: "B.String", wantLen: 5},
		{fn: "String", wantName: "A.String", wantLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			m := parse(t, src, tt.fn)
			assert.Equal(t, tt.wantName, m.Name)
			assert.Equal(t, tt.wantLen, m.CFG.Len())
		})
	}

	assert.Equal(t, []string{"A.String", "B.String"}, ListFunctions([]byte(src)))

	_, err := ParseGo([]byte(src), "C.String")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestFirstLine(t *testing.T) {
	long := strings.Repeat("é", 100)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "first line only", in: "  a := 1\n\tb := 2", want: "a := 1"},
		{name: "short text kept", in: "x := \"héllo\"", want: "x := \"héllo\""},
		{name: "cut on rune boundary", in: long, want: strings.Repeat("é", 77) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstLine(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestParseGo_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		fn      string
		wantErr error
	}{
		{
			name:    "missing function",
			src:     straightLine,
			fn:      "nope",
			wantErr: ErrFunctionNotFound,
		},
		{
			name:    "declaration without body",
			src:     "package p\n\nfunc asm(x int) int\n",
			fn:      "asm",
			wantErr: ErrNoBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGo([]byte(tt.src), tt.fn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestExtractGoCFG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.go")
	require.NoError(t, os.WriteFile(path, []byte(straightLine), 0644))

	m, err := ExtractGoCFG(path, "f")
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, path, m.FilePath)
	assert.Equal(t, "f", m.Name)

	_, err = ExtractGoCFG(filepath.Join(t.TempDir(), "missing.go"), "f")
	assert.Error(t, err)
}

func TestListFunctions(t *testing.T) {
	src := `package p

func a() {}

type T struct{}

func (T) b() {}

var v = func() {}

func c() {}
`
	assert.Equal(t, []string{"a", "T.b", "c"}, ListFunctions([]byte(src)))
	assert.Empty(t, ListFunctions([]byte("package p\n")))
}

func TestMethodClose(t *testing.T) {
	m, err := ParseGo([]byte(straightLine), "f")
	require.NoError(t, err)

	m.Close()
	m.Close()

	var nilMethod *Method
	nilMethod.Close()
	assert.Zero(t, nilMethod.CyclomaticComplexity())
}
