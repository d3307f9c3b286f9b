package cfg

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

// jumpFrame tracks the break and continue targets of an enclosing loop,
// switch or select.
type jumpFrame struct {
	isLoop bool
	cont   *graph.Node
	breaks []*graph.Node
}

type goCFGBuilder struct {
	content []byte
	g       *graph.Graph
	exit    *graph.Node
	nextID  int
	frames  []*jumpFrame
}

// ExtractGoCFG parses filePath and builds the CFG of functionName, which may
// name a plain function or a method (T.M, (*T).M or just M).
func ExtractGoCFG(filePath string, functionName string) (*Method, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}

	m, err := ParseGo(content, functionName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	m.FilePath = filePath
	return m, nil
}

// ParseGo builds the CFG of the function or method fn from Go source.
func ParseGo(content []byte, fn string) (*Method, error) {
	tree := parseGo(content)

	decl := findFunction(tree.RootNode(), fn, content)
	if decl == nil {
		tree.Close()
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
	}
	body := decl.ChildByFieldName("body")
	if body == nil {
		tree.Close()
		return nil, fmt.Errorf("%w: %q", ErrNoBody, fn)
	}

	b := &goCFGBuilder{
		content: content,
		g:       graph.New(),
	}

	entry := graph.NewSyntheticNode("entry", graph.KindEntry)
	b.exit = graph.NewSyntheticNode("exit", graph.KindExit)
	b.g.AddNode(entry)

	name := functionName(decl, content)
	params := b.newNode(StmtParams, decl, graph.KindStatement)
	params.Text = "func " + name
	b.connect([]*graph.Node{entry}, params)

	ends := b.processStatements(body, []*graph.Node{params})
	b.g.AddNode(b.exit)
	b.connect(ends, b.exit)

	return &Method{
		Name:    name,
		Content: content,
		CFG:     b.g,
		Entry:   entry,
		Exit:    b.exit,
		Decl:    decl,
		tree:    tree,
	}, nil
}

// ListFunctions returns the names of all functions and methods declared in
// the Go source, in declaration order. Methods are listed as Recv.Method.
func ListFunctions(content []byte) []string {
	tree := parseGo(content)
	defer tree.Close()

	var names []string
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if name := functionName(child, content); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func parseGo(content []byte) *sitter.Tree {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	return parser.Parse(nil, content)
}

// functionName returns the name a declaration is looked up by: the plain
// name of a function, or Recv.Method for a method.
func functionName(node *sitter.Node, content []byte) string {
	name := node.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	switch node.Type() {
	case "function_declaration":
		return name.Content(content)
	case "method_declaration":
		if recv := receiverType(node, content); recv != "" {
			return recv + "." + name.Content(content)
		}
		return name.Content(content)
	}
	return ""
}

// receiverType returns the base type name of a method receiver, without
// pointer or type parameters.
func receiverType(decl *sitter.Node, content []byte) string {
	list := decl.ChildByFieldName("receiver")
	if list == nil {
		return ""
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		param := list.NamedChild(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		for typ != nil {
			switch typ.Type() {
			case "pointer_type", "parenthesized_type":
				typ = typ.NamedChild(0)
			case "generic_type":
				typ = typ.ChildByFieldName("type")
			default:
				return typ.Content(content)
			}
		}
	}
	return ""
}

var receiverNoise = strings.NewReplacer("(", "", ")", "", "*", "")

// findFunction resolves name to a declaration. Methods are named T.M or
// (*T).M; a plain name also matches the first method called that way when
// no function has it.
func findFunction(root *sitter.Node, name string, content []byte) *sitter.Node {
	want := receiverNoise.Replace(strings.TrimSpace(name))
	var method *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		qualified := functionName(child, content)
		if qualified == "" {
			continue
		}
		if qualified == want {
			return child
		}
		if method == nil && !strings.Contains(want, ".") && child.Type() == "method_declaration" {
			if n := child.ChildByFieldName("name"); n != nil && n.Content(content) == want {
				method = child
			}
		}
	}
	return method
}

func (b *goCFGBuilder) newNode(kind StmtKind, syntax *sitter.Node, nodeKind graph.NodeKind) *graph.Node {
	b.nextID++
	stmt := &Statement{Kind: kind, Syntax: syntax}
	if syntax != nil {
		stmt.Line = int(syntax.StartPoint().Row) + 1
		stmt.Text = firstLine(syntax.Content(b.content))
	}
	n := graph.NewNode(fmt.Sprintf("n%d", b.nextID), stmt.Line, stmt)
	n.Kind = nodeKind
	n.Text = stmt.Text
	b.g.AddNode(n)
	return n
}

// newHeader creates a node for a header without its own expression, such as
// `for {` or `default:`, positioned at owner.
func (b *goCFGBuilder) newHeader(kind StmtKind, owner *sitter.Node, text string, nodeKind graph.NodeKind) *graph.Node {
	n := b.newNode(kind, nil, nodeKind)
	stmt := StatementOf(n)
	stmt.Line = int(owner.StartPoint().Row) + 1
	stmt.Text = text
	n.Line = stmt.Line
	n.Text = text
	return n
}

func (b *goCFGBuilder) connect(preds []*graph.Node, n *graph.Node) {
	for _, p := range preds {
		b.g.AddEdge(p, n)
	}
}

// processStatements threads preds through every statement of a block, a
// statement list or a case clause and returns the dangling ends.
func (b *goCFGBuilder) processStatements(container *sitter.Node, preds []*graph.Node) []*graph.Node {
	for _, stmt := range statementsOf(container) {
		preds = b.processStatement(stmt, preds)
	}
	return preds
}

// statementsOf lists the statements of a block or case clause, flattening
// statement_list wrappers and skipping clause headers and comments.
func statementsOf(container *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(container.ChildCount()); i++ {
		child := container.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		if container.FieldNameForChild(i) != "" {
			continue
		}
		switch child.Type() {
		case "comment", "empty_statement":
			continue
		case "statement_list":
			out = append(out, statementsOf(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func (b *goCFGBuilder) processStatement(node *sitter.Node, preds []*graph.Node) []*graph.Node {
	switch node.Type() {
	case "block":
		return b.processStatements(node, preds)

	case "if_statement":
		return b.processIf(node, preds)

	case "for_statement":
		return b.processFor(node, preds)

	case "expression_switch_statement":
		return b.processSwitch(node, preds, StmtSwitch, node.ChildByFieldName("value"))

	case "type_switch_statement":
		return b.processSwitch(node, preds, StmtTypeSwitch, node)

	case "select_statement":
		return b.processSwitch(node, preds, StmtSwitch, nil)

	case "labeled_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child != nil && child.Type() != "label_name" {
				return b.processStatement(child, preds)
			}
		}
		return preds

	case "return_statement":
		n := b.newNode(StmtReturn, node, graph.KindStatement)
		b.connect(preds, n)
		b.g.AddEdge(n, b.exit)
		return nil

	case "break_statement":
		n := b.newNode(StmtJump, node, graph.KindStatement)
		b.connect(preds, n)
		if frame := b.innermost(false); frame != nil {
			frame.breaks = append(frame.breaks, n)
		} else {
			b.g.AddEdge(n, b.exit)
		}
		return nil

	case "continue_statement":
		n := b.newNode(StmtJump, node, graph.KindStatement)
		b.connect(preds, n)
		if frame := b.innermost(true); frame != nil {
			b.g.AddEdge(n, frame.cont)
		} else {
			b.g.AddEdge(n, b.exit)
		}
		return nil

	case "goto_statement":
		// Unstructured jumps are approximated as leaving the method.
		n := b.newNode(StmtJump, node, graph.KindStatement)
		b.connect(preds, n)
		b.g.AddEdge(n, b.exit)
		return nil

	case "fallthrough_statement":
		n := b.newNode(StmtJump, node, graph.KindStatement)
		b.connect(preds, n)
		return []*graph.Node{n}

	default:
		n := b.newNode(StmtSimple, node, graph.KindStatement)
		b.connect(preds, n)
		return []*graph.Node{n}
	}
}

func (b *goCFGBuilder) processIf(node *sitter.Node, preds []*graph.Node) []*graph.Node {
	if init := node.ChildByFieldName("initializer"); init != nil {
		preds = b.processStatement(init, preds)
	}

	cond := b.newNode(StmtCondition, node.ChildByFieldName("condition"), graph.KindBranch)
	b.connect(preds, cond)

	var ends []*graph.Node
	if consequence := node.ChildByFieldName("consequence"); consequence != nil {
		ends = append(ends, b.processStatements(consequence, []*graph.Node{cond})...)
	}
	if alternative := node.ChildByFieldName("alternative"); alternative != nil {
		ends = append(ends, b.processStatement(alternative, []*graph.Node{cond})...)
	} else {
		ends = append(ends, cond)
	}
	return ends
}

func (b *goCFGBuilder) processFor(node *sitter.Node, preds []*graph.Node) []*graph.Node {
	var (
		header *graph.Node
		post   *sitter.Node
		exits  bool
	)

	body := node.ChildByFieldName("body")
	if clause := forClause(node, body); clause != nil {
		switch clause.Type() {
		case "for_clause":
			if init := clause.ChildByFieldName("initializer"); init != nil {
				preds = b.processStatement(init, preds)
			}
			if cond := clause.ChildByFieldName("condition"); cond != nil {
				header = b.newNode(StmtCondition, cond, graph.KindBranch)
				exits = true
			}
			post = clause.ChildByFieldName("update")
		case "range_clause":
			header = b.newNode(StmtRange, clause, graph.KindBranch)
			exits = true
		default:
			header = b.newNode(StmtCondition, clause, graph.KindBranch)
			exits = true
		}
	}
	if header == nil {
		header = b.newHeader(StmtCondition, node, "for", graph.KindStatement)
	}
	b.connect(preds, header)

	frame := &jumpFrame{isLoop: true, cont: header}
	var postNode *graph.Node
	if post != nil {
		postNode = b.newNode(StmtSimple, post, graph.KindStatement)
		frame.cont = postNode
	}

	b.frames = append(b.frames, frame)
	var ends []*graph.Node
	if body != nil {
		ends = b.processStatements(body, []*graph.Node{header})
	} else {
		ends = []*graph.Node{header}
	}
	b.frames = b.frames[:len(b.frames)-1]

	if postNode != nil {
		b.connect(ends, postNode)
		b.g.AddEdge(postNode, header)
	} else {
		b.connect(ends, header)
	}

	var out []*graph.Node
	if exits {
		out = append(out, header)
	}
	return append(out, frame.breaks...)
}

// processSwitch handles expression switches, type switches and selects.
// The clause tests form a chain in source order: each test branches into
// its body when it holds and on to the next test when it does not. The last
// test falls back to the default clause, or leaves the switch. A
// fallthrough carries into the next clause's body.
func (b *goCFGBuilder) processSwitch(node *sitter.Node, preds []*graph.Node, kind StmtKind, tag *sitter.Node) []*graph.Node {
	if init := node.ChildByFieldName("initializer"); init != nil {
		preds = b.processStatement(init, preds)
	}

	var header *graph.Node
	if tag != nil {
		header = b.newNode(kind, tag, graph.KindStatement)
		if kind == StmtTypeSwitch {
			header.Text = switchHeaderText(node, b.content)
			StatementOf(header).Text = header.Text
		}
	} else {
		header = b.newHeader(kind, node, firstLine(node.Content(b.content)), graph.KindStatement)
	}
	b.connect(preds, header)

	frame := &jumpFrame{}
	b.frames = append(b.frames, frame)

	var (
		ends        []*graph.Node
		pending     []*graph.Node
		defaultTest *graph.Node
	)
	untaken := []*graph.Node{header}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause == nil {
			continue
		}

		var test *graph.Node
		switch clause.Type() {
		case "expression_case":
			test = b.newNode(StmtCase, clause.ChildByFieldName("value"), graph.KindBranch)
		case "type_case":
			test = b.newNode(StmtCase, clause, graph.KindBranch)
			test.Text = caseHeaderText(clause, b.content)
			StatementOf(test).Text = test.Text
		case "communication_case":
			test = b.newNode(StmtCase, clause.ChildByFieldName("communication"), graph.KindBranch)
		case "default_case":
			test = b.newHeader(StmtCase, clause, "default:", graph.KindStatement)
			defaultTest = test
		default:
			continue
		}
		if test != defaultTest {
			b.connect(untaken, test)
			untaken = []*graph.Node{test}
		}

		// The body is built before the next test exists, so the first
		// successor of test is its first body statement.
		clauseEnds := b.processStatements(clause, []*graph.Node{test})
		if !b.connectFallthrough(pending, test) {
			ends = append(ends, pending...)
		}
		pending = nil

		for _, end := range clauseEnds {
			if isFallthrough(end) {
				pending = append(pending, end)
				continue
			}
			ends = append(ends, end)
		}
	}
	ends = append(ends, pending...)
	b.frames = b.frames[:len(b.frames)-1]

	if defaultTest != nil {
		b.connect(untaken, defaultTest)
	} else {
		ends = append(ends, untaken...)
	}
	return append(ends, frame.breaks...)
}

// connectFallthrough links fallthrough statements of the previous clause to
// the first body statement of the clause tested by test.
func (b *goCFGBuilder) connectFallthrough(from []*graph.Node, test *graph.Node) bool {
	succ := b.g.Successors(test)
	if len(from) == 0 || len(succ) == 0 {
		return false
	}
	for _, f := range from {
		b.g.AddEdge(f, succ[0])
	}
	return true
}

// forClause returns the clause or condition between `for` and the body, if any.
func forClause(node, body *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if body != nil && child.Equal(body) {
			continue
		}
		return child
	}
	return nil
}

func isFallthrough(n *graph.Node) bool {
	stmt := StatementOf(n)
	return stmt != nil && stmt.Syntax != nil && stmt.Syntax.Type() == "fallthrough_statement"
}

// innermost returns the closest enclosing frame; loopOnly skips switches and selects.
func (b *goCFGBuilder) innermost(loopOnly bool) *jumpFrame {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if !loopOnly || b.frames[i].isLoop {
			return b.frames[i]
		}
	}
	return nil
}

func switchHeaderText(node *sitter.Node, content []byte) string {
	text := firstLine(node.Content(content))
	return strings.TrimSpace(strings.TrimSuffix(text, "{"))
}

// caseHeaderText returns a clause's `case ...:` line without its body.
func caseHeaderText(clause *sitter.Node, content []byte) string {
	text := firstLine(clause.Content(content))
	if i := strings.Index(text, ":"); i >= 0 {
		return text[:i+1]
	}
	return text
}

// firstLine returns the first line of s, cut to at most 80 runes.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	const max = 80
	if utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max-3]) + "..."
	}
	return s
}
