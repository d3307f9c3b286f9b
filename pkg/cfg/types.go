// Package cfg builds instruction-level control-flow graphs for Go functions.
//
// Every simple statement becomes one graph node, and every if/for/switch
// header becomes a branch node. A synthetic entry and exit bracket the
// method, and a parameters node right after the entry carries the
// definitions of the receiver and parameters.
package cfg

import (
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-program-slicer/pkg/graph"
)

var (
	// ErrFunctionNotFound is returned when the requested function is not declared in the file.
	ErrFunctionNotFound = errors.New("function not found")
	// ErrNoBody is returned for function declarations without a body.
	ErrNoBody = errors.New("function has no body")
)

// StmtKind tells the def/use oracle how to read a statement's syntax.
type StmtKind string

const (
	StmtParams     StmtKind = "params"      // Receiver and parameter declarations
	StmtSimple     StmtKind = "simple"      // Assignment, declaration, call, inc/dec, send
	StmtCondition  StmtKind = "condition"   // if or for condition expression
	StmtRange      StmtKind = "range"       // for ... range header
	StmtSwitch     StmtKind = "switch"      // Expression switch tag
	StmtTypeSwitch StmtKind = "type_switch" // Type switch header with optional alias
	StmtCase       StmtKind = "case"        // case/default clause test
	StmtReturn     StmtKind = "return"      // return statement
	StmtJump       StmtKind = "jump"        // break, continue, goto, fallthrough
)

// Statement is the instruction attached to every non-synthetic CFG node.
// Syntax may be nil, e.g. for `for {}` headers and default clauses.
type Statement struct {
	Kind   StmtKind
	Syntax *sitter.Node
	Text   string
	Line   int
}

// Method is the CFG of one Go function together with the parsed source it
// was built from. The syntax tree stays valid until Close is called.
type Method struct {
	Name     string
	FilePath string
	Content  []byte
	CFG      *graph.Graph
	Entry    *graph.Node
	Exit     *graph.Node
	// Decl is the function_declaration or method_declaration node.
	Decl *sitter.Node

	tree *sitter.Tree
}

// Close releases the syntax tree. Statements must not be inspected afterwards.
func (m *Method) Close() {
	if m == nil || m.tree == nil {
		return
	}
	m.tree.Close()
	m.tree = nil
}

// CyclomaticComplexity returns E - N + 2 of the statement graph.
func (m *Method) CyclomaticComplexity() int {
	if m == nil || m.CFG == nil {
		return 0
	}
	return m.CFG.EdgeCount() - m.CFG.Len() + 2
}

// StatementOf returns the statement attached to n, or nil for synthetic nodes.
func StatementOf(n *graph.Node) *Statement {
	if n == nil {
		return nil
	}
	stmt, _ := n.Instruction.(*Statement)
	return stmt
}

// NodesAtLine returns the CFG nodes whose statement starts at line.
func (m *Method) NodesAtLine(line int) []*graph.Node {
	var out []*graph.Node
	for _, n := range m.CFG.Nodes() {
		if n.Line == line {
			out = append(out, n)
		}
	}
	return out
}
