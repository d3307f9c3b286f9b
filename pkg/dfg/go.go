package dfg

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-program-slicer/pkg/cfg"
)

// ErrUnsupportedInstruction is returned by GoOracle for instructions that
// were not produced by package cfg.
var ErrUnsupportedInstruction = errors.New("unsupported instruction")

// GoOracle reads definitions and uses off the statements of a Go method.
//
// Names declared inside the function (parameters, receiver, named results,
// var and short variable declarations, range keys, type switch aliases) are
// locals; every other identifier is treated as a package-level variable.
// A local's Type is the type written at its first typed declaration, or
// empty when it was declared without one.
//
// Writes through a selector, index or pointer define field and element
// variables. Reading a value as a whole also reads every such variable
// rooted at it, so `return *p` depends on an earlier `p.x = 5`.
type GoOracle struct {
	content    []byte
	locals     map[string]string
	results    []string
	composites []Variable
}

// NewGoOracle prepares an oracle for the statements of m.
func NewGoOracle(m *cfg.Method) *GoOracle {
	o := &GoOracle{locals: make(map[string]string)}
	if m == nil || m.Decl == nil {
		return o
	}
	o.content = m.Content
	o.collectDeclarations(m.Decl)
	if list := m.Decl.ChildByFieldName("result"); list != nil && list.Type() == "parameter_list" {
		for _, name := range parameterNames(list, o.content) {
			o.results = append(o.results, name.Content(o.content))
		}
	}
	o.collectComposites(m.Decl.ChildByFieldName("body"))
	return o
}

// Definitions implements DefUseOracle.
func (o *GoOracle) Definitions(instruction any) ([]Variable, error) {
	defs, _, err := o.analyze(instruction)
	return defs, err
}

// Uses implements DefUseOracle.
func (o *GoOracle) Uses(instruction any) ([]Variable, error) {
	_, uses, err := o.analyze(instruction)
	return uses, err
}

type defUse struct {
	o    *GoOracle
	defs []Variable
	uses []Variable
}

func (o *GoOracle) analyze(instruction any) ([]Variable, []Variable, error) {
	stmt, ok := instruction.(*cfg.Statement)
	if !ok || stmt == nil {
		return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedInstruction, instruction)
	}

	du := &defUse{o: o}
	node := stmt.Syntax
	if node == nil {
		return nil, nil, nil
	}

	switch stmt.Kind {
	case cfg.StmtParams:
		for _, list := range signatureLists(node) {
			for _, name := range parameterNames(list, o.content) {
				du.define(o.variable(name.Content(o.content)))
			}
		}

	case cfg.StmtSimple:
		du.statement(node)

	case cfg.StmtRange:
		du.rangeClause(node)

	case cfg.StmtTypeSwitch:
		if alias := node.ChildByFieldName("alias"); alias != nil {
			for _, id := range namedChildren(alias) {
				du.assign(id)
			}
		}
		du.use(node.ChildByFieldName("value"))

	case cfg.StmtCase:
		du.caseTest(node)

	case cfg.StmtReturn:
		du.use(node)
		if !hasOperands(node) {
			for _, name := range o.results {
				du.read(o.variable(name))
				du.readComposites(name)
			}
		}

	case cfg.StmtJump:
		// labels and jumps carry no data

	default:
		du.use(node)
	}
	return du.defs, du.uses, nil
}

// statement records the definitions and uses of one simple statement.
func (du *defUse) statement(node *sitter.Node) {
	switch node.Type() {
	case "short_var_declaration":
		du.use(node.ChildByFieldName("right"))
		for _, target := range namedChildren(node.ChildByFieldName("left")) {
			du.assign(target)
		}

	case "assignment_statement":
		compound := false
		if op := node.ChildByFieldName("operator"); op != nil {
			compound = op.Type() != "="
		}
		du.use(node.ChildByFieldName("right"))
		for _, target := range namedChildren(node.ChildByFieldName("left")) {
			if compound {
				du.use(target)
			}
			du.assign(target)
		}

	case "inc_statement", "dec_statement":
		if target := node.NamedChild(0); target != nil {
			du.use(target)
			du.assign(target)
		}

	case "receive_statement":
		du.use(node.ChildByFieldName("right"))
		for _, target := range namedChildren(node.ChildByFieldName("left")) {
			du.assign(target)
		}

	case "var_declaration", "const_declaration":
		walk(node, func(n *sitter.Node) bool {
			if n.Type() != "var_spec" && n.Type() != "const_spec" {
				return true
			}
			du.use(n.ChildByFieldName("value"))
			for _, name := range childrenByField(n, "name") {
				du.define(du.o.variable(name.Content(du.o.content)))
			}
			return false
		})

	case "type_declaration":

	default:
		du.use(node)
	}
}

func (du *defUse) rangeClause(node *sitter.Node) {
	du.use(node.ChildByFieldName("right"))
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	for _, target := range namedChildren(left) {
		du.assign(target)
	}
}

// assign records a write to an assignable expression. Writes through a
// selector, index or pointer also read the expressions they go through.
func (du *defUse) assign(target *sitter.Node) {
	if target == nil {
		return
	}
	switch target.Type() {
	case "identifier":
		name := target.Content(du.o.content)
		if name == "_" {
			return
		}
		du.define(du.o.variable(name))

	case "parenthesized_expression":
		du.assign(target.NamedChild(0))

	case "selector_expression":
		du.define(Variable{Kind: VarField, Name: compact(target.Content(du.o.content))})
		du.usePath(target.ChildByFieldName("operand"))

	case "index_expression":
		operand := target.ChildByFieldName("operand")
		if operand != nil {
			du.define(Variable{Kind: VarElement, Name: compact(operand.Content(du.o.content))})
		}
		du.usePath(operand)
		du.use(target.ChildByFieldName("index"))

	case "unary_expression":
		operand := target.ChildByFieldName("operand")
		if operand != nil {
			du.define(Variable{Kind: VarElement, Name: "*" + compact(operand.Content(du.o.content))})
		}
		du.usePath(operand)

	default:
		du.use(target)
	}
}

// caseTest records the reads of a switch or select clause test. An
// expression case compares against the switch tag and a type case inspects
// the switched value, so both read those too.
func (du *defUse) caseTest(node *sitter.Node) {
	if node.Type() == "type_case" {
		if sw := node.Parent(); sw != nil {
			du.use(sw.ChildByFieldName("value"))
		}
		return
	}
	parent := node.Parent()
	if parent != nil && parent.Type() == "communication_case" {
		du.statement(node)
		return
	}
	du.use(node)
	if parent != nil && parent.Type() == "expression_case" {
		if sw := parent.Parent(); sw != nil {
			du.use(sw.ChildByFieldName("value"))
		}
	}
}

// use records every variable read inside node.
func (du *defUse) use(node *sitter.Node) {
	if node == nil {
		return
	}
	walk(node, func(n *sitter.Node) bool {
		switch n.Type() {
		case "identifier":
			du.readName(n, true)
			return false

		case "selector_expression":
			operand := n.ChildByFieldName("operand")
			if operand != nil && isPath(operand) {
				path := compact(n.Content(du.o.content))
				du.read(Variable{Kind: VarField, Name: path})
				du.readComposites(path)
				du.usePath(operand)
				return false
			}
			du.use(operand)
			return false

		case "index_expression":
			operand := n.ChildByFieldName("operand")
			if operand == nil || !isPath(operand) {
				return true
			}
			path := compact(operand.Content(du.o.content))
			du.read(Variable{Kind: VarElement, Name: path})
			du.readComposites(path)
			du.usePath(operand)
			du.use(n.ChildByFieldName("index"))
			return false

		case "unary_expression":
			operand := n.ChildByFieldName("operand")
			op := n.ChildByFieldName("operator")
			if op == nil || op.Type() != "*" || operand == nil || !isPath(operand) {
				return true
			}
			path := compact(operand.Content(du.o.content))
			du.read(Variable{Kind: VarElement, Name: "*" + path})
			du.readComposites(path)
			du.usePath(operand)
			return false

		case "func_literal":
			du.use(n.ChildByFieldName("body"))
			return false

		case "field_identifier", "type_identifier", "package_identifier", "label_name":
			return false
		}
		return true
	})
}

// usePath records the reads needed to reach through a path such as `p` in
// `p.x` or `a.b` in `a.b[i]`, without reading the whole value it names.
func (du *defUse) usePath(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		du.readName(n, false)
	case "selector_expression":
		operand := n.ChildByFieldName("operand")
		if operand != nil && isPath(operand) {
			du.read(Variable{Kind: VarField, Name: compact(n.Content(du.o.content))})
			du.usePath(operand)
			return
		}
		du.use(n)
	default:
		du.use(n)
	}
}

func (du *defUse) readName(n *sitter.Node, whole bool) {
	name := n.Content(du.o.content)
	if name == "_" {
		return
	}
	if _, local := du.o.locals[name]; !local && isGoBuiltin(name) {
		return
	}
	du.read(du.o.variable(name))
	if whole {
		du.readComposites(name)
	}
}

// readComposites records reads of the field and element variables written
// somewhere in the function under path.
func (du *defUse) readComposites(path string) {
	for _, v := range du.o.composites {
		name := strings.TrimPrefix(v.Name, "*")
		if name == path || strings.HasPrefix(name, path+".") || strings.HasPrefix(name, path+"[") {
			du.read(v)
		}
	}
}

func (du *defUse) read(v Variable) {
	for _, u := range du.uses {
		if u == v {
			return
		}
	}
	du.uses = append(du.uses, v)
}

func (du *defUse) define(v Variable) {
	du.defs = append(du.defs, v)
}

// variable resolves name against the function's local declarations.
func (o *GoOracle) variable(name string) Variable {
	if typ, ok := o.locals[name]; ok {
		return Variable{Kind: VarLocal, Name: name, Type: typ}
	}
	return Variable{Kind: VarGlobal, Name: name}
}

// collectDeclarations records the names declared anywhere in decl along
// with the type of their first typed declaration.
func (o *GoOracle) collectDeclarations(decl *sitter.Node) {
	declare := func(name *sitter.Node, typ *sitter.Node) {
		if name == nil || name.Type() != "identifier" {
			return
		}
		n := name.Content(o.content)
		if n == "_" {
			return
		}
		t := ""
		if typ != nil {
			t = compact(typ.Content(o.content))
		}
		if prev, ok := o.locals[n]; !ok || (prev == "" && t != "") {
			o.locals[n] = t
		}
	}

	for _, list := range signatureLists(decl) {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			param := list.NamedChild(i)
			if param == nil {
				continue
			}
			typ := param.ChildByFieldName("type")
			for _, name := range childrenByField(param, "name") {
				declare(name, typ)
			}
		}
	}

	body := decl.ChildByFieldName("body")
	if body == nil {
		return
	}
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "var_spec":
			typ := n.ChildByFieldName("type")
			for _, name := range childrenByField(n, "name") {
				declare(name, typ)
			}
		case "short_var_declaration", "receive_statement":
			if n.Type() == "receive_statement" && !isDefine(n) {
				return true
			}
			for _, name := range namedChildren(n.ChildByFieldName("left")) {
				declare(name, nil)
			}
		case "range_clause":
			if isDefine(n) {
				for _, name := range namedChildren(n.ChildByFieldName("left")) {
					declare(name, nil)
				}
			}
		case "type_switch_statement":
			for _, name := range namedChildren(n.ChildByFieldName("alias")) {
				declare(name, nil)
			}
		case "func_literal":
			if params := n.ChildByFieldName("parameters"); params != nil {
				for i := 0; i < int(params.NamedChildCount()); i++ {
					param := params.NamedChild(i)
					if param == nil {
						continue
					}
					for _, name := range childrenByField(param, "name") {
						declare(name, param.ChildByFieldName("type"))
					}
				}
			}
		}
		return true
	})
}

// collectComposites records the field and element variables assigned
// anywhere in body.
func (o *GoOracle) collectComposites(body *sitter.Node) {
	seen := make(map[Variable]bool)
	add := func(target *sitter.Node) {
		for target != nil && target.Type() == "parenthesized_expression" {
			target = target.NamedChild(0)
		}
		if target == nil {
			return
		}
		var v Variable
		switch target.Type() {
		case "selector_expression":
			v = Variable{Kind: VarField, Name: compact(target.Content(o.content))}
		case "index_expression", "unary_expression":
			operand := target.ChildByFieldName("operand")
			if operand == nil {
				return
			}
			v = Variable{Kind: VarElement, Name: compact(operand.Content(o.content))}
			if target.Type() == "unary_expression" {
				v.Name = "*" + v.Name
			}
		default:
			return
		}
		if !seen[v] {
			seen[v] = true
			o.composites = append(o.composites, v)
		}
	}

	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "assignment_statement", "receive_statement", "range_clause":
			for _, target := range namedChildren(n.ChildByFieldName("left")) {
				add(target)
			}
		case "inc_statement", "dec_statement":
			add(n.NamedChild(0))
		}
		return true
	})
}

// signatureLists returns the receiver, parameter and named result lists of
// a function or method declaration.
func signatureLists(decl *sitter.Node) []*sitter.Node {
	var lists []*sitter.Node
	for _, field := range []string{"receiver", "parameters", "result"} {
		if list := decl.ChildByFieldName(field); list != nil && list.Type() == "parameter_list" {
			lists = append(lists, list)
		}
	}
	return lists
}

func parameterNames(list *sitter.Node, content []byte) []*sitter.Node {
	var names []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		param := list.NamedChild(i)
		if param == nil {
			continue
		}
		for _, name := range childrenByField(param, "name") {
			if name.Content(content) != "_" {
				names = append(names, name)
			}
		}
	}
	return names
}

// hasOperands reports whether a return statement lists its results.
func hasOperands(ret *sitter.Node) bool {
	for i := 0; i < int(ret.NamedChildCount()); i++ {
		if child := ret.NamedChild(i); child != nil && child.Type() != "comment" {
			return true
		}
	}
	return false
}

func isDefine(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && child.Type() == ":=" {
			return true
		}
	}
	return false
}

// isPath reports whether n is an identifier or a chain of selectors on one.
func isPath(n *sitter.Node) bool {
	for n != nil {
		switch n.Type() {
		case "identifier":
			return true
		case "selector_expression":
			n = n.ChildByFieldName("operand")
		default:
			return false
		}
	}
	return false
}

func childrenByField(node *sitter.Node, field string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == field {
			if child := node.Child(i); child != nil {
				out = append(out, child)
			}
		}
	}
	return out
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() != "expression_list" {
		return []*sitter.Node{node}
	}
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil && child.Type() != "comment" {
			out = append(out, child)
		}
	}
	return out
}

// walk visits node and its descendants depth first. Children of a node are
// skipped when visit returns false for it.
func walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil {
			walk(child, visit)
		}
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func isGoBuiltin(name string) bool {
	switch name {
	case "append", "cap", "clear", "close", "complex", "copy", "delete",
		"imag", "len", "make", "max", "min", "new", "panic", "print",
		"println", "real", "recover",
		"true", "false", "nil", "iota",
		"any", "bool", "byte", "comparable", "complex64", "complex128",
		"error", "float32", "float64", "int", "int8", "int16", "int32",
		"int64", "rune", "string", "uint", "uint8", "uint16", "uint32",
		"uint64", "uintptr":
		return true
	}
	return false
}
