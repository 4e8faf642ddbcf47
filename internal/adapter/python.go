package adapter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Python lowers Python 3 source.
type Python struct{}

func (Python) Language() source.Language { return source.Python }

func (Python) Parse(ctx context.Context, unit *source.Unit) (*ir.Node, diag.List) {
	l := newLowerer(unit)
	tree, err := parseTree(ctx, python.GetLanguage(), l.src)
	if err != nil {
		l.diags.Append(fmt.Errorf("parse %s: %w", unit.Path(), err))
		return nil, l.diags
	}
	defer tree.Close()

	root := tree.RootNode()
	if l.syntaxErrors(root) {
		return nil, l.diags
	}
	p := &pyLowerer{lowerer: l}
	p.push()
	mod := l.newModule()
	for _, c := range named(root) {
		mod.Children = append(mod.Children, p.topLevel(c)...)
	}
	return l.finish(mod)
}

var pyOps = map[string]ir.Op{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod, "**": ir.OpPow,
	"==": ir.OpEq, "!=": ir.OpNe, "<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
	"and": ir.OpAnd, "or": ir.OpOr,
}

var pyTypes = map[string]string{
	"int": ir.TypeInt, "float": ir.TypeFloat, "str": ir.TypeString, "bool": ir.TypeBool,
	"None": "", "object": "", "Any": "",
}

// pyLowerer tracks the names bound in each function scope: the first
// assignment to a name declares it.
type pyLowerer struct {
	*lowerer
	scopes []map[string]bool
}

func (p *pyLowerer) push() { p.scopes = append(p.scopes, map[string]bool{}) }
func (p *pyLowerer) pop()  { p.scopes = p.scopes[:len(p.scopes)-1] }

// declare binds name in the innermost scope and reports whether it was new.
func (p *pyLowerer) declare(name string) bool {
	scope := p.scopes[len(p.scopes)-1]
	if scope[name] {
		return false
	}
	scope[name] = true
	return true
}

func (p *pyLowerer) topLevel(n *sitter.Node) []*ir.Node {
	switch n.Type() {
	case "import_statement":
		return p.importStmt(n)
	case "import_from_statement":
		return p.importFrom(n)
	case "function_definition":
		fn := p.funcDef(n)
		if fn == nil {
			return nil
		}
		p.declare(fn.Name)
		return []*ir.Node{fn}
	}
	return p.stmt(n)
}

func (p *pyLowerer) importStmt(n *sitter.Node) []*ir.Node {
	var out []*ir.Node
	for _, c := range named(n) {
		var name, alias string
		switch c.Type() {
		case "dotted_name":
			name = p.text(c)
			alias, _, _ = strings.Cut(name, ".")
		case "aliased_import":
			name = p.text(c.ChildByFieldName("name"))
			alias = p.text(c.ChildByFieldName("alias"))
		default:
			p.unsupported(c, "module name")
			continue
		}
		p.declare(alias)
		out = append(out, &ir.Node{Kind: ir.KindImport, Name: name, Path: name, Alias: alias, Pos: p.pos(c)})
	}
	return out
}

func (p *pyLowerer) importFrom(n *sitter.Node) []*ir.Node {
	modNode := n.ChildByFieldName("module_name")
	spec := p.text(modNode)
	name := strings.TrimLeft(spec, ".")
	if name == "" {
		p.unsupported(modNode, "module name")
		return nil
	}
	var out []*ir.Node
	for _, c := range named(n)[1:] {
		var member, alias string
		switch c.Type() {
		case "dotted_name":
			member = p.text(c)
			alias = member
		case "aliased_import":
			member = p.text(c.ChildByFieldName("name"))
			alias = p.text(c.ChildByFieldName("alias"))
		default:
			p.unsupported(c, "imported name")
			continue
		}
		p.declare(alias)
		out = append(out, &ir.Node{
			Kind: ir.KindImport, Name: name, Path: spec, Value: member, Alias: alias, Pos: p.pos(c),
		})
	}
	return out
}

func (p *pyLowerer) funcDef(n *sitter.Node) *ir.Node {
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		return p.unsupported(tp, "function without type parameters")
	}
	fn := &ir.Node{Kind: ir.KindFunc, Name: p.text(n.ChildByFieldName("name")), Pos: p.pos(n)}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		fn.Type = p.typeName(rt)
	}

	p.push()
	defer p.pop()
	params := p.params(n.ChildByFieldName("parameters"))
	body := p.block(n.ChildByFieldName("body"))
	fn.Children = []*ir.Node{params, body}
	return fn
}

func (p *pyLowerer) params(n *sitter.Node) *ir.Node {
	params := ir.New(ir.KindParams, p.pos(n))
	for _, c := range named(n) {
		param := &ir.Node{Kind: ir.KindParam, Pos: p.pos(c)}
		switch c.Type() {
		case "identifier":
			param.Name = p.text(c)
		case "typed_parameter":
			for _, k := range named(c) {
				if k.Type() == "identifier" {
					param.Name = p.text(k)
					break
				}
			}
			if param.Name == "" {
				p.unsupported(c, "named parameter")
				continue
			}
			param.Type = p.typeName(c.ChildByFieldName("type"))
		default:
			p.unsupported(c, "plain or annotated parameter")
			continue
		}
		p.declare(param.Name)
		params.Children = append(params.Children, param)
	}
	return params
}

func (p *pyLowerer) typeName(n *sitter.Node) string {
	t, ok := pyTypes[p.text(n)]
	if !ok {
		p.unsupported(n, "int, float, str or bool annotation")
	}
	return t
}

func (p *pyLowerer) block(n *sitter.Node) *ir.Node {
	b := ir.NewBlock(p.pos(n))
	for _, c := range named(n) {
		b.Children = append(b.Children, p.stmt(c)...)
	}
	return b
}

func one(n *ir.Node) []*ir.Node {
	if n == nil {
		return nil
	}
	return []*ir.Node{n}
}

func (p *pyLowerer) stmt(n *sitter.Node) []*ir.Node {
	switch n.Type() {
	case "expression_statement":
		return one(p.exprStmt(n))
	case "return_statement":
		ret := ir.New(ir.KindReturn, p.pos(n))
		if kids := named(n); len(kids) > 0 {
			ret.Children = []*ir.Node{p.expr(kids[0])}
		}
		return one(ret)
	case "if_statement":
		return one(p.ifStmt(n))
	case "while_statement":
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			return one(p.unsupported(alt, "while loop without else"))
		}
		cond := p.expr(n.ChildByFieldName("condition"))
		return one(ir.New(ir.KindWhile, p.pos(n), cond, p.block(n.ChildByFieldName("body"))))
	case "pass_statement":
		return nil
	case "global_statement":
		// Names listed here keep referring to module variables; later
		// assignments lower to Assign rather than a new local.
		for _, c := range named(n) {
			p.declare(p.text(c))
		}
		return nil
	case "function_definition":
		return one(p.unsupported(n, "statement (functions must be top level)"))
	}
	return one(p.unsupported(n, "statement"))
}

func (p *pyLowerer) exprStmt(n *sitter.Node) *ir.Node {
	kids := named(n)
	if len(kids) != 1 {
		return p.unsupported(n, "single expression")
	}
	e := kids[0]
	switch e.Type() {
	case "assignment":
		left, right := e.ChildByFieldName("left"), e.ChildByFieldName("right")
		if left.Type() != "identifier" {
			return p.unsupported(left, "identifier assignment target")
		}
		if right == nil {
			return p.unsupported(e, "assignment with a value")
		}
		name := p.text(left)
		var typ string
		if t := e.ChildByFieldName("type"); t != nil {
			typ = p.typeName(t)
		}
		value := p.expr(right)
		if p.declare(name) {
			return &ir.Node{Kind: ir.KindVar, Name: name, Type: typ, Pos: p.pos(e), Children: []*ir.Node{value}}
		}
		return &ir.Node{Kind: ir.KindAssign, Name: name, Pos: p.pos(e), Children: []*ir.Node{value}}
	case "augmented_assignment":
		left := e.ChildByFieldName("left")
		if left.Type() != "identifier" {
			return p.unsupported(left, "identifier assignment target")
		}
		opNode := e.ChildByFieldName("operator")
		op, ok := pyOps[strings.TrimSuffix(p.text(opNode), "=")]
		if !ok {
			return p.unsupported(opNode, "arithmetic assignment operator")
		}
		name := p.text(left)
		value := ir.NewBinary(op, ir.NewIdent(name, p.pos(left)), p.expr(e.ChildByFieldName("right")), p.pos(e))
		return &ir.Node{Kind: ir.KindAssign, Name: name, Pos: p.pos(e), Children: []*ir.Node{value}}
	}
	return ir.New(ir.KindExprStmt, p.pos(e), p.expr(e))
}

func (p *pyLowerer) ifStmt(n *sitter.Node) *ir.Node {
	node := ir.New(ir.KindIf, p.pos(n),
		p.expr(n.ChildByFieldName("condition")),
		p.block(n.ChildByFieldName("consequence")))

	// Lower clauses in source order, then chain them from the last one.
	type clause struct {
		pos        source.Pos
		cond, body *ir.Node
	}
	var clauses []clause
	for _, c := range named(n) {
		switch c.Type() {
		case "elif_clause":
			clauses = append(clauses, clause{
				pos:  p.pos(c),
				cond: p.expr(c.ChildByFieldName("condition")),
				body: p.block(c.ChildByFieldName("consequence")),
			})
		case "else_clause":
			clauses = append(clauses, clause{pos: p.pos(c), body: p.block(c.ChildByFieldName("body"))})
		}
	}
	var els *ir.Node
	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		if c.cond == nil {
			els = c.body
			continue
		}
		inner := ir.New(ir.KindIf, c.pos, c.cond, c.body)
		if els != nil {
			inner.Children = append(inner.Children, els)
		}
		els = ir.NewBlock(c.pos, inner)
	}
	if els != nil {
		node.Children = append(node.Children, els)
	}
	return node
}

func (p *pyLowerer) expr(n *sitter.Node) *ir.Node {
	if n == nil {
		return nil
	}
	pos := p.pos(n)
	switch n.Type() {
	case "identifier":
		return ir.NewIdent(p.text(n), pos)
	case "true":
		return ir.NewBool(true, pos)
	case "false":
		return ir.NewBool(false, pos)
	case "none":
		return ir.NewNil(pos)
	case "integer":
		text := p.text(n)
		if strings.ContainsAny(text, "jJlL") {
			return p.unsupported(n, "integer literal")
		}
		v, err := parseIntLiteral(text)
		if err != nil {
			return p.unsupported(n, "integer literal that fits in 64 bits")
		}
		return ir.NewInt(v, pos)
	case "float":
		text := p.text(n)
		if strings.ContainsAny(text, "jJ") {
			return p.unsupported(n, "real float literal")
		}
		return ir.NewFloat(normalizeFloat(text), pos)
	case "string":
		return p.stringLit(n)
	case "binary_operator", "boolean_operator":
		opNode := n.ChildByFieldName("operator")
		op, ok := pyOps[p.text(opNode)]
		if !ok {
			return p.unsupported(opNode, "arithmetic or logical operator")
		}
		return ir.NewBinary(op, p.expr(n.ChildByFieldName("left")), p.expr(n.ChildByFieldName("right")), pos)
	case "comparison_operator":
		kids := named(n)
		if len(kids) != 2 || n.ChildCount() != 3 {
			return p.unsupported(n, "single comparison")
		}
		op, ok := pyOps[n.Child(1).Type()]
		if !ok {
			return p.unsupported(n.Child(1), "comparison operator")
		}
		return ir.NewBinary(op, p.expr(kids[0]), p.expr(kids[1]), pos)
	case "not_operator":
		return ir.NewUnary(ir.OpNot, p.expr(n.ChildByFieldName("argument")), pos)
	case "unary_operator":
		arg := p.expr(n.ChildByFieldName("argument"))
		switch p.text(n.ChildByFieldName("operator")) {
		case "-":
			return ir.NewUnary(ir.OpNeg, arg, pos)
		case "+":
			return arg
		}
		return p.unsupported(n, "unary minus or plus")
	case "parenthesized_expression":
		kids := named(n)
		if len(kids) != 1 {
			return p.unsupported(n, "parenthesized expression")
		}
		return p.expr(kids[0])
	case "call":
		return p.call(n)
	case "attribute":
		sel := &ir.Node{Kind: ir.KindSelector, Name: p.text(n.ChildByFieldName("attribute")), Pos: pos}
		sel.Children = []*ir.Node{p.expr(n.ChildByFieldName("object"))}
		return sel
	}
	return p.unsupported(n, "expression")
}

func (p *pyLowerer) stringLit(n *sitter.Node) *ir.Node {
	raw := p.text(n)
	i := strings.IndexAny(raw, `"'`)
	if i < 0 {
		return p.unsupported(n, "string literal")
	}
	prefix := strings.ToLower(raw[:i])
	if strings.ContainsAny(prefix, "fb") {
		return p.unsupported(n, "plain string literal")
	}
	body := raw[i:]
	quote := body[:1]
	if triple := strings.Repeat(quote, 3); len(body) >= 6 && strings.HasPrefix(body, triple) {
		body = body[3 : len(body)-3]
	} else {
		body = body[1 : len(body)-1]
	}
	if strings.Contains(prefix, "r") {
		return ir.NewString(body, p.pos(n))
	}
	value, err := decodeEscapes(body)
	if err != nil {
		return p.unsupported(n, "string literal with valid escapes")
	}
	return ir.NewString(value, p.pos(n))
}

func (p *pyLowerer) call(n *sitter.Node) *ir.Node {
	fn := n.ChildByFieldName("function")
	argList := n.ChildByFieldName("arguments")
	if argList.Type() != "argument_list" {
		return p.unsupported(argList, "argument list")
	}
	var args []*ir.Node
	for _, a := range named(argList) {
		switch a.Type() {
		case "keyword_argument", "list_splat", "dictionary_splat":
			p.unsupported(a, "positional argument")
		default:
			args = append(args, p.expr(a))
		}
	}
	pos := p.pos(n)
	if fn.Type() == "identifier" {
		switch p.text(fn) {
		case "print":
			return &ir.Node{Kind: ir.KindPrint, Pos: pos, Children: args}
		case "len":
			if len(args) == 1 {
				return &ir.Node{Kind: ir.KindLen, Pos: pos, Children: args}
			}
		}
	}
	return ir.NewCall(p.expr(fn), args, pos)
}
