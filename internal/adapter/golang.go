package adapter

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Golang lowers Go source files. The package clause is ignored: the unit's
// module name decides the namespace.
type Golang struct{}

func (Golang) Language() source.Language { return source.Go }

func (Golang) Parse(ctx context.Context, unit *source.Unit) (*ir.Node, diag.List) {
	l := newLowerer(unit)
	tree, err := parseTree(ctx, golang.GetLanguage(), l.src)
	if err != nil {
		l.diags.Append(fmt.Errorf("parse %s: %w", unit.Path(), err))
		return nil, l.diags
	}
	defer tree.Close()

	root := tree.RootNode()
	if l.syntaxErrors(root) {
		return nil, l.diags
	}
	g := &goLowerer{lowerer: l}
	mod := l.newModule()
	for _, c := range named(root) {
		switch c.Type() {
		case "package_clause":
		case "import_declaration":
			mod.Children = append(mod.Children, g.importDecl(c)...)
		case "function_declaration":
			mod.Children = append(mod.Children, one(g.funcDecl(c))...)
		case "var_declaration", "const_declaration":
			mod.Children = append(mod.Children, g.varDecl(c)...)
		default:
			g.unsupported(c, "import, func, var or const declaration")
		}
	}
	return l.finish(mod)
}

var goOps = map[string]ir.Op{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod,
	"==": ir.OpEq, "!=": ir.OpNe, "<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
	"&&": ir.OpAnd, "||": ir.OpOr,
}

var goTypes = map[string]string{
	"int": ir.TypeInt, "int8": ir.TypeInt, "int16": ir.TypeInt, "int32": ir.TypeInt, "int64": ir.TypeInt,
	"uint": ir.TypeInt, "uint8": ir.TypeInt, "uint16": ir.TypeInt, "uint32": ir.TypeInt, "uint64": ir.TypeInt,
	"float32": ir.TypeFloat, "float64": ir.TypeFloat,
	"string": ir.TypeString, "bool": ir.TypeBool,
	"any": "", "interface{}": "",
}

type goLowerer struct {
	*lowerer
}

func (g *goLowerer) importDecl(n *sitter.Node) []*ir.Node {
	var out []*ir.Node
	for _, c := range named(n) {
		switch c.Type() {
		case "import_spec":
			out = append(out, one(g.importSpec(c))...)
		case "import_spec_list":
			for _, s := range named(c) {
				out = append(out, one(g.importSpec(s))...)
			}
		}
	}
	return out
}

func (g *goLowerer) importSpec(n *sitter.Node) *ir.Node {
	pathNode := n.ChildByFieldName("path")
	spec, err := strconv.Unquote(g.text(pathNode))
	if err != nil {
		return g.unsupported(pathNode, "import path")
	}
	name := path.Base(spec)
	imp := &ir.Node{Kind: ir.KindImport, Name: name, Path: spec, Alias: name, Pos: g.pos(n)}
	if a := n.ChildByFieldName("name"); a != nil {
		if a.Type() != "package_identifier" {
			return g.unsupported(a, "named import")
		}
		imp.Alias = g.text(a)
	}
	return imp
}

func (g *goLowerer) funcDecl(n *sitter.Node) *ir.Node {
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		return g.unsupported(tp, "non-generic function")
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return g.unsupported(n, "function with a body")
	}
	fn := &ir.Node{Kind: ir.KindFunc, Name: g.text(n.ChildByFieldName("name")), Pos: g.pos(n)}
	if r := n.ChildByFieldName("result"); r != nil {
		fn.Type = g.resultType(r)
	}
	fn.Children = []*ir.Node{g.params(n.ChildByFieldName("parameters")), g.block(body)}
	return fn
}

func (g *goLowerer) params(n *sitter.Node) *ir.Node {
	params := ir.New(ir.KindParams, g.pos(n))
	for _, c := range named(n) {
		if c.Type() != "parameter_declaration" {
			g.unsupported(c, "parameter declaration")
			continue
		}
		typ := g.typeName(c.ChildByFieldName("type"))
		var names []*sitter.Node
		for _, k := range named(c) {
			if k.Type() == "identifier" {
				names = append(names, k)
			}
		}
		if len(names) == 0 {
			g.unsupported(c, "named parameter")
			continue
		}
		for _, k := range names {
			params.Children = append(params.Children, &ir.Node{Kind: ir.KindParam, Name: g.text(k), Type: typ, Pos: g.pos(k)})
		}
	}
	return params
}

func (g *goLowerer) resultType(r *sitter.Node) string {
	if r.Type() != "parameter_list" {
		return g.typeName(r)
	}
	decls := named(r)
	if len(decls) != 1 {
		g.unsupported(r, "single result")
		return ""
	}
	for _, k := range named(decls[0]) {
		if k.Type() == "identifier" {
			g.unsupported(decls[0], "unnamed result")
			return ""
		}
	}
	return g.typeName(decls[0].ChildByFieldName("type"))
}

func (g *goLowerer) typeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	t, ok := goTypes[strings.ReplaceAll(g.text(n), " ", "")]
	if !ok {
		g.unsupported(n, "int, float64, string, bool or any type")
	}
	return t
}

// statements flattens the statement_list wrapper some grammar versions put
// inside blocks.
func statements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range named(n) {
		if c.Type() == "statement_list" {
			out = append(out, named(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (g *goLowerer) block(n *sitter.Node) *ir.Node {
	b := ir.NewBlock(g.pos(n))
	for _, c := range statements(n) {
		b.Children = append(b.Children, g.stmt(c)...)
	}
	return b
}

// single unwraps an expression_list of exactly one expression.
func (g *goLowerer) single(n *sitter.Node) *sitter.Node {
	if n == nil || n.Type() != "expression_list" {
		return n
	}
	kids := named(n)
	if len(kids) != 1 {
		g.unsupported(n, "single expression")
		return nil
	}
	return kids[0]
}

func (g *goLowerer) stmt(n *sitter.Node) []*ir.Node {
	pos := g.pos(n)
	switch n.Type() {
	case "short_var_declaration":
		left, right := g.single(n.ChildByFieldName("left")), g.single(n.ChildByFieldName("right"))
		if left == nil || right == nil {
			return nil
		}
		if left.Type() != "identifier" {
			return one(g.unsupported(left, "identifier"))
		}
		return one(&ir.Node{Kind: ir.KindVar, Name: g.text(left), Pos: pos, Children: []*ir.Node{g.expr(right)}})
	case "var_declaration", "const_declaration":
		return g.varDecl(n)
	case "assignment_statement":
		left, right := g.single(n.ChildByFieldName("left")), g.single(n.ChildByFieldName("right"))
		if left == nil || right == nil {
			return nil
		}
		if left.Type() != "identifier" {
			return one(g.unsupported(left, "identifier assignment target"))
		}
		name := g.text(left)
		value := g.expr(right)
		if name == "_" {
			return one(ir.New(ir.KindExprStmt, pos, value))
		}
		if opText := g.text(n.ChildByFieldName("operator")); opText != "=" {
			op, ok := goOps[strings.TrimSuffix(opText, "=")]
			if !ok {
				return one(g.unsupported(n.ChildByFieldName("operator"), "arithmetic assignment operator"))
			}
			value = ir.NewBinary(op, ir.NewIdent(name, g.pos(left)), value, pos)
		}
		return one(&ir.Node{Kind: ir.KindAssign, Name: name, Pos: pos, Children: []*ir.Node{value}})
	case "inc_statement", "dec_statement":
		kids := named(n)
		if len(kids) != 1 || kids[0].Type() != "identifier" {
			return one(g.unsupported(n, "identifier operand"))
		}
		op := ir.OpAdd
		if n.Type() == "dec_statement" {
			op = ir.OpSub
		}
		name := g.text(kids[0])
		value := ir.NewBinary(op, ir.NewIdent(name, g.pos(kids[0])), ir.NewInt(1, pos), pos)
		return one(&ir.Node{Kind: ir.KindAssign, Name: name, Pos: pos, Children: []*ir.Node{value}})
	case "expression_statement":
		kids := named(n)
		if len(kids) != 1 {
			return one(g.unsupported(n, "single expression"))
		}
		return one(ir.New(ir.KindExprStmt, pos, g.expr(kids[0])))
	case "return_statement":
		ret := ir.New(ir.KindReturn, pos)
		if kids := named(n); len(kids) > 0 {
			e := g.single(kids[0])
			if e == nil {
				return nil
			}
			ret.Children = []*ir.Node{g.expr(e)}
		}
		return one(ret)
	case "if_statement":
		if init := n.ChildByFieldName("initializer"); init != nil {
			return one(g.unsupported(init, "if without initializer"))
		}
		node := ir.New(ir.KindIf, pos,
			g.expr(n.ChildByFieldName("condition")),
			g.block(n.ChildByFieldName("consequence")))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			if alt.Type() == "block" {
				node.Children = append(node.Children, g.block(alt))
			} else {
				node.Children = append(node.Children, ir.NewBlock(g.pos(alt), g.stmt(alt)...))
			}
		}
		return one(node)
	case "for_statement":
		body := n.ChildByFieldName("body")
		cond := ir.NewBool(true, pos)
		for _, c := range named(n) {
			switch c.Type() {
			case "block":
			case "for_clause", "range_clause":
				return one(g.unsupported(c, "condition-only for loop"))
			default:
				cond = g.expr(c)
			}
		}
		return one(ir.New(ir.KindWhile, pos, cond, g.block(body)))
	case "block":
		return one(g.block(n))
	case "empty_statement":
		return nil
	}
	return one(g.unsupported(n, "statement"))
}

func (g *goLowerer) varDecl(n *sitter.Node) []*ir.Node {
	var specs []*sitter.Node
	for _, c := range named(n) {
		switch c.Type() {
		case "var_spec", "const_spec":
			specs = append(specs, c)
		case "var_spec_list", "const_spec_list":
			specs = append(specs, named(c)...)
		}
	}
	var out []*ir.Node
	for _, s := range specs {
		var names []*sitter.Node
		for _, k := range named(s) {
			if k.Type() == "identifier" {
				names = append(names, k)
			}
		}
		if len(names) != 1 {
			g.unsupported(s, "single-name declaration")
			continue
		}
		v := &ir.Node{Kind: ir.KindVar, Name: g.text(names[0]), Pos: g.pos(s)}
		v.Type = g.typeName(s.ChildByFieldName("type"))
		if value := s.ChildByFieldName("value"); value != nil {
			e := g.single(value)
			if e == nil {
				continue
			}
			v.Children = []*ir.Node{g.expr(e)}
		}
		out = append(out, v)
	}
	return out
}

func (g *goLowerer) expr(n *sitter.Node) *ir.Node {
	if n == nil {
		return nil
	}
	pos := g.pos(n)
	switch n.Type() {
	case "identifier":
		return ir.NewIdent(g.text(n), pos)
	case "true":
		return ir.NewBool(true, pos)
	case "false":
		return ir.NewBool(false, pos)
	case "nil":
		return ir.NewNil(pos)
	case "int_literal":
		v, err := parseIntLiteral(g.text(n))
		if err != nil {
			return g.unsupported(n, "integer literal that fits in 64 bits")
		}
		return ir.NewInt(v, pos)
	case "float_literal":
		return ir.NewFloat(normalizeFloat(g.text(n)), pos)
	case "interpreted_string_literal", "raw_string_literal":
		s, err := strconv.Unquote(strings.ReplaceAll(g.text(n), "\r", ""))
		if err != nil {
			return g.unsupported(n, "string literal")
		}
		return ir.NewString(s, pos)
	case "binary_expression":
		opNode := n.ChildByFieldName("operator")
		op, ok := goOps[g.text(opNode)]
		if !ok {
			return g.unsupported(opNode, "arithmetic, comparison or logical operator")
		}
		return ir.NewBinary(op, g.expr(n.ChildByFieldName("left")), g.expr(n.ChildByFieldName("right")), pos)
	case "unary_expression":
		operand := g.expr(n.ChildByFieldName("operand"))
		switch g.text(n.ChildByFieldName("operator")) {
		case "!":
			return ir.NewUnary(ir.OpNot, operand, pos)
		case "-":
			return ir.NewUnary(ir.OpNeg, operand, pos)
		case "+":
			return operand
		}
		return g.unsupported(n, "unary !, - or +")
	case "parenthesized_expression":
		kids := named(n)
		if len(kids) != 1 {
			return g.unsupported(n, "parenthesized expression")
		}
		return g.expr(kids[0])
	case "call_expression":
		return g.call(n)
	case "selector_expression":
		return &ir.Node{Kind: ir.KindSelector, Name: g.text(n.ChildByFieldName("field")), Pos: pos,
			Children: []*ir.Node{g.expr(n.ChildByFieldName("operand"))}}
	}
	return g.unsupported(n, "expression")
}

func (g *goLowerer) call(n *sitter.Node) *ir.Node {
	if ta := n.ChildByFieldName("type_arguments"); ta != nil {
		return g.unsupported(ta, "call without type arguments")
	}
	fn := n.ChildByFieldName("function")
	var args []*ir.Node
	for _, a := range named(n.ChildByFieldName("arguments")) {
		args = append(args, g.expr(a))
	}
	pos := g.pos(n)
	switch fn.Type() {
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		if operand.Type() == "identifier" && g.text(operand) == "fmt" && g.text(fn.ChildByFieldName("field")) == "Println" {
			return &ir.Node{Kind: ir.KindPrint, Pos: pos, Children: args}
		}
	case "identifier":
		if g.text(fn) == "len" && len(args) == 1 {
			return &ir.Node{Kind: ir.KindLen, Pos: pos, Children: args}
		}
	}
	return ir.NewCall(g.expr(fn), args, pos)
}
