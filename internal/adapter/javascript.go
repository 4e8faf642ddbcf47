package adapter

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// JavaScript lowers ES module JavaScript.
type JavaScript struct{}

func (JavaScript) Language() source.Language { return source.JavaScript }

func (JavaScript) Parse(ctx context.Context, unit *source.Unit) (*ir.Node, diag.List) {
	l := newLowerer(unit)
	tree, err := parseTree(ctx, javascript.GetLanguage(), l.src)
	if err != nil {
		l.diags.Append(fmt.Errorf("parse %s: %w", unit.Path(), err))
		return nil, l.diags
	}
	defer tree.Close()

	root := tree.RootNode()
	if l.syntaxErrors(root) {
		return nil, l.diags
	}
	j := &jsLowerer{lowerer: l}
	mod := l.newModule()
	for _, c := range named(root) {
		mod.Children = append(mod.Children, j.topLevel(c)...)
	}
	return l.finish(mod)
}

var jsOps = map[string]ir.Op{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod, "**": ir.OpPow,
	"==": ir.OpEq, "===": ir.OpEq, "!=": ir.OpNe, "!==": ir.OpNe,
	"<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
	"&&": ir.OpAnd, "||": ir.OpOr,
}

type jsLowerer struct {
	*lowerer
}

func (j *jsLowerer) topLevel(n *sitter.Node) []*ir.Node {
	switch n.Type() {
	case "import_statement":
		return j.importStmt(n)
	case "function_declaration":
		return one(j.funcDecl(n))
	case "export_statement":
		if d := n.ChildByFieldName("declaration"); d != nil {
			return j.topLevel(d)
		}
		return one(j.unsupported(n, "exported declaration"))
	case "hash_bang_line":
		return nil
	}
	return j.stmt(n)
}

// jsModuleName maps an import specifier to a module identity:
// "./lib/geometry.js" is module geometry.
func jsModuleName(spec string) string {
	base := path.Base(spec)
	switch ext := path.Ext(base); ext {
	case ".js", ".mjs", ".cjs":
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (j *jsLowerer) importStmt(n *sitter.Node) []*ir.Node {
	srcNode := n.ChildByFieldName("source")
	spec, err := decodeEscapes(strings.Trim(j.text(srcNode), `"'`))
	if err != nil || spec == "" {
		return one(j.unsupported(srcNode, "module specifier"))
	}
	name := jsModuleName(spec)
	var clause *sitter.Node
	for _, c := range named(n) {
		if c.Type() == "import_clause" {
			clause = c
		}
	}
	if clause == nil {
		return one(&ir.Node{Kind: ir.KindImport, Name: name, Path: spec, Pos: j.pos(n)})
	}

	var out []*ir.Node
	for _, c := range named(clause) {
		switch c.Type() {
		case "identifier":
			out = append(out, &ir.Node{Kind: ir.KindImport, Name: name, Path: spec, Alias: j.text(c), Pos: j.pos(c)})
		case "namespace_import":
			ids := named(c)
			if len(ids) != 1 {
				j.unsupported(c, "namespace import")
				continue
			}
			out = append(out, &ir.Node{Kind: ir.KindImport, Name: name, Path: spec, Alias: j.text(ids[0]), Pos: j.pos(c)})
		case "named_imports":
			for _, s := range named(c) {
				member := j.text(s.ChildByFieldName("name"))
				alias := member
				if a := s.ChildByFieldName("alias"); a != nil {
					alias = j.text(a)
				}
				out = append(out, &ir.Node{
					Kind: ir.KindImport, Name: name, Path: spec, Value: member, Alias: alias, Pos: j.pos(s),
				})
			}
		default:
			j.unsupported(c, "import clause")
		}
	}
	return out
}

func (j *jsLowerer) funcDecl(n *sitter.Node) *ir.Node {
	if first := n.Child(0); first != nil && first.Type() == "async" {
		return j.unsupported(n, "synchronous function")
	}
	fn := &ir.Node{Kind: ir.KindFunc, Name: j.text(n.ChildByFieldName("name")), Pos: j.pos(n)}
	paramList := n.ChildByFieldName("parameters")
	params := ir.New(ir.KindParams, j.pos(paramList))
	for _, c := range named(paramList) {
		if c.Type() != "identifier" {
			j.unsupported(c, "plain parameter")
			continue
		}
		params.Children = append(params.Children, &ir.Node{Kind: ir.KindParam, Name: j.text(c), Pos: j.pos(c)})
	}
	fn.Children = []*ir.Node{params, j.block(n.ChildByFieldName("body"))}
	return fn
}

func (j *jsLowerer) block(n *sitter.Node) *ir.Node {
	b := ir.NewBlock(j.pos(n))
	for _, c := range named(n) {
		b.Children = append(b.Children, j.stmt(c)...)
	}
	return b
}

// blockOf lowers a statement used as a branch body, wrapping single
// statements in a block.
func (j *jsLowerer) blockOf(n *sitter.Node) *ir.Node {
	if n.Type() == "statement_block" {
		return j.block(n)
	}
	return ir.NewBlock(j.pos(n), j.stmt(n)...)
}

func (j *jsLowerer) stmt(n *sitter.Node) []*ir.Node {
	pos := j.pos(n)
	switch n.Type() {
	case "expression_statement":
		kids := named(n)
		if len(kids) != 1 {
			return one(j.unsupported(n, "single expression"))
		}
		return one(j.exprStmt(kids[0]))
	case "lexical_declaration", "variable_declaration":
		return j.varDecl(n)
	case "return_statement":
		ret := ir.New(ir.KindReturn, pos)
		if kids := named(n); len(kids) > 0 {
			ret.Children = []*ir.Node{j.expr(kids[0])}
		}
		return one(ret)
	case "if_statement":
		node := ir.New(ir.KindIf, pos,
			j.expr(n.ChildByFieldName("condition")),
			j.blockOf(n.ChildByFieldName("consequence")))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			body := named(alt)
			if len(body) != 1 {
				return one(j.unsupported(alt, "else branch"))
			}
			node.Children = append(node.Children, j.blockOf(body[0]))
		}
		return one(node)
	case "while_statement":
		return one(ir.New(ir.KindWhile, pos,
			j.expr(n.ChildByFieldName("condition")),
			j.blockOf(n.ChildByFieldName("body"))))
	case "statement_block":
		return one(j.block(n))
	case "empty_statement":
		return nil
	case "function_declaration":
		return one(j.unsupported(n, "statement (functions must be top level)"))
	}
	return one(j.unsupported(n, "statement"))
}

func (j *jsLowerer) varDecl(n *sitter.Node) []*ir.Node {
	var out []*ir.Node
	for _, d := range named(n) {
		if d.Type() != "variable_declarator" {
			j.unsupported(d, "variable declarator")
			continue
		}
		name := d.ChildByFieldName("name")
		if name.Type() != "identifier" {
			j.unsupported(name, "identifier binding")
			continue
		}
		v := &ir.Node{Kind: ir.KindVar, Name: j.text(name), Pos: j.pos(d)}
		if value := d.ChildByFieldName("value"); value != nil {
			v.Children = []*ir.Node{j.expr(value)}
		}
		out = append(out, v)
	}
	return out
}

func (j *jsLowerer) exprStmt(e *sitter.Node) *ir.Node {
	pos := j.pos(e)
	switch e.Type() {
	case "assignment_expression":
		left := e.ChildByFieldName("left")
		if left.Type() != "identifier" {
			return j.unsupported(left, "identifier assignment target")
		}
		return &ir.Node{Kind: ir.KindAssign, Name: j.text(left), Pos: pos,
			Children: []*ir.Node{j.expr(e.ChildByFieldName("right"))}}
	case "augmented_assignment_expression":
		left := e.ChildByFieldName("left")
		if left.Type() != "identifier" {
			return j.unsupported(left, "identifier assignment target")
		}
		opNode := e.ChildByFieldName("operator")
		op, ok := jsOps[strings.TrimSuffix(j.text(opNode), "=")]
		if !ok {
			return j.unsupported(opNode, "arithmetic assignment operator")
		}
		name := j.text(left)
		value := ir.NewBinary(op, ir.NewIdent(name, j.pos(left)), j.expr(e.ChildByFieldName("right")), pos)
		return &ir.Node{Kind: ir.KindAssign, Name: name, Pos: pos, Children: []*ir.Node{value}}
	case "update_expression":
		arg := e.ChildByFieldName("argument")
		if arg.Type() != "identifier" {
			return j.unsupported(arg, "identifier operand")
		}
		op := ir.OpAdd
		if j.text(e.ChildByFieldName("operator")) == "--" {
			op = ir.OpSub
		}
		name := j.text(arg)
		value := ir.NewBinary(op, ir.NewIdent(name, j.pos(arg)), ir.NewInt(1, pos), pos)
		return &ir.Node{Kind: ir.KindAssign, Name: name, Pos: pos, Children: []*ir.Node{value}}
	}
	return ir.New(ir.KindExprStmt, pos, j.expr(e))
}

func (j *jsLowerer) expr(n *sitter.Node) *ir.Node {
	if n == nil {
		return nil
	}
	pos := j.pos(n)
	switch n.Type() {
	case "identifier":
		if j.text(n) == "undefined" {
			return ir.NewNil(pos)
		}
		return ir.NewIdent(j.text(n), pos)
	case "true":
		return ir.NewBool(true, pos)
	case "false":
		return ir.NewBool(false, pos)
	case "null":
		return ir.NewNil(pos)
	case "number":
		return j.number(n)
	case "string":
		raw := j.text(n)
		value, err := decodeEscapes(raw[1 : len(raw)-1])
		if err != nil {
			return j.unsupported(n, "string literal with valid escapes")
		}
		return ir.NewString(value, pos)
	case "binary_expression":
		opNode := n.ChildByFieldName("operator")
		op, ok := jsOps[j.text(opNode)]
		if !ok {
			return j.unsupported(opNode, "arithmetic, comparison or logical operator")
		}
		return ir.NewBinary(op, j.expr(n.ChildByFieldName("left")), j.expr(n.ChildByFieldName("right")), pos)
	case "unary_expression":
		arg := j.expr(n.ChildByFieldName("argument"))
		switch j.text(n.ChildByFieldName("operator")) {
		case "!":
			return ir.NewUnary(ir.OpNot, arg, pos)
		case "-":
			return ir.NewUnary(ir.OpNeg, arg, pos)
		case "+":
			return arg
		}
		return j.unsupported(n, "unary !, - or +")
	case "parenthesized_expression":
		kids := named(n)
		if len(kids) != 1 {
			return j.unsupported(n, "parenthesized expression")
		}
		return j.expr(kids[0])
	case "call_expression":
		return j.call(n)
	case "member_expression":
		object := n.ChildByFieldName("object")
		prop := j.text(n.ChildByFieldName("property"))
		if prop == "length" {
			return &ir.Node{Kind: ir.KindLen, Pos: pos, Children: []*ir.Node{j.expr(object)}}
		}
		return &ir.Node{Kind: ir.KindSelector, Name: prop, Pos: pos, Children: []*ir.Node{j.expr(object)}}
	}
	return j.unsupported(n, "expression")
}

func (j *jsLowerer) number(n *sitter.Node) *ir.Node {
	text := strings.ToLower(j.text(n))
	pos := j.pos(n)
	switch {
	case strings.HasSuffix(text, "n"):
		return j.unsupported(n, "number literal")
	case strings.HasPrefix(text, "0x"), strings.HasPrefix(text, "0o"), strings.HasPrefix(text, "0b"),
		!strings.ContainsAny(text, ".e"):
		v, err := parseIntLiteral(text)
		if err != nil {
			return j.unsupported(n, "integer literal that fits in 64 bits")
		}
		return ir.NewInt(v, pos)
	}
	return ir.NewFloat(normalizeFloat(text), pos)
}

func (j *jsLowerer) call(n *sitter.Node) *ir.Node {
	fn := n.ChildByFieldName("function")
	argList := n.ChildByFieldName("arguments")
	if argList.Type() != "arguments" {
		return j.unsupported(argList, "argument list")
	}
	var args []*ir.Node
	for _, a := range named(argList) {
		if a.Type() == "spread_element" {
			j.unsupported(a, "positional argument")
			continue
		}
		args = append(args, j.expr(a))
	}
	pos := j.pos(n)
	if fn.Type() == "member_expression" {
		obj := fn.ChildByFieldName("object")
		if obj.Type() == "identifier" && j.text(obj) == "console" && j.text(fn.ChildByFieldName("property")) == "log" {
			return &ir.Node{Kind: ir.KindPrint, Pos: pos, Children: args}
		}
	}
	return ir.NewCall(j.expr(fn), args, pos)
}
