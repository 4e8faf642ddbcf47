package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// JavaScript emits a single ES module.
type JavaScript struct{}

func (JavaScript) Target() source.Language { return source.JavaScript }

var jsKeywords = keywordSet(
	"await", "break", "case", "catch", "class", "const", "continue", "debugger",
	"default", "delete", "do", "else", "enum", "export", "extends", "false",
	"finally", "for", "function", "if", "implements", "import", "in",
	"instanceof", "interface", "let", "new", "null", "package", "private",
	"protected", "public", "return", "static", "super", "switch", "this",
	"throw", "true", "try", "typeof", "var", "void", "while", "with", "yield",
	"undefined", "arguments", "eval", "console",
)

var jsBinary = map[ir.Op]opInfo{
	ir.OpOr:  {"||", 1},
	ir.OpAnd: {"&&", 2},
	ir.OpEq:  {"===", 3}, ir.OpNe: {"!==", 3},
	ir.OpLt: {"<", 4}, ir.OpLe: {"<=", 4}, ir.OpGt: {">", 4}, ir.OpGe: {">=", 4},
	ir.OpAdd: {"+", 5}, ir.OpSub: {"-", 5},
	ir.OpMul: {"*", 6}, ir.OpDiv: {"/", 6}, ir.OpMod: {"%", 6},
	ir.OpPow: {"**", 7},
}

func (JavaScript) Emit(prog *ir.Node) (*Artifact, error) {
	p, err := analyze(source.JavaScript, prog, jsKeywords, nil)
	if err != nil {
		return nil, err
	}
	g := &jsGen{p: p, w: &writer{indent: "  "}}
	g.e = &exprPrinter{d: g, p: p, unaryPowLeft: true}

	g.w.line("// Code generated by rift. DO NOT EDIT.")
	g.w.blank()
	afterFunc := false
	for _, n := range p.items {
		if afterFunc || n.Kind == ir.KindFunc {
			g.w.blank()
		}
		afterFunc = n.Kind == ir.KindFunc
		if err := g.top(n); err != nil {
			return nil, err
		}
	}
	if entries := p.goEntries(); len(entries) > 0 {
		g.w.blank()
		for _, entry := range entries {
			g.w.line("%s();", entry)
		}
	}
	return NewArtifact(source.JavaScript, p.fileName(), g.w.String()), nil
}

type jsGen struct {
	p *program
	w *writer
	e *exprPrinter
}

func (g *jsGen) top(n *ir.Node) error {
	switch n.Kind {
	case ir.KindImport:
		g.importLine(n)
		return nil
	case ir.KindFunc:
		return g.funcDecl(n)
	case ir.KindVar:
		return g.varDecl(n, g.p.declName(n))
	}
	return g.stmt(n)
}

func (g *jsGen) importLine(n *ir.Node) {
	spec := quote(n.Path, braceEscape)
	switch {
	case n.Alias == "" && n.Value == "":
		g.w.line("import %s;", spec)
	case n.Value == "":
		g.w.line("import * as %s from %s;", n.Alias, spec)
	case n.Alias == n.Value:
		g.w.line("import { %s } from %s;", n.Value, spec)
	default:
		g.w.line("import { %s as %s } from %s;", n.Value, n.Alias, spec)
	}
}

func (g *jsGen) funcDecl(fn *ir.Node) error {
	params := make([]string, 0, fn.Arity())
	for _, prm := range fn.Params().Children {
		params = append(params, g.p.local(prm.Name))
	}
	g.w.line("function %s(%s) {", g.p.declName(fn), strings.Join(params, ", "))
	if err := g.block(fn.Body()); err != nil {
		return err
	}
	g.w.line("}")
	return nil
}

// block emits the statements of b one level in.
func (g *jsGen) block(b *ir.Node) error {
	g.w.depth++
	defer func() { g.w.depth-- }()
	for _, s := range b.Children {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *jsGen) varDecl(n *ir.Node, name string) error {
	if len(n.Children) == 0 {
		if zero := jsZero(n.Type); zero != "" {
			g.w.line("let %s = %s;", name, zero)
		} else {
			g.w.line("let %s;", name)
		}
		return nil
	}
	v, err := g.e.expr(n.Child(0))
	if err != nil {
		return err
	}
	g.w.line("let %s = %s;", name, v)
	return nil
}

func jsZero(typ string) string {
	switch typ {
	case ir.TypeInt, ir.TypeFloat:
		return "0"
	case ir.TypeString:
		return `""`
	case ir.TypeBool:
		return "false"
	}
	return ""
}

func (g *jsGen) stmt(n *ir.Node) error {
	switch n.Kind {
	case ir.KindVar:
		return g.varDecl(n, g.p.local(n.Name))
	case ir.KindAssign:
		name, err := g.p.assignTarget(n)
		if err != nil {
			return err
		}
		v, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		g.w.line("%s = %s;", name, v)
	case ir.KindExprStmt:
		x, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		g.w.line("%s;", x)
	case ir.KindReturn:
		if len(n.Children) == 0 {
			g.w.line("return;")
			return nil
		}
		x, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		g.w.line("return %s;", x)
	case ir.KindIf:
		return g.ifStmt(n, "if")
	case ir.KindWhile:
		c, err := g.e.expr(n.Cond())
		if err != nil {
			return err
		}
		g.w.line("while (%s) {", c)
		if err := g.block(n.Body()); err != nil {
			return err
		}
		g.w.line("}")
	case ir.KindBlock:
		g.w.line("{")
		if err := g.block(n); err != nil {
			return err
		}
		g.w.line("}")
	default:
		return fmt.Errorf("emit javascript: %s: unexpected %s statement", n.Pos, n.Kind)
	}
	return nil
}

func (g *jsGen) ifStmt(n *ir.Node, keyword string) error {
	c, err := g.e.expr(n.Cond())
	if err != nil {
		return err
	}
	g.w.line("%s (%s) {", keyword, c)
	if err := g.block(n.Then()); err != nil {
		return err
	}
	els := n.Else()
	if els == nil {
		g.w.line("}")
		return nil
	}
	if inner := elseIf(els); inner != nil {
		return g.ifStmt(inner, "} else if")
	}
	g.w.line("} else {")
	if err := g.block(els); err != nil {
		return err
	}
	g.w.line("}")
	return nil
}

func (g *jsGen) binary(op ir.Op) (opInfo, bool) {
	info, ok := jsBinary[op]
	return info, ok
}

func (g *jsGen) unary(op ir.Op) opInfo {
	if op == ir.OpNot {
		return opInfo{"!", 8}
	}
	return opInfo{"-", 8}
}

func (g *jsGen) nonAssoc(int) bool { return false }

func (g *jsGen) literal(n *ir.Node) (string, error) {
	switch n.Kind {
	case ir.KindString:
		return quote(n.Value, braceEscape), nil
	case ir.KindNil:
		return "null", nil
	}
	return n.Value, nil
}

func (g *jsGen) ident(n *ir.Node) (string, error) { return g.p.ident(n) }

func (g *jsGen) print(args []string) string {
	return "console.log(" + strings.Join(args, ", ") + ")"
}

func (g *jsGen) length(x string, prec int) (string, int) {
	if prec < precAtom || (x != "" && x[0] >= '0' && x[0] <= '9') {
		x = "(" + x + ")"
	}
	return x + ".length", precAtom
}
