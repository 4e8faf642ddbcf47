package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Python emits a single Python 3 module.
type Python struct{}

func (Python) Target() source.Language { return source.Python }

var pyKeywords = keywordSet(
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally",
	"for", "from", "global", "if", "import", "in", "is", "lambda", "nonlocal",
	"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
	"print", "len",
)

var pyBinary = map[ir.Op]opInfo{
	ir.OpOr:  {"or", 1},
	ir.OpAnd: {"and", 2},
	ir.OpEq:  {"==", 4}, ir.OpNe: {"!=", 4},
	ir.OpLt: {"<", 4}, ir.OpLe: {"<=", 4}, ir.OpGt: {">", 4}, ir.OpGe: {">=", 4},
	ir.OpAdd: {"+", 6}, ir.OpSub: {"-", 6},
	ir.OpMul: {"*", 7}, ir.OpDiv: {"/", 7}, ir.OpMod: {"%", 7},
	ir.OpPow: {"**", 9},
}

var pyTypeNames = map[string]string{
	ir.TypeInt: "int", ir.TypeFloat: "float", ir.TypeString: "str", ir.TypeBool: "bool",
}

func (Python) Emit(prog *ir.Node) (*Artifact, error) {
	p, err := analyze(source.Python, prog, pyKeywords, nil)
	if err != nil {
		return nil, err
	}
	g := &pyGen{p: p, w: &writer{indent: "    "}}
	g.e = &exprPrinter{d: g, p: p}

	g.w.line("# Code generated by rift. DO NOT EDIT.")
	g.w.blank()
	for _, n := range p.items {
		if err := g.top(n); err != nil {
			return nil, err
		}
	}
	if entries := p.goEntries(); len(entries) > 0 {
		g.w.blank()
		for _, entry := range entries {
			g.w.line("%s()", entry)
		}
	}
	return NewArtifact(source.Python, p.fileName(), g.w.String()), nil
}

type pyGen struct {
	p *program
	w *writer
	e *exprPrinter
	// after a def the next top-level item is separated by a blank line
	afterDef bool
}

func (g *pyGen) top(n *ir.Node) error {
	if g.afterDef {
		g.w.blank()
		g.afterDef = false
	}
	switch n.Kind {
	case ir.KindImport:
		g.importLine(n)
		return nil
	case ir.KindFunc:
		g.w.blank()
		g.afterDef = true
		return g.funcDef(n)
	case ir.KindVar:
		return g.varDecl(n, g.p.declName(n))
	}
	return g.stmt(n)
}

func (g *pyGen) importLine(n *ir.Node) {
	if n.Value != "" {
		if n.Alias == n.Value {
			g.w.line("from %s import %s", n.Path, n.Value)
		} else {
			g.w.line("from %s import %s as %s", n.Path, n.Value, n.Alias)
		}
		return
	}
	head, _, _ := strings.Cut(n.Path, ".")
	if n.Alias == head {
		g.w.line("import %s", n.Path)
		return
	}
	g.w.line("import %s as %s", n.Path, n.Alias)
}

func (g *pyGen) funcDef(fn *ir.Node) error {
	params := make([]string, 0, fn.Arity())
	for _, prm := range fn.Params().Children {
		s := g.p.local(prm.Name)
		if t := pyTypeNames[prm.Type]; t != "" {
			s += ": " + t
		}
		params = append(params, s)
	}
	result := ""
	if t := pyTypeNames[fn.Type]; t != "" {
		result = " -> " + t
	}
	g.w.line("def %s(%s)%s:", g.p.declName(fn), strings.Join(params, ", "), result)
	g.w.depth++
	defer func() { g.w.depth-- }()
	if globals := g.p.assignsGlobals(fn); len(globals) > 0 {
		g.w.line("global %s", strings.Join(globals, ", "))
	}
	return g.body(fn.Body())
}

// body emits the statements of b one level in, or pass when there are none.
func (g *pyGen) body(b *ir.Node) error {
	before := g.w.b.Len()
	if err := g.stmts(b); err != nil {
		return err
	}
	if g.w.b.Len() == before {
		g.w.line("pass")
	}
	return nil
}

func (g *pyGen) stmts(b *ir.Node) error {
	for _, s := range b.Children {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *pyGen) varDecl(n *ir.Node, name string) error {
	var value string
	if len(n.Children) > 0 {
		v, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		value = v
	} else {
		value = pyZero(n.Type)
	}
	if t := pyTypeNames[n.Type]; t != "" {
		g.w.line("%s: %s = %s", name, t, value)
		return nil
	}
	g.w.line("%s = %s", name, value)
	return nil
}

func pyZero(typ string) string {
	switch typ {
	case ir.TypeInt:
		return "0"
	case ir.TypeFloat:
		return "0.0"
	case ir.TypeString:
		return `""`
	case ir.TypeBool:
		return "False"
	}
	return "None"
}

func (g *pyGen) stmt(n *ir.Node) error {
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
		g.w.line("%s = %s", name, v)
	case ir.KindExprStmt:
		x, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		g.w.line("%s", x)
	case ir.KindReturn:
		if len(n.Children) == 0 {
			g.w.line("return")
			return nil
		}
		x, err := g.e.expr(n.Child(0))
		if err != nil {
			return err
		}
		g.w.line("return %s", x)
	case ir.KindIf:
		return g.ifStmt(n, "if")
	case ir.KindWhile:
		c, err := g.e.expr(n.Cond())
		if err != nil {
			return err
		}
		g.w.line("while %s:", c)
		g.w.depth++
		defer func() { g.w.depth-- }()
		return g.body(n.Body())
	case ir.KindBlock:
		return g.stmts(n)
	default:
		return fmt.Errorf("emit python: %s: unexpected %s statement", n.Pos, n.Kind)
	}
	return nil
}

func (g *pyGen) ifStmt(n *ir.Node, keyword string) error {
	c, err := g.e.expr(n.Cond())
	if err != nil {
		return err
	}
	g.w.line("%s %s:", keyword, c)
	g.w.depth++
	err = g.body(n.Then())
	g.w.depth--
	if err != nil {
		return err
	}
	els := n.Else()
	if els == nil {
		return nil
	}
	if inner := elseIf(els); inner != nil {
		return g.ifStmt(inner, "elif")
	}
	g.w.line("else:")
	g.w.depth++
	defer func() { g.w.depth-- }()
	return g.body(els)
}

func (g *pyGen) binary(op ir.Op) (opInfo, bool) {
	info, ok := pyBinary[op]
	return info, ok
}

func (g *pyGen) unary(op ir.Op) opInfo {
	if op == ir.OpNot {
		return opInfo{"not ", 3}
	}
	return opInfo{"-", 8}
}

func (g *pyGen) nonAssoc(prec int) bool { return prec == 4 }

func (g *pyGen) literal(n *ir.Node) (string, error) {
	switch n.Kind {
	case ir.KindString:
		return quote(n.Value, pyEscape), nil
	case ir.KindBool:
		if n.Value == "true" {
			return "True", nil
		}
		return "False", nil
	case ir.KindNil:
		return "None", nil
	}
	return n.Value, nil
}

func (g *pyGen) ident(n *ir.Node) (string, error) { return g.p.ident(n) }

func (g *pyGen) print(args []string) string {
	return "print(" + strings.Join(args, ", ") + ")"
}

func (g *pyGen) length(x string, _ int) (string, int) {
	return "len(" + x + ")", precAtom
}
