package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Rust emits a single Rust source file. Rust needs static types, so only
// fully typed programs lower: every parameter and every function that
// returns a value must carry a type, and module variables must be typed
// literal constants.
type Rust struct{}

func (Rust) Target() source.Language { return source.Rust }

var rustKeywords = keywordSet(
	"as", "break", "const", "continue", "crate", "else", "enum", "extern",
	"false", "fn", "for", "if", "impl", "in", "let", "loop", "match", "mod",
	"move", "mut", "pub", "ref", "return", "self", "Self", "static", "struct",
	"super", "trait", "true", "type", "unsafe", "use", "where", "while",
	"async", "await", "dyn", "abstract", "become", "box", "do", "final",
	"macro", "override", "priv", "typeof", "unsized", "virtual", "yield", "try",
	"String",
)

var rustBinary = map[ir.Op]opInfo{
	ir.OpOr:  {"||", 1},
	ir.OpAnd: {"&&", 2},
	ir.OpEq:  {"==", 3}, ir.OpNe: {"!=", 3},
	ir.OpLt: {"<", 3}, ir.OpLe: {"<=", 3}, ir.OpGt: {">", 3}, ir.OpGe: {">=", 3},
	ir.OpAdd: {"+", 4}, ir.OpSub: {"-", 4},
	ir.OpMul: {"*", 5}, ir.OpDiv: {"/", 5}, ir.OpMod: {"%", 5},
}

var rustTypeNames = map[string]string{
	ir.TypeInt: "i64", ir.TypeFloat: "f64", ir.TypeString: "String", ir.TypeBool: "bool",
}

func (Rust) Emit(prog *ir.Node) (*Artifact, error) {
	p, err := analyze(source.Rust, prog, rustKeywords, nil)
	if err != nil {
		return nil, err
	}
	g := &rustGen{p: p, w: &writer{indent: "    "}, consts: make(map[string]string)}
	g.e = &exprPrinter{d: g, p: p}

	var decls, stmts []*ir.Node
	var main *ir.Node
	for _, n := range p.items {
		switch n.Kind {
		case ir.KindImport:
			// Imports only reach here for rust-origin programs, which have
			// no adapter.
			return nil, unsupported(source.Rust, n, "import "+n.Path, "")
		case ir.KindFunc, ir.KindVar:
			decls = append(decls, n)
			if n.Kind == ir.KindFunc && p.declName(n) == "main" {
				main = n
			}
		default:
			stmts = append(stmts, n)
		}
	}
	if main != nil {
		if main.Arity() > 0 || main.Type != "" {
			return nil, unsupported(source.Rust, main, "function main", "the entry point takes no parameters and returns nothing")
		}
		if len(stmts) > 0 {
			return nil, unsupported(source.Rust, stmts[0], "module-level statement", "the program already defines main")
		}
	}
	for _, n := range decls {
		if n.Kind == ir.KindVar {
			if err := g.constType(n); err != nil {
				return nil, err
			}
		}
	}

	g.w.line("// Code generated by rift. DO NOT EDIT.")
	prevFunc := true
	for _, n := range decls {
		if n.Kind == ir.KindFunc || prevFunc {
			g.w.blank()
		}
		prevFunc = n.Kind == ir.KindFunc
		var err error
		if n.Kind == ir.KindFunc {
			err = g.funcDecl(n)
		} else {
			err = g.constDecl(n)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(stmts) > 0 {
		g.w.blank()
		g.w.line("fn main() {")
		g.w.depth++
		for _, s := range stmts {
			if err := g.stmt(s); err != nil {
				return nil, err
			}
		}
		g.w.depth--
		g.w.line("}")
	}
	return NewArtifact(source.Rust, p.fileName(), g.w.String()), nil
}

type rustGen struct {
	p *program
	w *writer
	e *exprPrinter
	// consts maps emitted constant names to their IR type.
	consts map[string]string
}

// constLiteral unwraps a literal constant, allowing a negated number.
func constLiteral(n *ir.Node) (*ir.Node, bool) {
	if n.Kind == ir.KindUnary && n.Op == ir.OpNeg {
		x := n.Operand()
		return x, x.Kind == ir.KindInt || x.Kind == ir.KindFloat
	}
	return n, n.Kind.IsLiteral() && n.Kind != ir.KindNil
}

func (g *rustGen) constType(n *ir.Node) error {
	if len(n.Children) == 0 {
		return unsupported(source.Rust, n, "module variable "+n.Name, "module variables must be initialized with a literal")
	}
	lit, ok := constLiteral(n.Child(0))
	if !ok {
		return unsupported(source.Rust, n, "module variable "+n.Name, "module variables must be initialized with a literal")
	}
	typ := n.Type
	if typ == "" {
		switch lit.Kind {
		case ir.KindInt:
			typ = ir.TypeInt
		case ir.KindFloat:
			typ = ir.TypeFloat
		case ir.KindString:
			typ = ir.TypeString
		case ir.KindBool:
			typ = ir.TypeBool
		}
	}
	if typ == ir.TypeInt && lit.Kind == ir.KindFloat {
		return unsupported(source.Rust, n, "module variable "+n.Name, "float literal for an int variable")
	}
	g.consts[g.p.declName(n)] = typ
	return nil
}

func (g *rustGen) constDecl(n *ir.Node) error {
	name := g.p.declName(n)
	typ := g.consts[name]
	init := n.Child(0)
	lit, _ := constLiteral(init)
	var value string
	switch {
	case lit.Kind == ir.KindString:
		g.w.line("const %s: &str = %s;", name, quote(lit.Value, braceEscape))
		return nil
	case typ == ir.TypeFloat && lit.Kind == ir.KindInt:
		value = lit.Value + ".0"
	default:
		value = lit.Value
	}
	if lit != init {
		value = "-" + value
	}
	g.w.line("const %s: %s = %s;", name, rustTypeNames[typ], value)
	return nil
}

func (g *rustGen) funcDecl(fn *ir.Node) error {
	params := make([]string, 0, fn.Arity())
	for _, prm := range fn.Params().Children {
		t, ok := rustTypeNames[prm.Type]
		if !ok {
			return unsupported(source.Rust, prm, "parameter "+prm.Name, "parameters need a declared type")
		}
		params = append(params, g.p.local(prm.Name)+": "+t)
	}
	result := ""
	if fn.Type != "" {
		result = " -> " + rustTypeNames[fn.Type]
	} else if returnsValue(fn) {
		return unsupported(source.Rust, fn, "function "+fn.Name, "functions that return a value need a declared result type")
	}
	g.w.line("fn %s(%s)%s {", g.p.declName(fn), strings.Join(params, ", "), result)
	if err := g.block(fn.Body()); err != nil {
		return err
	}
	g.w.line("}")
	return nil
}

func (g *rustGen) block(b *ir.Node) error {
	g.w.depth++
	defer func() { g.w.depth-- }()
	for _, s := range b.Children {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func rustZero(typ string) string {
	switch typ {
	case ir.TypeInt:
		return "0"
	case ir.TypeFloat:
		return "0.0"
	case ir.TypeString:
		return "String::new()"
	case ir.TypeBool:
		return "false"
	}
	return ""
}

func (g *rustGen) stmt(n *ir.Node) error {
	switch n.Kind {
	case ir.KindVar:
		name := g.p.local(n.Name)
		var value string
		if len(n.Children) == 0 {
			value = rustZero(n.Type)
			if value == "" {
				return unsupported(source.Rust, n, "variable "+n.Name, "variables without an initializer need a declared type")
			}
		} else {
			v, err := g.e.expr(n.Child(0))
			if err != nil {
				return err
			}
			value = v
		}
		if t, ok := rustTypeNames[n.Type]; ok {
			g.w.line("let mut %s: %s = %s;", name, t, value)
		} else {
			g.w.line("let mut %s = %s;", name, value)
		}
	case ir.KindAssign:
		if g.p.globals[n.Ref] {
			return unsupported(source.Rust, n, "assignment to module variable "+n.Name, "module variables are constants")
		}
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
		if b, ok := n.Cond().BoolValue(); ok && b {
			g.w.line("loop {")
		} else {
			c, err := g.e.expr(n.Cond())
			if err != nil {
				return err
			}
			g.w.line("while %s {", c)
		}
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
		return fmt.Errorf("emit rust: %s: unexpected %s statement", n.Pos, n.Kind)
	}
	return nil
}

func (g *rustGen) ifStmt(n *ir.Node, keyword string) error {
	c, err := g.e.expr(n.Cond())
	if err != nil {
		return err
	}
	g.w.line("%s %s {", keyword, c)
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

// override renders string concatenation with a literal operand through
// format!, which accepts any mix of String and &str operands.
func (g *rustGen) override(n *ir.Node) (string, int, bool, error) {
	if n.Kind != ir.KindBinary || n.Op != ir.OpAdd {
		return "", 0, false, nil
	}
	if n.Left().Kind != ir.KindString && n.Right().Kind != ir.KindString {
		return "", 0, false, nil
	}
	args := make([]string, 2)
	for i, x := range []*ir.Node{n.Left(), n.Right()} {
		if x.Kind == ir.KindString {
			args[i] = quote(x.Value, braceEscape)
			continue
		}
		s, err := g.e.expr(x)
		if err != nil {
			return "", 0, true, err
		}
		args[i] = s
	}
	return `format!("{}{}", ` + args[0] + ", " + args[1] + ")", precAtom, true, nil
}

func (g *rustGen) binary(op ir.Op) (opInfo, bool) {
	info, ok := rustBinary[op]
	return info, ok
}

func (g *rustGen) unary(op ir.Op) opInfo {
	if op == ir.OpNot {
		return opInfo{"!", 6}
	}
	return opInfo{"-", 6}
}

func (g *rustGen) nonAssoc(prec int) bool { return prec == 3 }

func (g *rustGen) literal(n *ir.Node) (string, error) {
	switch n.Kind {
	case ir.KindString:
		return "String::from(" + quote(n.Value, braceEscape) + ")", nil
	case ir.KindNil:
		return "", unsupported(source.Rust, n, "nil", "rust has no null value")
	}
	return n.Value, nil
}

func (g *rustGen) ident(n *ir.Node) (string, error) {
	name, err := g.p.ident(n)
	if err != nil {
		return "", err
	}
	if g.p.globals[n.Ref] && g.consts[name] == ir.TypeString {
		return name + ".to_string()", nil
	}
	return name, nil
}

func (g *rustGen) print(args []string) string {
	if len(args) == 0 {
		return "println!()"
	}
	return `println!("` + strings.TrimSuffix(strings.Repeat("{} ", len(args)), " ") + `", ` + strings.Join(args, ", ") + ")"
}

func (g *rustGen) length(x string, prec int) (string, int) {
	if prec < precAtom {
		x = "(" + x + ")"
	}
	return "(" + x + ".len() as i64)", precAtom
}
