package emit

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// Golang emits a single Go source file. Programs with an entry point or
// module-level statements become package main; anything else is a library
// package named after the program.
type Golang struct{}

func (Golang) Target() source.Language { return source.Go }

var goKeywords = keywordSet(
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type",
	"var",
	// predeclared names the emitted code relies on
	"any", "bool", "false", "float64", "int", "len", "nil", "string", "true",
	"fmt", "_",
)

var goBinary = map[ir.Op]opInfo{
	ir.OpOr:  {"||", 1},
	ir.OpAnd: {"&&", 2},
	ir.OpEq:  {"==", 3}, ir.OpNe: {"!=", 3},
	ir.OpLt: {"<", 3}, ir.OpLe: {"<=", 3}, ir.OpGt: {">", 3}, ir.OpGe: {">=", 3},
	ir.OpAdd: {"+", 4}, ir.OpSub: {"-", 4},
	ir.OpMul: {"*", 5}, ir.OpDiv: {"/", 5}, ir.OpMod: {"%", 5},
}

var goTypeNames = map[string]string{
	ir.TypeInt: "int", ir.TypeFloat: "float64", ir.TypeString: "string", ir.TypeBool: "bool",
}

func goType(t string) string {
	if name, ok := goTypeNames[t]; ok {
		return name
	}
	return "any"
}

// goReserved keeps entry points written in other languages from becoming
// the Go entry point.
func goReserved(decl *ir.Node) bool {
	return decl.Kind == ir.KindFunc && decl.Lang != source.Go && (decl.Name == "main" || decl.Name == "init")
}

func (Golang) Emit(prog *ir.Node) (*Artifact, error) {
	p, err := analyze(source.Go, prog, goKeywords, goReserved)
	if err != nil {
		return nil, err
	}
	g := &goGen{p: p, w: &writer{indent: "\t"}, typing: make(map[*ir.Node]bool)}
	g.e = &exprPrinter{d: g, p: p}

	var imports, decls, stmts []*ir.Node
	hasMain := false
	for _, n := range p.items {
		switch n.Kind {
		case ir.KindImport:
			imports = append(imports, n)
		case ir.KindFunc, ir.KindVar:
			decls = append(decls, n)
			if n.Kind == ir.KindFunc && p.declName(n) == "main" {
				hasMain = true
			}
		default:
			stmts = append(stmts, n)
		}
	}

	pkg := "main"
	if !hasMain && len(stmts) == 0 {
		pkg = goPackageName(prog.Name)
	}
	g.w.line("// Code generated by rift. DO NOT EDIT.")
	g.w.blank()
	g.w.line("package %s", pkg)
	g.imports(imports, usesPrint(p.items))

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
			err = g.varDecl(n, g.p.declName(n), true)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(stmts) > 0 {
		entry := "main"
		if hasMain {
			entry = "init"
		}
		g.w.blank()
		g.w.line("func %s() {", entry)
		g.locals = make(map[string]string)
		g.w.depth++
		for _, s := range stmts {
			if err := g.stmt(s); err != nil {
				return nil, err
			}
		}
		g.w.depth--
		g.w.line("}")
	}
	return NewArtifact(source.Go, p.fileName(), g.w.String()), nil
}

func goPackageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '_' || (r >= 'a' && r <= 'z') || (b.Len() > 0 && r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || goKeywords[b.String()] {
		return "fused"
	}
	return b.String()
}

func usesPrint(items []*ir.Node) bool {
	found := false
	for _, n := range items {
		ir.Walk(n, func(c *ir.Node) bool {
			if c.Kind == ir.KindPrint {
				found = true
			}
			return !found
		})
	}
	return found
}

type goGen struct {
	p *program
	w *writer
	e *exprPrinter
	// locals maps the emitted locals of the function being printed to
	// their Go type.
	locals map[string]string
	// typing guards staticType against module variables initialized from
	// each other.
	typing map[*ir.Node]bool
}

func (g *goGen) imports(imports []*ir.Node, needFmt bool) {
	var specs []string
	for _, n := range imports {
		if n.Path == "fmt" && n.Alias == "fmt" {
			needFmt = false
		}
		if n.Alias == path.Base(n.Path) {
			specs = append(specs, strconv.Quote(n.Path))
		} else {
			specs = append(specs, n.Alias+" "+strconv.Quote(n.Path))
		}
	}
	if needFmt {
		specs = append([]string{`"fmt"`}, specs...)
	}
	switch len(specs) {
	case 0:
		return
	case 1:
		g.w.blank()
		g.w.line("import %s", specs[0])
		return
	}
	g.w.blank()
	g.w.line("import (")
	g.w.depth++
	for _, s := range specs {
		g.w.line("%s", s)
	}
	g.w.depth--
	g.w.line(")")
}

func (g *goGen) funcDecl(fn *ir.Node) error {
	g.locals = make(map[string]string)
	params := make([]string, 0, fn.Arity())
	for _, prm := range fn.Params().Children {
		name := g.p.local(prm.Name)
		g.locals[name] = goType(prm.Type)
		params = append(params, name+" "+goType(prm.Type))
	}
	result := ""
	if fn.Type != "" || returnsValue(fn) {
		result = " " + goType(fn.Type)
	}
	g.w.line("func %s(%s)%s {", g.p.declName(fn), strings.Join(params, ", "), result)
	if err := g.block(fn.Body()); err != nil {
		return err
	}
	g.w.line("}")
	return nil
}

func (g *goGen) block(b *ir.Node) error {
	g.w.depth++
	defer func() { g.w.depth-- }()
	for _, s := range b.Children {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *goGen) varDecl(n *ir.Node, name string, pkg bool) error {
	if len(n.Children) == 0 {
		if !pkg {
			g.locals[name] = goType(n.Type)
		}
		g.w.line("var %s %s", name, goType(n.Type))
		return nil
	}
	init := n.Child(0)
	v, err := g.e.expr(init)
	if err != nil {
		return err
	}
	if !pkg {
		g.locals[name] = g.varType(n)
	}
	switch {
	case n.Type != "" || init.Kind == ir.KindNil:
		g.w.line("var %s %s = %s", name, goType(n.Type), v)
	case pkg:
		g.w.line("var %s = %s", name, v)
	default:
		g.w.line("%s := %s", name, v)
	}
	return nil
}

func (g *goGen) stmt(n *ir.Node) error {
	switch n.Kind {
	case ir.KindVar:
		return g.varDecl(n, g.p.local(n.Name), false)
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
		x := n.Child(0)
		s, err := g.e.expr(x)
		if err != nil {
			return err
		}
		if x.Kind == ir.KindCall || x.Kind == ir.KindPrint {
			g.w.line("%s", s)
		} else {
			g.w.line("_ = %s", s)
		}
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
		if b, ok := n.Cond().BoolValue(); ok && b {
			g.w.line("for {")
		} else {
			c, err := g.e.expr(n.Cond())
			if err != nil {
				return err
			}
			g.w.line("for %s {", c)
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
		return fmt.Errorf("emit go: %s: unexpected %s statement", n.Pos, n.Kind)
	}
	return nil
}

func (g *goGen) ifStmt(n *ir.Node, keyword string) error {
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

// varType is the Go type a variable declaration gets.
func (g *goGen) varType(n *ir.Node) string {
	if n.Type != "" || len(n.Children) == 0 || n.Child(0).Kind == ir.KindNil {
		return goType(n.Type)
	}
	if g.typing[n] {
		return ""
	}
	g.typing[n] = true
	defer delete(g.typing, n)
	return g.staticType(n.Child(0))
}

// staticType is the Go type of an expression, "any" for values of dynamic
// type and "" when it cannot be told, as for results of foreign calls.
func (g *goGen) staticType(n *ir.Node) string {
	switch n.Kind {
	case ir.KindInt:
		return "int"
	case ir.KindFloat:
		return "float64"
	case ir.KindString:
		return "string"
	case ir.KindBool:
		return "bool"
	case ir.KindLen:
		return "int"
	case ir.KindIdent:
		if n.Ref == "" {
			return g.locals[g.p.local(n.Name)]
		}
		if decl, ok := g.p.decls[n.Ref]; ok && decl.Kind == ir.KindVar {
			return g.varType(decl)
		}
	case ir.KindCall:
		callee := n.Callee()
		if callee.Kind != ir.KindIdent {
			return ""
		}
		if fn, ok := g.p.decls[callee.Ref]; ok && fn.Kind == ir.KindFunc && (fn.Type != "" || returnsValue(fn)) {
			return goType(fn.Type)
		}
	case ir.KindUnary:
		if n.Op == ir.OpNot {
			return "bool"
		}
		return g.staticType(n.Operand())
	case ir.KindBinary:
		switch n.Op {
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
			l, r := g.staticType(n.Left()), g.staticType(n.Right())
			if l == "any" || r == "any" || l == "" {
				return r
			}
			return l
		}
		return "bool"
	}
	return ""
}

// override rejects operators applied to values of dynamic type, which Go
// only allows to compare for equality.
func (g *goGen) override(n *ir.Node) (string, int, bool, error) {
	var operands []*ir.Node
	switch n.Kind {
	case ir.KindBinary:
		if _, ok := goBinary[n.Op]; !ok || n.Op == ir.OpEq || n.Op == ir.OpNe {
			return "", 0, false, nil
		}
		operands = []*ir.Node{n.Left(), n.Right()}
	case ir.KindUnary:
		operands = []*ir.Node{n.Operand()}
	default:
		return "", 0, false, nil
	}
	for _, x := range operands {
		if g.staticType(x) == "any" {
			op := string(n.Op)
			if n.Op == ir.OpNeg {
				op = "-"
			}
			return "", 0, true, unsupported(source.Go, n, "operator "+op+" on a dynamic value",
				"declare parameter and result types so the operands have a static type")
		}
	}
	return "", 0, false, nil
}

func (g *goGen) binary(op ir.Op) (opInfo, bool) {
	info, ok := goBinary[op]
	return info, ok
}

func (g *goGen) unary(op ir.Op) opInfo {
	if op == ir.OpNot {
		return opInfo{"!", 6}
	}
	return opInfo{"-", 6}
}

func (g *goGen) nonAssoc(int) bool { return false }

func (g *goGen) literal(n *ir.Node) (string, error) {
	switch n.Kind {
	case ir.KindString:
		return strconv.Quote(n.Value), nil
	case ir.KindNil:
		return "nil", nil
	}
	return n.Value, nil
}

func (g *goGen) ident(n *ir.Node) (string, error) { return g.p.ident(n) }

func (g *goGen) print(args []string) string {
	return "fmt.Println(" + strings.Join(args, ", ") + ")"
}

func (g *goGen) length(x string, _ int) (string, int) {
	return "len(" + x + ")", precAtom
}
