package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/ir"
)

// precAtom is the precedence of operands that never need parentheses.
const precAtom = 100

type opInfo struct {
	text string
	prec int
}

// dialect supplies the target-specific parts of expression printing.
type dialect interface {
	binary(op ir.Op) (opInfo, bool)
	unary(op ir.Op) opInfo
	// nonAssoc reports precedence levels whose operators do not chain, so
	// an operand at the same level is parenthesized on either side.
	nonAssoc(prec int) bool
	literal(n *ir.Node) (string, error)
	ident(n *ir.Node) (string, error)
	print(args []string) string
	length(x string, prec int) (string, int)
}

// overrider lets a dialect take over rendering of particular nodes.
type overrider interface {
	override(n *ir.Node) (s string, prec int, ok bool, err error)
}

// exprPrinter renders expressions with minimal parentheses. Binary operators
// are left-associative except **, which groups to the right.
type exprPrinter struct {
	d            dialect
	p            *program
	unaryPowLeft bool // a unary left operand of ** must be parenthesized
}

func (e *exprPrinter) expr(n *ir.Node) (string, error) {
	s, _, err := e.prec(n)
	return s, err
}

func (e *exprPrinter) prec(n *ir.Node) (string, int, error) {
	if o, ok := e.d.(overrider); ok {
		if s, p, ok, err := o.override(n); ok || err != nil {
			return s, p, err
		}
	}
	switch n.Kind {
	case ir.KindInt, ir.KindFloat:
		s, err := e.d.literal(n)
		if strings.HasPrefix(s, "-") {
			return s, e.d.unary(ir.OpNeg).prec, err
		}
		return s, precAtom, err
	case ir.KindString, ir.KindBool, ir.KindNil:
		s, err := e.d.literal(n)
		return s, precAtom, err
	case ir.KindIdent:
		s, err := e.d.ident(n)
		return s, precAtom, err
	case ir.KindSelector:
		x, err := e.operand(n.Operand(), precAtom)
		if err != nil {
			return "", 0, err
		}
		return x + "." + n.Name, precAtom, nil
	case ir.KindCall:
		callee, err := e.operand(n.Callee(), precAtom)
		if err != nil {
			return "", 0, err
		}
		args, err := e.list(n.Args())
		if err != nil {
			return "", 0, err
		}
		return callee + "(" + strings.Join(args, ", ") + ")", precAtom, nil
	case ir.KindPrint:
		args, err := e.list(n.Children)
		if err != nil {
			return "", 0, err
		}
		return e.d.print(args), precAtom, nil
	case ir.KindLen:
		x, p, err := e.prec(n.Operand())
		if err != nil {
			return "", 0, err
		}
		s, sp := e.d.length(x, p)
		return s, sp, nil
	case ir.KindUnary:
		info := e.d.unary(n.Op)
		x, p, err := e.prec(n.Operand())
		if err != nil {
			return "", 0, err
		}
		if p < info.prec || (n.Op == ir.OpNeg && strings.HasPrefix(x, "-")) {
			x = "(" + x + ")"
		}
		return info.text + x, info.prec, nil
	case ir.KindBinary:
		return e.binary(n)
	}
	return "", 0, fmt.Errorf("emit %s: %s: %s is not an expression", e.p.target, n.Pos, n.Kind)
}

func (e *exprPrinter) binary(n *ir.Node) (string, int, error) {
	info, ok := e.d.binary(n.Op)
	if !ok {
		return "", 0, unsupported(e.p.target, n, "operator "+string(n.Op), "")
	}
	l, lp, err := e.prec(n.Left())
	if err != nil {
		return "", 0, err
	}
	r, rp, err := e.prec(n.Right())
	if err != nil {
		return "", 0, err
	}
	chain := e.d.nonAssoc(info.prec)
	if n.Op == ir.OpPow {
		unaryLeft := e.unaryPowLeft && (n.Left().Kind == ir.KindUnary || strings.HasPrefix(l, "-"))
		if lp <= info.prec || unaryLeft {
			l = "(" + l + ")"
		}
		if rp < info.prec || (chain && rp == info.prec) {
			r = "(" + r + ")"
		}
	} else {
		if lp < info.prec || (chain && lp == info.prec) {
			l = "(" + l + ")"
		}
		if rp <= info.prec {
			r = "(" + r + ")"
		}
	}
	return l + " " + info.text + " " + r, info.prec, nil
}

// operand renders n and parenthesizes it below min.
func (e *exprPrinter) operand(n *ir.Node, min int) (string, error) {
	s, p, err := e.prec(n)
	if err != nil {
		return "", err
	}
	if p < min {
		s = "(" + s + ")"
	}
	return s, nil
}

func (e *exprPrinter) list(nodes []*ir.Node) ([]string, error) {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := e.expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// writer accumulates indented lines.
type writer struct {
	b      strings.Builder
	indent string
	depth  int
}

func (w *writer) line(format string, args ...any) {
	for i := 0; i < w.depth; i++ {
		w.b.WriteString(w.indent)
	}
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) blank() {
	s := w.b.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	w.b.WriteByte('\n')
}

func (w *writer) String() string { return w.b.String() }
