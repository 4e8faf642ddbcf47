package optimize

import (
	"math"

	"github.com/roach88/rift/internal/ir"
)

// maxExactInt bounds folded integers to the range every target represents
// exactly (JavaScript numbers are doubles).
const maxExactInt = 1 << 53

// foldConstants evaluates operators whose operands are literals. Only
// operations that mean the same thing in every target language are folded:
// division, float arithmetic and modulo of negative numbers are left alone.
func foldConstants(prog *ir.Node) bool {
	changed := false
	ir.Rewrite(prog, func(n *ir.Node) *ir.Node {
		if r := fold(n); r != nil {
			changed = true
			return r
		}
		return n
	})
	return changed
}

func fold(n *ir.Node) *ir.Node {
	switch n.Kind {
	case ir.KindUnary:
		return foldUnary(n)
	case ir.KindBinary:
		l, r := n.Left(), n.Right()
		switch {
		case l.Kind == ir.KindInt && r.Kind == ir.KindInt:
			a, _ := l.IntValue()
			b, _ := r.IntValue()
			return foldInts(n, a, b)
		case l.Kind == ir.KindBool && r.Kind == ir.KindBool:
			a, _ := l.BoolValue()
			b, _ := r.BoolValue()
			return foldBools(n, a, b)
		case l.Kind == ir.KindString && r.Kind == ir.KindString:
			return foldStrings(n, l.Value, r.Value)
		}
	case ir.KindLen:
		if s := n.Child(0); s != nil && s.Kind == ir.KindString && isASCII(s.Value) {
			return ir.NewInt(int64(len(s.Value)), n.Pos)
		}
	}
	return nil
}

func foldUnary(n *ir.Node) *ir.Node {
	x := n.Operand()
	switch n.Op {
	case ir.OpNeg:
		if v, ok := x.IntValue(); ok && v != math.MinInt64 {
			return ir.NewInt(-v, n.Pos)
		}
	case ir.OpNot:
		if b, ok := x.BoolValue(); ok {
			return ir.NewBool(!b, n.Pos)
		}
	}
	return nil
}

func exact(v int64) bool { return v >= -maxExactInt && v <= maxExactInt }

func foldInts(n *ir.Node, a, b int64) *ir.Node {
	if !exact(a) || !exact(b) {
		return nil
	}
	var v int64
	switch n.Op {
	case ir.OpAdd:
		v = a + b
	case ir.OpSub:
		v = a - b
	case ir.OpMul:
		v = a * b
		if a != 0 && v/a != b {
			return nil
		}
	case ir.OpMod:
		if a < 0 || b <= 0 {
			return nil
		}
		v = a % b
	case ir.OpEq:
		return ir.NewBool(a == b, n.Pos)
	case ir.OpNe:
		return ir.NewBool(a != b, n.Pos)
	case ir.OpLt:
		return ir.NewBool(a < b, n.Pos)
	case ir.OpLe:
		return ir.NewBool(a <= b, n.Pos)
	case ir.OpGt:
		return ir.NewBool(a > b, n.Pos)
	case ir.OpGe:
		return ir.NewBool(a >= b, n.Pos)
	default:
		return nil
	}
	if !exact(v) {
		return nil
	}
	return ir.NewInt(v, n.Pos)
}

func foldBools(n *ir.Node, a, b bool) *ir.Node {
	switch n.Op {
	case ir.OpAnd:
		return ir.NewBool(a && b, n.Pos)
	case ir.OpOr:
		return ir.NewBool(a || b, n.Pos)
	case ir.OpEq:
		return ir.NewBool(a == b, n.Pos)
	case ir.OpNe:
		return ir.NewBool(a != b, n.Pos)
	}
	return nil
}

func foldStrings(n *ir.Node, a, b string) *ir.Node {
	switch n.Op {
	case ir.OpAdd:
		return ir.NewString(a+b, n.Pos)
	case ir.OpEq:
		return ir.NewBool(a == b, n.Pos)
	case ir.OpNe:
		return ir.NewBool(a != b, n.Pos)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
