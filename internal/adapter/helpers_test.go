package adapter

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var ignorePos = cmpopts.IgnoreFields(ir.Node{}, "Pos")

func parse(t *testing.T, a Adapter, text string) (*ir.Node, diag.List) {
	t.Helper()
	unit := source.NewUnit("fixture"+a.Language().Ext(), a.Language(), "fixture", []byte(text))
	return a.Parse(context.Background(), unit)
}

func mustParse(t *testing.T, a Adapter, text string) *ir.Node {
	t.Helper()
	root, diags := parse(t, a, text)
	require.False(t, diags.HasErrors(), diags.Format())
	require.NotNil(t, root)
	require.NoError(t, ir.CheckOwnership(root))
	return root
}

func requireTree(t *testing.T, want, got *ir.Node) {
	t.Helper()
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Fatalf("IR mismatch (-want +got):\n%s", diff)
	}
}

// Tree builders for expected fragments.

func module(lang source.Language, decls ...*ir.Node) *ir.Node {
	for _, d := range decls {
		d.Lang = lang
	}
	return &ir.Node{Kind: ir.KindModule, Name: "fixture", Lang: lang, Children: decls}
}

func imp(name, path, member, alias string) *ir.Node {
	return &ir.Node{Kind: ir.KindImport, Name: name, Path: path, Value: member, Alias: alias}
}

func fn(name, typ string, params []*ir.Node, body ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindFunc, Name: name, Type: typ, Children: []*ir.Node{
		{Kind: ir.KindParams, Children: params},
		block(body...),
	}}
}

func param(name, typ string) *ir.Node {
	return &ir.Node{Kind: ir.KindParam, Name: name, Type: typ}
}

func params(ps ...*ir.Node) []*ir.Node { return ps }

func block(stmts ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindBlock, Children: stmts}
}

func varDecl(name, typ string, init *ir.Node) *ir.Node {
	v := &ir.Node{Kind: ir.KindVar, Name: name, Type: typ}
	if init != nil {
		v.Children = []*ir.Node{init}
	}
	return v
}

func assign(name string, value *ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindAssign, Name: name, Children: []*ir.Node{value}}
}

func ret(x *ir.Node) *ir.Node {
	r := &ir.Node{Kind: ir.KindReturn}
	if x != nil {
		r.Children = []*ir.Node{x}
	}
	return r
}

func ifStmt(cond, then, els *ir.Node) *ir.Node {
	n := &ir.Node{Kind: ir.KindIf, Children: []*ir.Node{cond, then}}
	if els != nil {
		n.Children = append(n.Children, els)
	}
	return n
}

func while(cond *ir.Node, body ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindWhile, Children: []*ir.Node{cond, block(body...)}}
}

func exprStmt(x *ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindExprStmt, Children: []*ir.Node{x}}
}

func id(name string) *ir.Node    { return &ir.Node{Kind: ir.KindIdent, Name: name} }
func num(v int64) *ir.Node       { return ir.NewInt(v, source.Pos{}) }
func flt(text string) *ir.Node   { return ir.NewFloat(text, source.Pos{}) }
func str(s string) *ir.Node      { return ir.NewString(s, source.Pos{}) }
func boolean(b bool) *ir.Node    { return ir.NewBool(b, source.Pos{}) }
func nilLit() *ir.Node           { return ir.NewNil(source.Pos{}) }
func neg(x *ir.Node) *ir.Node    { return ir.NewUnary(ir.OpNeg, x, source.Pos{}) }
func not(x *ir.Node) *ir.Node    { return ir.NewUnary(ir.OpNot, x, source.Pos{}) }
func length(x *ir.Node) *ir.Node { return &ir.Node{Kind: ir.KindLen, Children: []*ir.Node{x}} }

func bin(op ir.Op, l, r *ir.Node) *ir.Node { return ir.NewBinary(op, l, r, source.Pos{}) }

func call(callee *ir.Node, args ...*ir.Node) *ir.Node {
	return ir.NewCall(callee, args, source.Pos{})
}

func sel(operand *ir.Node, name string) *ir.Node {
	return &ir.Node{Kind: ir.KindSelector, Name: name, Children: []*ir.Node{operand}}
}

func print_(args ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: ir.KindPrint, Children: args}
}
