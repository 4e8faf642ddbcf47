package ir

import (
	"fmt"
	"strconv"

	"github.com/roach88/rift/internal/source"
)

// Kind tags a Node.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Structure.
	KindProgram // Children: modules
	KindModule  // Name: module; Lang: origin (empty once merged); Children: imports, decls, statements

	// Declarations.
	KindImport // Name: module identity; Path: specifier as written; Value: member ("" imports the module); Alias: local binding
	KindFunc   // Name; Type: result type; Children: [Params, Block]
	KindParams // Children: params
	KindParam  // Name; Type
	KindVar    // Name; Type; Children: [init] (optional)

	// Statements.
	KindBlock    // Children: statements
	KindReturn   // Children: [value] (optional)
	KindExprStmt // Children: [expr]
	KindAssign   // Name: target; Children: [value]
	KindIf       // Children: [cond, then Block, else Block] (else optional)
	KindWhile    // Children: [cond, Block]

	// Expressions.
	KindIdent    // Name; Ref
	KindSelector // Name: member; Children: [operand]
	KindCall     // Children: [callee, args...]
	KindBinary   // Op; Children: [left, right]
	KindUnary    // Op; Children: [operand]
	KindInt      // Value: decimal text
	KindFloat    // Value: literal text
	KindString   // Value: decoded string
	KindBool     // Value: "true" or "false"
	KindNil
	KindPrint // Children: args
	KindLen   // Children: [operand]

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:  "invalid",
	KindProgram:  "program",
	KindModule:   "module",
	KindImport:   "import",
	KindFunc:     "func",
	KindParams:   "params",
	KindParam:    "param",
	KindVar:      "var",
	KindBlock:    "block",
	KindReturn:   "return",
	KindExprStmt: "expr_stmt",
	KindAssign:   "assign",
	KindIf:       "if",
	KindWhile:    "while",
	KindIdent:    "ident",
	KindSelector: "selector",
	KindCall:     "call",
	KindBinary:   "binary",
	KindUnary:    "unary",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindBool:     "bool",
	KindNil:      "nil",
	KindPrint:    "print",
	KindLen:      "len",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsExpr reports whether nodes of this kind are expressions.
func (k Kind) IsExpr() bool { return k >= KindIdent && k <= KindLen }

// IsLiteral reports whether nodes of this kind are literal constants.
func (k Kind) IsLiteral() bool { return k >= KindInt && k <= KindNil }

// IsDecl reports whether nodes of this kind declare a module-level name.
func (k Kind) IsDecl() bool { return k == KindFunc || k == KindVar }

// Op is a unary or binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpPow Op = "**"
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAnd Op = "&&"
	OpOr  Op = "||"
	OpNot Op = "!"
	OpNeg Op = "neg"
)

// Normalized type names. An empty Type means a dynamic value.
const (
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeString = "string"
	TypeBool   = "bool"
)

// Ref prefixes set by unification on identifiers. Program references carry
// the bare qualified name "module.name"; locals carry no Ref.
const (
	RefExtern  = "extern:"
	RefBuiltin = "builtin:"
)

// Node is one IR tree node. Which attributes are meaningful depends on Kind
// (see the Kind constants).
type Node struct {
	Kind     Kind            `json:"kind"`
	Name     string          `json:"name,omitempty"`
	Value    string          `json:"value,omitempty"`
	Op       Op              `json:"op,omitempty"`
	Type     string          `json:"type,omitempty"`
	Alias    string          `json:"alias,omitempty"`
	Path     string          `json:"path,omitempty"`
	Ref      string          `json:"ref,omitempty"`
	Lang     source.Language `json:"lang,omitempty"`
	Pos      source.Pos      `json:"pos"`
	Children []*Node         `json:"children,omitempty"`
}

// New builds a node of kind with children.
func New(kind Kind, pos source.Pos, children ...*Node) *Node {
	return &Node{Kind: kind, Pos: pos, Children: children}
}

func NewIdent(name string, pos source.Pos) *Node {
	return &Node{Kind: KindIdent, Name: name, Pos: pos}
}

func NewInt(v int64, pos source.Pos) *Node {
	return &Node{Kind: KindInt, Value: strconv.FormatInt(v, 10), Pos: pos}
}

func NewFloat(text string, pos source.Pos) *Node {
	return &Node{Kind: KindFloat, Value: text, Pos: pos}
}

func NewString(s string, pos source.Pos) *Node {
	return &Node{Kind: KindString, Value: s, Pos: pos}
}

func NewBool(b bool, pos source.Pos) *Node {
	return &Node{Kind: KindBool, Value: strconv.FormatBool(b), Pos: pos}
}

func NewNil(pos source.Pos) *Node {
	return &Node{Kind: KindNil, Pos: pos}
}

func NewBinary(op Op, left, right *Node, pos source.Pos) *Node {
	return &Node{Kind: KindBinary, Op: op, Pos: pos, Children: []*Node{left, right}}
}

func NewUnary(op Op, x *Node, pos source.Pos) *Node {
	return &Node{Kind: KindUnary, Op: op, Pos: pos, Children: []*Node{x}}
}

func NewCall(callee *Node, args []*Node, pos source.Pos) *Node {
	return &Node{Kind: KindCall, Pos: pos, Children: append([]*Node{callee}, args...)}
}

func NewBlock(pos source.Pos, stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Pos: pos, Children: stmts}
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Cond is the condition of an If or While.
func (n *Node) Cond() *Node { return n.Child(0) }

// Body is the block of a Func or While.
func (n *Node) Body() *Node { return n.Child(1) }

// Then is the consequence block of an If.
func (n *Node) Then() *Node { return n.Child(1) }

// Else is the alternative block of an If, or nil.
func (n *Node) Else() *Node { return n.Child(2) }

// Params is the parameter list of a Func.
func (n *Node) Params() *Node { return n.Child(0) }

// Arity is the parameter count of a Func.
func (n *Node) Arity() int { return len(n.Params().Children) }

// Callee and Args split a Call.
func (n *Node) Callee() *Node { return n.Child(0) }
func (n *Node) Args() []*Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[1:]
}

// Left and Right are the operands of a Binary.
func (n *Node) Left() *Node  { return n.Child(0) }
func (n *Node) Right() *Node { return n.Child(1) }

// Operand is the single operand of a Unary, Selector or Len.
func (n *Node) Operand() *Node { return n.Child(0) }

// IntValue returns the value of an Int literal.
func (n *Node) IntValue() (int64, bool) {
	if n == nil || n.Kind != KindInt {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	return v, err == nil
}

// BoolValue returns the value of a Bool literal.
func (n *Node) BoolValue() (bool, bool) {
	if n == nil || n.Kind != KindBool {
		return false, false
	}
	return n.Value == "true", true
}

// IsPure reports whether evaluating n can have no side effects and can be
// duplicated freely: literals and identifiers.
func (n *Node) IsPure() bool {
	return n != nil && (n.Kind.IsLiteral() || n.Kind == KindIdent)
}

// IsGoInit reports whether n is a Go package initializer. A Go module may
// declare any number of them and none can be referenced.
func (n *Node) IsGoInit() bool {
	return n.Kind == KindFunc && n.Lang == source.Go && n.Name == "init" && n.Arity() == 0 && n.Type == ""
}

// IsLocal reports whether an Ident refers to a local or parameter.
func (n *Node) IsLocal() bool { return n.Kind == KindIdent && n.Ref == "" }

// IsExtern reports whether an Ident refers to a foreign import.
func (n *Node) IsExtern() bool {
	return n.Kind == KindIdent && len(n.Ref) > len(RefExtern) && n.Ref[:len(RefExtern)] == RefExtern
}

// IsBuiltin reports whether an Ident refers to a language builtin.
func (n *Node) IsBuiltin() bool {
	return n.Kind == KindIdent && len(n.Ref) > len(RefBuiltin) && n.Ref[:len(RefBuiltin)] == RefBuiltin
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch {
	case n.Name != "":
		return fmt.Sprintf("%s %s@%s", n.Kind, n.Name, n.Pos)
	case n.Op != "":
		return fmt.Sprintf("%s %s@%s", n.Kind, n.Op, n.Pos)
	case n.Value != "":
		return fmt.Sprintf("%s %q@%s", n.Kind, n.Value, n.Pos)
	}
	return fmt.Sprintf("%s@%s", n.Kind, n.Pos)
}
