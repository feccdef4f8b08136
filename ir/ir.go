// Package ir holds the intermediate representation that sits between the
// external syntax tree and the bytecode compiler.
//
// The tree is arena-held: nodes live in a flat slice and refer to their
// children by integer NodeID handles rather than by owned pointers. A tree
// is built once per compilation unit by Build and never mutated afterwards.
package ir

import "github.com/perch-lang/perch/syntax"

// NodeID is an integer handle referring to a node within one Tree.
type NodeID int32

// Invalid marks an absent child, such as a bare return's missing value.
// Arena slot zero is reserved for it, so a zero-valued NodeID field reads
// as "no child".
const Invalid NodeID = 0

// Kind is the variant tag of a node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNil
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindIdent
	KindBinary
	KindUnary
	KindAssign
	KindVarDecl
	KindIndex
	KindAttr
	KindCall
	KindIf
	KindWhile
	KindLoop
	KindBlock
	KindFunc
	KindReturn
	KindThrow
	KindTry
	KindBreak
	KindContinue
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindIdent:
		return "ident"
	case KindBinary:
		return "binary"
	case KindUnary:
		return "unary"
	case KindAssign:
		return "assign"
	case KindVarDecl:
		return "var"
	case KindIndex:
		return "index"
	case KindAttr:
		return "attr"
	case KindCall:
		return "call"
	case KindIf:
		return "if"
	case KindWhile:
		return "while"
	case KindLoop:
		return "loop"
	case KindBlock:
		return "block"
	case KindFunc:
		return "func"
	case KindReturn:
		return "return"
	case KindThrow:
		return "throw"
	case KindTry:
		return "try"
	case KindBreak:
		return "break"
	case KindContinue:
		return "continue"
	default:
		return "invalid"
	}
}

// Param is one declared function parameter.
type Param struct {
	Name string
	Rest bool // variadic positional
	Kw   bool // variadic keyword
}

// Node is a single IR node. Kind selects the variant; unused fields are
// left zero. NodeID fields hold Invalid when the child is absent.
type Node struct {
	Kind  Kind
	Range syntax.Range

	Ident string // ident, var-decl, attr field, func name
	Op    string // binary, unary
	Int   int64
	Float float64
	Bool  bool
	Str   string

	Left    NodeID // binary lhs, unary operand, assign target, index/attr base, return/throw value, var-decl init
	Right   NodeID // binary rhs, assign value, index expr
	Cond    NodeID
	Body    NodeID // if-then, loop body, func body, try body
	Else    NodeID
	Catch   NodeID
	Finally NodeID

	CatchVar string // try: name bound to the caught error

	List     []NodeID // block stmts, call positional args, list elems
	Keys     []NodeID // map literal keys
	Vals     []NodeID // map literal values
	KwNames  []string // call keyword-argument names
	KwVals   []NodeID // call keyword-argument values
	Params   []Param  // func
	Callee   NodeID   // call target
	Spread   bool     // call: last positional arg expands at call time
}

// Tree is an immutable arena of nodes with a designated root.
type Tree struct {
	nodes []Node
	root  NodeID
}

// Root returns the root node's handle.
func (t *Tree) Root() NodeID {
	return t.root
}

// Node returns the node for the given handle. The returned pointer is into
// the arena and must be treated as read-only.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes in the arena, not counting the reserved
// invalid slot.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}
