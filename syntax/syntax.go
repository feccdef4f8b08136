// Package syntax defines the tree format produced by an external parser.
//
// The node structs carry JSON tags so that a front-end written in any
// language can hand a tree to this runtime. The structs describe shape only:
// no name binding or semantic validation happens here. Lowering and
// validation are the job of the ir package.
package syntax

import (
	"encoding/json"
	"fmt"
)

// Position is a 1-based line/column location in a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a half-open span of source text.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Node kinds.
const (
	KindNil      = "nil"
	KindBool     = "bool"
	KindInt      = "int"
	KindFloat    = "float"
	KindString   = "string"
	KindList     = "list"
	KindMap      = "map"
	KindIdent    = "ident"
	KindBinary   = "binary"
	KindUnary    = "unary"
	KindAssign   = "assign"
	KindVar      = "var"
	KindIndex    = "index"
	KindAttr     = "attr"
	KindCall     = "call"
	KindIf       = "if"
	KindWhile    = "while"
	KindLoop     = "loop"
	KindBlock    = "block"
	KindFunc     = "func"
	KindReturn   = "return"
	KindThrow    = "throw"
	KindTry      = "try"
	KindBreak    = "break"
	KindContinue = "continue"
	KindSpread   = "spread"
	KindProgram  = "program"
)

// Param is one declared function parameter. At most one parameter may set
// Rest (variadic positional) and at most one may set Kw (variadic keyword);
// placement rules are enforced during lowering, not here.
type Param struct {
	Name string `json:"name"`
	Rest bool   `json:"rest,omitempty"`
	Kw   bool   `json:"kw,omitempty"`
}

// KwArg is one named argument at a call site.
type KwArg struct {
	Name  string `json:"name"`
	Value *Node  `json:"value"`
}

// MapEntry is one key/value pair in a map literal.
type MapEntry struct {
	Key   *Node `json:"key"`
	Value *Node `json:"value"`
}

// Node is a single syntax tree node. Kind selects the variant; the other
// fields are populated per kind and left zero otherwise.
type Node struct {
	Kind  string `json:"kind"`
	Range Range  `json:"range"`

	// Literals and names
	Int    int64   `json:"int_value,omitempty"`
	Float  float64 `json:"float_value,omitempty"`
	Bool   bool    `json:"bool_value,omitempty"`
	Str    string  `json:"str_value,omitempty"`
	Name   string  `json:"name,omitempty"` // ident, var, attr, func, catch variable
	Op     string  `json:"op,omitempty"`   // binary, unary, compound assign ("+=", ...)

	// Expression operands
	Left   *Node `json:"left,omitempty"`
	Right  *Node `json:"right,omitempty"`
	Target *Node `json:"target,omitempty"` // assign target, call target, index/attr base
	Index  *Node `json:"index,omitempty"`

	// Control flow
	Cond    *Node `json:"cond,omitempty"`
	Body    *Node `json:"body,omitempty"` // if-then, loop body, func body, try body
	Else    *Node `json:"else,omitempty"`
	Catch   *Node `json:"catch,omitempty"`
	Finally *Node `json:"finally,omitempty"`

	// Sequences
	Stmts   []*Node    `json:"stmts,omitempty"`   // block, program
	Args    []*Node    `json:"args,omitempty"`    // call positional args (a trailing spread node allowed)
	KwArgs  []KwArg    `json:"kwargs,omitempty"`  // call named args
	Elems   []*Node    `json:"elems,omitempty"`   // list literal
	Entries []MapEntry `json:"entries,omitempty"` // map literal
	Params  []Param    `json:"params,omitempty"`  // func
}

// Decode parses a JSON-encoded syntax tree.
func Decode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid syntax tree: %w", err)
	}
	if node.Kind == "" {
		return nil, fmt.Errorf("invalid syntax tree: missing kind on root node")
	}
	return &node, nil
}

// Encode serializes a syntax tree as JSON.
func Encode(node *Node) ([]byte, error) {
	return json.Marshal(node)
}
