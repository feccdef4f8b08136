package ir

import (
	"github.com/hashicorp/go-multierror"
	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/syntax"
)

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true,
	"<<": true, ">>": true, "&": true, "|": true, "^": true,
	"&&": true, "||": true,
	"<": true, "<=": true, "==": true, "!=": true, ">": true, ">=": true,
}

var unaryOps = map[string]bool{
	"-": true, "!": true,
}

// Compound assignment operators desugar to a plain assignment whose value is
// the corresponding binary operation on the target.
var compoundOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
}

// Build lowers a syntax tree into an IR Tree. It validates structure only
// (assignment targets, parameter placement, spread and break/continue
// positions); name binding is deferred to the compiler. All lowering errors
// are collected and returned together. Build is a pure function: the same
// input always yields a structurally identical tree.
func Build(root *syntax.Node) (*Tree, error) {
	if root == nil {
		return nil, errz.NewSyntaxLoweringError(errz.SourceLocation{}, "empty syntax tree")
	}
	b := &builder{tree: &Tree{nodes: make([]Node, 1)}} // slot 0 is the invalid node
	b.tree.root = b.lower(root)
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return b.tree, nil
}

type builder struct {
	tree      *Tree
	errs      *multierror.Error
	loopDepth int
}

func (b *builder) errorf(r syntax.Range, format string, args ...any) NodeID {
	loc := errz.SourceLocation{Line: r.Start.Line, Column: r.Start.Column}
	b.errs = multierror.Append(b.errs, errz.NewSyntaxLoweringError(loc, format, args...))
	return Invalid
}

// add places a node in the arena, first widening its range to enclose every
// child's range.
func (b *builder) add(n Node) NodeID {
	for _, id := range []NodeID{n.Left, n.Right, n.Cond, n.Body, n.Else, n.Catch, n.Finally, n.Callee} {
		b.enclose(&n.Range, id)
	}
	for _, list := range [][]NodeID{n.List, n.Keys, n.Vals, n.KwVals} {
		for _, id := range list {
			b.enclose(&n.Range, id)
		}
	}
	b.tree.nodes = append(b.tree.nodes, n)
	return NodeID(len(b.tree.nodes) - 1)
}

func (b *builder) enclose(r *syntax.Range, id NodeID) {
	if id == Invalid {
		return
	}
	child := b.tree.nodes[id].Range
	if !positionIsZero(child.Start) && (positionIsZero(r.Start) || positionBefore(child.Start, r.Start)) {
		r.Start = child.Start
	}
	if !positionIsZero(child.End) && positionBefore(r.End, child.End) {
		r.End = child.End
	}
}

func positionIsZero(p syntax.Position) bool {
	return p.Line == 0 && p.Column == 0
}

func positionBefore(a, b syntax.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// lowerChild lowers an optional child, returning Invalid when absent.
func (b *builder) lowerChild(n *syntax.Node) NodeID {
	if n == nil {
		return Invalid
	}
	return b.lower(n)
}

// requireChild lowers a required child, reporting an error when absent.
func (b *builder) requireChild(parent *syntax.Node, n *syntax.Node, what string) NodeID {
	if n == nil {
		return b.errorf(parent.Range, "%s node is missing its %s", parent.Kind, what)
	}
	return b.lower(n)
}

func (b *builder) lower(n *syntax.Node) NodeID {
	switch n.Kind {
	case syntax.KindNil:
		return b.add(Node{Kind: KindNil, Range: n.Range})
	case syntax.KindBool:
		return b.add(Node{Kind: KindBool, Range: n.Range, Bool: n.Bool})
	case syntax.KindInt:
		return b.add(Node{Kind: KindInt, Range: n.Range, Int: n.Int})
	case syntax.KindFloat:
		return b.add(Node{Kind: KindFloat, Range: n.Range, Float: n.Float})
	case syntax.KindString:
		return b.add(Node{Kind: KindString, Range: n.Range, Str: n.Str})
	case syntax.KindIdent:
		if n.Name == "" {
			return b.errorf(n.Range, "identifier node is missing its name")
		}
		return b.add(Node{Kind: KindIdent, Range: n.Range, Ident: n.Name})
	case syntax.KindList:
		return b.lowerList(n)
	case syntax.KindMap:
		return b.lowerMap(n)
	case syntax.KindBinary:
		return b.lowerBinary(n)
	case syntax.KindUnary:
		return b.lowerUnary(n)
	case syntax.KindAssign:
		return b.lowerAssign(n)
	case syntax.KindVar:
		return b.lowerVar(n)
	case syntax.KindIndex:
		return b.add(Node{
			Kind:  KindIndex,
			Range: n.Range,
			Left:  b.requireChild(n, n.Target, "target"),
			Right: b.requireChild(n, n.Index, "index"),
		})
	case syntax.KindAttr:
		if n.Name == "" {
			return b.errorf(n.Range, "attr node is missing its field name")
		}
		return b.add(Node{
			Kind:  KindAttr,
			Range: n.Range,
			Ident: n.Name,
			Left:  b.requireChild(n, n.Target, "target"),
		})
	case syntax.KindCall:
		return b.lowerCall(n)
	case syntax.KindIf:
		return b.add(Node{
			Kind:  KindIf,
			Range: n.Range,
			Cond:  b.requireChild(n, n.Cond, "condition"),
			Body:  b.requireChild(n, n.Body, "body"),
			Else:  b.lowerChild(n.Else),
		})
	case syntax.KindWhile:
		cond := b.requireChild(n, n.Cond, "condition")
		return b.lowerLoop(n, KindWhile, cond)
	case syntax.KindLoop:
		return b.lowerLoop(n, KindLoop, Invalid)
	case syntax.KindBlock, syntax.KindProgram:
		return b.lowerBlock(n)
	case syntax.KindFunc:
		return b.lowerFunc(n)
	case syntax.KindReturn:
		return b.add(Node{Kind: KindReturn, Range: n.Range, Left: b.lowerChild(n.Target)})
	case syntax.KindThrow:
		return b.add(Node{Kind: KindThrow, Range: n.Range, Left: b.requireChild(n, n.Target, "value")})
	case syntax.KindTry:
		return b.lowerTry(n)
	case syntax.KindBreak:
		if b.loopDepth == 0 {
			return b.errorf(n.Range, "break outside of a loop")
		}
		return b.add(Node{Kind: KindBreak, Range: n.Range})
	case syntax.KindContinue:
		if b.loopDepth == 0 {
			return b.errorf(n.Range, "continue outside of a loop")
		}
		return b.add(Node{Kind: KindContinue, Range: n.Range})
	case syntax.KindSpread:
		return b.errorf(n.Range, "spread is only valid as the last call argument")
	default:
		return b.errorf(n.Range, "unknown syntax node kind %q", n.Kind)
	}
}

func (b *builder) lowerList(n *syntax.Node) NodeID {
	elems := make([]NodeID, 0, len(n.Elems))
	for _, e := range n.Elems {
		elems = append(elems, b.requireChild(n, e, "element"))
	}
	return b.add(Node{Kind: KindList, Range: n.Range, List: elems})
}

func (b *builder) lowerMap(n *syntax.Node) NodeID {
	keys := make([]NodeID, 0, len(n.Entries))
	vals := make([]NodeID, 0, len(n.Entries))
	for _, e := range n.Entries {
		keys = append(keys, b.requireChild(n, e.Key, "key"))
		vals = append(vals, b.requireChild(n, e.Value, "value"))
	}
	return b.add(Node{Kind: KindMap, Range: n.Range, Keys: keys, Vals: vals})
}

func (b *builder) lowerBinary(n *syntax.Node) NodeID {
	if !binaryOps[n.Op] {
		return b.errorf(n.Range, "unknown binary operator %q", n.Op)
	}
	return b.add(Node{
		Kind:  KindBinary,
		Range: n.Range,
		Op:    n.Op,
		Left:  b.requireChild(n, n.Left, "left operand"),
		Right: b.requireChild(n, n.Right, "right operand"),
	})
}

func (b *builder) lowerUnary(n *syntax.Node) NodeID {
	if !unaryOps[n.Op] {
		return b.errorf(n.Range, "unknown unary operator %q", n.Op)
	}
	return b.add(Node{
		Kind:  KindUnary,
		Range: n.Range,
		Op:    n.Op,
		Left:  b.requireChild(n, n.Left, "operand"),
	})
}

func (b *builder) lowerAssign(n *syntax.Node) NodeID {
	if n.Target == nil {
		return b.errorf(n.Range, "assign node is missing its target")
	}
	switch n.Target.Kind {
	case syntax.KindIdent, syntax.KindIndex, syntax.KindAttr:
	default:
		return b.errorf(n.Target.Range, "invalid assignment target: %s", n.Target.Kind)
	}
	value := b.requireChild(n, n.Right, "value")
	if n.Op != "" && n.Op != "=" {
		// Compound assignment: x += v becomes x = x + v. The target subtree
		// is lowered twice, once as the load and once as the store.
		binOp, ok := compoundOps[n.Op]
		if !ok {
			return b.errorf(n.Range, "unknown assignment operator %q", n.Op)
		}
		value = b.add(Node{
			Kind:  KindBinary,
			Range: n.Range,
			Op:    binOp,
			Left:  b.lower(n.Target),
			Right: value,
		})
	}
	return b.add(Node{
		Kind:  KindAssign,
		Range: n.Range,
		Left:  b.lower(n.Target),
		Right: value,
	})
}

func (b *builder) lowerVar(n *syntax.Node) NodeID {
	if n.Name == "" {
		return b.errorf(n.Range, "var node is missing its name")
	}
	return b.add(Node{
		Kind:  KindVarDecl,
		Range: n.Range,
		Ident: n.Name,
		Left:  b.lowerChild(n.Right),
	})
}

func (b *builder) lowerCall(n *syntax.Node) NodeID {
	callee := b.requireChild(n, n.Target, "callee")
	args := make([]NodeID, 0, len(n.Args))
	spread := false
	for i, a := range n.Args {
		if a != nil && a.Kind == syntax.KindSpread {
			if i != len(n.Args)-1 {
				b.errorf(a.Range, "spread is only valid as the last call argument")
				continue
			}
			spread = true
			args = append(args, b.requireChild(a, a.Left, "operand"))
			continue
		}
		args = append(args, b.requireChild(n, a, "argument"))
	}
	seen := make(map[string]bool, len(n.KwArgs))
	kwNames := make([]string, 0, len(n.KwArgs))
	kwVals := make([]NodeID, 0, len(n.KwArgs))
	for _, kw := range n.KwArgs {
		if kw.Name == "" {
			b.errorf(n.Range, "keyword argument is missing its name")
			continue
		}
		if seen[kw.Name] {
			b.errorf(n.Range, "duplicate keyword argument %q", kw.Name)
			continue
		}
		seen[kw.Name] = true
		kwNames = append(kwNames, kw.Name)
		kwVals = append(kwVals, b.requireChild(n, kw.Value, "keyword value"))
	}
	return b.add(Node{
		Kind:    KindCall,
		Range:   n.Range,
		Callee:  callee,
		List:    args,
		KwNames: kwNames,
		KwVals:  kwVals,
		Spread:  spread,
	})
}

func (b *builder) lowerLoop(n *syntax.Node, kind Kind, cond NodeID) NodeID {
	b.loopDepth++
	body := b.requireChild(n, n.Body, "body")
	b.loopDepth--
	return b.add(Node{Kind: kind, Range: n.Range, Cond: cond, Body: body})
}

func (b *builder) lowerBlock(n *syntax.Node) NodeID {
	stmts := make([]NodeID, 0, len(n.Stmts))
	for _, s := range n.Stmts {
		stmts = append(stmts, b.requireChild(n, s, "statement"))
	}
	return b.add(Node{Kind: KindBlock, Range: n.Range, List: stmts})
}

func (b *builder) lowerFunc(n *syntax.Node) NodeID {
	params := make([]Param, 0, len(n.Params))
	seen := make(map[string]bool, len(n.Params))
	restSeen := false
	kwSeen := false
	for _, p := range n.Params {
		if p.Name == "" {
			b.errorf(n.Range, "function parameter is missing its name")
			continue
		}
		if seen[p.Name] {
			b.errorf(n.Range, "duplicate parameter name %q", p.Name)
			continue
		}
		seen[p.Name] = true
		switch {
		case p.Rest && p.Kw:
			b.errorf(n.Range, "parameter %q cannot be both variadic and keyword", p.Name)
			continue
		case p.Rest:
			if restSeen {
				b.errorf(n.Range, "multiple variadic parameters")
				continue
			}
			if kwSeen {
				b.errorf(n.Range, "variadic parameter after keyword parameter")
				continue
			}
			restSeen = true
		case p.Kw:
			if kwSeen {
				b.errorf(n.Range, "multiple keyword parameters")
				continue
			}
			kwSeen = true
		default:
			if restSeen || kwSeen {
				b.errorf(n.Range, "fixed parameter %q after a variadic parameter", p.Name)
				continue
			}
		}
		params = append(params, Param{Name: p.Name, Rest: p.Rest, Kw: p.Kw})
	}
	// Loops do not carry across a function boundary.
	savedDepth := b.loopDepth
	b.loopDepth = 0
	body := b.requireChild(n, n.Body, "body")
	b.loopDepth = savedDepth
	return b.add(Node{
		Kind:   KindFunc,
		Range:  n.Range,
		Ident:  n.Name,
		Params: params,
		Body:   body,
	})
}

func (b *builder) lowerTry(n *syntax.Node) NodeID {
	if n.Catch == nil && n.Finally == nil {
		return b.errorf(n.Range, "try requires a catch or finally block")
	}
	if n.Name != "" && n.Catch == nil {
		b.errorf(n.Range, "catch variable %q without a catch block", n.Name)
	}
	return b.add(Node{
		Kind:     KindTry,
		Range:    n.Range,
		Body:     b.requireChild(n, n.Body, "body"),
		Catch:    b.lowerChild(n.Catch),
		Finally:  b.lowerChild(n.Finally),
		CatchVar: n.Name,
	})
}
