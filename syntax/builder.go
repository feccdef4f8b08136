package syntax

// Constructors for building trees programmatically, for front-ends written
// in Go and for tests. Each returns a node of the corresponding kind with a
// zero range; front-ends that track source positions should fill Range in.

// Program creates the root node for a compilation unit.
func Program(stmts ...*Node) *Node {
	return &Node{Kind: KindProgram, Stmts: stmts}
}

// Block creates a braced statement list.
func Block(stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Stmts: stmts}
}

// Nil creates a nil literal.
func Nil() *Node {
	return &Node{Kind: KindNil}
}

// Bool creates a boolean literal.
func Bool(value bool) *Node {
	return &Node{Kind: KindBool, Bool: value}
}

// Int creates an integer literal.
func Int(value int64) *Node {
	return &Node{Kind: KindInt, Int: value}
}

// Float creates a floating point literal.
func Float(value float64) *Node {
	return &Node{Kind: KindFloat, Float: value}
}

// Str creates a string literal.
func Str(value string) *Node {
	return &Node{Kind: KindString, Str: value}
}

// Ident creates an identifier reference.
func Ident(name string) *Node {
	return &Node{Kind: KindIdent, Name: name}
}

// List creates a list literal.
func List(elems ...*Node) *Node {
	return &Node{Kind: KindList, Elems: elems}
}

// Map creates a map literal.
func Map(entries ...MapEntry) *Node {
	return &Node{Kind: KindMap, Entries: entries}
}

// Entry creates one map literal entry.
func Entry(key, value *Node) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// Binary creates a binary operation such as "+" or "&&".
func Binary(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Op: op, Left: left, Right: right}
}

// Unary creates a unary operation: "-" or "!".
func Unary(op string, operand *Node) *Node {
	return &Node{Kind: KindUnary, Op: op, Left: operand}
}

// Assign creates an assignment statement.
func Assign(target, value *Node) *Node {
	return &Node{Kind: KindAssign, Target: target, Right: value}
}

// AssignOp creates a compound assignment such as "+=".
func AssignOp(op string, target, value *Node) *Node {
	return &Node{Kind: KindAssign, Op: op, Target: target, Right: value}
}

// Var creates a variable declaration. The initializer may be nil.
func Var(name string, value *Node) *Node {
	return &Node{Kind: KindVar, Name: name, Right: value}
}

// Index creates a subscript expression: target[index].
func Index(target, index *Node) *Node {
	return &Node{Kind: KindIndex, Target: target, Index: index}
}

// Attr creates an attribute access: target.name.
func Attr(target *Node, name string) *Node {
	return &Node{Kind: KindAttr, Target: target, Name: name}
}

// Call creates a call with positional arguments. A trailing Spread node is
// allowed. Keyword arguments are added with Kw.
func Call(target *Node, args ...*Node) *Node {
	return &Node{Kind: KindCall, Target: target, Args: args}
}

// Kw adds a named argument to a call node and returns the call.
func Kw(call *Node, name string, value *Node) *Node {
	call.KwArgs = append(call.KwArgs, KwArg{Name: name, Value: value})
	return call
}

// Spread wraps the final positional argument of a call so that its elements
// are expanded into the argument list at call time.
func Spread(value *Node) *Node {
	return &Node{Kind: KindSpread, Left: value}
}

// If creates a conditional. The alternative may be nil.
func If(cond, body, alternative *Node) *Node {
	return &Node{Kind: KindIf, Cond: cond, Body: body, Else: alternative}
}

// While creates a condition-checked loop.
func While(cond, body *Node) *Node {
	return &Node{Kind: KindWhile, Cond: cond, Body: body}
}

// Loop creates an infinite loop, exited with break, return, or throw.
func Loop(body *Node) *Node {
	return &Node{Kind: KindLoop, Body: body}
}

// Func creates a function literal. An empty name makes it anonymous.
func Func(name string, params []Param, body *Node) *Node {
	return &Node{Kind: KindFunc, Name: name, Params: params, Body: body}
}

// P declares a fixed parameter.
func P(name string) Param {
	return Param{Name: name}
}

// RestP declares the variadic-positional parameter.
func RestP(name string) Param {
	return Param{Name: name, Rest: true}
}

// KwP declares the variadic-keyword parameter.
func KwP(name string) Param {
	return Param{Name: name, Kw: true}
}

// Return creates a return statement. The value may be nil.
func Return(value *Node) *Node {
	return &Node{Kind: KindReturn, Target: value}
}

// Throw creates a throw statement.
func Throw(value *Node) *Node {
	return &Node{Kind: KindThrow, Target: value}
}

// Try creates a try statement. catchVar may be empty, and catch or finally
// may be nil (but not both).
func Try(body *Node, catchVar string, catch, finally *Node) *Node {
	return &Node{Kind: KindTry, Name: catchVar, Body: body, Catch: catch, Finally: finally}
}

// Break creates a break statement.
func Break() *Node {
	return &Node{Kind: KindBreak}
}

// Continue creates a continue statement.
func Continue() *Node {
	return &Node{Kind: KindContinue}
}
