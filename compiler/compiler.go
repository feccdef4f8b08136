// Package compiler lowers an IR tree into immutable bytecode code objects.
//
// Identifier references resolve with local slot, then captured upvalue, then
// global name priority. Locals are slot-indexed; globals are name-indexed and
// looked up by name at runtime. Control flow compiles to absolute jump
// offsets backpatched through a fix-up list in a single emission pass, and
// each try/catch/finally contributes entries to a per-code exception table
// ordered innermost-first.
package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/ir"
	"github.com/perch-lang/perch/op"
)

// Placeholder is a temporary jump operand replaced during backpatching.
const Placeholder = uint16(math.MaxUint16)

var binaryOpTypes = map[string]op.BinaryOpType{
	"+":  op.Add,
	"-":  op.Subtract,
	"*":  op.Multiply,
	"/":  op.Divide,
	"%":  op.Modulo,
	"**": op.Power,
	"<<": op.LShift,
	">>": op.RShift,
	"&":  op.BitwiseAnd,
	"|":  op.BitwiseOr,
	"^":  op.Xor,
}

var compareOpTypes = map[string]op.CompareOpType{
	"<":  op.LessThan,
	"<=": op.LessThanOrEqual,
	"==": op.Equal,
	"!=": op.NotEqual,
	">":  op.GreaterThan,
	">=": op.GreaterThanOrEqual,
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFilename sets the filename recorded on compiled code.
func WithFilename(filename string) Option {
	return func(c *Compiler) {
		c.filename = filename
	}
}

// WithSource provides the original source text for diagnostics.
func WithSource(source string) Option {
	return func(c *Compiler) {
		c.source = source
	}
}

// WithGlobalNames declares names supplied by the embedding environment, such
// as builtin functions. References to them compile to runtime global lookups.
func WithGlobalNames(names []string) Option {
	return func(c *Compiler) {
		c.globalNames = append(c.globalNames, names...)
	}
}

// loopFrame tracks jump fix-ups for the innermost loop being compiled.
type loopFrame struct {
	start    int // continue target
	breakPos []int
}

// code accumulates one code object during compilation and is converted to an
// immutable bytecode.Code when its body is complete.
type code struct {
	id           string
	name         string
	isNamed      bool
	parent       *code
	childCount   int
	children     []*bytecode.Code
	symbols      *SymbolTable
	instructions []op.Code
	constants    []any
	constIndex   map[any]uint16
	names        []string
	nameIndex    map[string]uint16
	locations    []bytecode.SourceLocation
	handlers     []bytecode.ExceptionHandler
	maxCallArgs  uint16
	loops        []*loopFrame
}

func (c *code) newChild(name string) *code {
	child := &code{
		id:         fmt.Sprintf("%s.%d", c.id, c.childCount),
		name:       name,
		isNamed:    name != "",
		parent:     c,
		symbols:    c.symbols.NewChild(),
		constIndex: map[any]uint16{},
		nameIndex:  map[string]uint16{},
	}
	c.childCount++
	return child
}

// Compiler lowers one IR tree into a bytecode.Code.
type Compiler struct {
	tree        *ir.Tree
	main        *code
	current     *code
	filename    string
	source      string
	globalNames []string
	funcIndex   int
	currentNode *ir.Node
}

// New creates a compiler with the given options.
func New(options ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Compile lowers an IR tree into a code object for the top-level unit, with
// one child code object per function literal encountered.
func Compile(tree *ir.Tree, options ...Option) (*bytecode.Code, error) {
	return New(options...).Compile(tree)
}

// Compile lowers the given IR tree.
func (c *Compiler) Compile(tree *ir.Tree) (*bytecode.Code, error) {
	c.tree = tree
	c.main = &code{
		id:         "main",
		name:       "main",
		symbols:    NewSymbolTable(),
		constIndex: map[any]uint16{},
		nameIndex:  map[string]uint16{},
	}
	c.current = c.main
	for _, name := range c.globalNames {
		if _, err := c.main.symbols.InsertVariable(name); err != nil {
			return nil, err
		}
	}
	root := c.tree.Node(tree.Root())
	if root.Kind == ir.KindBlock {
		if err := c.compileUnitBlock(tree.Root()); err != nil {
			return nil, err
		}
	} else {
		if err := c.compile(tree.Root()); err != nil {
			return nil, err
		}
	}
	c.emit(op.Halt)
	return c.finishCode(c.main), nil
}

// compileUnitBlock compiles the top-level statement list directly in the
// global scope, leaving the unit's result value on the stack.
func (c *Compiler) compileUnitBlock(id ir.NodeID) error {
	node := c.tree.Node(id)
	if err := c.hoistDeclarations(node); err != nil {
		return err
	}
	return c.compileStatements(node.List)
}

func (c *Compiler) compile(id ir.NodeID) error {
	node := c.tree.Node(id)
	saved := c.currentNode
	c.currentNode = node
	defer func() { c.currentNode = saved }()

	switch node.Kind {
	case ir.KindNil:
		c.emit(op.Nil)
	case ir.KindBool:
		if node.Bool {
			c.emit(op.True)
		} else {
			c.emit(op.False)
		}
	case ir.KindInt:
		c.emit(op.LoadConst, c.constant(node.Int))
	case ir.KindFloat:
		c.emit(op.LoadConst, c.constant(node.Float))
	case ir.KindString:
		c.emit(op.LoadConst, c.constant(node.Str))
	case ir.KindIdent:
		return c.compileIdent(node)
	case ir.KindList:
		return c.compileList(node)
	case ir.KindMap:
		return c.compileMap(node)
	case ir.KindBinary:
		return c.compileBinary(node)
	case ir.KindUnary:
		return c.compileUnary(node)
	case ir.KindAssign:
		return c.compileAssign(node)
	case ir.KindVarDecl:
		return c.compileVarDecl(node)
	case ir.KindIndex:
		return c.compileIndex(node)
	case ir.KindAttr:
		return c.compileAttr(node)
	case ir.KindCall:
		return c.compileCall(node)
	case ir.KindIf:
		return c.compileIf(node)
	case ir.KindWhile:
		return c.compileWhile(node)
	case ir.KindLoop:
		return c.compileLoop(node)
	case ir.KindBlock:
		return c.compileBlock(node)
	case ir.KindFunc:
		return c.compileFunc(node)
	case ir.KindReturn:
		return c.compileReturn(node)
	case ir.KindThrow:
		return c.compileThrow(node)
	case ir.KindTry:
		return c.compileTry(node)
	case ir.KindBreak:
		return c.compileBreak(node)
	case ir.KindContinue:
		return c.compileContinue(node)
	default:
		return c.formatError(node, "cannot compile node of kind %s", node.Kind)
	}
	return nil
}

// producesValue reports whether compiling a node of the given kind leaves a
// value on the operand stack. Statements that leave nothing keep the stack
// at its pre-statement depth, which blocks rely on when inserting pops.
func producesValue(kind ir.Kind) bool {
	switch kind {
	case ir.KindVarDecl, ir.KindAssign, ir.KindReturn, ir.KindThrow,
		ir.KindBreak, ir.KindContinue, ir.KindWhile, ir.KindLoop, ir.KindTry:
		return false
	default:
		return true
	}
}

// hoistDeclarations is the first of the two passes over a statement list:
// variable declarations and named functions are inserted into the current
// scope in declaration order, before any code is emitted, so forward
// references within the body resolve.
func (c *Compiler) hoistDeclarations(block *ir.Node) error {
	for _, id := range block.List {
		stmt := c.tree.Node(id)
		switch stmt.Kind {
		case ir.KindVarDecl:
			if _, err := c.current.symbols.InsertVariable(stmt.Ident); err != nil {
				return c.formatError(stmt, "variable %q already declared", stmt.Ident)
			}
		case ir.KindFunc:
			if stmt.Ident == "" {
				continue
			}
			if _, found := c.current.symbols.Get(stmt.Ident); found {
				return c.formatError(stmt, "function %q redefined", stmt.Ident)
			}
			if _, err := c.current.symbols.InsertVariable(stmt.Ident); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) compileStatements(stmts []ir.NodeID) error {
	count := len(stmts)
	if count == 0 {
		// Guarantee that the block evaluates to a value
		c.emit(op.Nil)
		return nil
	}
	for i, id := range stmts {
		if err := c.compile(id); err != nil {
			return err
		}
		if i < count-1 {
			if producesValue(c.tree.Node(id).Kind) {
				c.emit(op.PopTop)
			}
		}
	}
	if !producesValue(c.tree.Node(stmts[count-1]).Kind) {
		c.emit(op.Nil)
	}
	return nil
}

func (c *Compiler) compileBlock(node *ir.Node) error {
	code := c.current
	code.symbols = code.symbols.NewBlock()
	defer func() {
		code.symbols = code.symbols.Parent()
	}()
	if err := c.hoistDeclarations(node); err != nil {
		return err
	}
	return c.compileStatements(node.List)
}

func (c *Compiler) compileIdent(node *ir.Node) error {
	resolution, found := c.current.symbols.Resolve(node.Ident)
	if !found {
		return c.formatError(node, "undefined variable %q", node.Ident)
	}
	c.emitLoad(resolution)
	return nil
}

func (c *Compiler) compileList(node *ir.Node) error {
	for _, id := range node.List {
		if err := c.compile(id); err != nil {
			return err
		}
	}
	c.emit(op.BuildList, uint16(len(node.List)))
	return nil
}

func (c *Compiler) compileMap(node *ir.Node) error {
	for i := range node.Keys {
		if err := c.compile(node.Keys[i]); err != nil {
			return err
		}
		if err := c.compile(node.Vals[i]); err != nil {
			return err
		}
	}
	c.emit(op.BuildMap, uint16(len(node.Keys)))
	return nil
}

func (c *Compiler) compileBinary(node *ir.Node) error {
	switch node.Op {
	case "&&":
		return c.compileAnd(node)
	case "||":
		return c.compileOr(node)
	}
	// Left operand is evaluated and pushed before the right operand
	if err := c.compile(node.Left); err != nil {
		return err
	}
	if err := c.compile(node.Right); err != nil {
		return err
	}
	if cmp, ok := compareOpTypes[node.Op]; ok {
		c.emit(op.CompareOp, uint16(cmp))
		return nil
	}
	if bin, ok := binaryOpTypes[node.Op]; ok {
		c.emit(op.BinaryOp, uint16(bin))
		return nil
	}
	return c.formatError(node, "unknown operator %q", node.Op)
}

func (c *Compiler) compileAnd(node *ir.Node) error {
	// Short circuit: if the left side is falsy it is the result
	if err := c.compile(node.Left); err != nil {
		return err
	}
	c.emit(op.Copy, 0) // Duplicate LHS
	jumpPos := c.emit(op.PopJumpIfFalse, Placeholder)
	c.emit(op.PopTop) // Discard the duplicate, LHS was truthy
	if err := c.compile(node.Right); err != nil {
		return err
	}
	nopPos := c.emit(op.Nop)
	return c.patchJump(jumpPos, nopPos)
}

func (c *Compiler) compileOr(node *ir.Node) error {
	// Short circuit: if the left side is truthy it is the result
	if err := c.compile(node.Left); err != nil {
		return err
	}
	c.emit(op.Copy, 0) // Duplicate LHS
	jumpPos := c.emit(op.PopJumpIfTrue, Placeholder)
	c.emit(op.PopTop) // Discard the duplicate, LHS was falsy
	if err := c.compile(node.Right); err != nil {
		return err
	}
	nopPos := c.emit(op.Nop)
	return c.patchJump(jumpPos, nopPos)
}

func (c *Compiler) compileUnary(node *ir.Node) error {
	if err := c.compile(node.Left); err != nil {
		return err
	}
	switch node.Op {
	case "-":
		c.emit(op.UnaryNegative)
	case "!":
		c.emit(op.UnaryNot)
	default:
		return c.formatError(node, "unknown unary operator %q", node.Op)
	}
	return nil
}

func (c *Compiler) compileAssign(node *ir.Node) error {
	target := c.tree.Node(node.Left)
	switch target.Kind {
	case ir.KindIdent:
		if err := c.compile(node.Right); err != nil {
			return err
		}
		resolution, found := c.current.symbols.Resolve(target.Ident)
		if !found {
			// Assignment to an unbound name declares it in the current scope
			if _, err := c.current.symbols.InsertVariable(target.Ident); err != nil {
				return c.formatError(node, "%s", err)
			}
			resolution, _ = c.current.symbols.Resolve(target.Ident)
		}
		c.emitStore(resolution)
		return nil
	case ir.KindIndex:
		if err := c.compile(target.Left); err != nil {
			return err
		}
		if err := c.compile(target.Right); err != nil {
			return err
		}
		if err := c.compile(node.Right); err != nil {
			return err
		}
		c.emit(op.StoreSubscr)
		return nil
	case ir.KindAttr:
		if err := c.compile(target.Left); err != nil {
			return err
		}
		if err := c.compile(node.Right); err != nil {
			return err
		}
		c.emit(op.StoreAttr, c.name(target.Ident))
		return nil
	default:
		return c.formatError(node, "invalid assignment target: %s", target.Kind)
	}
}

func (c *Compiler) compileVarDecl(node *ir.Node) error {
	// The symbol was hoisted when the enclosing block was entered. A
	// declaration without an initializer leaves the slot uninitialized.
	if node.Left == ir.Invalid {
		return nil
	}
	if err := c.compile(node.Left); err != nil {
		return err
	}
	resolution, found := c.current.symbols.Resolve(node.Ident)
	if !found {
		return c.formatError(node, "undefined variable %q", node.Ident)
	}
	c.emitStore(resolution)
	return nil
}

func (c *Compiler) compileIndex(node *ir.Node) error {
	if err := c.compile(node.Left); err != nil {
		return err
	}
	if err := c.compile(node.Right); err != nil {
		return err
	}
	c.emit(op.BinarySubscr)
	return nil
}

func (c *Compiler) compileAttr(node *ir.Node) error {
	if err := c.compile(node.Left); err != nil {
		return err
	}
	c.emit(op.LoadAttr, c.name(node.Ident))
	return nil
}

func (c *Compiler) compileCall(node *ir.Node) error {
	if err := c.compile(node.Callee); err != nil {
		return err
	}
	argc := len(node.List)
	if node.Spread {
		// All positional arguments are collected into one list that the
		// spread value extends at call time; the argument count is not
		// statically known.
		fixed := node.List[:argc-1]
		for _, id := range fixed {
			if err := c.compile(id); err != nil {
				return err
			}
		}
		c.emit(op.BuildList, uint16(len(fixed)))
		if err := c.compile(node.List[argc-1]); err != nil {
			return err
		}
		c.emit(op.ListExtend)
		if err := c.compileKwArgs(node); err != nil {
			return err
		}
		c.emit(op.CallSpread, uint16(len(node.KwNames)))
		return nil
	}
	for _, id := range node.List {
		if err := c.compile(id); err != nil {
			return err
		}
	}
	if len(node.KwNames) > 0 {
		if err := c.compileKwArgs(node); err != nil {
			return err
		}
		c.emit(op.CallKw, uint16(argc), uint16(len(node.KwNames)))
		return nil
	}
	c.emit(op.Call, uint16(argc))
	return nil
}

func (c *Compiler) compileKwArgs(node *ir.Node) error {
	for i, name := range node.KwNames {
		c.emit(op.LoadConst, c.constant(name))
		if err := c.compile(node.KwVals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileIf(node *ir.Node) error {
	if err := c.compile(node.Cond); err != nil {
		return err
	}
	jumpIfFalsePos := c.emit(op.PopJumpIfFalse, Placeholder)
	if err := c.compile(node.Body); err != nil {
		return err
	}
	jumpEndPos := c.emit(op.Jump, Placeholder)
	if err := c.patchJump(jumpIfFalsePos, c.currentPosition()); err != nil {
		return err
	}
	if node.Else != ir.Invalid {
		if err := c.compile(node.Else); err != nil {
			return err
		}
	} else {
		// If there is no alternative the conditional evaluates to nil
		c.emit(op.Nil)
	}
	return c.patchJump(jumpEndPos, c.currentPosition())
}

func (c *Compiler) compileWhile(node *ir.Node) error {
	condPos := c.currentPosition()
	if err := c.compile(node.Cond); err != nil {
		return err
	}
	jumpOutPos := c.emit(op.PopJumpIfFalse, Placeholder)
	loop := &loopFrame{start: condPos}
	c.current.loops = append(c.current.loops, loop)
	if err := c.compile(node.Body); err != nil {
		return err
	}
	c.emit(op.PopTop)
	if err := c.emitJump(condPos); err != nil {
		return err
	}
	c.current.loops = c.current.loops[:len(c.current.loops)-1]
	end := c.currentPosition()
	if err := c.patchJump(jumpOutPos, end); err != nil {
		return err
	}
	for _, pos := range loop.breakPos {
		if err := c.patchJump(pos, end); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileLoop(node *ir.Node) error {
	startPos := c.currentPosition()
	loop := &loopFrame{start: startPos}
	c.current.loops = append(c.current.loops, loop)
	if err := c.compile(node.Body); err != nil {
		return err
	}
	c.emit(op.PopTop)
	if err := c.emitJump(startPos); err != nil {
		return err
	}
	c.current.loops = c.current.loops[:len(c.current.loops)-1]
	end := c.currentPosition()
	for _, pos := range loop.breakPos {
		if err := c.patchJump(pos, end); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) currentLoop() *loopFrame {
	loops := c.current.loops
	if len(loops) == 0 {
		return nil
	}
	return loops[len(loops)-1]
}

// Break and continue compile to JumpFinally rather than a plain Jump so
// that leaving a protected range runs its finally block on the way out.
func (c *Compiler) compileBreak(node *ir.Node) error {
	loop := c.currentLoop()
	if loop == nil {
		return c.formatError(node, "break outside of a loop")
	}
	pos := c.emit(op.JumpFinally, Placeholder)
	loop.breakPos = append(loop.breakPos, pos)
	return nil
}

func (c *Compiler) compileContinue(node *ir.Node) error {
	loop := c.currentLoop()
	if loop == nil {
		return c.formatError(node, "continue outside of a loop")
	}
	if loop.start > int(math.MaxUint16)-1 {
		return fmt.Errorf("compile error: jump destination is too far away")
	}
	c.emit(op.JumpFinally, uint16(loop.start))
	return nil
}

func (c *Compiler) compileReturn(node *ir.Node) error {
	if node.Left != ir.Invalid {
		if err := c.compile(node.Left); err != nil {
			return err
		}
	} else {
		c.emit(op.Nil)
	}
	c.emit(op.ReturnValue)
	return nil
}

func (c *Compiler) compileThrow(node *ir.Node) error {
	if err := c.compile(node.Left); err != nil {
		return err
	}
	c.emit(op.Throw)
	return nil
}

// compileTry emits the protected try body, an optional catch block, and an
// optional finally block, then records exception table entries. On the
// normal path the try body's value is discarded and execution jumps past the
// catch block (through the finally, when present). A catch entry covers the
// try body only; when a finally exists a second, finally-only entry covers
// both the try body and the catch block so that errors thrown from the catch
// still run the finally before re-propagating.
func (c *Compiler) compileTry(node *ir.Node) error {
	tryStart := c.currentPosition()
	if err := c.compile(node.Body); err != nil {
		return err
	}
	c.emit(op.PopTop)
	tryEnd := c.currentPosition()
	jumpAfterTryPos := c.emit(op.Jump, Placeholder)

	catchStart := 0
	if node.Catch != ir.Invalid {
		catchStart = c.currentPosition()
		code := c.current
		code.symbols = code.symbols.NewBlock()

		// The unwinder pushes the error value before transferring control
		// here; the catch prologue stores or discards it.
		if node.CatchVar != "" {
			sym, err := code.symbols.InsertVariable(node.CatchVar)
			if err != nil {
				code.symbols = code.symbols.Parent()
				return err
			}
			if code.symbols.IsGlobal() {
				c.emit(op.StoreGlobal, c.name(node.CatchVar))
			} else {
				c.emit(op.StoreFast, sym.Index())
			}
		} else {
			c.emit(op.PopTop)
		}
		if err := c.compile(node.Catch); err != nil {
			code.symbols = code.symbols.Parent()
			return err
		}
		c.emit(op.PopTop)
		code.symbols = code.symbols.Parent()
	}

	finallyStart := 0
	if node.Finally != ir.Invalid {
		finallyStart = c.currentPosition()
		if err := c.compile(node.Finally); err != nil {
			return err
		}
		c.emit(op.PopTop)
		// EndFinally resumes any pending unwind or pending return
		c.emit(op.EndFinally)
	}
	end := c.currentPosition()

	// The normal path skips the catch block but runs the finally
	if finallyStart != 0 {
		if err := c.patchJump(jumpAfterTryPos, finallyStart); err != nil {
			return err
		}
	} else {
		if err := c.patchJump(jumpAfterTryPos, end); err != nil {
			return err
		}
	}

	// Nested try blocks compile before this point, so appending here keeps
	// the handler table ordered innermost-first.
	if catchStart != 0 {
		c.current.handlers = append(c.current.handlers, bytecode.ExceptionHandler{
			TryStart:     tryStart,
			TryEnd:       tryEnd,
			CatchStart:   catchStart,
			FinallyStart: finallyStart,
		})
	}
	if finallyStart != 0 {
		c.current.handlers = append(c.current.handlers, bytecode.ExceptionHandler{
			TryStart:     tryStart,
			TryEnd:       finallyStart,
			CatchStart:   0,
			FinallyStart: finallyStart,
		})
	}
	return nil
}

func (c *Compiler) compileFunc(node *ir.Node) error {
	if len(node.Params) > 255 {
		return c.formatError(node, "function exceeded parameter limit of 255")
	}
	functionName := node.Ident

	var fixedParams []string
	var restParam, kwParam string
	for _, p := range node.Params {
		switch {
		case p.Rest:
			restParam = p.Name
		case p.Kw:
			kwParam = p.Name
		default:
			fixedParams = append(fixedParams, p.Name)
		}
	}

	c.funcIndex++
	functionID := fmt.Sprintf("%d", c.funcIndex)
	child := c.current.newChild(functionName)

	// Subsequent calls to compile add to this code object instead of the
	// parent, until the body is done.
	c.current = child

	// Parameter slots are assigned first, in declaration order: fixed
	// parameters, then the variadic-positional slot, then the
	// variadic-keyword slot. The VM fills these from the argument list.
	for _, paramName := range fixedParams {
		if _, err := child.symbols.InsertVariable(paramName); err != nil {
			c.current = child.parent
			return c.formatError(node, "duplicate parameter name %q", paramName)
		}
	}
	if restParam != "" {
		if _, err := child.symbols.InsertVariable(restParam); err != nil {
			c.current = child.parent
			return c.formatError(node, "duplicate parameter name %q", restParam)
		}
	}
	if kwParam != "" {
		if _, err := child.symbols.InsertVariable(kwParam); err != nil {
			c.current = child.parent
			return c.formatError(node, "duplicate parameter name %q", kwParam)
		}
	}
	// A named function can refer to itself; the VM places the closure in
	// the slot right after the parameter slots.
	if child.isNamed {
		if _, err := child.symbols.InsertVariable(functionName); err != nil {
			c.current = child.parent
			return c.formatError(node, "parameter %q shadows the function name", functionName)
		}
	}

	if err := c.compileFunctionBody(node.Body); err != nil {
		c.current = child.parent
		return err
	}

	// Done compiling the function, switch back to the parent
	c.current = child.parent

	childCode := c.finishCode(child)
	c.current.children = append(c.current.children, childCode)
	fn := bytecode.NewFunction(bytecode.FunctionParams{
		ID:         functionID,
		Name:       functionName,
		Parameters: fixedParams,
		RestParam:  restParam,
		KwParam:    kwParam,
		Code:       childCode,
	})

	// Load the function onto the stack. If there are free variables, the
	// captured cells are created first and LoadClosure bundles them up.
	// A variable local to this function is promoted to a cell; a variable
	// this function captured itself is forwarded as the existing cell, so
	// captures always reach exactly one function boundary up.
	freeCount := child.symbols.FreeCount()
	if freeCount > 0 {
		for i := uint16(0); i < freeCount; i++ {
			outer := child.symbols.Free(i).outer
			if outer.scope == Free {
				c.emit(op.LoadCell, uint16(outer.freeIndex))
			} else {
				c.emit(op.MakeCell, outer.symbol.Index())
			}
		}
		c.emit(op.LoadClosure, c.constant(fn), freeCount)
	} else {
		c.emit(op.LoadConst, c.constant(fn))
	}

	// A named function is also stored as a variable in the current scope;
	// the copy keeps the function expression's value on the stack.
	if child.isNamed {
		resolution, found := c.current.symbols.Resolve(functionName)
		if !found {
			if _, err := c.current.symbols.InsertVariable(functionName); err != nil {
				return c.formatError(node, "%s", err)
			}
			resolution, _ = c.current.symbols.Resolve(functionName)
		}
		c.emit(op.Copy, 0)
		c.emitStore(resolution)
	}
	return nil
}

// compileFunctionBody compiles a function body block, guaranteeing that
// every path through the function ends with a return.
func (c *Compiler) compileFunctionBody(id ir.NodeID) error {
	node := c.tree.Node(id)
	code := c.current
	code.symbols = code.symbols.NewBlock()
	defer func() {
		code.symbols = code.symbols.Parent()
	}()

	if node.Kind != ir.KindBlock {
		// Single-expression body: its value is the return value
		if err := c.compile(id); err != nil {
			return err
		}
		c.emit(op.ReturnValue)
		return nil
	}
	if err := c.hoistDeclarations(node); err != nil {
		return err
	}
	count := len(node.List)
	if count == 0 {
		c.emit(op.Nil)
		c.emit(op.ReturnValue)
		return nil
	}
	for i, stmtID := range node.List {
		if err := c.compile(stmtID); err != nil {
			return err
		}
		if i < count-1 && producesValue(c.tree.Node(stmtID).Kind) {
			c.emit(op.PopTop)
		}
	}
	last := c.tree.Node(node.List[count-1])
	if last.Kind == ir.KindReturn {
		return nil
	}
	// The last statement's value is the implicit return value
	if !producesValue(last.Kind) {
		c.emit(op.Nil)
	}
	c.emit(op.ReturnValue)
	return nil
}

// constant returns the pool index for the given constant, interning
// primitive values so each distinct constant is stored once.
func (c *Compiler) constant(obj any) uint16 {
	code := c.current
	switch obj.(type) {
	case int64, float64, string, bool:
		if idx, ok := code.constIndex[obj]; ok {
			return idx
		}
	}
	code.constants = append(code.constants, obj)
	idx := uint16(len(code.constants) - 1)
	switch obj.(type) {
	case int64, float64, string, bool:
		code.constIndex[obj] = idx
	}
	return idx
}

// name returns the name-pool index for the given attribute or global name.
func (c *Compiler) name(s string) uint16 {
	code := c.current
	if idx, ok := code.nameIndex[s]; ok {
		return idx
	}
	code.names = append(code.names, s)
	idx := uint16(len(code.names) - 1)
	code.nameIndex[s] = idx
	return idx
}

func (c *Compiler) currentPosition() int {
	return len(c.current.instructions)
}

// emit appends an instruction (opcode plus operand words) and returns the
// position of the opcode word.
func (c *Compiler) emit(opcode op.Code, operands ...uint16) int {
	code := c.current
	pos := len(code.instructions)
	code.instructions = append(code.instructions, opcode)
	for _, operand := range operands {
		code.instructions = append(code.instructions, op.Code(operand))
	}

	// Track the maximum argument count from any call site
	if (opcode == op.Call || opcode == op.CallKw) && len(operands) > 0 {
		if operands[0] > code.maxCallArgs {
			code.maxCallArgs = operands[0]
		}
	}

	loc := c.getCurrentLocation()
	for i := 0; i < 1+len(operands); i++ {
		code.locations = append(code.locations, loc)
	}
	return pos
}

// emitJump emits an unconditional jump to a known absolute target.
func (c *Compiler) emitJump(target int) error {
	if target > int(math.MaxUint16)-1 {
		return fmt.Errorf("compile error: jump destination is too far away")
	}
	c.emit(op.Jump, uint16(target))
	return nil
}

// patchJump backfills the operand of a previously emitted jump with an
// absolute instruction offset.
func (c *Compiler) patchJump(jumpPos int, target int) error {
	if target > int(math.MaxUint16)-1 {
		return fmt.Errorf("compile error: jump destination is too far away")
	}
	c.current.instructions[jumpPos+1] = op.Code(target)
	return nil
}

// emitLoad emits the appropriate load instruction based on the variable's scope.
func (c *Compiler) emitLoad(resolution *Resolution) {
	switch resolution.scope {
	case Global:
		c.emit(op.LoadGlobal, c.name(resolution.symbol.Name()))
	case Local:
		c.emit(op.LoadFast, resolution.symbol.Index())
	case Free:
		c.emit(op.LoadFree, uint16(resolution.freeIndex))
	}
}

// emitStore emits the appropriate store instruction based on the variable's scope.
func (c *Compiler) emitStore(resolution *Resolution) {
	switch resolution.scope {
	case Global:
		c.emit(op.StoreGlobal, c.name(resolution.symbol.Name()))
	case Local:
		c.emit(op.StoreFast, resolution.symbol.Index())
	case Free:
		c.emit(op.StoreFree, uint16(resolution.freeIndex))
	}
}

func (c *Compiler) getCurrentLocation() bytecode.SourceLocation {
	if c.currentNode == nil {
		return bytecode.SourceLocation{}
	}
	start := c.currentNode.Range.Start
	return bytecode.SourceLocation{Line: start.Line, Column: start.Column}
}

func (c *Compiler) formatError(node *ir.Node, format string, args ...any) error {
	loc := errz.SourceLocation{File: c.filename}
	if node != nil {
		loc.Line = node.Range.Start.Line
		loc.Column = node.Range.Start.Column
		loc.Source = c.getSourceLine(loc.Line)
	}
	return errz.NewCompileError(loc, format, args...)
}

func (c *Compiler) getSourceLine(lineNum int) string {
	if c.source == "" || lineNum < 1 {
		return ""
	}
	lines := strings.Split(c.source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// finishCode converts a completed compilation unit into its immutable form.
func (c *Compiler) finishCode(cd *code) *bytecode.Code {
	table := cd.symbols.LocalTable()
	localCount := 0
	var localNames []string
	if cd.parent != nil {
		localCount = int(table.Count())
		localNames = make([]string, localCount)
		for i := 0; i < localCount; i++ {
			if sym := table.Symbol(uint16(i)); sym != nil {
				localNames[i] = sym.Name()
			}
		}
	}
	return bytecode.NewCode(bytecode.CodeParams{
		ID:                cd.id,
		Name:              cd.name,
		IsNamed:           cd.isNamed,
		Children:          cd.children,
		Instructions:      cd.instructions,
		Constants:         cd.constants,
		Names:             cd.names,
		Source:            c.source,
		Filename:          c.filename,
		Locations:         cd.locations,
		MaxCallArgs:       int(cd.maxCallArgs),
		LocalCount:        localCount,
		LocalNames:        localNames,
		ExceptionHandlers: cd.handlers,
	})
}
