package object

import (
	"fmt"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/op"
)

// Closure is a runtime function instance: an immutable bytecode.Function
// template plus the cells captured from enclosing scopes.
type Closure struct {
	fn       *bytecode.Function
	freeVars []*Cell
}

func (f *Closure) Type() Type {
	return FUNCTION
}

// Name returns the function name (delegates to bytecode.Function).
func (f *Closure) Name() string {
	return f.fn.Name()
}

func (f *Closure) Inspect() string {
	return f.fn.String()
}

func (f *Closure) String() string {
	if f.fn.Name() != "" {
		return fmt.Sprintf("func %s() { ... }", f.fn.Name())
	}
	return "func() { ... }"
}

func (f *Closure) Interface() interface{} {
	return nil
}

func (f *Closure) GetAttr(name string) (Object, bool) {
	switch name {
	case "name":
		return NewString(f.fn.Name()), true
	}
	return nil, false
}

func (f *Closure) SetAttr(name string, value Object) error {
	return TypeErrorf("function has no writable attribute %q", name)
}

func (f *Closure) IsTruthy() bool {
	return true
}

func (f *Closure) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	return nil, TypeErrorf("unsupported operation for function: %v", opType)
}

func (f *Closure) Equals(other Object) bool {
	return f == other
}

// FreeVarCount returns the number of captured variables.
func (f *Closure) FreeVarCount() int {
	return len(f.freeVars)
}

// FreeVar returns the captured variable at the given index.
func (f *Closure) FreeVar(index int) *Cell {
	return f.freeVars[index]
}

// Code returns the bytecode for this function's body.
func (f *Closure) Code() *bytecode.Code {
	return f.fn.Code()
}

// Function returns the underlying bytecode.Function.
func (f *Closure) Function() *bytecode.Function {
	return f.fn
}

// ParameterCount returns the number of fixed parameters.
func (f *Closure) ParameterCount() int {
	return f.fn.ParameterCount()
}

// Parameter returns the fixed parameter name at the given index.
func (f *Closure) Parameter(index int) string {
	return f.fn.Parameter(index)
}

// RestParam returns the variadic-positional parameter name, or "".
func (f *Closure) RestParam() string {
	return f.fn.RestParam()
}

// HasRestParam returns true if the function accepts excess positional args.
func (f *Closure) HasRestParam() bool {
	return f.fn.HasRestParam()
}

// KwParam returns the variadic-keyword parameter name, or "".
func (f *Closure) KwParam() string {
	return f.fn.KwParam()
}

// HasKwParam returns true if the function accepts keyword arguments.
func (f *Closure) HasKwParam() bool {
	return f.fn.HasKwParam()
}

// LocalsCount returns the number of local variable slots.
func (f *Closure) LocalsCount() int {
	return f.fn.LocalCount()
}

// NewClosure creates a Closure from a bytecode.Function template.
func NewClosure(fn *bytecode.Function) *Closure {
	return &Closure{fn: fn}
}

// CloneWithCaptures creates a new closure from an existing closure with
// captured variables.
func CloneWithCaptures(c *Closure, freeVars []*Cell) *Closure {
	return &Closure{fn: c.fn, freeVars: freeVars}
}
