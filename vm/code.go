package vm

import (
	"fmt"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/object"
	"github.com/perch-lang/perch/op"
)

// loadedCode is a bytecode.Code unpacked into a form the dispatch loop can
// index directly: instructions and names as slices, constants converted to
// runtime objects, and the exception table ready for unwinding scans.
type loadedCode struct {
	compiled     *bytecode.Code
	Instructions []op.Code
	Constants    []object.Object
	Names        []string
	Handlers     []bytecode.ExceptionHandler
	LocalsCount  int
}

func loadCode(cc *bytecode.Code) (*loadedCode, error) {
	c := &loadedCode{
		compiled:     cc,
		Instructions: make([]op.Code, cc.InstructionCount()),
		Constants:    make([]object.Object, cc.ConstantCount()),
		Names:        make([]string, cc.NameCount()),
		Handlers:     make([]bytecode.ExceptionHandler, cc.ExceptionHandlerCount()),
		LocalsCount:  cc.LocalCount(),
	}
	for i := 0; i < cc.InstructionCount(); i++ {
		c.Instructions[i] = cc.InstructionAt(i)
	}
	for i := 0; i < cc.NameCount(); i++ {
		c.Names[i] = cc.NameAt(i)
	}
	for i := 0; i < cc.ExceptionHandlerCount(); i++ {
		c.Handlers[i] = cc.ExceptionHandlerAt(i)
	}
	for i := 0; i < cc.ConstantCount(); i++ {
		constant := cc.ConstantAt(i)
		switch constant := constant.(type) {
		case int64:
			c.Constants[i] = object.NewInt(constant)
		case float64:
			c.Constants[i] = object.NewFloat(constant)
		case string:
			c.Constants[i] = object.NewString(constant)
		case bool:
			c.Constants[i] = object.NewBool(constant)
		case *bytecode.Function:
			c.Constants[i] = object.NewClosure(constant)
		case nil:
			c.Constants[i] = object.Nil
		default:
			return nil, fmt.Errorf("unsupported constant type: %T", constant)
		}
	}
	return c, nil
}

// LocationAt returns the source location for the instruction at the given
// offset.
func (c *loadedCode) LocationAt(ip int) errz.SourceLocation {
	loc := c.compiled.LocationAt(ip)
	return errz.SourceLocation{
		File:   c.compiled.Filename(),
		Line:   loc.Line,
		Column: loc.Column,
		Source: c.compiled.GetSourceLine(loc.Line),
	}
}

func (c *loadedCode) Name() string {
	return c.compiled.Name()
}

func (c *loadedCode) IsNamed() bool {
	return c.compiled.IsNamed()
}

// LocalNameAt returns the variable name for a local slot, for diagnostics.
func (c *loadedCode) LocalNameAt(index int) string {
	return c.compiled.LocalNameAt(index)
}
