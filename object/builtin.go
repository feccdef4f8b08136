package object

import (
	"context"
	"fmt"

	"github.com/perch-lang/perch/op"
)

var _ Callable = (*Builtin)(nil) // Ensure that *Builtin implements Callable

// BuiltinFunction is the native call target behind a builtin: an ordered
// argument list plus an optional keyword mapping, yielding a value or a
// catchable error. Builtin bodies must not abort the interpreter except for
// genuine internal invariant violations.
type BuiltinFunction func(ctx context.Context, args []Object, kwargs map[string]Object) (Object, error)

// Builtin wraps a native Go function and implements Object.
type Builtin struct {
	fn   BuiltinFunction
	name string
}

func (b *Builtin) SetAttr(name string, value Object) error {
	return TypeErrorf("builtin has no attribute %q", name)
}

func (b *Builtin) IsTruthy() bool {
	return true
}

func (b *Builtin) Type() Type {
	return BUILTIN
}

func (b *Builtin) Value() BuiltinFunction {
	return b.fn
}

func (b *Builtin) Interface() interface{} {
	return nil
}

func (b *Builtin) Call(ctx context.Context, args []Object, kwargs map[string]Object) (Object, error) {
	return b.fn(ctx, args, kwargs)
}

func (b *Builtin) Inspect() string {
	return fmt.Sprintf("builtin(%s)", b.name)
}

func (b *Builtin) String() string {
	return b.Inspect()
}

func (b *Builtin) Name() string {
	return b.name
}

func (b *Builtin) GetAttr(name string) (Object, bool) {
	switch name {
	case "name":
		return NewString(b.name), true
	}
	return nil, false
}

func (b *Builtin) Equals(other Object) bool {
	otherBuiltin, ok := other.(*Builtin)
	if !ok {
		return false
	}
	return b == otherBuiltin
}

func (b *Builtin) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	return nil, TypeErrorf("unsupported operation for builtin: %v", opType)
}

// NewBuiltin creates a new builtin function with the given name and function.
func NewBuiltin(name string, fn BuiltinFunction) *Builtin {
	return &Builtin{fn: fn, name: name}
}
