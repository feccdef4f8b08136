package vm

import (
	"context"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/object"
)

// Run executes the given compiled code in a new Virtual Machine and returns
// the result value.
func Run(ctx context.Context, main *bytecode.Code, options ...Option) (object.Object, error) {
	machine := New(main, options...)
	if err := machine.Run(ctx); err != nil {
		return nil, err
	}
	if result, exists := machine.TOS(); exists {
		return result, nil
	}
	return object.Nil, nil
}
