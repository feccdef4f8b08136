package vm

import (
	"github.com/perch-lang/perch/object"
)

const (
	// DefaultFrameLocals is the number of local variables that can be stored
	// directly in the frame's fixed storage array, avoiding heap allocation.
	DefaultFrameLocals = 8

	// MinExtendedLocalsCapacity is the minimum capacity allocated for
	// extended locals when heap allocation is needed. The headroom reduces
	// allocation churn for functions with varying local counts.
	MinExtendedLocalsCapacity = 32
)

// frame holds the local-slot and stack-base state for one active function
// invocation.
type frame struct {
	returnAddr     int
	returnSp       int
	callSiteIP     int // IP of the call instruction in the caller's code
	stackBase      int // operand stack floor for this frame
	localsCount    uint16
	fn             *object.Closure
	code           *loadedCode
	storage        [DefaultFrameLocals]object.Object
	locals         []object.Object
	extendedLocals []object.Object
	capturedLocals []object.Object
}

func (f *frame) ActivateCode(code *loadedCode) {
	f.code = code
	f.fn = nil
	f.returnAddr = 0
	f.callSiteIP = 0
	f.localsCount = uint16(code.LocalsCount)
	f.capturedLocals = nil

	// Decide where to store local variables. If the frame storage has enough
	// space, use that. Otherwise, reuse extendedLocals if large enough, or
	// allocate a new slice. After this, f.locals will always point to the
	// correct storage.
	if f.localsCount > DefaultFrameLocals {
		if cap(f.extendedLocals) >= int(f.localsCount) {
			f.extendedLocals = f.extendedLocals[:f.localsCount]
			for i := range f.extendedLocals {
				f.extendedLocals[i] = nil
			}
		} else {
			allocSize := int(f.localsCount)
			if allocSize < MinExtendedLocalsCapacity {
				allocSize = MinExtendedLocalsCapacity
			}
			f.extendedLocals = make([]object.Object, f.localsCount, allocSize)
		}
		f.locals = f.extendedLocals
	} else {
		for i := uint16(0); i < f.localsCount; i++ {
			f.storage[i] = nil
		}
		f.extendedLocals = nil
		f.locals = f.storage[:f.localsCount]
	}
}

func (f *frame) ActivateFunction(fn *object.Closure, code *loadedCode, returnAddr, returnSp, callSiteIP int, localValues []object.Object) {
	f.ActivateCode(code)
	f.fn = fn
	// Save the instruction and stack pointers of the caller
	f.returnAddr = returnAddr
	f.returnSp = returnSp
	f.stackBase = returnSp
	f.callSiteIP = callSiteIP
	// Initialize any local variables that were provided
	copy(f.locals, localValues)
}

func (f *frame) Locals() []object.Object {
	return f.locals
}

// CaptureLocals moves the frame's locals to the heap, if they are not there
// already, so that cells created for closures stay valid after the frame is
// reused. Subsequent captures from the same frame return the same slice,
// which is what gives two closures over the same variable a shared binding.
func (f *frame) CaptureLocals() []object.Object {
	if f.capturedLocals != nil {
		return f.capturedLocals
	}
	if f.extendedLocals != nil {
		// Ownership of the backing array moves to the captures. The next
		// activation of this frame slot must allocate fresh storage rather
		// than clear the array out from under any live cells.
		f.capturedLocals = f.extendedLocals
		f.extendedLocals = nil
		return f.capturedLocals
	}
	newStorage := make([]object.Object, len(f.locals))
	copy(newStorage, f.locals)
	f.capturedLocals = newStorage
	f.locals = newStorage
	return newStorage
}
