// Package vm provides a VirtualMachine that executes compiled Perch code.
package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/object"
	"github.com/perch-lang/perch/op"
)

const (
	MaxArgs       = 256
	MaxFrameDepth = 1024
	MaxStackDepth = 1024
	StopSignal    = -1

	// DefaultContextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

var ErrGlobalNotFound = errors.New("global not found")

// Pending unwind actions carried across a finally block.
const (
	pendingNone = iota
	pendingError
	pendingReturn
	pendingJump
)

type VirtualMachine struct {
	ip          int // instruction pointer
	instrIP     int // offset of the opcode currently being dispatched
	sp          int // stack pointer
	fp          int // frame pointer
	halt        int32
	activeFrame *frame
	activeCode  *loadedCode
	main        *bytecode.Code
	globals     map[string]object.Object
	loadedCode  map[*bytecode.Code]*loadedCode
	running     bool
	runMutex    sync.Mutex
	tmp         [MaxArgs]object.Object
	stack       [MaxStackDepth]object.Object
	frames      [MaxFrameDepth]frame

	// Unwind state while a finally block runs
	pendingKind   int
	pendingError  *object.Error
	pendingValue  object.Object
	pendingJumpIP int

	// contextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). A value of 0 disables the
	// deterministic check, relying only on the background goroutine.
	contextCheckInterval int
}

// New creates a new Virtual Machine for the given compiled code.
func New(main *bytecode.Code, options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		sp:                   -1,
		main:                 main,
		globals:              map[string]object.Object{},
		loadedCode:           map[*bytecode.Code]*loadedCode{},
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(vm)
	}
	return vm
}

func (vm *VirtualMachine) start(ctx context.Context) error {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if vm.running {
		return fmt.Errorf("vm is already running")
	}
	vm.running = true
	// Halt execution when the context is cancelled
	vm.halt = 0
	if doneChan := ctx.Done(); doneChan != nil {
		go func() {
			<-doneChan
			atomic.StoreInt32(&vm.halt, 1)
		}()
	}
	return nil
}

func (vm *VirtualMachine) stop() {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	vm.running = false
}

// Run executes the main code object to completion. When Run returns without
// error, the unit's result value is on the top of the stack.
func (vm *VirtualMachine) Run(ctx context.Context) (err error) {
	// Set up some guarantees:
	// 1. It is an error to call Run on a VM that is already running
	// 2. The running flag will always be set to false when Run returns
	// 3. Any panics are translated to errors and the VM is stopped
	if err := vm.start(ctx); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(*errz.Fault); ok {
				err = fault
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
		vm.stop()
	}()

	codeObj, err := vm.getCode(vm.main)
	if err != nil {
		return err
	}
	vm.pendingKind = pendingNone
	vm.pendingError = nil
	vm.pendingValue = nil
	vm.pendingJumpIP = 0

	// Activate the entrypoint code in frame zero
	vm.activateCode(0, 0, codeObj)
	return vm.eval(ctx)
}

// Get returns a global variable by name.
func (vm *VirtualMachine) Get(name string) (object.Object, error) {
	value, found := vm.globals[name]
	if !found || value == nil {
		return nil, fmt.Errorf("%w: %q", ErrGlobalNotFound, name)
	}
	return value, nil
}

// TOS returns the top-of-stack object if there is one, without modifying the
// stack. This only works on a stopped VM. If the VM is running, (nil, false)
// is returned.
func (vm *VirtualMachine) TOS() (object.Object, bool) {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if !vm.running && vm.sp >= 0 {
		return vm.stack[vm.sp], true
	}
	return nil, false
}

// Evaluate the active code. The caller must have activated a frame holding
// the code to execute. Assuming this function returns without error, the
// result of the evaluation will be on the top of the stack.
func (vm *VirtualMachine) eval(ctx context.Context) error {
	var instructionCount int
	checkInterval := vm.contextCheckInterval
	doneChan := ctx.Done()

	// Run to the end of the active code
	for vm.ip < len(vm.activeCode.Instructions) {

		if atomic.LoadInt32(&vm.halt) == 1 {
			return ctx.Err()
		}

		// Deterministic check of ctx.Done() every N instructions. This
		// guarantees responsiveness regardless of goroutine scheduling.
		if checkInterval > 0 && doneChan != nil {
			instructionCount++
			if instructionCount >= checkInterval {
				instructionCount = 0
				select {
				case <-doneChan:
					atomic.StoreInt32(&vm.halt, 1)
					return ctx.Err()
				default:
				}
			}
		}

		// The exception table is scanned with the offset of the opcode, not
		// the next-instruction offset, so record it before advancing.
		vm.instrIP = vm.ip
		opcode := vm.activeCode.Instructions[vm.ip]
		vm.ip++

		switch opcode {
		case op.Nop:
		case op.Halt:
			return nil
		case op.LoadConst:
			vm.push(vm.activeCode.Constants[vm.fetch()])
		case op.LoadFast:
			idx := vm.fetch()
			obj := vm.activeFrame.Locals()[idx]
			if obj == nil {
				return vm.fault(errz.ErrRuntime, "uninitialized local variable %q",
					vm.activeCode.LocalNameAt(int(idx)))
			}
			vm.push(obj)
		case op.LoadGlobal:
			name := vm.activeCode.Names[vm.fetch()]
			obj, found := vm.globals[name]
			if !found || obj == nil {
				return vm.fault(errz.ErrRuntime, "uninitialized global variable %q", name)
			}
			vm.push(obj)
		case op.LoadFree:
			idx := vm.fetch()
			obj := vm.activeFrame.fn.FreeVar(int(idx)).Value()
			if obj == nil {
				return vm.fault(errz.ErrRuntime, "uninitialized captured variable")
			}
			vm.push(obj)
		case op.StoreFast:
			idx := vm.fetch()
			vm.activeFrame.Locals()[idx] = vm.pop()
		case op.StoreGlobal:
			name := vm.activeCode.Names[vm.fetch()]
			vm.globals[name] = vm.pop()
		case op.StoreFree:
			idx := vm.fetch()
			obj := vm.pop()
			vm.activeFrame.fn.FreeVar(int(idx)).Set(obj)
		case op.LoadAttr:
			obj := vm.pop()
			name := vm.activeCode.Names[vm.fetch()]
			value, found := obj.GetAttr(name)
			if !found {
				err := object.RuntimeErrorf("attribute %q not found on %s object",
					name, obj.Type())
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
			vm.push(value)
		case op.StoreAttr:
			idx := vm.fetch()
			value := vm.pop()
			obj := vm.pop()
			name := vm.activeCode.Names[idx]
			if err := obj.SetAttr(name, value); err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
		case op.LoadClosure:
			constIndex := vm.fetch()
			freeCount := vm.fetch()
			free := make([]*object.Cell, freeCount)
			for i := uint16(0); i < freeCount; i++ {
				obj := vm.pop()
				cell, ok := obj.(*object.Cell)
				if !ok {
					return vm.fault(errz.ErrRuntime, "expected cell (got %s)", obj.Type())
				}
				free[freeCount-i-1] = cell
			}
			template, ok := vm.activeCode.Constants[constIndex].(*object.Closure)
			if !ok {
				return vm.fault(errz.ErrRuntime, "expected function constant")
			}
			vm.push(object.CloneWithCaptures(template, free))
		case op.MakeCell:
			symbolIndex := vm.fetch()
			locals := vm.activeFrame.CaptureLocals()
			vm.push(object.NewCell(&locals[symbolIndex]))
		case op.LoadCell:
			idx := vm.fetch()
			vm.push(vm.activeFrame.fn.FreeVar(int(idx)))
		case op.Nil:
			vm.push(object.Nil)
		case op.True:
			vm.push(object.True)
		case op.False:
			vm.push(object.False)
		case op.CompareOp:
			opType := op.CompareOpType(vm.fetch())
			b := vm.pop()
			a := vm.pop()
			result, err := object.Compare(opType, a, b)
			if err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
			vm.push(result)
		case op.BinaryOp:
			opType := op.BinaryOpType(vm.fetch())
			b := vm.pop()
			a := vm.pop()
			result, err := object.BinaryOp(opType, a, b)
			if err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
			vm.push(result)
		case op.UnaryNegative:
			obj := vm.pop()
			switch obj := obj.(type) {
			case *object.Int:
				vm.push(object.NewInt(-obj.Value()))
			case *object.Float:
				vm.push(object.NewFloat(-obj.Value()))
			default:
				return vm.fault(errz.ErrType, "object is not a number (got %s)", obj.Type())
			}
		case op.UnaryNot:
			obj := vm.pop()
			if obj.IsTruthy() {
				vm.push(object.False)
			} else {
				vm.push(object.True)
			}
		case op.Copy:
			offset := vm.fetch()
			vm.push(vm.stack[vm.sp-int(offset)])
		case op.PopTop:
			vm.pop()
		case op.Jump:
			vm.ip = int(vm.fetch())
		case op.JumpFinally:
			// Loop jumps (break, continue) run the finally block of any
			// protected range the jump leaves, holding the target aside.
			// A jump from within a finally block abandons whatever unwind
			// that block was part of.
			target := int(vm.fetch())
			if entry, ok := vm.findFinallyLeaving(vm.instrIP, target); ok {
				vm.pendingKind = pendingJump
				vm.pendingError = nil
				vm.pendingValue = nil
				vm.pendingJumpIP = target
				vm.truncateStack()
				vm.ip = entry.FinallyStart
				continue
			}
			vm.pendingKind = pendingNone
			vm.pendingError = nil
			vm.pendingValue = nil
			vm.ip = target
		case op.PopJumpIfFalse:
			target := int(vm.fetch())
			if !vm.pop().IsTruthy() {
				vm.ip = target
			}
		case op.PopJumpIfTrue:
			target := int(vm.fetch())
			if vm.pop().IsTruthy() {
				vm.ip = target
			}
		case op.BuildList:
			count := vm.fetch()
			items := make([]object.Object, count)
			for i := uint16(0); i < count; i++ {
				items[count-1-i] = vm.pop()
			}
			vm.push(object.NewList(items))
		case op.BuildMap:
			count := vm.fetch()
			fields := make(map[string]object.Object, count)
			for i := uint16(0); i < count; i++ {
				v := vm.pop()
				k, ok := vm.pop().(*object.String)
				if !ok {
					return vm.fault(errz.ErrType, "object key must be a string")
				}
				fields[k.Value()] = v
			}
			vm.push(object.NewUserObject(fields))
		case op.ListExtend:
			extension := vm.pop()
			listObj := vm.pop()
			list, ok := listObj.(*object.List)
			if !ok {
				return vm.fault(errz.ErrType, "cannot extend non-list (got %s)", listObj.Type())
			}
			more, ok := extension.(*object.List)
			if !ok {
				err := object.TypeErrorf("spread requires a list (got %s)", extension.Type())
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
			list.Extend(more)
			vm.push(list)
		case op.BinarySubscr:
			idx := vm.pop()
			lhs := vm.pop()
			container, ok := lhs.(object.Container)
			if !ok {
				return vm.fault(errz.ErrType, "object is not a container (got %s)", lhs.Type())
			}
			result, err := container.GetItem(idx)
			if err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
			vm.push(result)
		case op.StoreSubscr:
			value := vm.pop()
			idx := vm.pop()
			lhs := vm.pop()
			container, ok := lhs.(object.Container)
			if !ok {
				return vm.fault(errz.ErrType, "object is not a container (got %s)", lhs.Type())
			}
			if err := container.SetItem(idx, value); err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
				continue
			}
		case op.Call:
			argc := int(vm.fetch())
			if err := vm.dispatchCall(ctx, argc, nil); err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
			}
		case op.CallKw:
			argc := int(vm.fetch())
			kwargc := int(vm.fetch())
			kwargs, err := vm.popKwArgs(kwargc)
			if err != nil {
				return err
			}
			if err := vm.dispatchCall(ctx, argc, kwargs); err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
			}
		case op.CallSpread:
			kwargc := int(vm.fetch())
			kwargs, err := vm.popKwArgs(kwargc)
			if err != nil {
				return err
			}
			argList, ok := vm.pop().(*object.List)
			if !ok {
				return vm.fault(errz.ErrType, "spread call requires a list of arguments")
			}
			obj := vm.pop()
			if err := vm.callObject(ctx, obj, argList.Items(), kwargs); err != nil {
				if rerr := vm.raise(err); rerr != nil {
					return rerr
				}
			}
		case op.ReturnValue:
			// A return from inside a protected range runs the finally block
			// first, holding the return value aside.
			if entry, ok := vm.findFinally(vm.instrIP); ok {
				vm.pendingKind = pendingReturn
				vm.pendingValue = vm.pop()
				vm.truncateStack()
				vm.ip = entry.FinallyStart
				continue
			}
			if vm.performReturn() {
				return nil
			}
		case op.Throw:
			obj := vm.pop()
			var errObj *object.Error
			if e, ok := obj.(*object.Error); ok {
				errObj = e
			} else {
				errObj = object.Errorf("%v", object.PrintableValue(obj))
			}
			if rerr := vm.raiseError(errObj.WithRaised(true)); rerr != nil {
				return rerr
			}
		case op.EndFinally:
			if err := vm.endFinally(); err != nil {
				return err
			}
		default:
			return vm.fault(errz.ErrRuntime, "unknown opcode: %d", opcode)
		}
	}
	return nil
}

// dispatchCall pops positional arguments and the callee, then invokes it.
func (vm *VirtualMachine) dispatchCall(ctx context.Context, argc int, kwargs map[string]object.Object) error {
	if argc > MaxArgs {
		return vm.fault(errz.ErrRuntime, "max args limit of %d exceeded (got %d)", MaxArgs, argc)
	}
	args := make([]object.Object, argc)
	for argIndex := argc - 1; argIndex >= 0; argIndex-- {
		args[argIndex] = vm.pop()
	}
	obj := vm.pop()
	return vm.callObject(ctx, obj, args, kwargs)
}

// popKwArgs pops kwargc name/value pairs pushed by the compiler.
func (vm *VirtualMachine) popKwArgs(kwargc int) (map[string]object.Object, error) {
	if kwargc == 0 {
		return nil, nil
	}
	kwargs := make(map[string]object.Object, kwargc)
	for i := 0; i < kwargc; i++ {
		value := vm.pop()
		name, ok := vm.pop().(*object.String)
		if !ok {
			return nil, vm.fault(errz.ErrRuntime, "keyword name must be a string")
		}
		kwargs[name.Value()] = value
	}
	return kwargs, nil
}

// Call a callable object with the given arguments. Returns an error if the
// object is not callable. If this call succeeds, the result of the call will
// have been pushed onto the stack.
func (vm *VirtualMachine) callObject(
	ctx context.Context,
	fn object.Object,
	args []object.Object,
	kwargs map[string]object.Object,
) error {
	switch fn := fn.(type) {
	case *object.Closure:
		result, err := vm.callClosure(ctx, fn, args, kwargs)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	case object.Callable:
		result, err := fn.Call(ctx, args, kwargs)
		if err != nil {
			return err
		}
		if errObj, ok := result.(*object.Error); ok && errObj.IsRaised() {
			return errObj
		}
		vm.push(result)
		return nil
	default:
		return vm.fault(errz.ErrType, "object is not callable (got %s)", fn.Type())
	}
}

// Call a function with the given arguments. If this VM is already running,
// an error is returned.
func (vm *VirtualMachine) Call(
	ctx context.Context,
	fn *object.Closure,
	args []object.Object,
) (result object.Object, err error) {
	if err := vm.start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(*errz.Fault); ok {
				err = fault
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
		vm.stop()
	}()
	return vm.callClosure(ctx, fn, args, nil)
}

// callClosure invokes a compiled function in a new frame, evaluating it to
// completion before returning its result.
func (vm *VirtualMachine) callClosure(
	ctx context.Context,
	fn *object.Closure,
	args []object.Object,
	kwargs map[string]object.Object,
) (object.Object, error) {
	argc := len(args)
	if argc > MaxArgs {
		return nil, vm.fault(errz.ErrRuntime, "max args limit of %d exceeded (got %d)", MaxArgs, argc)
	}
	if vm.fp+1 >= MaxFrameDepth {
		return nil, vm.fault(errz.ErrRuntime, "max frame depth of %d exceeded", MaxFrameDepth)
	}
	if err := vm.checkCallArgs(fn, argc, kwargs); err != nil {
		return nil, err
	}

	// Assemble frame local variables in vm.tmp. The local variable order is:
	// 1. Fixed function parameters
	// 2. Variadic-positional parameter (if any)
	// 3. Variadic-keyword parameter (if any)
	// 4. Function name (if the function is named)
	paramsCount := fn.ParameterCount()
	copyCount := argc
	if copyCount > paramsCount {
		copyCount = paramsCount
	}
	copy(vm.tmp[:copyCount], args[:copyCount])
	localCount := paramsCount

	if fn.HasRestParam() {
		rest := make([]object.Object, 0, argc-paramsCount)
		rest = append(rest, args[paramsCount:]...)
		vm.tmp[localCount] = object.NewList(rest)
		localCount++
	}
	if fn.HasKwParam() {
		fields := make(map[string]object.Object, len(kwargs))
		for name, value := range kwargs {
			fields[name] = value
		}
		vm.tmp[localCount] = object.NewUserObject(fields)
		localCount++
	}

	code, err := vm.getCode(fn.Code())
	if err != nil {
		return nil, err
	}
	if code.IsNamed() {
		vm.tmp[localCount] = fn
		localCount++
	}

	baseFP := vm.fp
	baseIP := vm.ip
	baseSP := vm.sp
	baseInstrIP := vm.instrIP
	savedKind, savedError, savedValue, savedJumpIP := vm.pendingKind, vm.pendingError, vm.pendingValue, vm.pendingJumpIP
	vm.pendingKind = pendingNone
	vm.pendingError = nil
	vm.pendingValue = nil
	vm.pendingJumpIP = 0

	// Restore the caller's frame and unwind state when done
	defer func() {
		vm.resumeFrame(baseFP, baseIP, baseSP)
		vm.instrIP = baseInstrIP
		vm.pendingKind, vm.pendingError, vm.pendingValue, vm.pendingJumpIP = savedKind, savedError, savedValue, savedJumpIP
	}()

	vm.activateClosure(vm.fp+1, fn, code, vm.tmp[:localCount])

	// Setting StopSignal as the return address will cause the eval function
	// to stop execution when it reaches the end of the active code.
	vm.activeFrame.returnAddr = StopSignal

	if err := vm.eval(ctx); err != nil {
		return nil, err
	}
	return vm.pop(), nil
}

// checkCallArgs validates the call signature. Arity violations that escape
// compile-time checking are unrecoverable.
func (vm *VirtualMachine) checkCallArgs(fn *object.Closure, argc int, kwargs map[string]object.Object) error {
	paramsCount := fn.ParameterCount()
	name := fn.Name()
	if name == "" {
		name = "<anonymous>"
	}
	if fn.HasRestParam() {
		if argc < paramsCount {
			return vm.fault(errz.ErrRuntime,
				"function %q requires at least %d argument(s) (%d given)", name, paramsCount, argc)
		}
	} else if argc != paramsCount {
		switch paramsCount {
		case 1:
			return vm.fault(errz.ErrRuntime, "function %q takes 1 argument (%d given)", name, argc)
		default:
			return vm.fault(errz.ErrRuntime, "function %q takes %d arguments (%d given)", name, paramsCount, argc)
		}
	}
	// Unmatched keyword arguments are a catchable error, unlike positional
	// arity violations.
	if len(kwargs) > 0 && !fn.HasKwParam() {
		return object.ArgsErrorf("function %q does not accept keyword arguments", name)
	}
	return nil
}

// performReturn leaves the current frame with the return value on TOS.
// Returns true when the frame was activated with StopSignal, meaning the
// current eval call should stop.
func (vm *VirtualMachine) performReturn() bool {
	activeFrame := vm.activeFrame
	returnAddr := activeFrame.returnAddr
	returnSp := activeFrame.returnSp
	vm.resumeFrame(vm.fp-1, returnAddr, returnSp)
	return returnAddr == StopSignal
}

// Resume the frame at the given frame pointer, restoring the given IP and SP.
func (vm *VirtualMachine) resumeFrame(fp, ip, sp int) *frame {
	// The return value of the previous frame is on the top of the stack
	var frameResult object.Object
	if vm.sp > sp {
		frameResult = vm.pop()
	}
	// Remove any items left on the stack by the previous frame
	for i := vm.sp; i > sp; i-- {
		vm.stack[i] = nil
	}
	vm.sp = sp
	if frameResult != nil {
		vm.push(frameResult)
	}
	vm.fp = fp
	vm.ip = ip
	vm.activeFrame = &vm.frames[fp]
	vm.activeCode = vm.activeFrame.code
	return vm.activeFrame
}

// Activate a frame with the given code. This is used to begin running the
// entrypoint for a compiled unit.
func (vm *VirtualMachine) activateCode(fp, ip int, code *loadedCode) *frame {
	vm.fp = fp
	vm.ip = ip
	vm.activeFrame = &vm.frames[fp]
	vm.activeFrame.ActivateCode(code)
	vm.activeFrame.stackBase = vm.sp
	vm.activeCode = code
	return vm.activeFrame
}

// Activate a frame with the given function, to implement a function call.
func (vm *VirtualMachine) activateClosure(fp int, fn *object.Closure, code *loadedCode, locals []object.Object) *frame {
	returnAddr := vm.ip
	returnSp := vm.sp
	callSiteIP := vm.instrIP
	vm.fp = fp
	vm.ip = 0
	vm.activeFrame = &vm.frames[fp]
	vm.activeFrame.ActivateFunction(fn, code, returnAddr, returnSp, callSiteIP, locals)
	vm.activeCode = code
	return vm.activeFrame
}

// getCode wraps a *bytecode.Code for execution, caching the result.
func (vm *VirtualMachine) getCode(cc *bytecode.Code) (*loadedCode, error) {
	if code, ok := vm.loadedCode[cc]; ok {
		return code, nil
	}
	code, err := loadCode(cc)
	if err != nil {
		return nil, err
	}
	vm.loadedCode[cc] = code
	return code, nil
}

func (vm *VirtualMachine) pop() object.Object {
	if vm.sp < 0 {
		panic(errz.NewFault(errz.ErrRuntime, "stack underflow").
			WithLocation(vm.getCurrentLocation()))
	}
	obj := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	vm.sp--
	return obj
}

func (vm *VirtualMachine) push(obj object.Object) {
	if vm.sp+1 >= MaxStackDepth {
		panic(errz.NewFault(errz.ErrRuntime, "max stack depth of %d exceeded", MaxStackDepth).
			WithLocation(vm.getCurrentLocation()).
			WithStack(vm.captureStack()))
	}
	vm.sp++
	vm.stack[vm.sp] = obj
}

func (vm *VirtualMachine) fetch() uint16 {
	ip := vm.ip
	vm.ip++
	return uint16(vm.activeCode.Instructions[ip])
}

// truncateStack discards everything above the active frame's operand floor.
// Partial expression state from the faulting statement is unrecoverable, so
// catch handlers resume with a clean stack.
func (vm *VirtualMachine) truncateStack() {
	base := vm.activeFrame.stackBase
	for i := vm.sp; i > base; i-- {
		vm.stack[i] = nil
	}
	vm.sp = base
}

// findFinally returns the innermost exception table entry with a finally
// block whose protected range covers the given offset.
func (vm *VirtualMachine) findFinally(ip int) (bytecode.ExceptionHandler, bool) {
	for _, h := range vm.activeCode.Handlers {
		if h.HasFinally() && h.Covers(ip) {
			return h, true
		}
	}
	return bytecode.ExceptionHandler{}, false
}

// findFinallyLeaving returns the innermost exception table entry with a
// finally block whose protected range covers ip but not the jump target,
// meaning a jump from ip to target would leave the range.
func (vm *VirtualMachine) findFinallyLeaving(ip, target int) (bytecode.ExceptionHandler, bool) {
	for _, h := range vm.activeCode.Handlers {
		if h.HasFinally() && h.Covers(ip) && !h.Covers(target) {
			return h, true
		}
	}
	return bytecode.ExceptionHandler{}, false
}

// raise converts an instruction error into an unwind. Unrecoverable faults
// and type mismatches at opcodes with fixed operand types bypass the
// exception table entirely. Everything else scans the table; raise returns
// nil when control was transferred to a catch or finally block, and returns
// the error when it must propagate out of the current frame.
func (vm *VirtualMachine) raise(err error) error {
	if fault, ok := errz.AsFault(err); ok {
		return vm.enrichFault(fault)
	}
	var errObj *object.Error
	switch err := err.(type) {
	case *object.Error:
		if se := err.Structured(); se != nil && se.Kind == errz.ErrType {
			return vm.fault(errz.ErrType, "%s", se.Message)
		}
		errObj = err
	case *errz.StructuredError:
		if err.Kind == errz.ErrType {
			return vm.fault(errz.ErrType, "%s", err.Message)
		}
		errObj = object.NewError(err)
	default:
		errObj = object.NewError(err)
	}
	return vm.raiseError(errObj)
}

// raiseError unwinds a catchable error value through the exception table of
// the active frame. Entries are ordered innermost-first, so the first entry
// covering the faulting offset wins. When no entry covers it, the error is
// returned so that it propagates to the calling frame, where the call
// instruction's offset is scanned in turn.
func (vm *VirtualMachine) raiseError(errObj *object.Error) error {
	vm.enrichError(errObj)
	for _, h := range vm.activeCode.Handlers {
		if !h.Covers(vm.instrIP) {
			continue
		}
		if h.HasCatch() {
			vm.truncateStack()
			vm.pendingKind = pendingNone
			vm.pendingError = nil
			vm.push(errObj.WithRaised(false))
			vm.ip = h.CatchStart
			return nil
		}
		// Finally-only entry: run the finally, then resume the unwind
		vm.truncateStack()
		vm.pendingKind = pendingError
		vm.pendingError = errObj
		vm.ip = h.FinallyStart
		return nil
	}
	return errObj.WithRaised(true)
}

// endFinally resumes whatever the finally block interrupted: nothing, an
// in-flight error, or an in-flight return. Scans restart from the offset of
// the EndFinally instruction, which lies outside the finished entry's
// protected range, so enclosing entries chain naturally.
func (vm *VirtualMachine) endFinally() error {
	switch vm.pendingKind {
	case pendingError:
		errObj := vm.pendingError
		vm.pendingKind = pendingNone
		vm.pendingError = nil
		return vm.raiseError(errObj)
	case pendingReturn:
		if entry, ok := vm.findFinally(vm.instrIP); ok {
			vm.truncateStack()
			vm.ip = entry.FinallyStart
			return nil
		}
		value := vm.pendingValue
		vm.pendingKind = pendingNone
		vm.pendingValue = nil
		vm.push(value)
		vm.performReturn()
		return nil
	case pendingJump:
		target := vm.pendingJumpIP
		if entry, ok := vm.findFinallyLeaving(vm.instrIP, target); ok {
			vm.truncateStack()
			vm.ip = entry.FinallyStart
			return nil
		}
		vm.pendingKind = pendingNone
		vm.ip = target
		return nil
	}
	return nil
}

// captureStack builds a frame trace from the current call frames, innermost
// first.
func (vm *VirtualMachine) captureStack() []errz.StackFrame {
	var frames []errz.StackFrame
	for i := vm.fp; i >= 0; i-- {
		frame := &vm.frames[i]
		if frame.code == nil {
			continue
		}
		funcName := "<main>"
		if frame.fn != nil {
			funcName = frame.fn.Name()
			if funcName == "" {
				funcName = "<anonymous>"
			}
		}
		ip := vm.instrIP
		if i < vm.fp {
			// For suspended frames, report the call site
			ip = vm.frames[i+1].callSiteIP
		}
		frames = append(frames, errz.StackFrame{
			Function: funcName,
			Location: frame.code.LocationAt(ip),
		})
	}
	return frames
}

// getCurrentLocation returns the source location of the current instruction.
func (vm *VirtualMachine) getCurrentLocation() errz.SourceLocation {
	if vm.activeCode == nil {
		return errz.SourceLocation{}
	}
	return vm.activeCode.LocationAt(vm.instrIP)
}

// fault creates an unrecoverable fault with location and frame trace.
func (vm *VirtualMachine) fault(kind errz.ErrorKind, format string, args ...any) *errz.Fault {
	return errz.NewFault(kind, format, args...).
		WithLocation(vm.getCurrentLocation()).
		WithStack(vm.captureStack())
}

func (vm *VirtualMachine) enrichFault(fault *errz.Fault) *errz.Fault {
	if fault.Location.IsZero() {
		fault.Location = vm.getCurrentLocation()
	}
	if len(fault.Stack) == 0 {
		fault.Stack = vm.captureStack()
	}
	return fault
}

// enrichError fills in missing diagnostics on a catchable error at the point
// of origination.
func (vm *VirtualMachine) enrichError(errObj *object.Error) {
	se := errObj.Structured()
	if se == nil {
		se = errz.NewStructuredErrorf(errz.ErrRuntime, vm.getCurrentLocation(),
			vm.captureStack(), "%s", errObj.Error())
		errObj.WithStructured(se)
		return
	}
	if se.Location.IsZero() {
		se.Location = vm.getCurrentLocation()
	}
	if len(se.Stack) == 0 {
		se.Stack = vm.captureStack()
	}
}
