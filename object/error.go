package object

import (
	"fmt"

	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/op"
)

// Error wraps a Go error and implements Object. Error values are the
// catchable half of the error model: they flow through throw, try/catch,
// and builtin failures.
type Error struct {
	err        error
	raised     bool
	structured *StructuredError
}

func (e *Error) Type() Type {
	return ERROR
}

func (e *Error) Inspect() string {
	return fmt.Sprintf("error(%q)", e.err.Error())
}

func (e *Error) String() string {
	return e.err.Error()
}

func (e *Error) Value() error {
	return e.err
}

func (e *Error) Interface() interface{} {
	return e.err
}

func (e *Error) Compare(other Object) (int, error) {
	otherErr, ok := other.(*Error)
	if !ok {
		return 0, TypeErrorf("unable to compare error and %s", other.Type())
	}
	thisMsg := e.Message().Value()
	otherMsg := otherErr.Message().Value()
	if thisMsg > otherMsg {
		return 1, nil
	}
	if thisMsg < otherMsg {
		return -1, nil
	}
	return 0, nil
}

func (e *Error) Equals(other Object) bool {
	otherError, ok := other.(*Error)
	if !ok {
		return false
	}
	return e.Message().Value() == otherError.Message().Value() && e.raised == otherError.raised
}

// GetAttr exposes diagnostic fields to catch handlers as plain values.
func (e *Error) GetAttr(name string) (Object, bool) {
	switch name {
	case "message":
		return e.Message(), true
	case "kind":
		if e.structured != nil {
			return NewString(e.structured.Kind.String()), true
		}
		return NewString("error"), true
	case "line":
		if e.structured != nil {
			return NewInt(int64(e.structured.Location.Line)), true
		}
		return NewInt(0), true
	case "column":
		if e.structured != nil {
			return NewInt(int64(e.structured.Location.Column)), true
		}
		return NewInt(0), true
	case "stack":
		var frames []Object
		if e.structured != nil {
			for _, frame := range e.structured.Stack {
				obj := NewUserObject(map[string]Object{
					"function": NewString(frame.Function),
					"line":     NewInt(int64(frame.Location.Line)),
					"column":   NewInt(int64(frame.Location.Column)),
					"file":     NewString(frame.Location.File),
				})
				obj.Freeze()
				frames = append(frames, obj)
			}
		}
		return NewList(frames), true
	default:
		return nil, false
	}
}

func (e *Error) SetAttr(name string, value Object) error {
	return TypeErrorf("error has no writable attribute %q", name)
}

func (e *Error) IsTruthy() bool {
	return true
}

func (e *Error) Message() *String {
	if e.structured != nil {
		return NewString(e.structured.Message)
	}
	return NewString(e.err.Error())
}

func (e *Error) WithRaised(value bool) *Error {
	e.raised = value
	return e
}

func (e *Error) IsRaised() bool {
	return e.raised
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	return nil, TypeErrorf("unsupported operation for error: %v", opType)
}

// Errorf creates a raised error value with a formatted message. Object
// arguments are converted to their native Go values first.
func Errorf(format string, a ...interface{}) *Error {
	args := make([]interface{}, 0, len(a))
	for _, arg := range a {
		if obj, ok := arg.(Object); ok {
			args = append(args, obj.Interface())
		} else {
			args = append(args, arg)
		}
	}
	se := errz.NewStructuredErrorf(errz.ErrRuntime, errz.SourceLocation{}, nil, format, args...)
	return &Error{err: se, raised: true, structured: se}
}

// NewError wraps a Go error as an error object.
func NewError(err error) *Error {
	switch err := err.(type) {
	case *Error: // unwrap to get the inner error, to avoid unhelpful nesting
		return &Error{err: err.Unwrap(), raised: true, structured: err.structured}
	case *StructuredError:
		return &Error{err: err, raised: true, structured: err}
	default:
		return &Error{err: err, raised: true}
	}
}

// Structured returns the underlying StructuredError if present.
func (e *Error) Structured() *StructuredError {
	return e.structured
}

// WithStructured attaches structured diagnostics to the error.
func (e *Error) WithStructured(se *StructuredError) *Error {
	e.structured = se
	e.err = se
	return e
}

// FriendlyErrorMessage returns a human-friendly error message if the error
// has structured data, otherwise the standard error string.
func (e *Error) FriendlyErrorMessage() string {
	if e.structured != nil {
		return e.structured.FriendlyErrorMessage()
	}
	return e.err.Error()
}
