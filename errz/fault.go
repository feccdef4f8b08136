package errz

import (
	"bytes"
	"fmt"
)

// Fault is an unrecoverable execution error. Unlike runtime error values,
// faults cannot be caught by try/catch in the running program: they abort
// execution and surface to the embedding application with a full stack trace.
type Fault struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Location.IsZero() {
		return fmt.Sprintf("fault: %s: %s", f.Kind.String(), f.Message)
	}
	return fmt.Sprintf("fault: %s: %s (%d:%d)", f.Kind.String(), f.Message, f.Location.Line, f.Location.Column)
}

// FriendlyErrorMessage returns the fault message with its stack trace.
func (f *Fault) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	msg.WriteString(f.Error())
	msg.WriteString("\n")
	if len(f.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(f.Stack))
	}
	return msg.String()
}

// NewFault creates a fault with the given kind and message.
func NewFault(kind ErrorKind, format string, args ...any) *Fault {
	return &Fault{
		Message: fmt.Sprintf(format, args...),
		Kind:    kind,
	}
}

// WithStack attaches a stack trace to the fault.
func (f *Fault) WithStack(stack []StackFrame) *Fault {
	f.Stack = stack
	return f
}

// WithLocation attaches a source location to the fault.
func (f *Fault) WithLocation(loc SourceLocation) *Fault {
	f.Location = loc
	return f
}

// AsFault returns the error as a *Fault if it is one.
func AsFault(err error) (*Fault, bool) {
	f, ok := err.(*Fault)
	return f, ok
}
