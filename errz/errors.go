package errz

import "fmt"

// SyntaxLoweringError reports a structural problem found while lowering a
// syntax tree to IR, such as an invalid assignment target or a malformed
// varargs declaration.
type SyntaxLoweringError struct {
	StructuredError
}

// NewSyntaxLoweringError creates a lowering error at the given location.
func NewSyntaxLoweringError(loc SourceLocation, format string, args ...any) *SyntaxLoweringError {
	e := &SyntaxLoweringError{}
	e.Kind = ErrSyntax
	e.Location = loc
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// CompileError reports a failure during bytecode compilation, attributed to
// the offending IR node's source range.
type CompileError struct {
	StructuredError
}

// NewCompileError creates a compile error at the given location.
func NewCompileError(loc SourceLocation, format string, args ...any) *CompileError {
	e := &CompileError{}
	e.Kind = ErrCompile
	e.Location = loc
	e.Message = fmt.Sprintf(format, args...)
	return e
}
