package errz

import (
	"bytes"
	"fmt"
)

// SourceLocation identifies a position in a source file.
type SourceLocation struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Source string
}

// IsZero returns true if the location carries no position information.
func (l SourceLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

// String returns the location in file:line:column form.
func (l SourceLocation) String() string {
	file := l.File
	if file == "" {
		file = "<input>"
	}
	if l.IsZero() {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
}

// StackFrame describes one call frame in a stack trace.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// FormatStackTrace renders stack frames, innermost first.
func FormatStackTrace(frames []StackFrame) string {
	var buf bytes.Buffer
	buf.WriteString("stack trace:\n")
	for _, f := range frames {
		name := f.Function
		if name == "" {
			name = "<anonymous>"
		}
		buf.WriteString(fmt.Sprintf("  at %s (%s)\n", name, f.Location.String()))
	}
	return buf.String()
}
