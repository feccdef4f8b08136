package bytecode

import (
	"bytes"
	"strings"
)

// Function represents a compiled function template. It is immutable after
// creation and carries the static information needed to create closures at
// runtime: the fixed parameter names, the optional variadic-positional and
// variadic-keyword parameters, and the compiled body.
type Function struct {
	id         string
	name       string
	parameters []string // fixed parameters, in declaration order
	restParam  string   // variadic-positional parameter name (empty if none)
	kwParam    string   // variadic-keyword parameter name (empty if none)
	code       *Code
}

// FunctionParams contains parameters for creating a new Function.
type FunctionParams struct {
	ID         string
	Name       string
	Parameters []string
	RestParam  string
	KwParam    string
	Code       *Code
}

// NewFunction creates a new immutable Function from the given parameters.
// Input slices are copied.
func NewFunction(params FunctionParams) *Function {
	return &Function{
		id:         params.ID,
		name:       params.Name,
		parameters: copyStrings(params.Parameters),
		restParam:  params.RestParam,
		kwParam:    params.KwParam,
		code:       params.Code,
	}
}

// ID returns the unique identifier for this function.
func (f *Function) ID() string {
	return f.id
}

// Name returns the function name, or empty string for anonymous functions.
func (f *Function) Name() string {
	return f.name
}

// Code returns the compiled bytecode for this function's body.
func (f *Function) Code() *Code {
	return f.code
}

// ParameterCount returns the number of fixed parameters.
func (f *Function) ParameterCount() int {
	return len(f.parameters)
}

// Parameter returns the name of the fixed parameter at the given index.
func (f *Function) Parameter(index int) string {
	return f.parameters[index]
}

// LocalCount returns the number of local variable slots in the body.
func (f *Function) LocalCount() int {
	if f.code == nil {
		return 0
	}
	return f.code.LocalCount()
}

// RestParam returns the variadic-positional parameter name, or "" if none.
func (f *Function) RestParam() string {
	return f.restParam
}

// HasRestParam returns true if the function accepts excess positional
// arguments.
func (f *Function) HasRestParam() bool {
	return f.restParam != ""
}

// KwParam returns the variadic-keyword parameter name, or "" if none.
func (f *Function) KwParam() string {
	return f.kwParam
}

// HasKwParam returns true if the function accepts keyword arguments.
func (f *Function) HasKwParam() bool {
	return f.kwParam != ""
}

// String returns a string representation of the function signature.
func (f *Function) String() string {
	var out bytes.Buffer
	parameters := make([]string, 0, len(f.parameters)+2)
	parameters = append(parameters, f.parameters...)
	if f.restParam != "" {
		parameters = append(parameters, "*"+f.restParam)
	}
	if f.kwParam != "" {
		parameters = append(parameters, "**"+f.kwParam)
	}
	out.WriteString("func")
	if f.name != "" {
		out.WriteString(" " + f.name)
	}
	out.WriteString("(")
	out.WriteString(strings.Join(parameters, ", "))
	out.WriteString(")")
	return out.String()
}
