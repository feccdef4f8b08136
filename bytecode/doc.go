// Package bytecode provides immutable representations of compiled Perch code.
//
// This package defines the output of compilation: pure data structures that
// represent compiled instruction streams, function templates, and associated
// metadata. These types are created once during compilation and shared
// safely across goroutines and VM instances.
//
//   - [Code]: an immutable compiled code block (top-level unit or function body)
//   - [Function]: an immutable function template with its parameter descriptor
//   - [ExceptionHandler]: one protected try/catch/finally range (value type)
//   - [SourceLocation]: maps instructions back to source positions (value type)
//
// All types are immutable after construction: fields are unexported,
// constructors copy input slices, and accessors are index-based rather than
// slice-returning.
//
// This package depends only on the op package to avoid circular dependencies
// with the object package. Constants are stored as []any (nil, bool, int64,
// float64, string, *Function) and converted to object values by the VM at
// load time.
//
// Marshal and Unmarshal provide a CBOR persisted form so compiled units can
// be cached on disk and executed without the front-end present.
package bytecode
