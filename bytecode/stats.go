package bytecode

// Stats contains statistics about compiled bytecode. Useful for auditing a
// unit before execution.
type Stats struct {
	// InstructionCount is the total number of bytecode instructions.
	InstructionCount int

	// ConstantCount is the number of constants in the constant pool.
	ConstantCount int

	// FunctionCount is the number of function templates in the pool.
	FunctionCount int

	// HandlerCount is the number of exception handlers.
	HandlerCount int

	// SourceBytes is the size of the original source code in bytes.
	SourceBytes int
}
