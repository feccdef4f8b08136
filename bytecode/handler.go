package bytecode

// ExceptionHandler describes one protected instruction range for
// try/catch/finally. Offsets are instruction-stream positions within the
// owning Code. The handler list on a Code is ordered innermost-first so the
// unwinder finds the tightest enclosing handler by scanning in order.
type ExceptionHandler struct {
	TryStart     int // first instruction of the protected range
	TryEnd       int // first instruction past the protected range
	CatchStart   int // IP of the catch block (0 if none)
	FinallyStart int // IP of the finally block (0 if none)
}

// Covers returns true if ip falls within the protected range.
func (h ExceptionHandler) Covers(ip int) bool {
	return ip >= h.TryStart && ip < h.TryEnd
}

// HasCatch returns true if the handler includes a catch block.
func (h ExceptionHandler) HasCatch() bool {
	return h.CatchStart != 0
}

// HasFinally returns true if the handler includes a finally block.
func (h ExceptionHandler) HasFinally() bool {
	return h.FinallyStart != 0
}
