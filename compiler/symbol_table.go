package compiler

import (
	"errors"
	"fmt"
	"math"
)

// Scope indicates where a resolved symbol lives relative to the code that
// references it.
type Scope int

const (
	// Global symbols belong to the top-level unit and are looked up by name
	// at runtime.
	Global Scope = iota
	// Local symbols occupy a frame slot in the enclosing function.
	Local
	// Free symbols are captured from an enclosing function as upvalue cells.
	Free
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Local:
		return "local"
	case Free:
		return "free"
	default:
		return "invalid"
	}
}

// Symbol is a named variable binding with its assigned slot index.
type Symbol struct {
	name  string
	index uint16
}

// Name returns the symbol's name.
func (s *Symbol) Name() string {
	return s.name
}

// Index returns the slot index assigned to this symbol.
func (s *Symbol) Index() uint16 {
	return s.index
}

// Resolution describes where an identifier reference resolved to: the
// symbol, its scope, and, for free variables, which capture slot it was
// assigned. Free resolutions form a chain: "outer" is the resolution of the
// same variable in the immediately enclosing function, so each function only
// ever captures from its direct parent.
type Resolution struct {
	symbol    *Symbol
	scope     Scope
	depth     int
	freeIndex int
	outer     *Resolution
}

// Symbol returns the resolved symbol.
func (r *Resolution) Symbol() *Symbol {
	return r.symbol
}

// Scope returns the resolved scope.
func (r *Resolution) Scope() Scope {
	return r.scope
}

// Depth returns the number of function boundaries between the reference and
// the definition (free variables only).
func (r *Resolution) Depth() int {
	return r.depth
}

// FreeIndex returns the capture slot assigned to a free variable.
func (r *Resolution) FreeIndex() int {
	return r.freeIndex
}

// Outer returns the resolution of the same variable in the immediately
// enclosing function (free variables only).
func (r *Resolution) Outer() *Resolution {
	return r.outer
}

// SymbolTable tracks which symbols are defined and referenced in a given
// scope. Tables may have a parent table, which indicates that they represent
// a nested scope. If "isBlock" is set, this table represents a block within
// a function (like inside an if { ... }) rather than a function itself;
// blocks allocate slot indexes from the enclosing function's table. Note
// there may be more symbols in the symbols array than in symbolsByName,
// because symbols defined in nested blocks don't use a name in the enclosing
// table.
type SymbolTable struct {
	id            string
	parent        *SymbolTable
	children      []*SymbolTable
	symbolsByName map[string]*Symbol
	freeByName    map[string]*Resolution
	symbols       []*Symbol
	free          []*Resolution
	isBlock       bool
}

// NewSymbolTable returns a new root symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		id:            "root",
		symbolsByName: map[string]*Symbol{},
		freeByName:    map[string]*Resolution{},
		symbols:       []*Symbol{},
	}
}

// NewChild creates a new symbol table that is a child of the current table.
func (t *SymbolTable) NewChild() *SymbolTable {
	child := &SymbolTable{
		id:            fmt.Sprintf("%s.%d", t.id, len(t.children)),
		parent:        t,
		symbolsByName: map[string]*Symbol{},
		freeByName:    map[string]*Resolution{},
		symbols:       []*Symbol{},
	}
	t.children = append(t.children, child)
	return child
}

// NewBlock creates a new symbol table that is a child of the current table
// and represents a block within a function. Blocks allocate symbol indexes
// from the enclosing function's symbol table.
func (t *SymbolTable) NewBlock() *SymbolTable {
	child := t.NewChild()
	child.isBlock = true
	return child
}

// ID returns an identifier unique within the root table's tree.
func (t *SymbolTable) ID() string {
	return t.id
}

func (t *SymbolTable) claimIndex(s *Symbol) (uint16, error) {
	if t.isBlock {
		return t.parent.claimIndex(s)
	}
	idx := len(t.symbols)
	if idx >= math.MaxUint16 {
		return 0, errors.New("compile error: too many symbols")
	}
	uidx := uint16(idx)
	t.symbols = append(t.symbols, s)
	s.index = uidx
	return uidx, nil
}

// GetFunction returns the table of the enclosing function, if any.
func (t *SymbolTable) GetFunction() (*SymbolTable, bool) {
	if t.parent == nil {
		return nil, false // global scope
	} else if t.isBlock {
		return t.parent.GetFunction()
	}
	return t, true
}

// FunctionDepth returns how many function boundaries enclose this table.
func (t *SymbolTable) FunctionDepth() int {
	if t.parent == nil {
		return 0
	}
	if t.isBlock {
		return t.parent.FunctionDepth()
	}
	return 1 + t.parent.FunctionDepth()
}

// InsertVariable adds a new variable into this symbol table. The symbol is
// assigned the next available index in the enclosing function.
func (t *SymbolTable) InsertVariable(name string) (*Symbol, error) {
	if _, ok := t.symbolsByName[name]; ok {
		return nil, fmt.Errorf("compile error: variable %q already exists", name)
	}
	s := &Symbol{name: name}
	if _, err := t.claimIndex(s); err != nil {
		return nil, err
	}
	t.symbolsByName[name] = s
	return s, nil
}

// IsDefined returns true if the specified symbol is defined in this table.
// Does not check any parent tables.
func (t *SymbolTable) IsDefined(name string) bool {
	_, ok := t.symbolsByName[name]
	return ok
}

// Get returns the symbol with the specified name and whether it was found.
// Does not check any parent tables.
func (t *SymbolTable) Get(name string) (*Symbol, bool) {
	s, ok := t.symbolsByName[name]
	return s, ok
}

// IsGlobal returns true if this table represents the top-level scope.
func (t *SymbolTable) IsGlobal() bool {
	if t.parent == nil {
		return true
	}
	if t.isBlock {
		return t.parent.IsGlobal()
	}
	return false
}

// Resolve the specified symbol in this table or any parent tables, returning
// a Resolution if the symbol is found. A symbol defined outside the enclosing
// function resolves as a "free" variable and is added to the free list of
// every function between the reference and the definition, so each function
// only ever captures from its immediate parent.
func (t *SymbolTable) Resolve(name string) (*Resolution, bool) {
	// Check if the symbol is defined directly in this table
	if s, ok := t.symbolsByName[name]; ok {
		var scope Scope
		if t.IsGlobal() {
			scope = Global
		} else {
			scope = Local
		}
		return &Resolution{symbol: s, scope: scope}, true
	}
	if t.parent == nil {
		return nil, false
	}
	// Blocks share the enclosing function's scope
	if t.isBlock {
		return t.parent.Resolve(name)
	}
	// Check if the symbol was previously found to be a "free" variable
	if rs, ok := t.freeByName[name]; ok {
		return rs, true
	}
	outer, found := t.parent.Resolve(name)
	if !found {
		return nil, false
	}
	if outer.scope == Global {
		return outer, true
	}
	// The symbol lives in an enclosing function, either as one of its locals
	// or as a variable it captured itself. Record it as a free variable here
	// and link the chain so codegen can forward the cell one link at a time.
	depth := 1
	if outer.scope == Free {
		depth = outer.depth + 1
	}
	rs := &Resolution{
		symbol:    outer.symbol,
		scope:     Free,
		depth:     depth,
		freeIndex: len(t.free),
		outer:     outer,
	}
	t.freeByName[name] = rs
	t.free = append(t.free, rs)
	return rs, true
}

// Parent returns the parent table of this table, if any.
func (t *SymbolTable) Parent() *SymbolTable {
	return t.parent
}

// Root returns the outermost table that encloses this table.
func (t *SymbolTable) Root() *SymbolTable {
	current := t
	for current.parent != nil {
		current = current.parent
	}
	return current
}

// LocalTable returns the table that defines the local variables for this
// table: the enclosing function's table when called on a block.
func (t *SymbolTable) LocalTable() *SymbolTable {
	current := t
	for current.isBlock {
		current = current.parent
	}
	return current
}

// Count returns the number of symbols defined in this table.
func (t *SymbolTable) Count() uint16 {
	return uint16(len(t.symbols))
}

// Symbol returns the Symbol located at the specified index.
func (t *SymbolTable) Symbol(index uint16) *Symbol {
	return t.symbols[index]
}

// FreeCount returns the number of free variables defined in this table.
func (t *SymbolTable) FreeCount() uint16 {
	return uint16(len(t.free))
}

// Free returns the free variable Resolution located at the specified index.
func (t *SymbolTable) Free(index uint16) *Resolution {
	return t.free[index]
}
