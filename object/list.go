package object

import (
	"bytes"

	"github.com/perch-lang/perch/op"
)

// List is a mutable, growable, 0-indexed sequence of objects.
type List struct {
	items []Object
}

func (ls *List) GetAttr(name string) (Object, bool) {
	return nil, false
}

func (ls *List) SetAttr(name string, value Object) error {
	return TypeErrorf("list has no attribute %q", name)
}

func (ls *List) Type() Type {
	return LIST
}

func (ls *List) Inspect() string {
	var out bytes.Buffer
	out.WriteString("[")
	for i, item := range ls.items {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(item.Inspect())
	}
	out.WriteString("]")
	return out.String()
}

func (ls *List) String() string {
	return ls.Inspect()
}

func (ls *List) Interface() interface{} {
	items := make([]interface{}, 0, len(ls.items))
	for _, item := range ls.items {
		items = append(items, item.Interface())
	}
	return items
}

func (ls *List) Equals(other Object) bool {
	otherList, ok := other.(*List)
	if !ok {
		return false
	}
	if len(ls.items) != len(otherList.items) {
		return false
	}
	for i, item := range ls.items {
		if !item.Equals(otherList.items[i]) {
			return false
		}
	}
	return true
}

func (ls *List) IsTruthy() bool {
	return len(ls.items) > 0
}

func (ls *List) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	switch opType {
	case op.Add:
		rightList, ok := right.(*List)
		if !ok {
			return nil, TypeErrorf("unable to concatenate list and %s", right.Type())
		}
		items := make([]Object, 0, len(ls.items)+len(rightList.items))
		items = append(items, ls.items...)
		items = append(items, rightList.items...)
		return NewList(items), nil
	default:
		return nil, TypeErrorf("unsupported operation for list: %v", opType)
	}
}

// Append adds an item to the end of the list.
func (ls *List) Append(item Object) {
	ls.items = append(ls.items, item)
}

// Extend adds all items from another list to the end of this list.
func (ls *List) Extend(other *List) {
	ls.items = append(ls.items, other.items...)
}

// Size returns the number of items as a native int.
func (ls *List) Size() int {
	return len(ls.items)
}

// At returns the item at the given index without bounds translation.
func (ls *List) At(index int) Object {
	return ls.items[index]
}

// Items returns the backing slice. Callers must not modify it.
func (ls *List) Items() []Object {
	return ls.items
}

// GetItem returns the item at the given index. Negative indexes count back
// from the end. Out-of-range access is a catchable error.
func (ls *List) GetItem(key Object) (Object, *Error) {
	index, ok := key.(*Int)
	if !ok {
		return nil, TypeErrorf("list index must be an int (got %s)", key.Type())
	}
	idx := index.value
	if idx < 0 {
		idx += int64(len(ls.items))
	}
	if idx < 0 || idx >= int64(len(ls.items)) {
		return nil, IndexErrorf("list index out of range: %d (length %d)", index.value, len(ls.items))
	}
	return ls.items[idx], nil
}

// SetItem replaces the item at the given index.
func (ls *List) SetItem(key, value Object) *Error {
	index, ok := key.(*Int)
	if !ok {
		return TypeErrorf("list index must be an int (got %s)", key.Type())
	}
	idx := index.value
	if idx < 0 {
		idx += int64(len(ls.items))
	}
	if idx < 0 || idx >= int64(len(ls.items)) {
		return IndexErrorf("list index out of range: %d (length %d)", index.value, len(ls.items))
	}
	ls.items[idx] = value
	return nil
}

// Contains returns true if the given item is in the list.
func (ls *List) Contains(item Object) *Bool {
	for _, v := range ls.items {
		if v.Equals(item) {
			return True
		}
	}
	return False
}

// Len returns the number of items in the list.
func (ls *List) Len() *Int {
	return NewInt(int64(len(ls.items)))
}

func NewList(items []Object) *List {
	return &List{items: items}
}
