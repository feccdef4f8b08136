package object

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/perch-lang/perch/op"
)

// String is an immutable UTF-8 string. Construction validates the encoding
// (invalid sequences are replaced with U+FFFD) and indexing is by code
// point, not byte offset.
type String struct {
	value     string
	runeCount int
}

func (s *String) GetAttr(name string) (Object, bool) {
	return nil, false
}

func (s *String) SetAttr(name string, value Object) error {
	return TypeErrorf("string has no attribute %q", name)
}

func (s *String) Type() Type {
	return STRING
}

func (s *String) Value() string {
	return s.value
}

func (s *String) Inspect() string {
	return fmt.Sprintf("%q", s.value)
}

func (s *String) String() string {
	return s.value
}

func (s *String) Interface() interface{} {
	return s.value
}

func (s *String) Compare(other Object) (int, error) {
	otherStr, ok := other.(*String)
	if !ok {
		return 0, TypeErrorf("unable to compare string and %s", other.Type())
	}
	return strings.Compare(s.value, otherStr.value), nil
}

func (s *String) Equals(other Object) bool {
	otherStr, ok := other.(*String)
	return ok && s.value == otherStr.value
}

func (s *String) IsTruthy() bool {
	return s.value != ""
}

func (s *String) RunOperation(opType op.BinaryOpType, right Object) (Object, error) {
	switch opType {
	case op.Add:
		rightStr, ok := right.(*String)
		if !ok {
			return nil, TypeErrorf("unable to concatenate string and %s", right.Type())
		}
		return NewString(s.value + rightStr.value), nil
	case op.Multiply:
		count, ok := right.(*Int)
		if !ok {
			return nil, TypeErrorf("unable to repeat string by %s", right.Type())
		}
		if count.value < 0 {
			return nil, ValueErrorf("negative string repeat count: %d", count.value)
		}
		return NewString(strings.Repeat(s.value, int(count.value))), nil
	default:
		return nil, TypeErrorf("unsupported operation for string: %v", opType)
	}
}

// GetItem returns the code point at the given index as a one-rune string.
// Negative indexes count back from the end.
func (s *String) GetItem(key Object) (Object, *Error) {
	index, ok := key.(*Int)
	if !ok {
		return nil, TypeErrorf("string index must be an int (got %s)", key.Type())
	}
	idx := index.value
	if idx < 0 {
		idx += int64(s.runeCount)
	}
	if idx < 0 || idx >= int64(s.runeCount) {
		return nil, IndexErrorf("string index out of range: %d (length %d)", index.value, s.runeCount)
	}
	for _, r := range s.value {
		if idx == 0 {
			return NewString(string(r)), nil
		}
		idx--
	}
	return nil, IndexErrorf("string index out of range: %d", index.value)
}

// SetItem always fails: strings are immutable.
func (s *String) SetItem(key, value Object) *Error {
	return TypeErrorf("strings are immutable")
}

// Contains reports whether the given substring occurs in this string.
func (s *String) Contains(item Object) *Bool {
	itemStr, ok := item.(*String)
	if !ok {
		return False
	}
	return NewBool(strings.Contains(s.value, itemStr.value))
}

// Len returns the number of code points in the string.
func (s *String) Len() *Int {
	return NewInt(int64(s.runeCount))
}

func NewString(value string) *String {
	if !utf8.ValidString(value) {
		value = strings.ToValidUTF8(value, "�")
	}
	return &String{value: value, runeCount: utf8.RuneCountInString(value)}
}
