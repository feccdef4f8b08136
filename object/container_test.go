package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListGetItem(t *testing.T) {
	ls := NewList([]Object{NewInt(10), NewInt(20), NewInt(30)})

	item, errObj := ls.GetItem(NewInt(0))
	require.Nil(t, errObj)
	require.Equal(t, NewInt(10), item)

	item, errObj = ls.GetItem(NewInt(-1))
	require.Nil(t, errObj)
	require.Equal(t, NewInt(30), item)

	item, errObj = ls.GetItem(NewInt(-3))
	require.Nil(t, errObj)
	require.Equal(t, NewInt(10), item)
}

func TestListGetItemOutOfRange(t *testing.T) {
	ls := NewList([]Object{NewInt(10)})

	_, errObj := ls.GetItem(NewInt(1))
	require.NotNil(t, errObj)
	require.Equal(t, "list index out of range: 1 (length 1)", errObj.Message().Value())
	require.Equal(t, ErrValue, errObj.Structured().Kind)

	_, errObj = ls.GetItem(NewInt(-2))
	require.NotNil(t, errObj)
	require.Equal(t, "list index out of range: -2 (length 1)", errObj.Message().Value())
}

func TestListGetItemNonIntKey(t *testing.T) {
	ls := NewList([]Object{NewInt(10)})
	_, errObj := ls.GetItem(NewString("0"))
	require.NotNil(t, errObj)
	require.Equal(t, ErrType, errObj.Structured().Kind)
}

func TestListSetItem(t *testing.T) {
	ls := NewList([]Object{NewInt(1), NewInt(2)})
	require.Nil(t, ls.SetItem(NewInt(1), NewInt(20)))
	require.Equal(t, NewInt(20), ls.At(1))

	require.Nil(t, ls.SetItem(NewInt(-2), NewInt(10)))
	require.Equal(t, NewInt(10), ls.At(0))

	errObj := ls.SetItem(NewInt(5), NewInt(0))
	require.NotNil(t, errObj)
	require.Contains(t, errObj.Message().Value(), "list index out of range")
}

func TestListAppendAndExtend(t *testing.T) {
	ls := NewList(nil)
	ls.Append(NewInt(1))
	ls.Extend(NewList([]Object{NewInt(2), NewInt(3)}))
	require.Equal(t, 3, ls.Size())
	require.Equal(t, NewInt(3), ls.At(2))
}

func TestListContains(t *testing.T) {
	ls := NewList([]Object{NewInt(1), NewString("a")})
	require.Equal(t, True, ls.Contains(NewString("a")))
	require.Equal(t, True, ls.Contains(NewInt(1)))
	require.Equal(t, False, ls.Contains(NewInt(2)))
}

func TestStringIndexing(t *testing.T) {
	s := NewString("héllo")
	require.Equal(t, NewInt(5), s.Len())

	item, errObj := s.GetItem(NewInt(1))
	require.Nil(t, errObj)
	require.Equal(t, NewString("é"), item)

	item, errObj = s.GetItem(NewInt(-1))
	require.Nil(t, errObj)
	require.Equal(t, NewString("o"), item)

	_, errObj = s.GetItem(NewInt(5))
	require.NotNil(t, errObj)
	require.Contains(t, errObj.Message().Value(), "string index out of range")

	errObj = s.SetItem(NewInt(0), NewString("x"))
	require.NotNil(t, errObj)
	require.Contains(t, errObj.Message().Value(), "strings are immutable")
}

func TestStringContains(t *testing.T) {
	s := NewString("hello")
	require.Equal(t, True, s.Contains(NewString("ell")))
	require.Equal(t, False, s.Contains(NewString("xyz")))
	require.Equal(t, False, s.Contains(NewInt(1)))
}

func TestInvalidUTF8IsReplaced(t *testing.T) {
	s := NewString("ok\xffbad")
	require.Equal(t, "ok�bad", s.Value())
}

func TestUserObjectFields(t *testing.T) {
	obj := NewUserObject(map[string]Object{"name": NewString("perch")})

	value, found := obj.GetAttr("name")
	require.True(t, found)
	require.Equal(t, NewString("perch"), value)

	_, found = obj.GetAttr("missing")
	require.False(t, found)

	require.NoError(t, obj.SetAttr("size", NewInt(3)))
	require.Equal(t, NewInt(2), obj.Len())
	require.Equal(t, []string{"name", "size"}, obj.FieldNames())
}

func TestUserObjectItems(t *testing.T) {
	obj := NewUserObject(map[string]Object{"a": NewInt(1)})

	item, errObj := obj.GetItem(NewString("a"))
	require.Nil(t, errObj)
	require.Equal(t, NewInt(1), item)

	_, errObj = obj.GetItem(NewString("b"))
	require.NotNil(t, errObj)
	require.Contains(t, errObj.Message().Value(), `object has no field "b"`)

	_, errObj = obj.GetItem(NewInt(0))
	require.NotNil(t, errObj)
	require.Equal(t, ErrType, errObj.Structured().Kind)

	require.Nil(t, obj.SetItem(NewString("b"), NewInt(2)))
	require.Equal(t, True, obj.Contains(NewString("b")))
}

func TestFrozenObjectRejectsWrites(t *testing.T) {
	obj := NewUserObject(map[string]Object{"a": NewInt(1)})
	obj.Freeze()
	require.True(t, obj.IsFrozen())

	err := obj.SetAttr("a", NewInt(2))
	require.Error(t, err)
	require.Contains(t, err.Error(), `field "a" is not writable on a frozen object`)

	errObj := obj.SetItem(NewString("a"), NewInt(2))
	require.NotNil(t, errObj)
	require.Equal(t, ErrValue, errObj.Structured().Kind)

	// Reads still work
	value, found := obj.GetAttr("a")
	require.True(t, found)
	require.Equal(t, NewInt(1), value)
}

func TestCellSharing(t *testing.T) {
	var slot Object = NewInt(1)
	a := NewCell(&slot)
	b := NewCell(&slot)

	a.Set(NewInt(2))
	require.Equal(t, NewInt(2), b.Value())

	require.True(t, a.Equals(a))
	require.False(t, a.Equals(b)) // identity, not value
}
