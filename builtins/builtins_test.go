package builtins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/object"
)

func TestLen(t *testing.T) {
	ctx := context.Background()

	result, err := Len(ctx, []object.Object{object.NewString("héllo")}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(5), result)

	result, err = Len(ctx, []object.Object{object.NewList([]object.Object{object.Nil})}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(1), result)

	_, err = Len(ctx, []object.Object{object.NewInt(1)}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "len: unsupported argument (int given)")

	_, err = Len(ctx, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "len: expected 1 argument, got 0")
}

func TestType(t *testing.T) {
	ctx := context.Background()
	type testCase struct {
		obj      object.Object
		expected string
	}
	testCases := []testCase{
		{object.NewInt(1), "int"},
		{object.NewFloat(1.0), "float"},
		{object.NewString("x"), "string"},
		{object.True, "bool"},
		{object.Nil, "nil"},
		{object.NewList(nil), "list"},
		{object.NewUserObject(nil), "object"},
		{object.Errorf("e"), "error"},
	}
	for _, tc := range testCases {
		result, err := Type(ctx, []object.Object{tc.obj}, nil)
		require.NoError(t, err)
		require.Equal(t, object.NewString(tc.expected), result)
	}
}

func TestString(t *testing.T) {
	ctx := context.Background()

	result, err := String(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewString(""), result)

	result, err = String(ctx, []object.Object{object.NewInt(42)}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewString("42"), result)

	s := object.NewString("keep")
	result, err = String(ctx, []object.Object{s}, nil)
	require.NoError(t, err)
	require.Same(t, s, result)
}

func TestInt(t *testing.T) {
	ctx := context.Background()

	result, err := Int(ctx, []object.Object{object.NewFloat(3.9)}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(3), result)

	// Base prefixes are honored
	result, err = Int(ctx, []object.Object{object.NewString("0x1f")}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(31), result)

	result, err = Int(ctx, []object.Object{object.NewString("-12")}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(-12), result)

	_, err = Int(ctx, []object.Object{object.NewString("twelve")}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `int: invalid literal "twelve"`)
}

func TestFloat(t *testing.T) {
	ctx := context.Background()

	result, err := Float(ctx, []object.Object{object.NewInt(2)}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewFloat(2.0), result)

	result, err = Float(ctx, []object.Object{object.NewString("2.5")}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewFloat(2.5), result)

	_, err = Float(ctx, []object.Object{object.NewString("x")}, nil)
	require.Error(t, err)
}

func TestBool(t *testing.T) {
	ctx := context.Background()

	result, err := Bool(ctx, []object.Object{object.NewInt(0)}, nil)
	require.NoError(t, err)
	require.Same(t, object.False, result)

	result, err = Bool(ctx, []object.Object{object.NewString("x")}, nil)
	require.NoError(t, err)
	require.Same(t, object.True, result)
}

func TestSprintf(t *testing.T) {
	ctx := context.Background()

	result, err := Sprintf(ctx, []object.Object{
		object.NewString("%s has %d items"),
		object.NewString("cart"),
		object.NewInt(3),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewString("cart has 3 items"), result)

	_, err = Sprintf(ctx, []object.Object{object.NewInt(1)}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sprintf: format must be a string")
}

func TestError(t *testing.T) {
	ctx := context.Background()

	result, err := Error(ctx, []object.Object{
		object.NewString("no such user: %s"),
		object.NewString("kim"),
	}, nil)
	require.NoError(t, err)

	errObj, ok := result.(*object.Error)
	require.True(t, ok)
	require.Equal(t, "no such user: kim", errObj.Message().Value())
	// error() creates a value; only throw raises it
	require.False(t, errObj.IsRaised())

	_, err = Error(ctx, []object.Object{object.NewInt(1)}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "error: message must be a string")
}

func TestAssert(t *testing.T) {
	ctx := context.Background()

	result, err := Assert(ctx, []object.Object{object.True}, nil)
	require.NoError(t, err)
	require.Same(t, object.Nil, result)

	_, err = Assert(ctx, []object.Object{object.False}, nil)
	require.Error(t, err)
	fault, ok := errz.AsFault(err)
	require.True(t, ok)
	require.Equal(t, "assertion failed", fault.Message)

	_, err = Assert(ctx, []object.Object{object.False, object.NewString("expected a row")}, nil)
	require.Error(t, err)
	fault, ok = errz.AsFault(err)
	require.True(t, ok)
	require.Equal(t, "expected a row", fault.Message)
}

func TestList(t *testing.T) {
	ctx := context.Background()

	result, err := List(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.(*object.List).Size())

	original := object.NewList([]object.Object{object.NewInt(1)})
	result, err = List(ctx, []object.Object{original}, nil)
	require.NoError(t, err)
	copied := result.(*object.List)
	require.True(t, copied.Equals(original))
	copied.Append(object.NewInt(2))
	require.Equal(t, 1, original.Size())

	result, err = List(ctx, []object.Object{object.NewString("ab")}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewList([]object.Object{
		object.NewString("a"), object.NewString("b"),
	}), result)
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	obj := object.NewUserObject(map[string]object.Object{
		"b": object.NewInt(2),
		"a": object.NewInt(1),
		"c": object.NewInt(3),
	})
	result, err := Keys(ctx, []object.Object{obj}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewList([]object.Object{
		object.NewString("a"), object.NewString("b"), object.NewString("c"),
	}), result)

	_, err = Keys(ctx, []object.Object{object.NewInt(1)}, nil)
	require.Error(t, err)
}

func TestFreeze(t *testing.T) {
	ctx := context.Background()
	obj := object.NewUserObject(map[string]object.Object{"a": object.NewInt(1)})

	result, err := Freeze(ctx, []object.Object{obj}, nil)
	require.NoError(t, err)
	require.Same(t, obj, result)
	require.True(t, obj.IsFrozen())
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	result, err := Join(ctx, []object.Object{
		object.NewList([]object.Object{
			object.NewString("a"), object.NewString("b"), object.NewInt(3),
		}),
		object.NewString(", "),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewString("a, b, 3"), result)

	_, err = Join(ctx, []object.Object{object.NewString("x"), object.NewString(",")}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "join: first argument must be a list")
}

func TestBuiltinsTable(t *testing.T) {
	table := Builtins()
	names := GlobalNames()
	require.Len(t, names, len(table))
	for _, name := range names {
		obj, found := table[name]
		require.True(t, found)
		require.Equal(t, object.BUILTIN, obj.Type())
	}
}
