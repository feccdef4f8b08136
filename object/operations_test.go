package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perch-lang/perch/op"
)

func TestIntBinaryOps(t *testing.T) {
	type testCase struct {
		op       op.BinaryOpType
		left     int64
		right    int64
		expected int64
	}
	testCases := []testCase{
		{op.Add, 7, 5, 12},
		{op.Subtract, 7, 5, 2},
		{op.Multiply, 7, 5, 35},
		{op.Divide, 7, 2, 3},
		{op.Modulo, 7, 5, 2},
		{op.Power, 2, 10, 1024},
		{op.LShift, 1, 4, 16},
		{op.RShift, 16, 2, 4},
		{op.BitwiseAnd, 6, 3, 2},
		{op.BitwiseOr, 6, 3, 7},
		{op.Xor, 6, 3, 5},
	}
	for _, tc := range testCases {
		t.Run(tc.op.String(), func(t *testing.T) {
			result, err := BinaryOp(tc.op, NewInt(tc.left), NewInt(tc.right))
			require.NoError(t, err)
			require.Equal(t, NewInt(tc.expected), result)
		})
	}
}

func TestIntDivisionByZero(t *testing.T) {
	_, err := BinaryOp(op.Divide, NewInt(1), NewInt(0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")

	_, err = BinaryOp(op.Modulo, NewInt(1), NewInt(0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")
}

func TestMixedIntFloatArithmetic(t *testing.T) {
	result, err := BinaryOp(op.Add, NewInt(1), NewFloat(2.5))
	require.NoError(t, err)
	require.Equal(t, NewFloat(3.5), result)

	result, err = BinaryOp(op.Multiply, NewFloat(2.5), NewInt(4))
	require.NoError(t, err)
	require.Equal(t, NewFloat(10.0), result)

	// Division on floats does not trap at zero
	result, err = BinaryOp(op.Divide, NewFloat(1.0), NewFloat(0.0))
	require.NoError(t, err)
	require.True(t, result.(*Float).Value() > 0)
}

func TestNegativeIntPower(t *testing.T) {
	result, err := BinaryOp(op.Power, NewInt(2), NewInt(-2))
	require.NoError(t, err)
	require.Equal(t, NewFloat(0.25), result)
}

func TestStringOperations(t *testing.T) {
	result, err := BinaryOp(op.Add, NewString("ab"), NewString("cd"))
	require.NoError(t, err)
	require.Equal(t, NewString("abcd"), result)

	result, err = BinaryOp(op.Multiply, NewString("ab"), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, NewString("ababab"), result)

	_, err = BinaryOp(op.Multiply, NewString("ab"), NewInt(-1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "negative string repeat count")

	_, err = BinaryOp(op.Add, NewString("ab"), NewInt(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unable to concatenate string and int")
}

func TestListConcatenation(t *testing.T) {
	a := NewList([]Object{NewInt(1)})
	b := NewList([]Object{NewInt(2), NewInt(3)})
	result, err := BinaryOp(op.Add, a, b)
	require.NoError(t, err)
	require.Equal(t, NewList([]Object{NewInt(1), NewInt(2), NewInt(3)}), result)

	// The operands are unchanged
	require.Equal(t, 1, a.Size())
	require.Equal(t, 2, b.Size())
}

func TestTypeMismatchIsTypeError(t *testing.T) {
	_, err := BinaryOp(op.Add, NewInt(1), NewString("x"))
	require.Error(t, err)
	errObj, ok := err.(*Error)
	require.True(t, ok)
	require.NotNil(t, errObj.Structured())
	require.Equal(t, ErrType, errObj.Structured().Kind)
}

func TestLogicalOperatorsReturnOperand(t *testing.T) {
	result, err := BinaryOp(op.And, False, NewInt(5))
	require.NoError(t, err)
	require.Equal(t, False, result)

	result, err = BinaryOp(op.And, True, NewInt(5))
	require.NoError(t, err)
	require.Equal(t, NewInt(5), result)

	result, err = BinaryOp(op.Or, NewString(""), NewString("fallback"))
	require.NoError(t, err)
	require.Equal(t, NewString("fallback"), result)

	result, err = BinaryOp(op.Or, NewInt(3), NewInt(5))
	require.NoError(t, err)
	require.Equal(t, NewInt(3), result)
}

func TestCompare(t *testing.T) {
	type testCase struct {
		op       op.CompareOpType
		left     Object
		right    Object
		expected *Bool
	}
	testCases := []testCase{
		{op.LessThan, NewInt(1), NewInt(2), True},
		{op.LessThan, NewInt(2), NewInt(2), False},
		{op.LessThanOrEqual, NewInt(2), NewInt(2), True},
		{op.GreaterThan, NewFloat(2.5), NewInt(2), True},
		{op.GreaterThanOrEqual, NewInt(3), NewFloat(3.0), True},
		{op.Equal, NewInt(2), NewFloat(2.0), True},
		{op.NotEqual, NewInt(2), NewInt(3), True},
		{op.Equal, NewString("a"), NewString("a"), True},
		{op.NotEqual, NewString("a"), NewInt(1), True},
		{op.LessThan, NewString("a"), NewString("b"), True},
	}
	for _, tc := range testCases {
		result, err := Compare(tc.op, tc.left, tc.right)
		require.NoError(t, err)
		require.Equal(t, tc.expected, result,
			"%s %s %s", tc.left.Inspect(), tc.op, tc.right.Inspect())
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	_, err := Compare(op.LessThan, NewInt(1), NewString("a"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unable to compare int and string")

	// Equality between mismatched types is fine, just false
	result, err := Compare(op.Equal, NewInt(1), NewString("a"))
	require.NoError(t, err)
	require.Equal(t, False, result)
}

func TestCompareNonComparable(t *testing.T) {
	_, err := Compare(op.LessThan, NewList(nil), NewList(nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected a comparable object")
}

func TestTruthiness(t *testing.T) {
	type testCase struct {
		obj      Object
		expected bool
	}
	testCases := []testCase{
		{Nil, false},
		{True, true},
		{False, false},
		{NewInt(0), false},
		{NewInt(-1), true},
		{NewFloat(0.0), false},
		{NewFloat(0.1), true},
		{NewString(""), false},
		{NewString("x"), true},
		{NewList(nil), false},
		{NewList([]Object{Nil}), true},
		{NewUserObject(nil), false},
		{NewUserObject(map[string]Object{"a": Nil}), true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, tc.obj.IsTruthy(), tc.obj.Inspect())
	}
}

func TestBoolSingletons(t *testing.T) {
	require.Same(t, True, NewBool(true))
	require.Same(t, False, NewBool(false))
}

func TestEquality(t *testing.T) {
	require.True(t, NewInt(2).Equals(NewFloat(2.0)))
	require.True(t, NewFloat(2.0).Equals(NewInt(2)))
	require.False(t, NewInt(2).Equals(NewString("2")))
	require.True(t, Nil.Equals(Nil))
	require.False(t, Nil.Equals(False))
	require.True(t, NewList([]Object{NewInt(1)}).Equals(NewList([]Object{NewInt(1)})))
	require.False(t, NewList([]Object{NewInt(1)}).Equals(NewList([]Object{NewInt(2)})))
	require.True(t, NewUserObject(map[string]Object{"a": NewInt(1)}).
		Equals(NewUserObject(map[string]Object{"a": NewInt(1)})))
}

func TestInspect(t *testing.T) {
	require.Equal(t, "42", NewInt(42).Inspect())
	require.Equal(t, "1.5", NewFloat(1.5).Inspect())
	require.Equal(t, `"hi"`, NewString("hi").Inspect())
	require.Equal(t, "nil", Nil.Inspect())
	require.Equal(t, "true", True.Inspect())
	require.Equal(t, "[1, 2]", NewList([]Object{NewInt(1), NewInt(2)}).Inspect())
	require.Equal(t, `{"a": 1}`, NewUserObject(map[string]Object{"a": NewInt(1)}).Inspect())
}
