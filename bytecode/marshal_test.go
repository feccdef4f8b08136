package bytecode

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/perch-lang/perch/op"
)

// buildUnit creates a code block with one nested function, exercising every
// serialized field.
func buildUnit(t *testing.T) *Code {
	t.Helper()
	body := NewCode(CodeParams{
		ID:   "fn-1",
		Name: "add",
		Instructions: []op.Code{
			op.LoadFast, 0,
			op.LoadFast, 1,
			op.BinaryOp, op.Code(op.Add),
			op.ReturnValue,
		},
		Locations: []SourceLocation{
			{Line: 2, Column: 12}, {Line: 2, Column: 12},
			{Line: 2, Column: 16}, {Line: 2, Column: 16},
			{Line: 2, Column: 14}, {Line: 2, Column: 14},
			{Line: 2, Column: 12},
		},
		LocalCount: 2,
		LocalNames: []string{"a", "b"},
	})
	fn := NewFunction(FunctionParams{
		ID:         "fn-1",
		Name:       "add",
		Parameters: []string{"a", "b"},
		RestParam:  "rest",
		KwParam:    "opts",
		Code:       body,
	})
	return NewCode(CodeParams{
		ID:       "unit-1",
		Name:     "main",
		Children: []*Code{body},
		Instructions: []op.Code{
			op.LoadConst, 0,
			op.StoreGlobal, 0,
			op.LoadConst, 1,
			op.Halt,
		},
		Constants: []any{fn, int64(42), 1.5, "greeting", true, nil},
		Names:     []string{"add"},
		Source:    "add = func add(a, b) { a + b }\n42",
		Filename:  "main.perch",
		Locations: []SourceLocation{
			{Line: 1, Column: 7}, {Line: 1, Column: 7},
			{Line: 1, Column: 1}, {Line: 1, Column: 1},
			{Line: 2, Column: 1}, {Line: 2, Column: 1},
			{Line: 2, Column: 1},
		},
		MaxCallArgs: 2,
		ExceptionHandlers: []ExceptionHandler{
			{TryStart: 0, TryEnd: 4, CatchStart: 5},
			{TryStart: 0, TryEnd: 5, FinallyStart: 6},
		},
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	original := buildUnit(t)
	data, err := Marshal(original)
	require.NoError(t, err)

	code, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, "unit-1", code.ID())
	require.Equal(t, "main", code.Name())
	require.Equal(t, "main.perch", code.Filename())
	require.Equal(t, original.Source(), code.Source())
	require.Equal(t, 2, code.MaxCallArgs())

	require.Equal(t, original.InstructionCount(), code.InstructionCount())
	for i := 0; i < code.InstructionCount(); i++ {
		require.Equal(t, original.InstructionAt(i), code.InstructionAt(i))
	}
	for i := 0; i < code.InstructionCount(); i++ {
		require.Equal(t, original.LocationAt(i), code.LocationAt(i))
	}
	require.Equal(t, 1, code.NameCount())
	require.Equal(t, "add", code.NameAt(0))

	require.Equal(t, 6, code.ConstantCount())
	require.Equal(t, int64(42), code.ConstantAt(1))
	require.Equal(t, 1.5, code.ConstantAt(2))
	require.Equal(t, "greeting", code.ConstantAt(3))
	require.Equal(t, true, code.ConstantAt(4))
	require.Nil(t, code.ConstantAt(5))

	fn, ok := code.ConstantAt(0).(*Function)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name())
	require.Equal(t, 2, fn.ParameterCount())
	require.Equal(t, "a", fn.Parameter(0))
	require.Equal(t, "b", fn.Parameter(1))
	require.Equal(t, "rest", fn.RestParam())
	require.Equal(t, "opts", fn.KwParam())

	// The function constant resolves to the decoded child block
	require.Equal(t, 1, code.ChildCount())
	require.Same(t, code.ChildAt(0), fn.Code())

	body := fn.Code()
	require.Equal(t, 2, body.LocalCount())
	require.Equal(t, "a", body.LocalNameAt(0))
	require.Equal(t, "b", body.LocalNameAt(1))
	require.Equal(t, 7, body.InstructionCount())
}

func TestMarshalRoundTripHandlers(t *testing.T) {
	data, err := Marshal(buildUnit(t))
	require.NoError(t, err)
	code, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, 2, code.ExceptionHandlerCount())
	catch := code.ExceptionHandlerAt(0)
	require.Equal(t, 0, catch.TryStart)
	require.Equal(t, 4, catch.TryEnd)
	require.True(t, catch.HasCatch())
	require.False(t, catch.HasFinally())

	finally := code.ExceptionHandlerAt(1)
	require.False(t, finally.HasCatch())
	require.True(t, finally.HasFinally())
	require.Equal(t, 6, finally.FinallyStart)
}

func TestUnmarshalRejectsWrongVersion(t *testing.T) {
	data, err := cbor.Marshal(envelope{
		Version: FormatVersion + 1,
		Root:    codePayload{ID: "unit-1"},
	})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported bytecode version")
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not bytecode at all"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid bytecode payload")
}

func TestUnmarshalRejectsBadFunctionIndex(t *testing.T) {
	data, err := cbor.Marshal(envelope{
		Version: FormatVersion,
		Root: codePayload{
			ID: "unit-1",
			Constants: []constPayload{
				{Kind: constFunc, Func: &funcPayload{Name: "ghost", CodeIndex: 3}},
			},
		},
	})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), `function "ghost" references child code`)
}

func TestMarshalRejectsForeignFunctionBody(t *testing.T) {
	orphan := NewCode(CodeParams{ID: "orphan"})
	fn := NewFunction(FunctionParams{ID: "fn-1", Name: "f", Code: orphan})
	code := NewCode(CodeParams{
		ID:        "unit-1",
		Constants: []any{fn},
	})
	_, err := Marshal(code)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a child of its owning code")
}
