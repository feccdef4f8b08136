package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perch-lang/perch/builtins"
	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/compiler"
	"github.com/perch-lang/perch/ir"
	"github.com/perch-lang/perch/object"
	"github.com/perch-lang/perch/syntax"
)

func compile(t *testing.T, program *syntax.Node) *bytecode.Code {
	t.Helper()
	tree, err := ir.Build(program)
	require.NoError(t, err)
	main, err := compiler.Compile(tree,
		compiler.WithGlobalNames(builtins.GlobalNames()))
	require.NoError(t, err)
	return main
}

func run(t *testing.T, program *syntax.Node) (object.Object, error) {
	t.Helper()
	return Run(context.Background(), compile(t, program),
		WithGlobals(builtins.Builtins()))
}

func TestArithmetic(t *testing.T) {
	// x = 1 + 2 * 3
	result, err := run(t, syntax.Program(
		syntax.Var("x", syntax.Binary("+",
			syntax.Int(1),
			syntax.Binary("*", syntax.Int(2), syntax.Int(3)))),
		syntax.Ident("x"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(7), result)
}

func TestArithmeticOperators(t *testing.T) {
	type testCase struct {
		op   string
		a, b int64
		want object.Object
	}
	testCases := []testCase{
		{"+", 7, 3, object.NewInt(10)},
		{"-", 7, 3, object.NewInt(4)},
		{"*", 7, 3, object.NewInt(21)},
		{"/", 7, 3, object.NewInt(2)},
		{"%", 7, 3, object.NewInt(1)},
		{"**", 2, 10, object.NewInt(1024)},
		{"<<", 1, 4, object.NewInt(16)},
		{">>", 16, 2, object.NewInt(4)},
		{"&", 6, 3, object.NewInt(2)},
		{"|", 6, 3, object.NewInt(7)},
		{"^", 6, 3, object.NewInt(5)},
	}
	for _, tc := range testCases {
		result, err := run(t, syntax.Program(
			syntax.Binary(tc.op, syntax.Int(tc.a), syntax.Int(tc.b))))
		require.NoError(t, err, tc.op)
		require.Equal(t, tc.want, result, tc.op)
	}
}

func TestComparisonOperators(t *testing.T) {
	type testCase struct {
		op   string
		a, b int64
		want object.Object
	}
	testCases := []testCase{
		{"<", 1, 2, object.True},
		{"<=", 2, 2, object.True},
		{">", 1, 2, object.False},
		{">=", 1, 2, object.False},
		{"==", 2, 2, object.True},
		{"!=", 2, 2, object.False},
	}
	for _, tc := range testCases {
		result, err := run(t, syntax.Program(
			syntax.Binary(tc.op, syntax.Int(tc.a), syntax.Int(tc.b))))
		require.NoError(t, err, tc.op)
		require.Equal(t, tc.want, result, tc.op)
	}
}

func TestStringConcat(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Binary("+", syntax.Str("foo"), syntax.Str("bar"))))
	require.NoError(t, err)
	require.Equal(t, object.NewString("foobar"), result)
}

func TestUnaryOperators(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Unary("-", syntax.Int(3))))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(-3), result)

	result, err = run(t, syntax.Program(
		syntax.Unary("!", syntax.Bool(false))))
	require.NoError(t, err)
	require.Equal(t, object.True, result)
}

func TestShortCircuitAnd(t *testing.T) {
	// A falsy left side is the result and the right side never evaluates
	main := compile(t, syntax.Program(
		syntax.Var("n", syntax.Int(0)),
		syntax.Var("bump", syntax.Func("", nil, syntax.Block(
			syntax.Assign(syntax.Ident("n"),
				syntax.Binary("+", syntax.Ident("n"), syntax.Int(1))),
			syntax.Return(syntax.Bool(true)),
		))),
		syntax.Binary("&&", syntax.Bool(false), syntax.Call(syntax.Ident("bump"))),
	))
	machine := New(main, WithGlobals(builtins.Builtins()))
	require.NoError(t, machine.Run(context.Background()))

	tos, ok := machine.TOS()
	require.True(t, ok)
	require.Equal(t, object.False, tos)

	n, err := machine.Get("n")
	require.NoError(t, err)
	require.Equal(t, object.NewInt(0), n)
}

func TestShortCircuitOr(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Binary("||", syntax.Int(7), syntax.Bool(true))))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(7), result)

	result, err = run(t, syntax.Program(
		syntax.Binary("||", syntax.Bool(false), syntax.Int(7))))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(7), result)
}

func TestConditional(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("x", syntax.Int(20)),
		syntax.If(syntax.Binary(">", syntax.Ident("x"), syntax.Int(10)),
			syntax.Block(syntax.Assign(syntax.Ident("x"), syntax.Int(99))),
			nil),
		syntax.Ident("x"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(99), result)
}

func TestConditionalValue(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.If(syntax.Bool(false),
			syntax.Block(syntax.Int(1)),
			syntax.Block(syntax.Int(2))),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(2), result)
}

func TestConditionalWithoutElse(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.If(syntax.Bool(false), syntax.Block(syntax.Int(1)), nil)))
	require.NoError(t, err)
	require.Equal(t, object.Nil, result)
}

func TestWhileLoop(t *testing.T) {
	// Sum the integers 1 through 5
	result, err := run(t, syntax.Program(
		syntax.Var("sum", syntax.Int(0)),
		syntax.Var("i", syntax.Int(0)),
		syntax.While(syntax.Binary("<", syntax.Ident("i"), syntax.Int(5)),
			syntax.Block(
				syntax.Assign(syntax.Ident("i"),
					syntax.Binary("+", syntax.Ident("i"), syntax.Int(1))),
				syntax.Assign(syntax.Ident("sum"),
					syntax.Binary("+", syntax.Ident("sum"), syntax.Ident("i"))),
			)),
		syntax.Ident("sum"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(15), result)
}

func TestLoopWithBreak(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("y", syntax.Int(0)),
		syntax.Loop(syntax.Block(
			syntax.Assign(syntax.Ident("y"),
				syntax.Binary("+", syntax.Ident("y"), syntax.Int(1))),
			syntax.If(syntax.Binary(">", syntax.Ident("y"), syntax.Int(10)),
				syntax.Block(syntax.Break()), nil),
		)),
		syntax.Ident("y"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(11), result)
}

func TestWhileWithContinue(t *testing.T) {
	// Sum only the even integers below 10
	result, err := run(t, syntax.Program(
		syntax.Var("sum", syntax.Int(0)),
		syntax.Var("i", syntax.Int(0)),
		syntax.While(syntax.Binary("<", syntax.Ident("i"), syntax.Int(10)),
			syntax.Block(
				syntax.Assign(syntax.Ident("i"),
					syntax.Binary("+", syntax.Ident("i"), syntax.Int(1))),
				syntax.If(syntax.Binary("==",
					syntax.Binary("%", syntax.Ident("i"), syntax.Int(2)),
					syntax.Int(1)),
					syntax.Block(syntax.Continue()), nil),
				syntax.Assign(syntax.Ident("sum"),
					syntax.Binary("+", syntax.Ident("sum"), syntax.Ident("i"))),
			)),
		syntax.Ident("sum"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(30), result)
}

func TestListLiteralAndIndex(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("arr", syntax.List(syntax.Int(10), syntax.Int(20), syntax.Int(30))),
		syntax.Index(syntax.Ident("arr"), syntax.Int(1)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(20), result)
}

func TestListNegativeIndex(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("arr", syntax.List(syntax.Int(10), syntax.Int(20), syntax.Int(30))),
		syntax.Index(syntax.Ident("arr"), syntax.Int(-1)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(30), result)
}

func TestListIndexAssignment(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("arr", syntax.List(syntax.Int(1), syntax.Int(2))),
		syntax.Assign(
			syntax.Index(syntax.Ident("arr"), syntax.Int(0)),
			syntax.Int(99)),
		syntax.Index(syntax.Ident("arr"), syntax.Int(0)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(99), result)
}

func TestObjectLiteralFieldAccess(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("m", syntax.Map(
			syntax.Entry(syntax.Str("a"), syntax.Int(1)),
		)),
		syntax.Attr(syntax.Ident("m"), "a"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(1), result)
}

func TestObjectFieldAssignment(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("m", syntax.Map()),
		syntax.Assign(syntax.Attr(syntax.Ident("m"), "b"), syntax.Int(42)),
		syntax.Attr(syntax.Ident("m"), "b"),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}

func TestObjectSubscript(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("m", syntax.Map(
			syntax.Entry(syntax.Str("key"), syntax.Str("value")),
		)),
		syntax.Index(syntax.Ident("m"), syntax.Str("key")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewString("value"), result)
}

func TestFunctionCall(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("add", syntax.Func("", []syntax.Param{syntax.P("a"), syntax.P("b")},
			syntax.Block(syntax.Return(
				syntax.Binary("+", syntax.Ident("a"), syntax.Ident("b")))))),
		syntax.Call(syntax.Ident("add"), syntax.Int(11), syntax.Int(12)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(23), result)
}

func TestFunctionImplicitReturn(t *testing.T) {
	// The last expression of the body is the return value
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("", nil, syntax.Block(syntax.Int(42)))),
		syntax.Call(syntax.Ident("f")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}

func TestRecursion(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Func("fact", []syntax.Param{syntax.P("n")}, syntax.Block(
			syntax.If(syntax.Binary("<", syntax.Ident("n"), syntax.Int(2)),
				syntax.Block(syntax.Return(syntax.Int(1))), nil),
			syntax.Return(syntax.Binary("*",
				syntax.Ident("n"),
				syntax.Call(syntax.Ident("fact"),
					syntax.Binary("-", syntax.Ident("n"), syntax.Int(1))))),
		)),
		syntax.Call(syntax.Ident("fact"), syntax.Int(5)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(120), result)
}

func TestClosureCapture(t *testing.T) {
	// A closure created in a call sees later mutations of the captured
	// variable made by the enclosing function.
	result, err := run(t, syntax.Program(
		syntax.Var("outer", syntax.Func("", nil, syntax.Block(
			syntax.Var("x", syntax.Int(1)),
			syntax.Var("get", syntax.Func("", nil, syntax.Block(
				syntax.Return(syntax.Ident("x"))))),
			syntax.Assign(syntax.Ident("x"), syntax.Int(42)),
			syntax.Return(syntax.Call(syntax.Ident("get"))),
		))),
		syntax.Call(syntax.Ident("outer")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}

func TestClosureSharedCell(t *testing.T) {
	// Two closures over the same variable share one cell: increments made
	// through one are visible through the other, after the enclosing call
	// has returned.
	result, err := run(t, syntax.Program(
		syntax.Var("counter", syntax.Func("", nil, syntax.Block(
			syntax.Var("count", syntax.Int(0)),
			syntax.Func("incr", nil, syntax.Block(
				syntax.Assign(syntax.Ident("count"),
					syntax.Binary("+", syntax.Ident("count"), syntax.Int(1))),
				syntax.Return(syntax.Ident("count")),
			)),
			syntax.Func("get", nil, syntax.Block(
				syntax.Return(syntax.Ident("count")))),
			syntax.Return(syntax.List(syntax.Ident("incr"), syntax.Ident("get"))),
		))),
		syntax.Var("fns", syntax.Call(syntax.Ident("counter"))),
		syntax.Var("incr", syntax.Index(syntax.Ident("fns"), syntax.Int(0))),
		syntax.Var("get", syntax.Index(syntax.Ident("fns"), syntax.Int(1))),
		syntax.Call(syntax.Ident("incr")),
		syntax.Call(syntax.Ident("incr")),
		syntax.Call(syntax.Ident("get")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(2), result)
}

func TestClosureCaptureLargeFrame(t *testing.T) {
	// A function with more locals than fit in a frame's inline storage
	// keeps its captures intact across reactivations of the frame slot:
	// each call's closure sees that call's own variables.
	result, err := run(t, syntax.Program(
		syntax.Var("make", syntax.Func("", []syntax.Param{syntax.P("x")},
			syntax.Block(
				syntax.Var("v1", syntax.Int(1)),
				syntax.Var("v2", syntax.Int(2)),
				syntax.Var("v3", syntax.Int(3)),
				syntax.Var("v4", syntax.Int(4)),
				syntax.Var("v5", syntax.Int(5)),
				syntax.Var("v6", syntax.Int(6)),
				syntax.Var("v7", syntax.Int(7)),
				syntax.Var("v8", syntax.Int(8)),
				syntax.Return(syntax.Func("", nil, syntax.Block(
					syntax.Return(syntax.Ident("x"))))),
			))),
		syntax.Var("first", syntax.Call(syntax.Ident("make"), syntax.Int(1))),
		syntax.Var("second", syntax.Call(syntax.Ident("make"), syntax.Int(2))),
		syntax.Binary("+",
			syntax.Binary("*", syntax.Call(syntax.Ident("first")), syntax.Int(10)),
			syntax.Call(syntax.Ident("second"))),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(12), result)
}

func TestClosureGrandparentCapture(t *testing.T) {
	// The middle closure escapes its defining call before it runs, so the
	// grandparent's variable has to travel with the closure rather than be
	// looked up on the frame stack.
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("", []syntax.Param{syntax.P("x")},
			syntax.Block(
				syntax.Return(syntax.Func("", nil, syntax.Block(
					syntax.Return(syntax.Func("", nil, syntax.Block(
						syntax.Return(syntax.Ident("x")))))))),
			))),
		syntax.Var("mid", syntax.Call(syntax.Ident("f"), syntax.Int(42))),
		syntax.Var("inner", syntax.Call(syntax.Ident("mid"))),
		syntax.Call(syntax.Ident("inner")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}

func TestClosureGrandparentMutation(t *testing.T) {
	// Writes through a capture two function boundaries deep land in the
	// same cell the defining function reads.
	result, err := run(t, syntax.Program(
		syntax.Var("outer", syntax.Func("", nil, syntax.Block(
			syntax.Var("n", syntax.Int(1)),
			syntax.Var("mk", syntax.Func("", nil, syntax.Block(
				syntax.Return(syntax.Func("", nil, syntax.Block(
					syntax.Assign(syntax.Ident("n"), syntax.Int(7)))))))),
			syntax.Var("set", syntax.Call(syntax.Ident("mk"))),
			syntax.Call(syntax.Ident("set")),
			syntax.Return(syntax.Ident("n")),
		))),
		syntax.Call(syntax.Ident("outer")),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(7), result)
}

func TestVarargs(t *testing.T) {
	// Excess positional arguments collect into the trailing rest parameter
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.P("b"), syntax.RestP("rest")},
			syntax.Block(syntax.Return(syntax.Ident("rest"))))),
		syntax.Call(syntax.Ident("f"),
			syntax.Int(1), syntax.Int(2), syntax.Int(3), syntax.Int(4), syntax.Int(5)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewList([]object.Object{
		object.NewInt(3), object.NewInt(4), object.NewInt(5),
	}), result)
}

func TestVarargsEmpty(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.RestP("rest")},
			syntax.Block(syntax.Return(syntax.Ident("rest"))))),
		syntax.Call(syntax.Ident("f"), syntax.Int(1)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewList([]object.Object{}), result)
}

func TestSpreadCall(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("add", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.P("b"), syntax.P("c")},
			syntax.Block(syntax.Return(
				syntax.Binary("+",
					syntax.Binary("+", syntax.Ident("a"), syntax.Ident("b")),
					syntax.Ident("c")))))),
		syntax.Var("args", syntax.List(syntax.Int(2), syntax.Int(3))),
		syntax.Call(syntax.Ident("add"),
			syntax.Int(1), syntax.Spread(syntax.Ident("args"))),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(6), result)
}

func TestSpreadIntoRestParam(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.RestP("rest")},
			syntax.Block(syntax.Return(syntax.Ident("rest"))))),
		syntax.Call(syntax.Ident("f"),
			syntax.Int(1), syntax.Spread(syntax.List(syntax.Int(2), syntax.Int(3)))),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewList([]object.Object{
		object.NewInt(2), object.NewInt(3),
	}), result)
}

func TestKeywordArguments(t *testing.T) {
	// Named arguments collect into the keyword parameter
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.KwP("opts")},
			syntax.Block(syntax.Return(
				syntax.Attr(syntax.Ident("opts"), "x"))))),
		syntax.Kw(syntax.Call(syntax.Ident("f"), syntax.Int(1)), "x", syntax.Int(7)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(7), result)
}

func TestKeywordArgumentsNeverFillFixedParams(t *testing.T) {
	// A named argument matching a fixed parameter name still goes to the
	// keyword slot, never to the fixed slot.
	result, err := run(t, syntax.Program(
		syntax.Var("f", syntax.Func("",
			[]syntax.Param{syntax.P("a"), syntax.KwP("opts")},
			syntax.Block(syntax.Return(syntax.Ident("a"))))),
		syntax.Kw(syntax.Call(syntax.Ident("f"), syntax.Int(1)), "a", syntax.Int(99)),
	))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(1), result)
}

func TestBuiltinCalls(t *testing.T) {
	result, err := run(t, syntax.Program(
		syntax.Call(syntax.Ident("len"), syntax.Str("hello"))))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(5), result)

	result, err = run(t, syntax.Program(
		syntax.Call(syntax.Ident("sprintf"),
			syntax.Str("%d-%s"), syntax.Int(1), syntax.Str("x"))))
	require.NoError(t, err)
	require.Equal(t, object.NewString("1-x"), result)

	result, err = run(t, syntax.Program(
		syntax.Call(syntax.Ident("type"), syntax.Int(1))))
	require.NoError(t, err)
	require.Equal(t, object.NewString("int"), result)
}

func TestEmptyProgram(t *testing.T) {
	result, err := run(t, syntax.Program())
	require.NoError(t, err)
	require.Equal(t, object.Nil, result)
}

func TestStackBalance(t *testing.T) {
	// A long statement sequence leaves exactly one value on the stack
	stmts := make([]*syntax.Node, 0, 101)
	for i := 0; i < 100; i++ {
		stmts = append(stmts, syntax.Binary("+",
			syntax.Int(int64(i)), syntax.Int(1)))
	}
	stmts = append(stmts, syntax.Int(42))
	main := compile(t, syntax.Program(stmts...))

	machine := New(main, WithGlobals(builtins.Builtins()))
	require.NoError(t, machine.Run(context.Background()))
	require.Equal(t, 0, machine.sp)

	tos, ok := machine.TOS()
	require.True(t, ok)
	require.Equal(t, object.NewInt(42), tos)
}

func TestCallMethod(t *testing.T) {
	main := compile(t, syntax.Program(
		syntax.Func("double", []syntax.Param{syntax.P("x")}, syntax.Block(
			syntax.Return(syntax.Binary("*", syntax.Ident("x"), syntax.Int(2))))),
	))
	machine := New(main, WithGlobals(builtins.Builtins()))
	require.NoError(t, machine.Run(context.Background()))

	obj, err := machine.Get("double")
	require.NoError(t, err)
	fn, ok := obj.(*object.Closure)
	require.True(t, ok)

	result, err := machine.Call(context.Background(), fn,
		[]object.Object{object.NewInt(21)})
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	main := compile(t, syntax.Program(
		syntax.Loop(syntax.Block(syntax.Int(1)))))
	machine := New(main, WithGlobals(builtins.Builtins()),
		WithContextCheckInterval(10))
	err := machine.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGlobalsOption(t *testing.T) {
	tree, err := ir.Build(syntax.Program(
		syntax.Binary("+", syntax.Ident("base"), syntax.Int(1))))
	require.NoError(t, err)
	main, err := compiler.Compile(tree,
		compiler.WithGlobalNames([]string{"base"}))
	require.NoError(t, err)

	result, err := Run(context.Background(), main,
		WithGlobals(map[string]object.Object{"base": object.NewInt(41)}))
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
}
