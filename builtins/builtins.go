// Package builtins defines the default set of built-in functions.
//
// Builtins are thin wrappers over host facilities. A builtin signals failure
// by returning a Go error, which the interpreter surfaces as a catchable
// error value. The one exception is assert, which aborts the run.
package builtins

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/perch-lang/perch/errz"
	"github.com/perch-lang/perch/object"
)

func Len(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len: expected 1 argument, got %d", len(args))
	}
	switch arg := args[0].(type) {
	case object.Container:
		return arg.Len(), nil
	default:
		return nil, fmt.Errorf("len: unsupported argument (%s given)", args[0].Type())
	}
}

func Type(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("type: expected 1 argument, got %d", len(args))
	}
	return object.NewString(string(args[0].Type())), nil
}

func String(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("string: expected 0-1 arguments, got %d", len(args))
	}
	if len(args) == 0 {
		return object.NewString(""), nil
	}
	switch arg := args[0].(type) {
	case *object.String:
		return arg, nil
	default:
		if s, ok := arg.(fmt.Stringer); ok {
			return object.NewString(s.String()), nil
		}
		return object.NewString(arg.Inspect()), nil
	}
}

func Int(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("int: expected 1 argument, got %d", len(args))
	}
	switch arg := args[0].(type) {
	case *object.Int:
		return arg, nil
	case *object.Float:
		return object.NewInt(int64(arg.Value())), nil
	case *object.String:
		value, err := strconv.ParseInt(arg.Value(), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("int: invalid literal %q", arg.Value())
		}
		return object.NewInt(value), nil
	default:
		return nil, fmt.Errorf("int: unsupported argument (%s given)", args[0].Type())
	}
}

func Float(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("float: expected 1 argument, got %d", len(args))
	}
	switch arg := args[0].(type) {
	case *object.Float:
		return arg, nil
	case *object.Int:
		return object.NewFloat(float64(arg.Value())), nil
	case *object.String:
		value, err := strconv.ParseFloat(arg.Value(), 64)
		if err != nil {
			return nil, fmt.Errorf("float: invalid literal %q", arg.Value())
		}
		return object.NewFloat(value), nil
	default:
		return nil, fmt.Errorf("float: unsupported argument (%s given)", args[0].Type())
	}
}

func Bool(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bool: expected 1 argument, got %d", len(args))
	}
	return object.NewBool(args[0].IsTruthy()), nil
}

func Print(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		values[i] = object.PrintableValue(arg)
	}
	fmt.Println(values...)
	return object.Nil, nil
}

func Sprintf(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("sprintf: expected at least 1 argument, got %d", len(args))
	}
	format, ok := args[0].(*object.String)
	if !ok {
		return nil, fmt.Errorf("sprintf: format must be a string (%s given)", args[0].Type())
	}
	fmtArgs := make([]interface{}, len(args)-1)
	for i, v := range args[1:] {
		fmtArgs[i] = object.PrintableValue(v)
	}
	return object.NewString(fmt.Sprintf(format.Value(), fmtArgs...)), nil
}

func Printf(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	result, err := Sprintf(ctx, args, kwargs)
	if err != nil {
		return nil, err
	}
	fmt.Print(result.(*object.String).Value())
	return object.Nil, nil
}

// Error creates an error value without throwing it. Use throw to raise it.
func Error(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("error: expected at least 1 argument, got %d", len(args))
	}
	format, ok := args[0].(*object.String)
	if !ok {
		return nil, fmt.Errorf("error: message must be a string (%s given)", args[0].Type())
	}
	return object.Errorf(format.Value(), toInterfaces(args[1:])...).WithRaised(false), nil
}

// Assert aborts the run when its condition is falsy. Assertion failures are
// never catchable.
func Assert(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("assert: expected 1-2 arguments, got %d", len(args))
	}
	if !args[0].IsTruthy() {
		message := "assertion failed"
		if len(args) == 2 {
			if s, ok := args[1].(*object.String); ok {
				message = s.Value()
			} else {
				message = args[1].Inspect()
			}
		}
		return nil, errz.NewFault(errz.ErrRuntime, "%s", message)
	}
	return object.Nil, nil
}

func List(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("list: expected 0-1 arguments, got %d", len(args))
	}
	if len(args) == 0 {
		return object.NewList(nil), nil
	}
	switch arg := args[0].(type) {
	case *object.List:
		items := make([]object.Object, arg.Size())
		copy(items, arg.Items())
		return object.NewList(items), nil
	case *object.String:
		var items []object.Object
		for _, r := range arg.Value() {
			items = append(items, object.NewString(string(r)))
		}
		return object.NewList(items), nil
	default:
		return nil, fmt.Errorf("list: unsupported argument (%s given)", args[0].Type())
	}
}

// Keys returns the field names of an object as a sorted list.
func Keys(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("keys: expected 1 argument, got %d", len(args))
	}
	obj, ok := args[0].(*object.UserObject)
	if !ok {
		return nil, fmt.Errorf("keys: unsupported argument (%s given)", args[0].Type())
	}
	names := obj.FieldNames()
	items := make([]object.Object, len(names))
	for i, name := range names {
		items[i] = object.NewString(name)
	}
	return object.NewList(items), nil
}

// Freeze makes an object's fields read-only and returns it.
func Freeze(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("freeze: expected 1 argument, got %d", len(args))
	}
	obj, ok := args[0].(*object.UserObject)
	if !ok {
		return nil, fmt.Errorf("freeze: unsupported argument (%s given)", args[0].Type())
	}
	obj.Freeze()
	return obj, nil
}

// Join concatenates list items as strings with a separator.
func Join(ctx context.Context, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("join: expected 2 arguments, got %d", len(args))
	}
	list, ok := args[0].(*object.List)
	if !ok {
		return nil, fmt.Errorf("join: first argument must be a list (%s given)", args[0].Type())
	}
	sep, ok := args[1].(*object.String)
	if !ok {
		return nil, fmt.Errorf("join: separator must be a string (%s given)", args[1].Type())
	}
	parts := make([]string, list.Size())
	for i, item := range list.Items() {
		if s, ok := item.(*object.String); ok {
			parts[i] = s.Value()
		} else {
			parts[i] = item.Inspect()
		}
	}
	return object.NewString(strings.Join(parts, sep.Value())), nil
}

func toInterfaces(args []object.Object) []interface{} {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		values[i] = object.PrintableValue(arg)
	}
	return values
}

// Builtins returns the default builtin table.
func Builtins() map[string]object.Object {
	return map[string]object.Object{
		"len":     object.NewBuiltin("len", Len),
		"type":    object.NewBuiltin("type", Type),
		"string":  object.NewBuiltin("string", String),
		"int":     object.NewBuiltin("int", Int),
		"float":   object.NewBuiltin("float", Float),
		"bool":    object.NewBuiltin("bool", Bool),
		"print":   object.NewBuiltin("print", Print),
		"printf":  object.NewBuiltin("printf", Printf),
		"sprintf": object.NewBuiltin("sprintf", Sprintf),
		"error":   object.NewBuiltin("error", Error),
		"assert":  object.NewBuiltin("assert", Assert),
		"list":    object.NewBuiltin("list", List),
		"keys":    object.NewBuiltin("keys", Keys),
		"freeze":  object.NewBuiltin("freeze", Freeze),
		"join":    object.NewBuiltin("join", Join),
	}
}

// GlobalNames returns the names of the default builtins, for the compiler.
func GlobalNames() []string {
	names := make([]string, 0, 16)
	for name := range Builtins() {
		names = append(names, name)
	}
	return names
}
