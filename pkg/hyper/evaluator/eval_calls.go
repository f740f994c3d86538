package evaluator

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Builtin is a function provided by the expression language itself.
type Builtin struct {
	Name  string
	Arity string // "0", "1", "0-1", "1+", etc.
	Fn    func(env *Environment, args []any) (any, error)
}

func (b *Builtin) String() string { return "builtin " + b.Name }

func evalCall(node *ast.CallExpression, env *Environment) (any, error) {
	args := make([]any, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	// Method call: receiver.name(args)
	if m, ok := node.Function.(*ast.MemberExpression); ok {
		recv, err := Eval(m.Object, env)
		if err != nil {
			return nil, err
		}
		return callMethod(m.Token, env, recv, m.Property, args)
	}

	fn, err := Eval(node.Function, env)
	if err != nil {
		return nil, err
	}
	return Call(env, node.Token, fn, args)
}

// Call invokes fn with already evaluated arguments. fn may be a *Builtin or
// any Go function value.
func Call(env *Environment, tok lexer.Token, fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case *Builtin:
		if err := checkArity(tok, f.Name, f.Arity, len(args)); err != nil {
			return nil, err
		}
		out, err := f.Fn(env, args)
		if he, ok := err.(*herrors.HyperError); ok {
			return nil, at(tok, he)
		}
		return out, err
	case nil:
		return nil, at(tok, herrors.New("TYPE-0002", map[string]any{"Type": "nil"}))
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, at(tok, herrors.New("TYPE-0002", map[string]any{"Type": object.TypeName(fn)}))
	}
	return callReflectAt(tok, rv, env.Ctx, args)
}

// callMethod dispatches receiver.name(args): the built-in registry for the
// receiver's kind wins, then Go methods, then callable fields and keys.
func callMethod(tok lexer.Token, env *Environment, recv any, name string, args []any) (any, error) {
	registry := registryFor(recv)
	if entry, ok := registry.Get(name); ok {
		if err := checkArity(tok, name, entry.Arity, len(args)); err != nil {
			return nil, err
		}
		out, err := entry.Fn(recv, args, env)
		if he, ok := err.(*herrors.HyperError); ok {
			return nil, at(tok, he)
		}
		return out, err
	}

	if recv != nil {
		if _, isDict := recv.(*object.Dict); !isDict {
			if m := findMethod(reflect.ValueOf(recv), name); m.IsValid() {
				return callReflectAt(tok, m, env.Ctx, args)
			}
		}
	}

	// A dict entry or struct field holding a function.
	if d, ok := recv.(*object.Dict); ok {
		if fn, ok := d.Get(name); ok && fn != nil {
			return Call(env, tok, fn, args)
		}
		return nil, at(tok, herrors.NewUndefinedMethod(name, "dict", registry.Names()))
	}
	if recv != nil {
		if fn, err := member(tok, recv, name); err == nil && fn != nil {
			return Call(env, tok, fn, args)
		}
	}
	return nil, at(tok, herrors.NewUndefinedMethod(name, object.TypeName(recv), registry.Names()))
}

func callReflectAt(tok lexer.Token, fn reflect.Value, ctx context.Context, args []any) (any, error) {
	out, err := callReflect(fn, ctx, args)
	if he, ok := err.(*herrors.HyperError); ok && he.Class == herrors.ClassType {
		return nil, at(tok, he)
	}
	return out, err
}

// callReflect calls a Go function. A leading context.Context parameter
// receives ctx; a trailing error result is returned as the call's error.
func callReflect(fn reflect.Value, ctx context.Context, args []any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ft := fn.Type()
	var in []reflect.Value
	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		first = 1
	}

	declared := ft.NumIn() - first
	name := funcName(fn)
	if ft.IsVariadic() {
		if len(args) < declared-1 {
			return nil, arityError(name, fmt.Sprintf("at least %d", declared-1), len(args))
		}
	} else if len(args) != declared {
		return nil, arityError(name, fmt.Sprint(declared), len(args))
	}

	for i, a := range args {
		var want reflect.Type
		if ft.IsVariadic() && i >= declared-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else {
			want = ft.In(first + i)
		}
		v, err := convertArg(a, want)
		if err != nil {
			return nil, herrors.New("TYPE-0005", map[string]any{"Func": name, "Problem": err.Error()})
		}
		in = append(in, v)
	}

	results := fn.Call(in)
	if n := len(results); n > 0 && ft.Out(n-1) == errorType {
		if errVal := results[n-1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
		results = results[:n-1]
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return object.Normalize(results[0].Interface()), nil
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = object.Normalize(r.Interface())
	}
	return out, nil
}

// convertArg adapts a template value to a Go parameter type.
func convertArg(v any, want reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	switch want.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i, ok := object.AsInt(v); ok {
			return reflect.ValueOf(i).Convert(want), nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := object.AsFloat(v); ok {
			return reflect.ValueOf(f).Convert(want), nil
		}
	case reflect.String:
		if s, ok := object.AsString(v); ok {
			return reflect.ValueOf(s).Convert(want), nil
		}
	case reflect.Map:
		if d, ok := v.(*object.Dict); ok && want.Key().Kind() == reflect.String {
			m := reflect.MakeMapWithSize(want, d.Len())
			var convErr error
			d.Range(func(k string, val any) bool {
				ev, err := convertArg(val, want.Elem())
				if err != nil {
					convErr = err
					return false
				}
				m.SetMapIndex(reflect.ValueOf(k).Convert(want.Key()), ev)
				return true
			})
			if convErr != nil {
				return reflect.Value{}, convErr
			}
			return m, nil
		}
	case reflect.Slice:
		if items, ok := v.([]any); ok {
			s := reflect.MakeSlice(want, 0, len(items))
			for _, item := range items {
				ev, err := convertArg(item, want.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				s = reflect.Append(s, ev)
			}
			return s, nil
		}
	}
	if rv.Type().ConvertibleTo(want) && rv.Kind() == want.Kind() {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", object.TypeName(v), want)
}

func funcName(fn reflect.Value) string {
	return fn.Type().String()
}

func arityError(name, expected string, got int) *herrors.HyperError {
	return herrors.New("TYPE-0004", map[string]any{"Func": name, "Expected": expected, "Got": got})
}
