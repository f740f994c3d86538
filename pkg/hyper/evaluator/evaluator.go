// Package evaluator evaluates template expressions and header statements.
//
// Values are plain Go values as described in package object. Errors raised
// by the evaluator are *errors.HyperError; errors returned by host
// functions called from a template pass through untouched.
package evaluator

import (
	"context"
	"sort"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

// Environment is a scope of named values.
type Environment struct {
	store map[string]any
	outer *Environment
	Ctx   context.Context // render context handed to host functions
}

// NewEnvironment creates a new environment
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]any), Ctx: context.Background()}
}

// NewEnclosedEnvironment creates a new environment with outer reference
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	if outer != nil {
		env.Ctx = outer.Ctx
	}
	return env
}

// Get retrieves a value from the environment
func (e *Environment) Get(name string) (any, bool) {
	value, ok := e.store[name]
	if !ok && e.outer != nil {
		value, ok = e.outer.Get(name)
	}
	return value, ok
}

// Set stores a value in the environment
func (e *Environment) Set(name string, val any) any {
	e.store[name] = val
	return val
}

// Names lists every visible name, outer scopes included.
func (e *Environment) Names() []string {
	seen := map[string]bool{}
	for env := e; env != nil; env = env.outer {
		for name := range env.store {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval evaluates an expression.
func Eval(node ast.Expression, env *Environment) (any, error) {
	switch node := node.(type) {
	case *ast.IntegerLiteral:
		return node.Value, nil
	case *ast.FloatLiteral:
		return node.Value, nil
	case *ast.StringLiteral:
		return node.Value, nil
	case *ast.Boolean:
		return node.Value, nil
	case *ast.NilLiteral:
		return nil, nil
	case *ast.Ellipsis:
		return object.Ellipsis, nil
	case *ast.Identifier:
		return evalIdentifier(node, env)
	case *ast.ListLiteral:
		out := make([]any, 0, len(node.Elements))
		for _, el := range node.Elements {
			v, err := Eval(el, env)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.DictLiteral:
		d := object.NewDict()
		for _, pair := range node.Pairs {
			k, err := Eval(pair.Key, env)
			if err != nil {
				return nil, err
			}
			v, err := Eval(pair.Value, env)
			if err != nil {
				return nil, err
			}
			d.Set(object.Display(k), v)
		}
		return d, nil
	case *ast.PrefixExpression:
		right, err := Eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		return evalPrefix(node.Token, node.Operator, right)
	case *ast.InfixExpression:
		return evalInfixExpression(node, env)
	case *ast.TernaryExpression:
		cond, err := Eval(node.Condition, env)
		if err != nil {
			return nil, err
		}
		if object.Truthy(cond) {
			return Eval(node.Consequence, env)
		}
		return Eval(node.Alternative, env)
	case *ast.MemberExpression:
		obj, err := Eval(node.Object, env)
		if err != nil {
			return nil, err
		}
		return member(node.Token, obj, node.Property)
	case *ast.IndexExpression:
		left, err := Eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		index, err := Eval(node.Index, env)
		if err != nil {
			return nil, err
		}
		return indexValue(node.Token, left, index)
	case *ast.CallExpression:
		return evalCall(node, env)
	case *ast.ComprehensionExpression:
		return evalComprehension(node, env)
	case nil:
		return nil, herrors.New("COMP-0007", map[string]any{"Kind": "expression", "Type": "nil"})
	}
	return nil, herrors.New("COMP-0007", map[string]any{"Kind": "expression", "Type": node.String()})
}

// Exec runs a header statement, binding assignments in env.
func Exec(stmt ast.Statement, env *Environment) error {
	switch stmt := stmt.(type) {
	case *ast.AssignStatement:
		v, err := Eval(stmt.Value, env)
		if err != nil {
			return err
		}
		env.Set(stmt.Name, v)
		return nil
	case *ast.ExpressionStatement:
		_, err := Eval(stmt.Expression, env)
		return err
	case *ast.BlockStatement:
		for _, s := range stmt.Statements {
			if err := Exec(s, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.IfStatement:
		for _, b := range stmt.Branches {
			cond, err := Eval(b.Condition, env)
			if err != nil {
				return err
			}
			if object.Truthy(cond) {
				return Exec(b.Body, env)
			}
		}
		if stmt.Alternative != nil {
			return Exec(stmt.Alternative, env)
		}
		return nil
	case *ast.PropStatement:
		// A prop declared inside a block behaves like an assignment of its default.
		if stmt.Default == nil {
			return nil
		}
		v, err := Eval(stmt.Default, env)
		if err != nil {
			return err
		}
		env.Set(stmt.Name, v)
		return nil
	}
	return herrors.New("COMP-0007", map[string]any{"Kind": "statement", "Type": stmt.String()})
}

func evalIdentifier(node *ast.Identifier, env *Environment) (any, error) {
	if v, ok := env.Get(node.Value); ok {
		return v, nil
	}
	if b, ok := builtins[node.Value]; ok {
		return b, nil
	}
	err := herrors.NewUndefinedIdentifier(node.Value, append(env.Names(), BuiltinNames()...))
	return nil, at(node.Token, err)
}

func evalComprehension(node *ast.ComprehensionExpression, env *Environment) (any, error) {
	iterable, err := Eval(node.Iterable, env)
	if err != nil {
		return nil, err
	}

	type pair struct{ key, value any }
	var pairs []pair
	if d, ok := object.AsDict(iterable); ok && node.Key != "" {
		d.Range(func(k string, v any) bool {
			pairs = append(pairs, pair{k, v})
			return true
		})
	} else {
		items, ok := object.Items(iterable)
		if !ok {
			return nil, at(node.Token, herrors.New("TYPE-0007", map[string]any{"Type": object.TypeName(iterable)}))
		}
		for i, item := range items {
			pairs = append(pairs, pair{int64(i), item})
		}
	}

	scope := NewEnclosedEnvironment(env)
	out := make([]any, 0, len(pairs))
	for _, p := range pairs {
		if node.Key != "" {
			scope.Set(node.Key, p.key)
		}
		scope.Set(node.Variable, p.value)
		if node.Condition != nil {
			keep, err := Eval(node.Condition, scope)
			if err != nil {
				return nil, err
			}
			if !object.Truthy(keep) {
				continue
			}
		}
		v, err := Eval(node.Element, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// at attaches a token position to an evaluator error.
func at(tok lexer.Token, err *herrors.HyperError) *herrors.HyperError {
	if err.Line == 0 && tok.Line > 0 {
		err.Line = tok.Line
		err.Column = tok.Column
	}
	return err
}
