package compiler

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// Type is a resolved prop type.
type Type struct {
	Name  string
	check func(v any) bool
}

// Check reports whether v is acceptable for the type. nil is checked by
// the caller, never here.
func (t *Type) Check(v any) bool {
	if t == nil || t.check == nil {
		return true
	}
	return t.check(v)
}

func (t *Type) String() string { return t.Name }

// primitives are the types every template can name.
var primitives = map[string]func(v any) bool{
	"any":       func(any) bool { return true },
	"string":    isString,
	"str":       isString,
	"int":       isInt,
	"float":     isNumber,
	"number":    isNumber,
	"bool":      func(v any) bool { _, ok := v.(bool); return ok },
	"list":      isList,
	"dict":      isDict,
	"Markup":    isString,
	"markup":    isString,
	"time":      isTime,
	"Component": vm.IsComponent,
}

func isString(v any) bool {
	if _, ok := v.(runtime.Markup); ok {
		return true
	}
	_, ok := v.(string)
	if !ok {
		rv := reflect.ValueOf(v)
		ok = rv.Kind() == reflect.String
	}
	return ok
}

func isInt(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(v any) bool {
	if isInt(v) {
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

func isList(v any) bool {
	if _, ok := v.([]any); ok {
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return (k == reflect.Slice || k == reflect.Array) && !isString(v)
}

func isDict(v any) bool {
	_, ok := object.AsDict(v)
	return ok
}

func isTime(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
}

// resolveType maps a type expression to a Type. Parameterised lists check
// their elements; other parameters are accepted but not checked. ok is
// false when the name is unknown.
func (c *Compiler) resolveType(te *ast.TypeExpression, scope map[string]any) (*Type, bool) {
	name := te.Name
	t := &Type{Name: te.String()}

	if check, ok := primitives[name]; ok {
		t.check = check
		if (name == "list") && len(te.Args) == 1 {
			elem, ok := c.resolveType(te.Args[0], scope)
			if !ok {
				return nil, false
			}
			t.check = func(v any) bool {
				if !isList(v) {
					return false
				}
				items, _ := object.Items(v)
				for _, item := range items {
					if item != nil && !elem.Check(item) {
						return false
					}
				}
				return true
			}
		}
		return t, true
	}

	if rt, ok := c.opts.Types[name]; ok {
		t.check = reflectCheck(rt)
		return t, true
	}
	if v, ok := scope[name]; ok {
		switch v := v.(type) {
		case reflect.Type:
			t.check = reflectCheck(v)
			return t, true
		case vm.Component:
			// An imported template used as a type accepts components.
			t.check = vm.IsComponent
			return t, true
		}
	}
	return nil, false
}

func reflectCheck(rt reflect.Type) func(v any) bool {
	return func(v any) bool {
		vt := reflect.TypeOf(v)
		if vt == nil {
			return false
		}
		if vt.AssignableTo(rt) {
			return true
		}
		return vt.Kind() == reflect.Pointer && vt.Elem().AssignableTo(rt)
	}
}

// knownTypes lists every resolvable type name for diagnostics.
func (c *Compiler) knownTypes(scope map[string]any) string {
	var names []string
	for name := range primitives {
		names = append(names, name)
	}
	for name := range c.opts.Types {
		names = append(names, name)
	}
	for name, v := range scope {
		switch v.(type) {
		case reflect.Type, vm.Component:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
