package evaluator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sambeau/hyper/pkg/hyper/object"
)

var stringMethods MethodRegistry
var listMethods MethodRegistry
var dictMethods MethodRegistry

func init() {
	stringMethods = MethodRegistry{
		"upper": {Fn: strMethod(strings.ToUpper), Arity: "0", Description: "Convert to uppercase"},
		"lower": {Fn: strMethod(strings.ToLower), Arity: "0", Description: "Convert to lowercase"},
		"title": {Fn: strMethod(titleCase), Arity: "0", Description: "Capitalise each word"},
		"trim":  {Fn: stringTrim, Arity: "0-1", Description: "Strip whitespace or the given characters"},
		"strip": {Fn: stringTrim, Arity: "0-1", Description: "Alias of trim"},
		"split": {Fn: stringSplit, Arity: "0-1", Description: "Split on whitespace or a separator"},
		"replace": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			s, _ := object.AsString(recv)
			return strings.ReplaceAll(s, object.Display(args[0]), object.Display(args[1])), nil
		}, Arity: "2", Description: "Replace every occurrence"},
		"startswith": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			s, _ := object.AsString(recv)
			return strings.HasPrefix(s, object.Display(args[0])), nil
		}, Arity: "1", Description: "Test for a prefix"},
		"endswith": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			s, _ := object.AsString(recv)
			return strings.HasSuffix(s, object.Display(args[0])), nil
		}, Arity: "1", Description: "Test for a suffix"},
		"contains": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			s, _ := object.AsString(recv)
			return strings.Contains(s, object.Display(args[0])), nil
		}, Arity: "1", Description: "Test for a substring"},
		"len": {Fn: lenMethod, Arity: "0", Description: "Length in characters"},
	}

	listMethods = MethodRegistry{
		"len":  {Fn: lenMethod, Arity: "0", Description: "Number of items"},
		"join": {Fn: listJoin, Arity: "0-1", Description: "Join items with a separator"},
		"contains": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			items, _ := object.Items(recv)
			for _, item := range items {
				if object.Equal(item, args[0]) {
					return true, nil
				}
			}
			return false, nil
		}, Arity: "1", Description: "Test for membership"},
		"first": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			items, _ := object.Items(recv)
			if len(items) == 0 {
				return nil, nil
			}
			return items[0], nil
		}, Arity: "0", Description: "First item or nil"},
		"last": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			items, _ := object.Items(recv)
			if len(items) == 0 {
				return nil, nil
			}
			return items[len(items)-1], nil
		}, Arity: "0", Description: "Last item or nil"},
	}

	dictMethods = MethodRegistry{
		"get": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			d, _ := object.AsDict(recv)
			if v, ok := d.Get(object.Display(args[0])); ok {
				return v, nil
			}
			if len(args) > 1 {
				return args[1], nil
			}
			return nil, nil
		}, Arity: "1-2", Description: "Value for key, with optional default"},
		"keys": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			d, _ := object.AsDict(recv)
			keys := d.Keys()
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		}, Arity: "0", Description: "Keys in order"},
		"values": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			d, _ := object.AsDict(recv)
			return d.Values(), nil
		}, Arity: "0", Description: "Values in key order"},
		"items": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			d, _ := object.AsDict(recv)
			out := make([]any, 0, d.Len())
			d.Range(func(k string, v any) bool {
				out = append(out, []any{k, v})
				return true
			})
			return out, nil
		}, Arity: "0", Description: "[key, value] pairs in order"},
		"has": {Fn: func(recv any, args []any, env *Environment) (any, error) {
			d, _ := object.AsDict(recv)
			return d.Has(object.Display(args[0])), nil
		}, Arity: "1", Description: "Test for a key"},
		"len": {Fn: lenMethod, Arity: "0", Description: "Number of keys"},
	}
}

func strMethod(fn func(string) string) MethodFunc {
	return func(recv any, args []any, env *Environment) (any, error) {
		s, _ := object.AsString(recv)
		return fn(s), nil
	}
}

func stringTrim(recv any, args []any, env *Environment) (any, error) {
	s, _ := object.AsString(recv)
	if len(args) == 1 {
		return strings.Trim(s, object.Display(args[0])), nil
	}
	return strings.TrimSpace(s), nil
}

func stringSplit(recv any, args []any, env *Environment) (any, error) {
	s, _ := object.AsString(recv)
	var parts []string
	if len(args) == 0 {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, object.Display(args[0]))
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func lenMethod(recv any, args []any, env *Environment) (any, error) {
	n, _ := object.Len(recv)
	return int64(n), nil
}

func listJoin(recv any, args []any, env *Environment) (any, error) {
	items, _ := object.Items(recv)
	sep := ""
	if len(args) == 1 {
		sep = object.Display(args[0])
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = object.Display(item)
	}
	return strings.Join(parts, sep), nil
}

// titleCase builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
