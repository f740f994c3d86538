package evaluator

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
)

// Raw HTML in Markdown source is omitted by goldmark's default renderer.
var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

var builtins map[string]*Builtin

func init() {
	list := []*Builtin{
		{Name: "len", Arity: "1", Fn: builtinLen},
		{Name: "str", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return object.Display(args[0]), nil
		}},
		{Name: "int", Arity: "1", Fn: builtinInt},
		{Name: "float", Arity: "1", Fn: builtinFloat},
		{Name: "bool", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return object.Truthy(args[0]), nil
		}},
		{Name: "range", Arity: "1-3", Fn: builtinRange},
		{Name: "min", Arity: "1+", Fn: func(env *Environment, args []any) (any, error) {
			return extreme("min", args, -1)
		}},
		{Name: "max", Arity: "1+", Fn: func(env *Environment, args []any) (any, error) {
			return extreme("max", args, 1)
		}},
		{Name: "join", Arity: "1-2", Fn: func(env *Environment, args []any) (any, error) {
			if _, ok := object.Items(args[0]); !ok {
				return nil, problem("join", "expects a list, got "+object.TypeName(args[0]))
			}
			return listJoin(args[0], args[1:], env)
		}},
		{Name: "format", Arity: "1+", Fn: func(env *Environment, args []any) (any, error) {
			layout, ok := object.AsString(args[0])
			if !ok {
				return nil, problem("format", "first argument must be a string")
			}
			return fmt.Sprintf(layout, args[1:]...), nil
		}},
		{Name: "upper", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return strings.ToUpper(object.Display(args[0])), nil
		}},
		{Name: "lower", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return strings.ToLower(object.Display(args[0])), nil
		}},
		{Name: "escape", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return runtime.EscapeHTML(args[0]), nil
		}},
		{Name: "safe", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return runtime.Markup(object.Display(args[0])), nil
		}},
		{Name: "classes", Arity: "", Fn: func(env *Environment, args []any) (any, error) {
			return runtime.FormatClasses(args...), nil
		}},
		{Name: "styles", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return runtime.FormatStyles(args[0]), nil
		}},
		{Name: "attrs", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			return runtime.FormatAttrs(args[0]), nil
		}},
		{Name: "markdown", Arity: "1", Fn: builtinMarkdown},
		{Name: "date", Arity: "1-3", Fn: builtinDate},
		{Name: "ago", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			t, ok := toTime(args[0])
			if !ok {
				return nil, problem("ago", "expects a time, got "+object.TypeName(args[0]))
			}
			return humanize.Time(t), nil
		}},
		{Name: "comma", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			if i, ok := object.AsInt(args[0]); ok {
				return humanize.Comma(i), nil
			}
			if f, ok := object.AsFloat(args[0]); ok {
				return humanize.Commaf(f), nil
			}
			return nil, problem("comma", "expects a number, got "+object.TypeName(args[0]))
		}},
		{Name: "bytes", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			i, ok := object.AsInt(args[0])
			if !ok || i < 0 {
				return nil, problem("bytes", "expects a non-negative integer")
			}
			return humanize.Bytes(uint64(i)), nil
		}},
		{Name: "ordinal", Arity: "1", Fn: func(env *Environment, args []any) (any, error) {
			i, ok := object.AsInt(args[0])
			if !ok {
				return nil, problem("ordinal", "expects an integer, got "+object.TypeName(args[0]))
			}
			return humanize.Ordinal(int(i)), nil
		}},
	}
	builtins = make(map[string]*Builtin, len(list))
	for _, b := range list {
		builtins[b.Name] = b
	}
}

// BuiltinNames lists the built-in functions, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupBuiltin returns the named built-in function.
func LookupBuiltin(name string) (*Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

func builtinLen(env *Environment, args []any) (any, error) {
	n, ok := object.Len(args[0])
	if !ok {
		return nil, problem("len", "argument of type "+object.TypeName(args[0])+" has no length")
	}
	return int64(n), nil
}

func builtinInt(env *Environment, args []any) (any, error) {
	v := args[0]
	if b, ok := v.(bool); ok {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	if object.IsFloat(v) {
		f, _ := object.AsFloat(v)
		return int64(math.Trunc(f)), nil
	}
	if i, ok := object.AsInt(v); ok {
		return i, nil
	}
	if s, ok := object.AsString(v); ok {
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Trunc(f)), nil
		}
		return nil, problem("int", fmt.Sprintf("cannot convert %q to int", s))
	}
	return nil, problem("int", "cannot convert "+object.TypeName(v)+" to int")
}

func builtinFloat(env *Environment, args []any) (any, error) {
	v := args[0]
	if f, ok := object.AsFloat(v); ok {
		return f, nil
	}
	if s, ok := object.AsString(v); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, problem("float", fmt.Sprintf("cannot convert %q to float", s))
		}
		return f, nil
	}
	return nil, problem("float", "cannot convert "+object.TypeName(v)+" to float")
}

func builtinRange(env *Environment, args []any) (any, error) {
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := object.AsInt(a)
		if !ok {
			return nil, problem("range", "arguments must be integers")
		}
		nums[i] = n
	}
	start, stop, step := int64(0), nums[0], int64(1)
	if len(nums) > 1 {
		start, stop = nums[0], nums[1]
	}
	if len(nums) > 2 {
		step = nums[2]
	}
	if step == 0 {
		return nil, problem("range", "step cannot be zero")
	}
	out := []any{}
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}
	return out, nil
}

// extreme implements min and max. A single list argument is unpacked.
func extreme(name string, args []any, sign int) (any, error) {
	values := args
	if len(args) == 1 {
		items, ok := object.Items(args[0])
		if !ok {
			return nil, problem(name, "expects a list or several values")
		}
		values = items
	}
	if len(values) == 0 {
		return nil, problem(name, "empty sequence")
	}
	best := values[0]
	for _, v := range values[1:] {
		cmp, ok := object.Compare(v, best)
		if !ok {
			return nil, problem(name, "cannot compare "+object.TypeName(v)+" with "+object.TypeName(best))
		}
		if cmp*sign > 0 {
			best = v
		}
	}
	return best, nil
}

func builtinMarkdown(env *Environment, args []any) (any, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(object.Display(args[0])), &buf); err != nil {
		return nil, problem("markdown", err.Error())
	}
	return runtime.Markup(buf.String()), nil
}

func builtinDate(env *Environment, args []any) (any, error) {
	t, ok := toTime(args[0])
	if !ok {
		return nil, problem("date", "expects a time, got "+object.TypeName(args[0]))
	}
	style := "medium"
	if len(args) > 1 {
		style = object.Display(args[1])
	}
	locale := LocaleFrom(env.Ctx)
	if len(args) > 2 {
		locale = object.Display(args[2])
	}
	return formatDate(t, style, locale), nil
}

