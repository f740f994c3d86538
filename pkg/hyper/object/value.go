package object

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type ellipsis struct{}

func (ellipsis) String() string { return "..." }

// Ellipsis is the value of the `...` literal. In a slot it stands for the
// component's children; as a case pattern it is the wildcard.
var Ellipsis any = ellipsis{}

// Truthy reports the truthiness of v: nil, false, zero numbers and empty
// strings, lists and mappings are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int64:
		return x != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case *Dict:
		return x.Len() > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// AsInt converts any Go integer kind to int64.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case bool, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// AsFloat converts any Go numeric kind to float64.
func AsFloat(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
		return rv.Float(), true
	}
	return 0, false
}

// IsFloat reports whether v has a floating point kind.
func IsFloat(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

// AsString returns the underlying string of any string kind, so named
// string types like Markup compare equal to their plain text.
func AsString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// Normalize converts host values to the evaluator's canonical forms:
// integers become int64, floats float64 and slices of any element type
// become []any. Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, []any, *Dict:
		return v
	case int:
		return int64(x)
	case map[string]any:
		return DictFrom(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, _ := AsInt(v)
		return i
	case reflect.Float32:
		return rv.Float()
	}
	return v
}

// Items returns the elements of an iterable value: lists and arrays yield
// their elements, mappings their keys and strings their characters.
func Items(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case *Dict:
		keys := x.Keys()
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, true
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out, true
	case reflect.Map:
		if d, ok := AsDict(v); ok {
			return Items(d)
		}
	}
	return nil, false
}

// Len returns the length of strings (in characters), lists and mappings.
func Len(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return len([]rune(x)), true
	case []any:
		return len(x), true
	case *Dict:
		return x.Len(), true
	}
	if s, ok := AsString(v); ok {
		return len([]rune(s)), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

// Equal compares two values. Numbers compare by value across kinds, string
// kinds compare by text, lists and dicts compare element-wise.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	if _, ok := b.(bool); ok {
		return false
	}
	if as, ok := AsString(a); ok {
		bs, ok := AsString(b)
		return ok && as == bs
	}
	if ai, ok := AsInt(a); ok {
		if bi, ok := AsInt(b); ok {
			return ai == bi
		}
	}
	if af, ok := AsFloat(a); ok {
		bf, ok := AsFloat(b)
		return ok && af == bf
	}
	if ad, ok := a.(*Dict); ok {
		bd, ok := b.(*Dict)
		if !ok || ad.Len() != bd.Len() {
			return false
		}
		equal := true
		ad.Range(func(k string, v any) bool {
			w, ok := bd.Get(k)
			equal = ok && Equal(v, w)
			return equal
		})
		return equal
	}
	if al, ok := a.([]any); ok {
		bl, ok := b.([]any)
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !Equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		return a == b
	}
	if ta.Kind() == reflect.Func && tb.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two numbers or two strings. ok is false for other pairs.
func Compare(a, b any) (cmp int, ok bool) {
	if as, ok := AsString(a); ok {
		bs, ok := AsString(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if ai, ok := AsInt(a); ok {
		if bi, ok := AsInt(b); ok {
			switch {
			case ai < bi:
				return -1, true
			case ai > bi:
				return 1, true
			}
			return 0, true
		}
	}
	af, aok := AsFloat(a)
	bf, bok := AsFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

// Display renders a value in text position: nil is empty, booleans are
// true/false and floats use the shortest exact form.
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any, *Dict:
		return Inspect(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	if s, ok := AsString(v); ok {
		return s
	}
	if i, ok := AsInt(v); ok {
		return strconv.FormatInt(i, 10)
	}
	if f, ok := AsFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if items, ok := Items(v); ok {
		return Inspect(items)
	}
	return fmt.Sprint(v)
}

// Inspect renders a value in literal syntax, quoting strings.
func Inspect(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = Inspect(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		return x.String()
	}
	return Display(v)
}

// TypeName names the type of v for diagnostics.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case *Dict:
		return "dict"
	}
	t := reflect.TypeOf(v)
	if t.PkgPath() == "" {
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return "int"
		case reflect.Float32, reflect.Float64:
			return "float"
		case reflect.Slice, reflect.Array:
			if t.Elem().Kind() == reflect.Uint8 {
				return "bytes"
			}
			return "list"
		case reflect.Map:
			return "dict"
		}
	}
	return t.String()
}
