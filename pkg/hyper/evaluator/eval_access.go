package evaluator

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

// member resolves obj.name: dict and map keys first, then exported struct
// fields, then zero-argument methods. Missing mapping keys are nil.
func member(tok lexer.Token, obj any, name string) (any, error) {
	switch o := obj.(type) {
	case *object.Dict:
		v, _ := o.Get(name)
		return v, nil
	case nil:
		return nil, at(tok, herrors.New("UNDEF-0003", map[string]any{"Type": "nil", "Name": name}))
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return object.Normalize(v.Interface()), nil
	}

	if m := findMethod(rv, name); m.IsValid() && m.Type().NumIn() == 0 {
		out, err := callReflect(m, nil, nil)
		return out, err
	}

	sv := rv
	for sv.Kind() == reflect.Pointer || sv.Kind() == reflect.Interface {
		if sv.IsNil() {
			return nil, at(tok, herrors.New("UNDEF-0003", map[string]any{"Type": object.TypeName(obj), "Name": name}))
		}
		sv = sv.Elem()
	}
	if sv.Kind() == reflect.Struct {
		if f := findField(sv, name); f.IsValid() {
			return object.Normalize(f.Interface()), nil
		}
	}

	return nil, at(tok, herrors.New("UNDEF-0003", map[string]any{"Type": object.TypeName(obj), "Name": name}))
}

// findField looks up an exported struct field by exact name, then with the
// first letter upper-cased, then case-insensitively.
func findField(sv reflect.Value, name string) reflect.Value {
	t := sv.Type()
	for _, candidate := range []string{name, exportedName(name)} {
		if f, ok := t.FieldByName(candidate); ok && f.IsExported() {
			return sv.FieldByIndex(f.Index)
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return sv.Field(i)
		}
	}
	return reflect.Value{}
}

// findMethod looks up an exported method the same way findField looks up
// fields.
func findMethod(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() {
		return reflect.Value{}
	}
	for _, candidate := range []string{name, exportedName(name)} {
		if m := rv.MethodByName(candidate); m.IsValid() {
			return m
		}
	}
	t := rv.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if strings.EqualFold(t.Method(i).Name, name) {
			return rv.Method(i)
		}
	}
	return reflect.Value{}
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// indexValue resolves left[index]. Negative list indices count from the end.
func indexValue(tok lexer.Token, left, index any) (any, error) {
	if d, ok := left.(*object.Dict); ok {
		v, _ := d.Get(object.Display(index))
		return v, nil
	}
	if s, ok := left.(string); ok {
		i, ok := object.AsInt(index)
		if !ok {
			return nil, indexError(tok, left, index)
		}
		runes := []rune(s)
		n, err := normalizeIndex(tok, i, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[n]), nil
	}

	rv := reflect.ValueOf(left)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := object.AsInt(index)
		if !ok {
			return nil, indexError(tok, left, index)
		}
		n, err := normalizeIndex(tok, i, rv.Len())
		if err != nil {
			return nil, err
		}
		return object.Normalize(rv.Index(n).Interface()), nil
	case reflect.Map:
		key := reflect.ValueOf(index)
		if s, ok := object.AsString(index); ok && rv.Type().Key().Kind() == reflect.String {
			key = reflect.ValueOf(s).Convert(rv.Type().Key())
		}
		if !key.IsValid() || !key.Type().AssignableTo(rv.Type().Key()) {
			return nil, indexError(tok, left, index)
		}
		v := rv.MapIndex(key)
		if !v.IsValid() {
			return nil, nil
		}
		return object.Normalize(v.Interface()), nil
	}

	if name, ok := object.AsString(index); ok {
		return member(tok, left, name)
	}
	return nil, indexError(tok, left, index)
}

func normalizeIndex(tok lexer.Token, i int64, length int) (int, error) {
	n := i
	if n < 0 {
		n += int64(length)
	}
	if n < 0 || n >= int64(length) {
		return 0, at(tok, herrors.New("RUN-0002", map[string]any{"Index": i, "Length": length}))
	}
	return int(n), nil
}

func indexError(tok lexer.Token, left, index any) error {
	return at(tok, herrors.New("TYPE-0003", map[string]any{
		"Type": object.TypeName(left), "Index": object.TypeName(index),
	}))
}
