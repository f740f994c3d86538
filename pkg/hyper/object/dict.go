// Package object defines the runtime value model shared by the evaluator,
// the VM and the runtime helpers.
//
// Values are plain Go values: string, bool, int64, float64, []any, *Dict,
// nil, plus whatever the host program places in scope. Dict is an
// insertion-ordered mapping so attribute spreads render in the order they
// were written.
package object

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Dict is an insertion-ordered string-keyed mapping.
type Dict struct {
	keys   []string
	values map[string]any
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{values: make(map[string]any)}
}

// DictFrom creates a dict from a Go map. Keys are sorted since Go maps
// carry no order.
func DictFrom(m map[string]any) *Dict {
	d := NewDict()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// Pairs creates a dict from alternating key, value arguments.
func Pairs(kv ...any) *Dict {
	d := NewDict()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return d
}

// Set stores value under key. Existing keys keep their position.
func (d *Dict) Set(key string, value any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (d *Dict) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i:i], d.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Values returns the values in key order.
func (d *Dict) Values() []any {
	if d == nil {
		return nil
	}
	out := make([]any, len(d.keys))
	for i, k := range d.keys {
		out[i] = d.values[k]
	}
	return out
}

// Range calls fn for every entry in order until fn returns false.
func (d *Dict) Range(fn func(key string, value any) bool) {
	if d == nil {
		return
	}
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (d *Dict) Clone() *Dict {
	c := NewDict()
	d.Range(func(k string, v any) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// Merge copies every entry of other into d. Later entries win.
func (d *Dict) Merge(other *Dict) {
	other.Range(func(k string, v any) bool {
		d.Set(k, v)
		return true
	})
}

// ToMap returns the entries as an unordered Go map.
func (d *Dict) ToMap() map[string]any {
	m := make(map[string]any, d.Len())
	d.Range(func(k string, v any) bool {
		m[k] = v
		return true
	})
	return m
}

// String renders the dict in literal syntax.
func (d *Dict) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	d.Range(func(k string, v any) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(fmt.Sprintf("%q: %s", k, Inspect(v)))
		return true
	})
	sb.WriteString("}")
	return sb.String()
}

// AsDict converts mapping-like values to a Dict. Go maps with string-like
// keys are accepted; their keys are sorted.
func AsDict(v any) (*Dict, bool) {
	switch m := v.(type) {
	case *Dict:
		return m, m != nil
	case map[string]any:
		return DictFrom(m), true
	case map[string]string:
		d := NewDict()
		for _, k := range sortedKeys(reflect.ValueOf(m)) {
			d.Set(k, m[k])
		}
		return d, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	d := NewDict()
	for _, k := range sortedKeys(rv) {
		d.Set(k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
	}
	return d, true
}

func sortedKeys(rv reflect.Value) []string {
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}
