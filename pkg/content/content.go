// Package content loads content collections for templates: records read
// from JSON, YAML, TOML and Markdown files, HTTP endpoints or SQL queries,
// converted into Go values.
//
// The target passed to a loader decides its shape. A pointer to a slice
// loads a collection with one element per record; a pointer to any other
// type loads a singleton, merging the records of several files into one.
package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

var (
	// ErrUnsupported is returned for files no parser accepts.
	ErrUnsupported = errors.New("unsupported file extension")
	// ErrNoData is returned when a singleton pattern matches no files.
	ErrNoData = errors.New("no data found")
)

// Merge is the strategy for combining several files into a singleton.
type Merge int

const (
	// MergeShallow lets later files replace top-level keys.
	MergeShallow Merge = iota
	// MergeDeep merges nested maps key by key.
	MergeDeep
)

// ParseMerge maps a config value ("", "shallow" or "deep") to a Merge.
func ParseMerge(s string) (Merge, error) {
	switch s {
	case "", "shallow":
		return MergeShallow, nil
	case "deep":
		return MergeDeep, nil
	}
	return MergeShallow, fmt.Errorf("unknown merge strategy %q", s)
}

// AfterLoader is implemented by records that finish their own setup once
// loaded from files.
type AfterLoader interface {
	AfterLoad() error
}

type options struct {
	parsers     []Parser
	converters  []Converter
	merge       Merge
	baseDir     string
	beforeParse func(path string, data []byte) ([]byte, error)
	afterParse  func(path string, data any) (any, error)
	afterLoad   func(record any) error
	maxSize     int64
	client      httpDoer
}

// Option configures a loader call.
type Option func(*options)

// WithMerge sets the singleton merge strategy. The default is MergeShallow.
func WithMerge(m Merge) Option {
	return func(o *options) { o.merge = m }
}

// WithParsers puts parsers ahead of the default list.
func WithParsers(p ...Parser) Option {
	return func(o *options) { o.parsers = append(append([]Parser{}, p...), o.parsers...) }
}

// WithConverters puts converters ahead of the default list.
func WithConverters(c ...Converter) Option {
	return func(o *options) { o.converters = append(append([]Converter{}, c...), o.converters...) }
}

// WithBaseDir sets the directory record IDs are relative to. The default
// is the working directory.
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

// BeforeParse rewrites a file's bytes before they are parsed.
func BeforeParse(fn func(path string, data []byte) ([]byte, error)) Option {
	return func(o *options) { o.beforeParse = fn }
}

// AfterParse rewrites a file's parsed data before conversion.
func AfterParse(fn func(path string, data any) (any, error)) Option {
	return func(o *options) { o.afterParse = fn }
}

// AfterLoad is called with a pointer to each converted record loaded from
// files, after the record's own AfterLoad method.
func AfterLoad(fn func(record any) error) Option {
	return func(o *options) { o.afterLoad = fn }
}

func newOptions(opts []Option) *options {
	o := &options{
		parsers:    Parsers,
		converters: Converters,
		maxSize:    defaultMaxSize,
		client:     defaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load reads the files matching pattern into target, which must be a
// non-nil pointer. Patterns are globs; "**" matches any number of
// directories. A pattern without glob characters must name an existing
// file.
//
// Map records without an "id" get one from the file path relative to the
// base directory, without its extension. Map items of a file holding a
// list get "_source", the file's base name. For a *any target the parsed
// data is stored unconverted: the record itself for one file, a list of
// records otherwise.
func Load(ctx context.Context, pattern string, target any, opts ...Option) error {
	o := newOptions(opts)
	out, err := targetValue(target)
	if err != nil {
		return err
	}

	paths, err := glob(pattern)
	if err != nil {
		return fmt.Errorf("content: bad pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 && !hasMeta(pattern) {
		return fmt.Errorf("content: file not found: %s: %w", pattern, fs.ErrNotExist)
	}

	var records []any
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("content: %w", err)
		}
		if o.beforeParse != nil {
			if data, err = o.beforeParse(path, data); err != nil {
				return fmt.Errorf("content: %s: %w", path, err)
			}
		}
		record, err := parseFile(o.parsers, path, data)
		if err != nil {
			return fmt.Errorf("content: %w", err)
		}
		if o.afterParse != nil {
			if record, err = o.afterParse(path, record); err != nil {
				return fmt.Errorf("content: %s: %w", path, err)
			}
		}
		o.addMetadata(record, path)
		records = append(records, record)
	}

	if out.Kind() == reflect.Interface && out.Type().NumMethod() == 0 {
		switch len(records) {
		case 0:
			out.Set(reflect.ValueOf([]any{}))
		case 1:
			if records[0] != nil {
				out.Set(reflect.ValueOf(records[0]))
			}
		default:
			out.Set(reflect.ValueOf(records))
		}
		return nil
	}

	if out.Kind() == reflect.Slice {
		var items []any
		for _, r := range records {
			if list, ok := r.([]any); ok {
				items = append(items, list...)
			} else {
				items = append(items, r)
			}
		}
		if err := o.convertList(items, out); err != nil {
			return err
		}
		for i := 0; i < out.Len(); i++ {
			if err := o.finish(out.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		return fmt.Errorf("content: %w for %s", ErrNoData, pattern)
	}
	merged, err := o.mergeRecords(records, out.Type())
	if err != nil {
		return err
	}
	if err := convert(o.converters, merged, out); err != nil {
		return fmt.Errorf("content: %s: %w", pattern, err)
	}
	return o.finish(out)
}

func targetValue(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("content: target must be a non-nil pointer, got %T", target)
	}
	return v.Elem(), nil
}

// convertList converts each item into a new element of the slice out.
func (o *options) convertList(items []any, out reflect.Value) error {
	list := reflect.MakeSlice(out.Type(), len(items), len(items))
	for i, item := range items {
		if err := convert(o.converters, item, list.Index(i)); err != nil {
			return fmt.Errorf("content: item %d: %w", i, err)
		}
	}
	out.Set(list)
	return nil
}

func (o *options) finish(record reflect.Value) error {
	ptr, ok := recordPointer(record)
	if !ok {
		return nil
	}
	if l, ok := ptr.(AfterLoader); ok {
		if err := l.AfterLoad(); err != nil {
			return fmt.Errorf("content: after load: %w", err)
		}
	}
	if o.afterLoad != nil {
		if err := o.afterLoad(ptr); err != nil {
			return fmt.Errorf("content: after load: %w", err)
		}
	}
	return nil
}

func (o *options) mergeRecords(records []any, t reflect.Type) (any, error) {
	if len(records) == 1 {
		if _, ok := records[0].([]any); ok {
			return nil, fmt.Errorf("content: file contains a list, but %s (singleton) was requested", t)
		}
		return records[0], nil
	}
	merged := map[string]any{}
	for _, r := range records {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("content: cannot merge lists into a singleton %s", t)
		}
		if o.merge == MergeDeep {
			merged = deepMerge(merged, m)
		} else {
			for k, v := range m {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = deepMerge(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (o *options) addMetadata(record any, path string) {
	switch r := record.(type) {
	case map[string]any:
		if _, ok := r["id"]; !ok {
			r["id"] = o.recordID(path)
		}
	case []any:
		for _, item := range r {
			if m, ok := item.(map[string]any); ok {
				if _, ok := m["_source"]; !ok {
					m["_source"] = filepath.Base(path)
				}
			}
		}
	}
}

// recordID is path relative to the base directory without its extension,
// or the file stem when path lies outside it.
func (o *options) recordID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base := o.baseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return stem
		}
		base = wd
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return stem
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return stem
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}
