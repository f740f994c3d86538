package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/sambeau/hyper/config"
	"github.com/sambeau/hyper/pkg/content"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/hyper"
	"github.com/sambeau/hyper/pkg/hyper/logging"
	"github.com/sambeau/hyper/pkg/hyper/repl"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	stdout io.Writer
	stderr io.Writer
}

// newLogger builds the logger described by the logging section. The
// returned func closes the log file, if one was opened.
func newLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (*logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Output {
	case "", "stderr":
		return logging.New(stderr, cfg.Format, level), func() {}, nil
	case "stdout":
		return logging.New(stdout, cfg.Format, level), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return logging.New(f, cfg.Format, level), func() { f.Close() }, nil
}

// options turns the configuration into template options.
func (a *app) options() []hyper.Option {
	return []hyper.Option{
		hyper.WithGlobals(a.cfg.Globals),
		hyper.WithDebug(a.cfg.Debug.Enabled, a.cfg.Debug.Dir),
		hyper.WithExtension(a.cfg.Templates.Extension),
		hyper.WithExclude(a.cfg.Templates.Exclude...),
		hyper.WithLogger(a.log),
	}
}

func (a *app) registry(dir string) *hyper.Registry {
	if dir == "" {
		dir = a.cfg.Templates.Dir
	}
	return hyper.NewRegistry(dir, a.options()...)
}

// template loads arg as a file path when one exists, otherwise as a name
// in the templates directory.
func (a *app) template(arg string) (*hyper.Template, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return hyper.Load(arg, a.options()...)
	}
	return a.registry("").Lookup(arg)
}

func (a *app) compile(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hyper compile FILE")
	}
	tmpl, err := a.template(args[0])
	if err != nil {
		return a.report(err)
	}
	fmt.Fprint(a.stdout, tmpl.Source())
	return nil
}

// propFlags collects repeated --prop NAME=VALUE flags.
type propFlags []string

func (p *propFlags) String() string { return strings.Join(*p, ",") }

func (p *propFlags) Set(s string) error {
	if !strings.Contains(s, "=") {
		return fmt.Errorf("expected NAME=VALUE, got %q", s)
	}
	*p = append(*p, s)
	return nil
}

func (a *app) render(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("render", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	var (
		props    propFlags
		contents []string
		propJSON = flags.String("props", "", "Props as a JSON object")
		output   = flags.String("o", "", "Write output to file")
	)
	flags.Var(&props, "prop", "Set a prop (NAME=VALUE)")
	flags.Func("content", "Load a configured content source", func(s string) error {
		contents = append(contents, s)
		return nil
	})

	// The template name may come before or after the flags.
	var target string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		target, args = args[0], args[1:]
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if target == "" && flags.NArg() > 0 {
		target = flags.Arg(0)
	}
	if target == "" {
		return fmt.Errorf("usage: hyper render FILE|NAME [--prop NAME=VALUE]... [--props JSON] [--content NAME]...")
	}

	values := map[string]any{}
	if *propJSON != "" {
		v, err := decodeJSON(*propJSON)
		if err != nil {
			return fmt.Errorf("--props: %w", err)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("--props: expected a JSON object")
		}
		for k, v := range m {
			values[k] = v
		}
	}
	for _, p := range props {
		name, raw, _ := strings.Cut(p, "=")
		values[name] = propValue(raw)
	}
	for _, name := range contents {
		v, err := a.loadContent(ctx, name)
		if err != nil {
			return err
		}
		values[name] = v
	}

	tmpl, err := a.template(target)
	if err != nil {
		return a.report(err)
	}
	html, err := tmpl.Render(ctx, values)
	if err != nil {
		return a.report(err)
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(html), 0o644)
	}
	fmt.Fprintln(a.stdout, string(html))
	return nil
}

// propValue reads a --prop value as JSON when it parses, otherwise as a
// plain string.
func propValue(raw string) any {
	if v, err := decodeJSON(raw); err == nil {
		return v
	}
	return raw
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return numbers(v), nil
}

// numbers replaces JSON numbers with int64 when integral and float64
// otherwise.
func numbers(v any) any {
	switch x := v.(type) {
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = numbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k])
		}
	}
	return v
}

// loadContent loads the named content source from the configuration.
func (a *app) loadContent(ctx context.Context, name string) (any, error) {
	src, ok := a.cfg.Content[name]
	if !ok {
		var names []string
		for n := range a.cfg.Content {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown content source %q (available: %s)", name, strings.Join(names, ", "))
	}
	log := a.log.With("content")

	var data any
	switch src.Kind() {
	case "sql":
		db, err := content.OpenDB(ctx, src.Driver, src.DSN)
		if err != nil {
			return nil, fmt.Errorf("content %s: %w", name, err)
		}
		defer db.Close()
		var rows []map[string]any
		if err := content.LoadSQL(ctx, db, src.Query, &rows); err != nil {
			return nil, fmt.Errorf("content %s: %w", name, err)
		}
		items := make([]any, len(rows))
		for i, row := range rows {
			items[i] = row
		}
		log.Debugf("%s: %d rows from %s", name, len(rows), src.Driver)
		return items, nil

	case "url":
		var opts []content.Option
		if src.MaxSize != "" {
			n, err := config.ParseSize(src.MaxSize)
			if err != nil {
				return nil, fmt.Errorf("content %s: %w", name, err)
			}
			opts = append(opts, content.WithMaxSize(n))
		}
		if err := content.LoadURL(ctx, src.URL, &data, opts...); err != nil {
			return nil, fmt.Errorf("content %s: %w", name, err)
		}
		log.Debugf("%s: fetched %s", name, src.URL)
		return data, nil
	}

	merge, err := content.ParseMerge(src.Merge)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", name, err)
	}
	err = content.Load(ctx, src.Path, &data,
		content.WithMerge(merge),
		content.WithBaseDir(a.cfg.BaseDir),
	)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", name, err)
	}
	log.Debugf("%s: loaded %s", name, src.Path)
	return data, nil
}

func (a *app) check(args []string) error {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	asJSON := flags.Bool("json", false, "Write failures as JSON lines")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 1 {
		return fmt.Errorf("usage: hyper check [--json] [DIR]")
	}
	r := a.registry(flags.Arg(0))

	var failed int
	if *asJSON {
		failed = a.checkJSON(r)
	} else {
		failed = a.checkAll(r)
	}
	if failed > 0 {
		return fmt.Errorf("%d template(s) failed to compile", failed)
	}
	return nil
}

// checkAll compiles every template in r, writing failures to stderr and a
// summary to stdout. It returns the number of failures.
func (a *app) checkAll(r *hyper.Registry) int {
	loaded, failed := r.LoadAll()
	for _, name := range sortedNames(failed) {
		fmt.Fprintf(a.stderr, "%s:\n", name)
		a.printError(failed[name])
	}

	fmt.Fprintf(a.stdout, "%d template(s) OK, %d failed\n", len(loaded), len(failed))
	return len(failed)
}

// checkJSON is checkAll for tools: one JSON object per failure on stdout,
// labelled with the template name when the error carries no file.
func (a *app) checkJSON(r *hyper.Registry) int {
	loaded, failed := r.LoadAll()
	for _, name := range sortedNames(failed) {
		var he *herrors.HyperError
		if !errors.As(failed[name], &he) {
			he = herrors.NewSimple(herrors.ClassIO, failed[name].Error())
		}
		if he.File == "" {
			he = he.WithFile(name)
		}
		data, err := he.ToJSON()
		if err != nil {
			a.printError(failed[name])
			continue
		}
		fmt.Fprintln(a.stdout, string(data))
	}
	fmt.Fprintf(a.stderr, "%d template(s) OK, %d failed\n", len(loaded), len(failed))
	return len(failed)
}

func sortedNames(m map[string]error) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *app) watch(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: hyper watch [DIR]")
	}
	var dir string
	if len(args) == 1 {
		dir = args[0]
	}
	r := a.registry(dir)
	a.checkAll(r)
	r.OnChange(func(paths []string) {
		a.checkAll(r)
	})
	return r.Watch(ctx)
}

func (a *app) repl(ctx context.Context) error {
	repl.Start(ctx, a.stdout, Version, a.options()...)
	return nil
}

// report prints template errors in full and returns a short error for the
// exit status.
func (a *app) report(err error) error {
	var he *herrors.HyperError
	if errors.As(err, &he) {
		a.printError(err)
		return fmt.Errorf("%s (%s)", he.Message, he.Code)
	}
	return err
}

func (a *app) printError(err error) {
	var he *herrors.HyperError
	if errors.As(err, &he) {
		fmt.Fprintln(a.stderr, he.PrettyString())
		return
	}
	fmt.Fprintf(a.stderr, "  %v\n", err)
}
