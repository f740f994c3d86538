// Package hyper is the public API for hypermedia templates: compile a
// template from source or a file, render it with props, render eager
// templates built from concrete values, and look templates up by name
// through a Registry.
//
// Basic usage:
//
//	tmpl, err := hyper.Compile("greeting", "name: string\n---\n<p>Hello, {name}!</p>")
//	if err != nil {
//		return err
//	}
//	html, err := tmpl.Render(ctx, map[string]any{"name": "World"})
package hyper

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/sambeau/hyper/pkg/hyper/codegen"
	"github.com/sambeau/hyper/pkg/hyper/compiler"
	"github.com/sambeau/hyper/pkg/hyper/logging"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
	"github.com/sambeau/hyper/pkg/hyper/tdom"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// Extension is the default template file extension.
const Extension = ".hyper"

// Option configures Compile, Load and NewRegistry.
type Option func(*settings)

type settings struct {
	globals   map[string]any
	types     map[string]reflect.Type
	debug     bool
	debugDir  string
	logger    *logging.Logger
	resolver  compiler.Resolver
	compiler  *compiler.Compiler
	extension string
	exclude   []string
}

func newSettings(opts []Option) *settings {
	s := &settings{
		globals:   map[string]any{},
		types:     map[string]reflect.Type{},
		debug:     compiler.DebugFromEnv(os.Getenv),
		extension: Extension,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Null()
	}
	return s
}

func (s *settings) compilerOptions() compiler.Options {
	return compiler.Options{
		Globals:  s.globals,
		Types:    s.types,
		Resolver: s.resolver,
		Debug:    s.debug,
		DebugDir: s.debugDir,
		Logger:   s.logger,
	}
}

// WithGlobals makes values visible to every template by name.
func WithGlobals(values map[string]any) Option {
	return func(s *settings) {
		for k, v := range values {
			s.globals[k] = v
		}
	}
}

// WithGlobal makes one value visible to every template.
func WithGlobal(name string, value any) Option {
	return func(s *settings) { s.globals[name] = value }
}

// WithType registers a Go type that props may name.
func WithType(name string, t reflect.Type) Option {
	return func(s *settings) { s.types[name] = t }
}

// WithDebug turns the generated-listing side channel on or off. dir, when
// set, collects the listings instead of writing them beside each source.
func WithDebug(enabled bool, dir string) Option {
	return func(s *settings) {
		s.debug = enabled
		s.debugDir = dir
	}
}

// WithLogger sets the logger used by the compiler and registry.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithResolver sets how Compile and Load resolve imports. A Registry
// supplies its own.
func WithResolver(r compiler.Resolver) Option {
	return func(s *settings) { s.resolver = r }
}

// WithCompiler shares a compiler, and so its cache, between Compile calls.
// A Registry always uses its own.
func WithCompiler(c *compiler.Compiler) Option {
	return func(s *settings) { s.compiler = c }
}

// WithExtension sets the template file extension a Registry looks for.
func WithExtension(ext string) Option {
	return func(s *settings) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extension = ext
	}
}

// WithExclude hides files matching the glob patterns from a Registry.
// Patterns match the slash-separated path relative to the registry root
// or the file's base name.
func WithExclude(patterns ...string) Option {
	return func(s *settings) { s.exclude = append(s.exclude, patterns...) }
}

func (s *settings) getCompiler() *compiler.Compiler {
	if s.compiler == nil {
		s.compiler = compiler.New(s.compilerOptions())
	}
	return s.compiler
}

// defaultCompiler serves Compile calls made without options, so repeated
// compiles of the same source share one artifact.
var defaultCompiler = sync.OnceValue(func() *compiler.Compiler {
	return newSettings(nil).getCompiler()
})

// Compile compiles a template from source.
func Compile(name string, src string, opts ...Option) (*Template, error) {
	c := defaultCompiler()
	if len(opts) > 0 {
		c = newSettings(opts).getCompiler()
	}
	compiled, err := c.Compile(name, "", []byte(src))
	if err != nil {
		return nil, err
	}
	return newTemplate(compiled), nil
}

// Load compiles the template file at path. Imports resolve relative to
// the importing file and then its directory, as for a Registry rooted
// there.
func Load(path string, opts ...Option) (*Template, error) {
	return NewRegistry(filepath.Dir(path), opts...).Load(path)
}

// HTML renders an eager template whose slots already hold their values,
// as built by tstring.Of. Components are invoked with the context.
func HTML(ctx context.Context, t *tstring.Template) (runtime.Markup, error) {
	tree, err := tdom.Parse(t)
	if err != nil {
		return "", err
	}
	prog, err := codegen.Generate(tree, t, codegen.Options{Name: "html"})
	if err != nil {
		return "", err
	}
	return vm.Run(ctx, prog, nil, nil)
}
