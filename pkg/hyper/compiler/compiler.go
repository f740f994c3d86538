// Package compiler turns template source into a Compiled artifact: it binds
// the header's imports and props, resolves prop types, runs the markup and
// code generators, and caches the result by source.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	"github.com/sambeau/hyper/pkg/hyper/codegen"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/evaluator"
	"github.com/sambeau/hyper/pkg/hyper/inject"
	"github.com/sambeau/hyper/pkg/hyper/logging"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/parser"
	"github.com/sambeau/hyper/pkg/hyper/tdom"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// Resolver loads the component an import statement names. fromDir is the
// importing file's directory.
type Resolver interface {
	Resolve(fromDir, path string) (vm.Component, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(fromDir, path string) (vm.Component, error)

func (f ResolverFunc) Resolve(fromDir, path string) (vm.Component, error) { return f(fromDir, path) }

// Options configure a Compiler.
type Options struct {
	Globals  map[string]any          // names visible to every template
	Types    map[string]reflect.Type // extra prop types, checked by assignability
	Resolver Resolver                // import resolution; imports fail without one
	Debug    bool                    // write <stem>.gen.txt listings
	DebugDir string                  // listing directory; defaults to the source's
	Logger   *logging.Logger
}

// Prop is one declared template parameter.
type Prop struct {
	Name         string
	TypeName     string
	Type         *Type
	Default      any
	HasDefault   bool
	IsDependency bool // resolved from the render context, never passed
}

func (p Prop) String() string {
	switch {
	case p.IsDependency:
		return fmt.Sprintf("%s: %s (from context)", p.Name, p.TypeName)
	case p.HasDefault:
		return fmt.Sprintf("%s: %s = %s", p.Name, p.TypeName, object.Inspect(p.Default))
	}
	return fmt.Sprintf("%s: %s (required)", p.Name, p.TypeName)
}

// Compiled is a compiled template. It is immutable and safe to share.
type Compiled struct {
	Identity string
	Name     string
	Path     string
	Source   string
	Props    []Prop
	Scope    map[string]any // globals and imports
	Program  *codegen.Program
}

// Prop returns the declared prop called name.
func (c *Compiled) Prop(name string) (Prop, bool) {
	for _, p := range c.Props {
		if p.Name == name {
			return p, true
		}
	}
	return Prop{}, false
}

// Listing returns the generated procedure in readable form.
func (c *Compiled) Listing() string { return c.Program.Listing() }

// Compiler compiles and caches templates.
type Compiler struct {
	opts Options
	log  *logging.Logger

	mu    sync.RWMutex
	cache map[string]*Compiled
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = logging.Null()
	}
	return &Compiler{
		opts:  opts,
		log:   log.With("compiler"),
		cache: make(map[string]*Compiled),
	}
}

// Compile compiles src. name labels the template in errors and listings;
// path, when set, anchors relative imports and the debug listing. Compiling
// the same path and source again returns the cached artifact.
func (c *Compiler) Compile(name, path string, src []byte) (*Compiled, error) {
	key := cacheKey(path, src)

	c.mu.RLock()
	compiled, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := c.compile(name, path, string(src))
	if err != nil {
		label := name
		if path != "" {
			label = path
		}
		return nil, herrors.Wrap(label, err)
	}
	compiled.Identity = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hyper:"+key)).String()

	c.mu.Lock()
	if existing, ok := c.cache[key]; ok {
		compiled = existing
	} else {
		c.cache[key] = compiled
	}
	c.mu.Unlock()

	if c.opts.Debug {
		c.writeListing(compiled)
	}
	return compiled, nil
}

// Len returns the number of cached artifacts.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear drops every cached artifact.
func (c *Compiler) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]*Compiled)
	c.mu.Unlock()
}

// Invalidate drops the artifacts compiled from path.
func (c *Compiler) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, compiled := range c.cache {
		if compiled.Path == path {
			delete(c.cache, key)
		}
	}
}

func cacheKey(path string, src []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Compiler) compile(name, path, src string) (*Compiled, error) {
	header, body, bodyLine := SplitSource(src)

	scope := make(map[string]any, len(c.opts.Globals))
	for k, v := range c.opts.Globals {
		scope[k] = v
	}

	var props []Prop
	var aux []ast.Statement
	if strings.TrimSpace(header) != "" {
		program, err := parser.ParseProgram(header)
		if err != nil {
			return nil, err
		}

		// Imports first, so that props can name imported components as types.
		for _, stmt := range program.Statements {
			if imp, ok := stmt.(*ast.ImportStatement); ok {
				if err := c.bindImport(imp, path, scope); err != nil {
					return nil, err
				}
			}
		}

		seen := make(map[string]bool)
		for _, stmt := range program.Statements {
			switch s := stmt.(type) {
			case *ast.ImportStatement:
			case *ast.PropStatement:
				if strings.HasPrefix(s.Name, "_") {
					aux = append(aux, s)
					continue
				}
				prop, err := c.bindProp(s, scope, seen)
				if err != nil {
					return nil, err
				}
				props = append(props, prop)
			default:
				aux = append(aux, s)
			}
		}
	}

	trimmed := strings.TrimLeft(body, " \t\r\n")
	bodyLine += strings.Count(body[:len(body)-len(trimmed)], "\n")
	trimmed = strings.TrimRight(trimmed, " \t\r\n")

	t, err := tstring.SplitAt(trimmed, bodyLine)
	if err != nil {
		return nil, err
	}
	tree, err := tdom.Parse(t)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.String()
	}
	prog, err := codegen.Generate(tree, t, codegen.Options{Name: name, Aux: aux, Props: names})
	if err != nil {
		return nil, err
	}

	return &Compiled{
		Name:    name,
		Path:    path,
		Source:  src,
		Props:   props,
		Scope:   scope,
		Program: prog,
	}, nil
}

func (c *Compiler) bindImport(imp *ast.ImportStatement, path string, scope map[string]any) error {
	if c.opts.Resolver == nil {
		return herrors.NewWithPosition("IMPORT-0001", imp.Token.Line, imp.Token.Column,
			map[string]any{"Name": imp.Path})
	}
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	comp, err := c.opts.Resolver.Resolve(dir, imp.Path)
	if err != nil {
		return err
	}
	name := imp.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(imp.Path), filepath.Ext(imp.Path))
	}
	scope[name] = comp
	c.log.Debugf("import %s from %s", name, imp.Path)
	return nil
}

func (c *Compiler) bindProp(s *ast.PropStatement, scope map[string]any, seen map[string]bool) (Prop, error) {
	line, col := s.Token.Line, s.Token.Column
	data := map[string]any{"Prop": s.Name}

	if s.Name == "children" || s.Name == "attrs" {
		return Prop{}, herrors.NewWithPosition("COMP-0004", line, col, data)
	}
	if seen[s.Name] {
		return Prop{}, herrors.NewWithPosition("COMP-0005", line, col, data)
	}
	seen[s.Name] = true

	prop := Prop{Name: s.Name, TypeName: s.Type.String()}

	if inject.IsDependency(prop.TypeName) {
		prop.IsDependency = true
	} else {
		typ, ok := c.resolveType(s.Type, scope)
		if !ok {
			data["Type"] = prop.TypeName
			data["Known"] = c.knownTypes(scope)
			err := herrors.NewWithPosition("COMP-0002", s.Type.Token.Line, s.Type.Token.Column, data)
			known := make([]string, 0, len(primitives))
			for name := range primitives {
				known = append(known, name)
			}
			if match := herrors.FindClosestMatch(s.Type.Name, known); match != "" {
				err.Hints = append([]string{fmt.Sprintf("did you mean '%s'?", match)}, err.Hints...)
			}
			return Prop{}, err
		}
		prop.Type = typ
	}

	if s.Default != nil {
		if !constant(s.Default) {
			return Prop{}, herrors.NewWithPosition("COMP-0003", line, col, data)
		}
		v, err := evaluator.Eval(s.Default, evaluator.NewEnvironment())
		if err != nil {
			return Prop{}, err
		}
		prop.Default = v
		prop.HasDefault = true
	}
	return prop, nil
}

// constant reports whether expr is a literal, a list or dict of constants,
// or a negated number.
func constant(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.IntegerLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.Boolean, *ast.NilLiteral:
		return true
	case *ast.PrefixExpression:
		switch e.Right.(type) {
		case *ast.IntegerLiteral, *ast.FloatLiteral:
			return e.Operator == "-"
		}
		return false
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			if !constant(el) {
				return false
			}
		}
		return true
	case *ast.DictLiteral:
		for _, pair := range e.Pairs {
			if !constant(pair.Key) || !constant(pair.Value) {
				return false
			}
		}
		return true
	}
	return false
}

// SplitSource separates a template's header from its body at the first
// line consisting solely of "---". bodyLine is the source line the body
// starts on. Without a separator the whole source is body.
func SplitSource(src string) (header, body string, bodyLine int) {
	offset := 0
	line := 1
	for offset <= len(src) {
		end := strings.IndexByte(src[offset:], '\n')
		next := len(src) + 1
		text := src[offset:]
		if end >= 0 {
			text = src[offset : offset+end]
			next = offset + end + 1
		}
		if strings.TrimSpace(text) == "---" {
			if next > len(src) {
				return src[:offset], "", line + 1
			}
			return src[:offset], src[next:], line + 1
		}
		offset = next
		line++
	}
	return "", src, 1
}

// DebugFromEnv reports whether DEBUG or HYPER_DEBUG asks for listings.
func DebugFromEnv(getenv func(string) string) bool {
	for _, key := range []string{"HYPER_DEBUG", "DEBUG"} {
		switch strings.ToLower(strings.TrimSpace(getenv(key))) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

// writeListing writes the compiled procedure to <stem>.gen.txt. Failures
// are logged and otherwise ignored.
func (c *Compiler) writeListing(compiled *Compiled) {
	dir := c.opts.DebugDir
	stem := filepath.Base(compiled.Name)
	if compiled.Path != "" {
		stem = strings.TrimSuffix(filepath.Base(compiled.Path), filepath.Ext(compiled.Path))
		if dir == "" {
			dir = filepath.Dir(compiled.Path)
		}
	}
	if dir == "" {
		c.log.Debugf("no directory for %s listing", compiled.Name)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.log.Warnf("cannot create %s: %v", dir, err)
		return
	}
	target := filepath.Join(dir, stem+".gen.txt")
	if err := os.WriteFile(target, []byte(compiled.Listing()), 0o644); err != nil {
		c.log.Warnf("cannot write %s: %v", target, err)
		return
	}
	c.log.Debugf("wrote %s", target)
}
