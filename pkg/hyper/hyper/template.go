package hyper

import (
	"context"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/compiler"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/evaluator"
	"github.com/sambeau/hyper/pkg/hyper/inject"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// Template is a compiled template ready to render. It holds no per-call
// state and may be rendered from many goroutines at once.
type Template struct {
	compiled *compiler.Compiled
	declared map[string]bool
}

var _ vm.Component = (*Template)(nil)

func newTemplate(c *compiler.Compiled) *Template {
	declared := make(map[string]bool, len(c.Props))
	for _, p := range c.Props {
		declared[p.Name] = true
	}
	return &Template{compiled: c, declared: declared}
}

// Name returns the template's name.
func (t *Template) Name() string { return t.compiled.Name }

// Path returns the file the template was loaded from, if any.
func (t *Template) Path() string { return t.compiled.Path }

// Identity returns an identifier that is stable for the same path and
// source.
func (t *Template) Identity() string { return t.compiled.Identity }

// Props returns the declared props in declaration order.
func (t *Template) Props() []compiler.Prop { return t.compiled.Props }

// Source returns the generated procedure listing.
func (t *Template) Source() string { return t.compiled.Listing() }

// Text returns the template source the template was compiled from.
func (t *Template) Text() string { return t.compiled.Source }

// Render renders the template with props. children are trusted: Markup
// passes through and anything else is written as text without escaping.
func (t *Template) Render(ctx context.Context, props map[string]any, children ...any) (runtime.Markup, error) {
	var kids []runtime.Markup
	if len(children) > 0 {
		kids = []runtime.Markup{runtime.JoinChildren(children)}
	}
	return t.Call(ctx, object.DictFrom(props), kids)
}

// Call renders the template as a component. Arguments that match no
// declared prop are collected into attrs.
func (t *Template) Call(ctx context.Context, args *object.Dict, children []runtime.Markup) (runtime.Markup, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := t.bind(ctx, args, children)
	if err != nil {
		return "", err
	}
	return vm.Run(ctx, t.compiled.Program, env, children)
}

// bind validates args against the declared props and builds the render
// scope.
func (t *Template) bind(ctx context.Context, args *object.Dict, children []runtime.Markup) (*evaluator.Environment, error) {
	if args == nil {
		args = object.NewDict()
	}
	env := evaluator.NewEnvironment()
	for name, v := range t.compiled.Scope {
		env.Set(name, v)
	}

	for _, p := range t.compiled.Props {
		v, err := t.value(ctx, p, args)
		if err != nil {
			return nil, err
		}
		env.Set(p.Name, v)
	}

	attrs := object.NewDict()
	args.Range(func(key string, value any) bool {
		if !t.declared[key] {
			attrs.Set(key, value)
		}
		return true
	})

	kids := make([]any, len(children))
	for i, c := range children {
		kids[i] = c
	}
	env.Set("children", kids)
	env.Set("attrs", attrs)
	return env, nil
}

func (t *Template) value(ctx context.Context, p compiler.Prop, args *object.Dict) (any, error) {
	if p.IsDependency {
		if v, ok := inject.Resolve(ctx, p.Name, p.TypeName); ok {
			return v, nil
		}
		if v, ok := args.Get(p.Name); ok {
			return v, nil
		}
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, herrors.New("PROP-0003", map[string]any{"Template": t.Name(), "Prop": p.Name})
	}

	if v, ok := args.Get(p.Name); ok {
		if v != nil && !p.Type.Check(v) {
			return nil, herrors.New("PROP-0002", map[string]any{
				"Template": t.Name(),
				"Prop":     p.Name,
				"Expected": p.TypeName,
				"Got":      object.TypeName(v),
			})
		}
		return v, nil
	}
	if p.HasDefault {
		return p.Default, nil
	}
	err := herrors.New("PROP-0001", map[string]any{"Template": t.Name(), "Prop": p.Name})
	err.Hints = append(err.Hints, t.propTable())
	return nil, err
}

// propTable lists every prop for diagnostics.
func (t *Template) propTable() string {
	var sb strings.Builder
	sb.WriteString("props of " + t.Name() + ":")
	for _, p := range t.compiled.Props {
		sb.WriteString("\n  " + p.String())
	}
	return sb.String()
}
