// Package vm executes generated programs into markup.
//
// A run owns its value stack and output buffers, so one Program may be
// executed by any number of goroutines at once.
package vm

import (
	"context"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/codegen"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/evaluator"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
)

// Component is a value that can be invoked as <{X} ...>...</{X}>.
// args holds the attributes by parameter name; children is empty or holds
// the rendered content between the tags.
type Component interface {
	Call(ctx context.Context, args *object.Dict, children []runtime.Markup) (runtime.Markup, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(ctx context.Context, args *object.Dict, children []runtime.Markup) (runtime.Markup, error)

// Call calls f.
func (f ComponentFunc) Call(ctx context.Context, args *object.Dict, children []runtime.Markup) (runtime.Markup, error) {
	return f(ctx, args, children)
}

// Run executes prog. Auxiliary statements run first in a scope enclosing
// env; slot expressions see their bindings. children is what `{...}`
// renders. Errors from expressions and from host functions are returned as
// raised.
func Run(ctx context.Context, prog *codegen.Program, env *evaluator.Environment, children []runtime.Markup) (runtime.Markup, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if env == nil {
		env = evaluator.NewEnvironment()
	}
	scope := evaluator.NewEnclosedEnvironment(env)
	scope.Ctx = ctx

	for _, stmt := range prog.Aux {
		if err := evaluator.Exec(stmt, scope); err != nil {
			return "", err
		}
	}

	m := &machine{
		prog:     prog,
		env:      scope,
		ctx:      ctx,
		children: children,
		out:      &strings.Builder{},
		slot:     -1,
	}
	if err := m.run(); err != nil {
		return "", err
	}
	return runtime.Markup(m.out.String()), nil
}

type machine struct {
	prog     *codegen.Program
	env      *evaluator.Environment
	ctx      context.Context
	children []runtime.Markup

	stack []any
	out   *strings.Builder
	saved []*strings.Builder
	slot  int // last evaluated slot, for positions
}

func (m *machine) push(v any) { m.stack = append(m.stack, v) }

func (m *machine) pop() any {
	if len(m.stack) == 0 {
		return nil
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *machine) top() any {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

func (m *machine) str(imm int) string {
	s, _ := m.prog.Consts[imm].(string)
	return s
}

func (m *machine) run() error {
	code := m.prog.Code
	for ip := 0; ip < len(code); ip++ {
		ins := code[ip]
		imm := codegen.Imm(ins)

		switch codegen.Op(ins) {
		case codegen.OpNop:

		case codegen.OpText:
			m.out.WriteString(m.str(imm))

		case codegen.OpEscape:
			m.out.WriteString(string(runtime.EscapeHTML(m.pop())))

		case codegen.OpChildren:
			for _, c := range m.children {
				m.out.WriteString(string(c))
			}

		case codegen.OpEval:
			v, err := m.eval(imm)
			if err != nil {
				return err
			}
			m.push(v)

		case codegen.OpConst:
			m.push(m.prog.Consts[imm])

		case codegen.OpConcat:
			parts := make([]any, imm)
			for i := imm - 1; i >= 0; i-- {
				parts[i] = m.pop()
			}
			m.push(string(runtime.JoinChildren(parts)))

		case codegen.OpPop:
			m.pop()

		case codegen.OpAttr:
			m.out.WriteString(string(runtime.FormatAttr(m.str(imm), m.pop())))

		case codegen.OpAriaAttr:
			m.out.WriteString(string(runtime.FormatAriaAttr(m.str(imm), m.pop())))

		case codegen.OpAttrEscape:
			m.out.WriteString(runtime.EscapeAttr(m.pop()))

		case codegen.OpClass:
			m.out.WriteString(runtime.EscapeAttr(runtime.FormatClasses(m.pop())))

		case codegen.OpStyle:
			m.out.WriteString(runtime.EscapeAttr(runtime.FormatStyles(m.pop())))

		case codegen.OpData:
			m.out.WriteString(string(runtime.RenderDataAttrs(m.pop())))

		case codegen.OpAria:
			m.out.WriteString(string(runtime.RenderAriaAttrs(m.pop())))

		case codegen.OpSpread:
			d, err := m.mapping(m.pop())
			if err != nil {
				return err
			}
			if d != nil {
				m.out.WriteString(string(runtime.FormatAttrs(d)))
			}

		case codegen.OpJump:
			ip = imm - 1

		case codegen.OpJumpIfFalse:
			if !object.Truthy(m.pop()) {
				ip = imm - 1
			}

		case codegen.OpMatch:
			pattern := m.pop()
			m.push(object.Equal(m.top(), pattern))

		case codegen.OpCapture:
			m.saved = append(m.saved, m.out)
			m.out = &strings.Builder{}

		case codegen.OpEndCapture:
			captured := runtime.Markup(m.out.String())
			m.out = m.saved[len(m.saved)-1]
			m.saved = m.saved[:len(m.saved)-1]
			m.push(captured)

		case codegen.OpNewArgs:
			m.push(object.NewDict())

		case codegen.OpSetArg:
			v := m.pop()
			m.top().(*object.Dict).Set(m.str(imm), v)

		case codegen.OpMergeArgs:
			d, err := m.mapping(m.pop())
			if err != nil {
				return err
			}
			if d != nil {
				m.top().(*object.Dict).Merge(d)
			}

		case codegen.OpCall:
			var children []runtime.Markup
			if imm&1 == 1 {
				children = []runtime.Markup{m.pop().(runtime.Markup)}
			}
			args := m.pop().(*object.Dict)
			callee := m.pop()
			m.slot = imm >> 1
			out, err := m.call(callee, args, children)
			if err != nil {
				return err
			}
			m.out.WriteString(string(out))

		default:
			return herrors.New("COMP-0007", map[string]any{"Kind": "instruction", "Type": codegen.Op(ins).String()})
		}
	}
	return nil
}

func (m *machine) eval(slot int) (any, error) {
	m.slot = slot
	if m.prog.Eager() {
		return m.prog.Values[slot], nil
	}
	return evaluator.Eval(m.prog.Exprs[slot], m.env)
}

// mapping accepts nil (nothing to spread) or anything with mapping shape.
func (m *machine) mapping(v any) (*object.Dict, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := object.AsDict(v); ok {
		return d, nil
	}
	return nil, m.positioned(herrors.New("TYPE-0008", map[string]any{"Type": object.TypeName(v)}))
}

func (m *machine) call(callee any, args *object.Dict, children []runtime.Markup) (runtime.Markup, error) {
	switch c := callee.(type) {
	case Component:
		return c.Call(m.ctx, args, children)
	case func(context.Context, *object.Dict, []runtime.Markup) (runtime.Markup, error):
		return c(m.ctx, args, children)
	}
	return "", m.positioned(herrors.New("TYPE-0006", map[string]any{"Type": object.TypeName(callee)}))
}

func (m *machine) positioned(err *herrors.HyperError) error {
	if m.slot >= 0 && m.slot < len(m.prog.Lines) {
		err.Line = m.prog.Lines[m.slot]
	}
	if m.slot >= 0 && m.slot < len(m.prog.Slots) {
		err.Hints = append(err.Hints, "in "+m.prog.Slots[m.slot])
	}
	return err
}

// IsComponent reports whether v can be invoked by a template.
func IsComponent(v any) bool {
	switch v.(type) {
	case Component, func(context.Context, *object.Dict, []runtime.Markup) (runtime.Markup, error):
		return true
	}
	return false
}
