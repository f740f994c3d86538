// Package codegen turns a parsed node tree into a Program: packed
// bytecode over a constant pool, executed by package vm.
//
// Static markup is folded into TEXT constants. Every slot becomes an EVAL
// of its parsed expression (or of its concrete value for eager templates)
// followed by the instruction that renders it in its position: text,
// attribute, class list, component argument and so on.
package codegen

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/nodes"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/parser"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

// Options carries the compiler's side of a Program.
type Options struct {
	Name  string
	Aux   []ast.Statement
	Props []string
}

// Generate compiles tree, parsed from t, into a Program. Slot expressions
// of compiled templates are parsed here; their syntax errors are returned
// as parse errors positioned in the template source.
func Generate(tree nodes.Node, t *tstring.Template, opts Options) (*Program, error) {
	prog := &Program{
		Name:  opts.Name,
		Aux:   opts.Aux,
		Props: opts.Props,
		Slots: make([]string, len(t.Interpolations)),
		Lines: make([]int, len(t.Interpolations)),
	}
	if t.Eager {
		prog.Values = make([]any, len(t.Interpolations))
	} else {
		prog.Exprs = make([]ast.Expression, len(t.Interpolations))
	}

	for i, ip := range t.Interpolations {
		prog.Slots[i] = t.Describe(i)
		prog.Lines[i] = ip.Line
		if t.Eager {
			prog.Values[i] = ip.Value
			continue
		}
		col := ip.Column - 1
		if col < 0 {
			col = 0
		}
		expr, err := parser.ParseExpression(ip.Expression, ip.Line, col)
		if err != nil {
			return nil, err
		}
		prog.Exprs[i] = expr
	}

	e := &emitter{prog: prog, strConsts: map[string]uint32{}}
	if err := e.node(tree); err != nil {
		return nil, err
	}
	e.flush()
	return prog, nil
}

type emitter struct {
	prog      *Program
	pending   strings.Builder
	strConsts map[string]uint32
}

func (e *emitter) k(v any) uint32 {
	if s, ok := v.(string); ok {
		if i, ok := e.strConsts[s]; ok {
			return i
		}
		e.strConsts[s] = uint32(len(e.prog.Consts))
	}
	e.prog.Consts = append(e.prog.Consts, v)
	return uint32(len(e.prog.Consts) - 1)
}

// text queues static output; adjacent runs become one TEXT.
func (e *emitter) text(s string) { e.pending.WriteString(s) }

func (e *emitter) flush() {
	if e.pending.Len() == 0 {
		return
	}
	s := e.pending.String()
	e.pending.Reset()
	e.prog.Code = append(e.prog.Code, pack(OpText, e.k(s)))
}

func (e *emitter) emit(op Opcode, imm uint32) {
	e.flush()
	e.prog.Code = append(e.prog.Code, pack(op, imm))
}

func (e *emitter) patch(at int, to int) {
	e.prog.Code[at] = pack(Op(e.prog.Code[at]), uint32(to))
}

func (e *emitter) here() int {
	e.flush()
	return len(e.prog.Code)
}

func (e *emitter) eval(s nodes.Slot) { e.emit(OpEval, uint32(s)) }

// isEllipsis reports whether slot s is `...`: children in text position,
// the wildcard as a case pattern.
func (e *emitter) isEllipsis(s nodes.Slot) bool {
	if e.prog.Eager() {
		return e.prog.Values[s] == object.Ellipsis
	}
	_, ok := e.prog.Exprs[s].(*ast.Ellipsis)
	return ok
}

func (e *emitter) isWildcard(s nodes.Slot) bool {
	if e.isEllipsis(s) {
		return true
	}
	if e.prog.Eager() {
		return false
	}
	id, ok := e.prog.Exprs[s].(*ast.Identifier)
	return ok && id.Value == "_"
}

func (e *emitter) node(n nodes.Node) error {
	switch n := n.(type) {
	case *nodes.Text:
		e.parts(n.Parts)
	case *nodes.Comment:
		e.text("<!--")
		e.parts(n.Parts)
		e.text("-->")
	case *nodes.DocumentType:
		e.text("<!DOCTYPE " + n.Text + ">")
	case *nodes.Fragment:
		return e.nodes(n.Children)
	case *nodes.Element:
		return e.element(n)
	case *nodes.Component:
		return e.component(n)
	case *nodes.Conditional:
		return e.conditional(n)
	case *nodes.Match:
		return e.match(n)
	default:
		return herrors.New("COMP-0007", map[string]any{"Kind": "node", "Type": fmt.Sprintf("%T", n)})
	}
	return nil
}

func (e *emitter) nodes(children []nodes.Node) error {
	for _, c := range children {
		if err := e.node(c); err != nil {
			return err
		}
	}
	return nil
}

// parts renders text content: literals as written, slots escaped.
func (e *emitter) parts(parts []nodes.Part) {
	for _, p := range parts {
		switch p := p.(type) {
		case nodes.Literal:
			e.text(string(p))
		case nodes.Slot:
			if e.isEllipsis(p) {
				e.emit(OpChildren, 0)
				continue
			}
			e.eval(p)
			e.emit(OpEscape, 0)
		}
	}
}

func (e *emitter) element(el *nodes.Element) error {
	e.text("<" + el.Tag)
	for _, a := range el.Attrs {
		if err := e.attr(a); err != nil {
			return err
		}
	}
	if nodes.IsVoid(el.Tag) {
		e.text(" />")
		return nil
	}
	e.text(">")
	if err := e.nodes(el.Children); err != nil {
		return err
	}
	e.text("</" + el.Tag + ">")
	return nil
}

func (e *emitter) attr(a nodes.Attr) error {
	switch a := a.(type) {
	case *nodes.StaticAttr:
		if !a.HasValue {
			e.text(" " + a.Name)
			return nil
		}
		e.text(" " + a.Name + `="` + strings.ReplaceAll(a.Value, `"`, "&#34;") + `"`)
	case *nodes.InterpolatedAttr:
		name := strings.ToLower(a.Name)
		switch {
		case name == "class":
			e.text(` class="`)
			e.eval(a.Slot)
			e.emit(OpClass, 0)
			e.text(`"`)
		case name == "style":
			e.text(` style="`)
			e.eval(a.Slot)
			e.emit(OpStyle, 0)
			e.text(`"`)
		case name == "data":
			e.eval(a.Slot)
			e.emit(OpData, 0)
		case name == "aria":
			e.eval(a.Slot)
			e.emit(OpAria, 0)
		case strings.HasPrefix(name, "aria-"):
			e.eval(a.Slot)
			e.emit(OpAriaAttr, e.k(a.Name))
		default:
			e.eval(a.Slot)
			e.emit(OpAttr, e.k(a.Name))
		}
	case *nodes.TemplatedAttr:
		e.text(" " + a.Name + `="`)
		for _, p := range a.Parts {
			switch p := p.(type) {
			case nodes.Literal:
				e.text(string(p))
			case nodes.Slot:
				e.eval(p)
				e.emit(OpAttrEscape, 0)
			}
		}
		e.text(`"`)
	case *nodes.SpreadAttr:
		e.eval(a.Slot)
		e.emit(OpSpread, 0)
	default:
		return herrors.New("COMP-0007", map[string]any{"Kind": "attribute", "Type": fmt.Sprintf("%T", a)})
	}
	return nil
}

// ArgName folds an attribute name to a component parameter name.
func ArgName(attr string) string {
	return strings.ReplaceAll(attr, "-", "_")
}

// component passes attributes as argument values, so entities in literal
// attribute text are decoded rather than emitted.
func (e *emitter) component(c *nodes.Component) error {
	e.eval(c.Callee)
	e.emit(OpNewArgs, 0)
	for _, a := range c.Attrs {
		switch a := a.(type) {
		case *nodes.StaticAttr:
			if a.HasValue {
				e.emit(OpConst, e.k(html.UnescapeString(a.Value)))
			} else {
				e.emit(OpConst, e.k(true))
			}
			e.emit(OpSetArg, e.k(ArgName(a.Name)))
		case *nodes.InterpolatedAttr:
			e.eval(a.Slot)
			e.emit(OpSetArg, e.k(ArgName(a.Name)))
		case *nodes.TemplatedAttr:
			for _, p := range a.Parts {
				switch p := p.(type) {
				case nodes.Literal:
					e.emit(OpConst, e.k(html.UnescapeString(string(p))))
				case nodes.Slot:
					e.eval(p)
				}
			}
			e.emit(OpConcat, uint32(len(a.Parts)))
			e.emit(OpSetArg, e.k(ArgName(a.Name)))
		case *nodes.SpreadAttr:
			e.eval(a.Slot)
			e.emit(OpMergeArgs, 0)
		default:
			return herrors.New("COMP-0007", map[string]any{"Kind": "attribute", "Type": fmt.Sprintf("%T", a)})
		}
	}

	call := uint32(c.Callee) << 1
	if len(c.Children) == 0 {
		e.emit(OpCall, call)
		return nil
	}
	e.emit(OpCapture, 0)
	if err := e.nodes(c.Children); err != nil {
		return err
	}
	e.emit(OpEndCapture, 0)
	e.emit(OpCall, call|1)
	return nil
}

func (e *emitter) conditional(c *nodes.Conditional) error {
	var exits []int
	for _, b := range c.Branches {
		if b.Condition == nil {
			if err := e.nodes(b.Children); err != nil {
				return err
			}
			break
		}
		e.eval(*b.Condition)
		skip := e.here()
		e.emit(OpJumpIfFalse, 0)
		if err := e.nodes(b.Children); err != nil {
			return err
		}
		exits = append(exits, e.here())
		e.emit(OpJump, 0)
		e.patch(skip, e.here())
	}
	end := e.here()
	for _, at := range exits {
		e.patch(at, end)
	}
	return nil
}

func (e *emitter) match(m *nodes.Match) error {
	e.eval(m.Subject)
	var exits []int
	for i, c := range m.Cases {
		if e.isWildcard(c.Pattern) {
			if i != len(m.Cases)-1 {
				return herrors.New("COMP-0006", nil)
			}
			if err := e.nodes(c.Children); err != nil {
				return err
			}
			break
		}
		e.eval(c.Pattern)
		e.emit(OpMatch, 0)
		skip := e.here()
		e.emit(OpJumpIfFalse, 0)
		if err := e.nodes(c.Children); err != nil {
			return err
		}
		exits = append(exits, e.here())
		e.emit(OpJump, 0)
		e.patch(skip, e.here())
	}
	end := e.here()
	for _, at := range exits {
		e.patch(at, end)
	}
	e.emit(OpPop, 0)
	return nil
}
