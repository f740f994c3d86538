// Package tdom parses interpolated markup into a nodes tree.
//
// Literal chunks are joined with placeholder tokens standing in for slots
// and fed to the golang.org/x/net/html tokenizer. Tag tokens are re-read
// from their raw bytes so that names keep their case and valueless
// attributes are told apart from empty ones. Placeholders found in tag
// names, attributes, text or comments are turned back into slot references.
package tdom

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/nodes"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

// frame is an open construct on the parser stack.
type frame interface {
	// children returns the list new nodes are appended to, or nil when the
	// frame cannot take content yet.
	children() *[]nodes.Node
	// describe names the frame for diagnostics.
	describe(t *tstring.Template) (kind, name string)
}

type elementFrame struct{ el *nodes.Element }

type fragmentFrame struct{ frag *nodes.Fragment }

type componentFrame struct{ comp *nodes.Component }

type conditionalFrame struct {
	cond    *nodes.Conditional
	hasElse bool
}

type matchFrame struct{ match *nodes.Match }

func (f *elementFrame) children() *[]nodes.Node   { return &f.el.Children }
func (f *fragmentFrame) children() *[]nodes.Node  { return &f.frag.Children }
func (f *componentFrame) children() *[]nodes.Node { return &f.comp.Children }

func (f *conditionalFrame) children() *[]nodes.Node {
	return &f.cond.Branches[len(f.cond.Branches)-1].Children
}

func (f *matchFrame) children() *[]nodes.Node {
	if len(f.match.Cases) == 0 {
		return nil
	}
	return &f.match.Cases[len(f.match.Cases)-1].Children
}

func (f *elementFrame) describe(*tstring.Template) (string, string) {
	return "element", "<" + f.el.Tag + ">"
}

func (f *fragmentFrame) describe(*tstring.Template) (string, string) {
	return "fragment", "<>"
}

func (f *componentFrame) describe(t *tstring.Template) (string, string) {
	return "component", "<" + t.Describe(int(f.comp.Callee)) + ">"
}

func (f *conditionalFrame) describe(*tstring.Template) (string, string) {
	return "directive", "<!--@ if -->"
}

func (f *matchFrame) describe(*tstring.Template) (string, string) {
	return "directive", "<!--@ match -->"
}

func isControl(f frame) bool {
	switch f.(type) {
	case *conditionalFrame, *matchFrame:
		return true
	}
	return false
}

// tagName is the name of a markup frame as it appears inside <...>.
func tagName(t *tstring.Template, f frame) string {
	switch f := f.(type) {
	case *elementFrame:
		return f.el.Tag
	case *fragmentFrame:
		return ""
	case *componentFrame:
		return t.Describe(int(f.comp.Callee))
	}
	_, name := f.describe(t)
	return name
}

type parser struct {
	t        *tstring.Template
	consumed []bool
	root     []nodes.Node
	stack    []frame
	line     int
}

// ParseUncached parses t without consulting or filling the cache.
func ParseUncached(t *tstring.Template) (nodes.Node, error) {
	tree, err := parse(t)
	if err != nil {
		return nil, err
	}
	if err := checkComponents(tree, t); err != nil {
		return nil, err
	}
	return tree, nil
}

func parse(t *tstring.Template) (nodes.Node, error) {
	p := &parser{
		t:        t,
		consumed: make([]bool, len(t.Interpolations)),
		line:     t.Line,
	}
	if p.line == 0 {
		p.line = 1
	}

	var feed strings.Builder
	for i, chunk := range t.Strings {
		feed.WriteString(rewriteFragments(chunk))
		if i < len(t.Interpolations) {
			feed.WriteString(placeholder(i))
		}
	}

	z := html.NewTokenizer(strings.NewReader(feed.String()))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, herrors.NewSimple(herrors.ClassParse, err.Error())
			}
			break
		}
		raw := string(z.Raw())
		if err := p.token(tt, raw); err != nil {
			return nil, p.position(err)
		}
		p.line += strings.Count(raw, "\n")
		for _, m := range placeholderPattern.FindAllStringSubmatch(raw, -1) {
			p.line += p.slotLines(m[1])
		}
	}

	if err := p.finish(); err != nil {
		return nil, p.position(err)
	}

	switch len(p.root) {
	case 0:
		return &nodes.Fragment{}, nil
	case 1:
		return p.root[0], nil
	}
	return &nodes.Fragment{Children: p.root}, nil
}

// slotLines counts the newlines hidden inside a slot's braces.
func (p *parser) slotLines(index string) int {
	i, err := strconv.Atoi(index)
	if err != nil || i >= len(p.t.Interpolations) {
		return 0
	}
	return p.t.Interpolations[i].Span
}

func (p *parser) position(err error) error {
	var he *herrors.HyperError
	if errors.As(err, &he) && he.Line == 0 {
		he.Line = p.line
	}
	return err
}

func (p *parser) token(tt html.TokenType, raw string) error {
	switch tt {
	case html.TextToken:
		return p.appendNode(&nodes.Text{Parts: p.extract(raw)})
	case html.CommentToken:
		return p.comment(raw)
	case html.DoctypeToken:
		text := strings.TrimSuffix(strings.TrimPrefix(raw, "<!"), ">")
		if len(text) >= 7 && strings.EqualFold(text[:7], "doctype") {
			text = text[7:]
		}
		return p.appendNode(&nodes.DocumentType{Text: strings.TrimSpace(text)})
	case html.StartTagToken, html.SelfClosingTagToken:
		tag := scanTag(raw)
		if tt == html.SelfClosingTagToken {
			tag.selfClosing = true
		}
		return p.startTag(tag)
	case html.EndTagToken:
		return p.endTag(scanTag(raw))
	}
	return nil
}

// extract splits text into parts, claiming every slot it finds.
func (p *parser) extract(text string) []nodes.Part {
	return splitParts(text, func(i int) bool {
		if i < 0 || i >= len(p.consumed) || p.consumed[i] {
			return false
		}
		p.consumed[i] = true
		return true
	})
}

// single reports the slot when parts is exactly one slot.
func single(parts []nodes.Part) (nodes.Slot, bool) {
	if len(parts) == 1 {
		s, ok := parts[0].(nodes.Slot)
		return s, ok
	}
	return 0, false
}

// literal reports the text when parts holds no slots.
func literal(parts []nodes.Part) (string, bool) {
	switch len(parts) {
	case 0:
		return "", true
	case 1:
		l, ok := parts[0].(nodes.Literal)
		return string(l), ok
	}
	return "", false
}

func (p *parser) top() frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) push(f frame) { p.stack = append(p.stack, f) }

func (p *parser) pop() frame {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

// appendNode adds n to the innermost open frame. Text and comment runs merge
// with a preceding sibling of the same kind.
func (p *parser) appendNode(n nodes.Node) error {
	target := &p.root
	if f := p.top(); f != nil {
		target = f.children()
		if target == nil {
			if text, ok := n.(*nodes.Text); ok && text.IsWhitespace() {
				return nil
			}
			return herrors.New("PARSE-0105", map[string]any{"Got": describeNode(n)})
		}
	}

	if last := len(*target) - 1; last >= 0 {
		switch n := n.(type) {
		case *nodes.Text:
			if prev, ok := (*target)[last].(*nodes.Text); ok {
				prev.Parts = nodes.AppendParts(prev.Parts, n.Parts...)
				return nil
			}
		case *nodes.Comment:
			if prev, ok := (*target)[last].(*nodes.Comment); ok {
				prev.Parts = nodes.AppendParts(prev.Parts, n.Parts...)
				return nil
			}
		}
	}
	*target = append(*target, n)
	return nil
}

func describeNode(n nodes.Node) string {
	switch n := n.(type) {
	case *nodes.Element:
		return "<" + n.Tag + ">"
	case *nodes.Text:
		return "text"
	case *nodes.Comment:
		return "comment"
	case *nodes.Component:
		return "component"
	case *nodes.Fragment:
		return "fragment"
	case *nodes.Conditional:
		return "if directive"
	case *nodes.Match:
		return "match directive"
	case *nodes.DocumentType:
		return "doctype"
	}
	return "content"
}

func (p *parser) startTag(tag rawTag) error {
	nameParts := p.extract(tag.name)
	attrs, err := p.attrs(tag.attrs)
	if err != nil {
		return err
	}

	if slot, ok := single(nameParts); ok {
		comp := &nodes.Component{Callee: slot, CloseSlot: slot, Attrs: attrs, Line: p.line}
		if tag.selfClosing {
			return p.appendNode(comp)
		}
		p.push(&componentFrame{comp: comp})
		return nil
	}

	name, ok := literal(nameParts)
	if !ok {
		return herrors.New("PARSE-0007", map[string]any{"Where": "a tag name"})
	}

	if name == FragmentTag {
		if len(attrs) > 0 {
			return herrors.New("PARSE-0004", nil)
		}
		frag := &nodes.Fragment{}
		if tag.selfClosing {
			return p.appendNode(frag)
		}
		p.push(&fragmentFrame{frag: frag})
		return nil
	}

	el := &nodes.Element{Tag: name, Attrs: attrs, Line: p.line}
	if tag.selfClosing || nodes.IsVoid(name) {
		return p.appendNode(el)
	}
	p.push(&elementFrame{el: el})
	return nil
}

// attrs classifies attributes by the shape of their name and value.
func (p *parser) attrs(raw []rawAttr) ([]nodes.Attr, error) {
	var out []nodes.Attr
	for _, a := range raw {
		nameParts := p.extract(a.name)
		if slot, ok := single(nameParts); ok && !a.hasValue {
			out = append(out, &nodes.SpreadAttr{Slot: slot})
			continue
		}
		name, ok := literal(nameParts)
		if !ok {
			return nil, herrors.New("PARSE-0007", map[string]any{"Where": "an attribute name"})
		}
		if !a.hasValue {
			out = append(out, &nodes.StaticAttr{Name: name})
			continue
		}

		valueParts := p.extract(a.value)
		if slot, ok := single(valueParts); ok {
			out = append(out, &nodes.InterpolatedAttr{Name: name, Slot: slot})
		} else if value, ok := literal(valueParts); ok {
			out = append(out, &nodes.StaticAttr{Name: name, Value: value, HasValue: true})
		} else {
			out = append(out, &nodes.TemplatedAttr{Name: name, Parts: valueParts})
		}
	}
	return out, nil
}

func (p *parser) endTag(tag rawTag) error {
	nameParts := p.extract(tag.name)

	if slot, ok := single(nameParts); ok {
		f, ok := p.top().(*componentFrame)
		if !ok {
			return p.mismatch(p.t.Describe(int(slot)))
		}
		p.pop()
		f.comp.CloseSlot = slot
		return p.appendNode(f.comp)
	}

	name, ok := literal(nameParts)
	if !ok {
		return herrors.New("PARSE-0007", map[string]any{"Where": "a closing tag name"})
	}

	if name == FragmentTag {
		f, ok := p.top().(*fragmentFrame)
		if !ok {
			return p.mismatch("")
		}
		p.pop()
		return p.appendNode(f.frag)
	}

	if nodes.IsVoid(name) {
		return nil
	}
	f, ok := p.top().(*elementFrame)
	if !ok || !strings.EqualFold(f.el.Tag, name) {
		return p.mismatch(name)
	}
	p.pop()
	return p.appendNode(f.el)
}

// mismatch reports a closing tag that does not close the innermost frame.
func (p *parser) mismatch(got string) error {
	top := p.top()
	switch {
	case top == nil:
		return herrors.New("PARSE-0002", map[string]any{"Tag": got})
	case isControl(top):
		kind, name := top.describe(p.t)
		err := herrors.New("PARSE-0003", map[string]any{"Kind": kind, "Name": name})
		err.Hints = append(err.Hints, "close it with <!--@ end --> before </"+got+">")
		return err
	}
	return herrors.New("PARSE-0001", map[string]any{"Expected": tagName(p.t, top), "Got": got})
}

func (p *parser) comment(raw string) error {
	text := strings.TrimPrefix(raw, "<!--")
	text = strings.TrimSuffix(text, "-->")
	trimmed := strings.TrimLeft(text, " \t\r\n")

	switch {
	case strings.HasPrefix(trimmed, "@"):
		return p.directive(strings.TrimSpace(trimmed[1:]))
	case strings.HasPrefix(trimmed, "#"):
		// Server-only comment: dropped, along with any slots inside it.
		p.extract(text)
		return nil
	}
	return p.appendNode(&nodes.Comment{Parts: p.extract(text)})
}

func (p *parser) directive(body string) error {
	n := 0
	for n < len(body) && body[n] >= 'a' && body[n] <= 'z' {
		n++
	}
	name, rest := body[:n], strings.TrimSpace(body[n:])
	parts := p.extract(rest)

	switch name {
	case "if", "elif", "match", "case":
		slot, ok := single(parts)
		if !ok {
			return herrors.New("PARSE-0101", map[string]any{"Directive": name})
		}
		return p.openDirective(name, slot)
	case "else", "end":
		if len(parts) > 0 {
			if _, ok := literal(parts); ok {
				return herrors.New("PARSE-0104", map[string]any{"Directive": body})
			}
			return herrors.New("PARSE-0107", map[string]any{"Directive": name})
		}
		if name == "else" {
			return p.elseDirective()
		}
		return p.endDirective()
	}
	return herrors.New("PARSE-0104", map[string]any{"Directive": name})
}

func (p *parser) openDirective(name string, slot nodes.Slot) error {
	switch name {
	case "if":
		cond := slot
		p.push(&conditionalFrame{cond: &nodes.Conditional{
			Branches: []nodes.Branch{{Condition: &cond}},
		}})
	case "match":
		p.push(&matchFrame{match: &nodes.Match{Subject: slot}})
	case "elif":
		f, err := p.control("elif", "if", func(f frame) bool { _, ok := f.(*conditionalFrame); return ok })
		if err != nil {
			return err
		}
		cf := f.(*conditionalFrame)
		if cf.hasElse {
			return herrors.New("PARSE-0103", map[string]any{"Directive": "elif"})
		}
		cond := slot
		cf.cond.Branches = append(cf.cond.Branches, nodes.Branch{Condition: &cond})
	case "case":
		f, err := p.control("case", "match", func(f frame) bool { _, ok := f.(*matchFrame); return ok })
		if err != nil {
			return err
		}
		mf := f.(*matchFrame)
		mf.match.Cases = append(mf.match.Cases, nodes.Case{Pattern: slot})
	}
	return nil
}

func (p *parser) elseDirective() error {
	f, err := p.control("else", "if", func(f frame) bool { _, ok := f.(*conditionalFrame); return ok })
	if err != nil {
		return err
	}
	cf := f.(*conditionalFrame)
	if cf.hasElse {
		return herrors.New("PARSE-0103", map[string]any{"Directive": "else"})
	}
	cf.hasElse = true
	cf.cond.Branches = append(cf.cond.Branches, nodes.Branch{})
	return nil
}

func (p *parser) endDirective() error {
	f, err := p.control("end", "if or match", isControl)
	if err != nil {
		return err
	}
	p.pop()
	switch f := f.(type) {
	case *conditionalFrame:
		return p.appendNode(f.cond)
	case *matchFrame:
		if len(f.match.Cases) == 0 {
			return herrors.New("PARSE-0105", map[string]any{"Got": "end"})
		}
		return p.appendNode(f.match)
	}
	return nil
}

// control returns the innermost control frame for a continuation directive.
// It must be on top of the stack: markup opened inside a branch has to be
// closed before the branch ends.
func (p *parser) control(directive, opener string, want func(frame) bool) (frame, error) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		f := p.stack[i]
		if !isControl(f) {
			continue
		}
		if i != len(p.stack)-1 {
			return nil, herrors.New("PARSE-0106", map[string]any{"Tag": tagName(p.t, p.top())})
		}
		if !want(f) {
			break
		}
		return f, nil
	}
	return nil, herrors.New("PARSE-0102", map[string]any{"Directive": directive, "Opener": opener})
}

func (p *parser) finish() error {
	if f := p.top(); f != nil {
		kind, name := f.describe(p.t)
		return herrors.New("PARSE-0003", map[string]any{"Kind": kind, "Name": name})
	}
	for i, used := range p.consumed {
		if !used {
			err := herrors.New("PARSE-0006", map[string]any{"Index": p.t.Describe(i)})
			if ip := p.t.Interpolations[i]; ip.Line > 0 {
				err.Line, err.Column = ip.Line, ip.Column
			}
			return err
		}
	}
	return nil
}

// checkComponents verifies that every component closing tag names the same
// callee as its opening tag. Expressions are compared for compiled
// templates and values for eager ones. It runs on every parse, cached or
// not, because slot contents are not part of the cache key.
func checkComponents(n nodes.Node, t *tstring.Template) error {
	switch n := n.(type) {
	case *nodes.Component:
		if n.CloseSlot != n.Callee && !sameCallee(t, int(n.Callee), int(n.CloseSlot)) {
			err := herrors.New("PARSE-0005", map[string]any{
				"Expected": "<" + t.Describe(int(n.Callee)) + ">",
				"Got":      "</" + t.Describe(int(n.CloseSlot)) + ">",
			})
			err.Line = n.Line
			return err
		}
		return checkAll(n.Children, t)
	case *nodes.Element:
		return checkAll(n.Children, t)
	case *nodes.Fragment:
		return checkAll(n.Children, t)
	case *nodes.Conditional:
		for _, b := range n.Branches {
			if err := checkAll(b.Children, t); err != nil {
				return err
			}
		}
	case *nodes.Match:
		for _, c := range n.Cases {
			if err := checkAll(c.Children, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkAll(children []nodes.Node, t *tstring.Template) error {
	for _, c := range children {
		if err := checkComponents(c, t); err != nil {
			return err
		}
	}
	return nil
}

func sameCallee(t *tstring.Template, a, b int) bool {
	ia, ib := t.Interpolations[a], t.Interpolations[b]
	if t.Eager {
		return object.Equal(ia.Value, ib.Value)
	}
	return ia.Expression == ib.Expression
}
