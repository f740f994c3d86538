// Package nodes defines the tree produced by the markup parser.
//
// Node and Attr are closed sets: every variant lives in this package and
// implements an unexported marker method. Slot references are indexes into
// the Interpolations of the tstring.Template the tree was parsed from.
package nodes

import (
	"fmt"
	"strings"
)

// VoidElements never have children.
var VoidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is a void element.
func IsVoid(tag string) bool {
	return VoidElements[strings.ToLower(tag)]
}

// Part is one piece of mixed content: a Literal or a Slot.
type Part interface {
	part()
}

// Literal is raw template text.
type Literal string

// Slot references an interpolation by index.
type Slot int

func (Literal) part() {}
func (Slot) part()    {}

// Node is a parsed markup node.
type Node interface {
	node()
}

// Element is an ordinary tag.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
	Line     int
}

// Fragment groups children without wrapping markup.
type Fragment struct {
	Children []Node
}

// Text is a run of character data.
type Text struct {
	Parts []Part
}

// Comment is a passthrough markup comment.
type Comment struct {
	Parts []Part
}

// DocumentType is a <!DOCTYPE ...> declaration; Text excludes the
// surrounding "<!" and ">".
type DocumentType struct {
	Text string
}

// Component invokes the value of the Callee slot. CloseSlot is the slot of
// the closing tag, equal to Callee for self-closing invocations.
type Component struct {
	Callee    Slot
	CloseSlot Slot
	Attrs     []Attr
	Children  []Node
	Line      int
}

// Branch is one arm of a Conditional. A nil Condition marks the else arm.
type Branch struct {
	Condition *Slot
	Children  []Node
}

// Conditional is an if/elif/else chain.
type Conditional struct {
	Branches []Branch
}

// Case is one arm of a Match.
type Case struct {
	Pattern  Slot
	Children []Node
}

// Match dispatches on the value of the Subject slot.
type Match struct {
	Subject Slot
	Cases   []Case
}

func (*Element) node()      {}
func (*Fragment) node()     {}
func (*Text) node()         {}
func (*Comment) node()      {}
func (*DocumentType) node() {}
func (*Component) node()    {}
func (*Conditional) node()  {}
func (*Match) node()        {}

// Attr is a parsed attribute.
type Attr interface {
	attr()
}

// StaticAttr has a literal name and an optional literal value. Without a
// value it is a boolean flag.
type StaticAttr struct {
	Name     string
	Value    string
	HasValue bool
}

// InterpolatedAttr takes its whole value from one slot.
type InterpolatedAttr struct {
	Name string
	Slot Slot
}

// TemplatedAttr mixes literal text and slots in its value.
type TemplatedAttr struct {
	Name  string
	Parts []Part
}

// SpreadAttr merges a mapping of attributes at render time.
type SpreadAttr struct {
	Slot Slot
}

func (*StaticAttr) attr()       {}
func (*InterpolatedAttr) attr() {}
func (*TemplatedAttr) attr()    {}
func (*SpreadAttr) attr()       {}

// IsWhitespace reports whether t holds only literal whitespace.
func (t *Text) IsWhitespace() bool {
	for _, p := range t.Parts {
		lit, ok := p.(Literal)
		if !ok || strings.TrimSpace(string(lit)) != "" {
			return false
		}
	}
	return true
}

// AppendParts appends parts, merging adjacent literals.
func AppendParts(dst []Part, src ...Part) []Part {
	for _, p := range src {
		if lit, ok := p.(Literal); ok {
			if lit == "" {
				continue
			}
			if n := len(dst); n > 0 {
				if prev, ok := dst[n-1].(Literal); ok {
					dst[n-1] = prev + lit
					continue
				}
			}
		}
		dst = append(dst, p)
	}
	return dst
}

// Dump renders a tree in a compact, indented form for tests and listings.
func Dump(n Node) string {
	var sb strings.Builder
	dump(&sb, n, 0)
	return sb.String()
}

func dump(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := n.(type) {
	case *Element:
		fmt.Fprintf(sb, "%sElement %s%s\n", indent, n.Tag, dumpAttrs(n.Attrs))
		dumpChildren(sb, n.Children, depth+1)
	case *Fragment:
		fmt.Fprintf(sb, "%sFragment\n", indent)
		dumpChildren(sb, n.Children, depth+1)
	case *Text:
		fmt.Fprintf(sb, "%sText %s\n", indent, dumpParts(n.Parts))
	case *Comment:
		fmt.Fprintf(sb, "%sComment %s\n", indent, dumpParts(n.Parts))
	case *DocumentType:
		fmt.Fprintf(sb, "%sDocumentType %q\n", indent, n.Text)
	case *Component:
		fmt.Fprintf(sb, "%sComponent #%d%s\n", indent, n.Callee, dumpAttrs(n.Attrs))
		dumpChildren(sb, n.Children, depth+1)
	case *Conditional:
		fmt.Fprintf(sb, "%sConditional\n", indent)
		for _, b := range n.Branches {
			if b.Condition == nil {
				fmt.Fprintf(sb, "%s  else\n", indent)
			} else {
				fmt.Fprintf(sb, "%s  if #%d\n", indent, *b.Condition)
			}
			dumpChildren(sb, b.Children, depth+2)
		}
	case *Match:
		fmt.Fprintf(sb, "%sMatch #%d\n", indent, n.Subject)
		for _, c := range n.Cases {
			fmt.Fprintf(sb, "%s  case #%d\n", indent, c.Pattern)
			dumpChildren(sb, c.Children, depth+2)
		}
	default:
		fmt.Fprintf(sb, "%s%T\n", indent, n)
	}
}

func dumpChildren(sb *strings.Builder, children []Node, depth int) {
	for _, c := range children {
		dump(sb, c, depth)
	}
}

func dumpParts(parts []Part) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		switch p := p.(type) {
		case Literal:
			out[i] = fmt.Sprintf("%q", string(p))
		case Slot:
			out[i] = fmt.Sprintf("#%d", int(p))
		}
	}
	return strings.Join(out, " ")
}

func dumpAttrs(attrs []Attr) string {
	var sb strings.Builder
	for _, a := range attrs {
		switch a := a.(type) {
		case *StaticAttr:
			if a.HasValue {
				fmt.Fprintf(&sb, " %s=%q", a.Name, a.Value)
			} else {
				fmt.Fprintf(&sb, " %s", a.Name)
			}
		case *InterpolatedAttr:
			fmt.Fprintf(&sb, " %s=#%d", a.Name, a.Slot)
		case *TemplatedAttr:
			fmt.Fprintf(&sb, " %s=[%s]", a.Name, dumpParts(a.Parts))
		case *SpreadAttr:
			fmt.Fprintf(&sb, " ...#%d", a.Slot)
		}
	}
	return sb.String()
}
