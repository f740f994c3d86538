// Package tstring splits template bodies into literal chunks and
// interpolation slots.
//
// A Template always holds one more string than interpolations: Strings[i]
// precedes Interpolations[i], and the last string trails the final slot.
package tstring

import (
	"fmt"
	"strings"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

// Ellipsis is the children / wildcard sentinel for eager templates.
var Ellipsis = object.Ellipsis

// Interpolation is one slot of a template.
type Interpolation struct {
	Index      int
	Expression string // source text, empty for eager templates built with Of
	Value      any    // concrete value in eager mode
	Line       int
	Column     int
	Span       int // newlines between the slot's braces
}

// Template is the interpolation source consumed by the markup parser.
type Template struct {
	Strings        []string
	Interpolations []Interpolation
	Eager          bool // slot values are concrete rather than expressions
	Line           int  // source line of the first chunk
}

// Of builds an eager template from literal chunks and concrete values.
// It panics unless len(strs) == len(values)+1.
func Of(strs []string, values ...any) *Template {
	if len(strs) != len(values)+1 {
		panic(fmt.Sprintf("tstring.Of: %d strings for %d values", len(strs), len(values)))
	}
	t := &Template{Strings: append([]string(nil), strs...), Eager: true, Line: 1}
	for i, v := range values {
		t.Interpolations = append(t.Interpolations, Interpolation{Index: i, Value: v})
	}
	return t
}

// Key identifies the literal structure of the template. Two templates with
// equal keys parse to the same tree shape.
func (t *Template) Key() string {
	var sb strings.Builder
	for _, s := range t.Strings {
		fmt.Fprintf(&sb, "%d:", len(s))
		sb.WriteString(s)
	}
	return sb.String()
}

// Describe names slot i for diagnostics.
func (t *Template) Describe(i int) string {
	if i < 0 || i >= len(t.Interpolations) {
		return fmt.Sprintf("{#%d}", i)
	}
	ip := t.Interpolations[i]
	if ip.Expression != "" {
		return "{" + ip.Expression + "}"
	}
	return "{" + object.Inspect(ip.Value) + "}"
}

// Split cuts a template body into chunks at every {expression}. Doubled
// braces produce literal braces. Line numbers start at 1.
func Split(body string) (*Template, error) {
	return SplitAt(body, 1)
}

// SplitAt is Split for a body that starts on the given source line.
func SplitAt(body string, line int) (*Template, error) {
	s := &splitter{src: body, line: line, col: 1}
	t, err := s.split()
	if err != nil {
		return nil, err
	}
	t.Line = line
	return t, nil
}

type splitter struct {
	src  string
	pos  int
	line int
	col  int
}

func (s *splitter) advance() byte {
	ch := s.src[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *splitter) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *splitter) split() (*Template, error) {
	t := &Template{}
	var chunk strings.Builder

	for s.pos < len(s.src) {
		ch := s.peek(0)
		switch {
		case ch == '{' && s.peek(1) == '{':
			s.advance()
			s.advance()
			chunk.WriteByte('{')
		case ch == '}' && s.peek(1) == '}':
			s.advance()
			s.advance()
			chunk.WriteByte('}')
		case ch == '}':
			return nil, herrors.NewWithPosition("PARSE-0009", s.line, s.col, nil)
		case ch == '{':
			line, col := s.line, s.col
			s.advance()
			expr, err := s.readExpression(line, col)
			if err != nil {
				return nil, err
			}
			t.Strings = append(t.Strings, chunk.String())
			chunk.Reset()
			t.Interpolations = append(t.Interpolations, Interpolation{
				Index:      len(t.Interpolations),
				Expression: expr.text,
				Line:       expr.line,
				Column:     expr.col,
				Span:       s.line - line,
			})
		default:
			chunk.WriteByte(s.advance())
		}
	}
	t.Strings = append(t.Strings, chunk.String())
	return t, nil
}

type exprText struct {
	text      string
	line, col int
}

// readExpression consumes up to the brace closing the slot, skipping
// braces nested in the expression or inside string literals.
func (s *splitter) readExpression(line, col int) (exprText, error) {
	start := s.pos
	depth := 0
	var quote byte

	for s.pos < len(s.src) {
		ch := s.advance()
		if quote != 0 {
			switch ch {
			case '\\':
				if s.pos < len(s.src) {
					s.advance()
				}
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			if depth == 0 {
				raw := s.src[start : s.pos-1]
				trimmed := strings.TrimSpace(raw)
				if trimmed == "" {
					return exprText{}, herrors.NewWithPosition("PARSE-0201", line, col,
						map[string]any{"Expected": "expression", "Got": "}"})
				}
				// Position of the first non-space character of the expression.
				lead := raw[:len(raw)-len(strings.TrimLeft(raw, " \t\r\n"))]
				eLine, eCol := line, col+1
				for i := 0; i < len(lead); i++ {
					if lead[i] == '\n' {
						eLine++
						eCol = 1
					} else {
						eCol++
					}
				}
				return exprText{text: trimmed, line: eLine, col: eCol}, nil
			}
			depth--
		}
	}
	return exprText{}, herrors.NewWithPosition("PARSE-0008", line, col, nil)
}
