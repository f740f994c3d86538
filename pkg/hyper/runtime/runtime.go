// Package runtime holds the helpers rendering programs call while
// producing markup: escaping, class and style formatting, and attribute
// rendering.
package runtime

import (
	"html"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/object"
)

// Markup is text that is already safe to emit without escaping.
type Markup string

// String returns the markup text.
func (m Markup) String() string { return string(m) }

// EscapeHTML renders a value for text position. Markup passes through
// unchanged, nil is empty, lists render as the concatenation of their
// escaped elements and anything else is stringified then escaped.
func EscapeHTML(value any) Markup {
	switch v := value.(type) {
	case Markup:
		return v
	case nil:
		return ""
	case string:
		return Markup(html.EscapeString(v))
	case []Markup:
		var sb strings.Builder
		for _, m := range v {
			sb.WriteString(string(m))
		}
		return Markup(sb.String())
	case []any:
		var sb strings.Builder
		for _, item := range v {
			sb.WriteString(string(EscapeHTML(item)))
		}
		return Markup(sb.String())
	}
	return Markup(html.EscapeString(object.Display(value)))
}

// EscapeAttr escapes a value for use inside a double-quoted attribute.
func EscapeAttr(value any) string {
	if m, ok := value.(Markup); ok {
		return string(m)
	}
	return html.EscapeString(object.Display(value))
}

// FormatClasses flattens class values into a space separated list.
// Strings are taken as written, lists are flattened depth-first, mappings
// contribute each key whose value is truthy, and falsy or boolean values
// are ignored.
func FormatClasses(values ...any) string {
	var classes []string
	var walk func(v any)
	walk = func(v any) {
		if !object.Truthy(v) {
			return
		}
		if s, ok := object.AsString(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				classes = append(classes, s)
			}
			return
		}
		if _, ok := v.(bool); ok {
			return
		}
		if d, ok := object.AsDict(v); ok {
			d.Range(func(key string, enabled any) bool {
				if object.Truthy(enabled) {
					if key = strings.TrimSpace(key); key != "" {
						classes = append(classes, key)
					}
				}
				return true
			})
			return
		}
		if items, ok := object.Items(v); ok {
			for _, item := range items {
				walk(item)
			}
		}
	}
	for _, v := range values {
		walk(v)
	}
	return strings.Join(classes, " ")
}

// FormatStyles renders a mapping as "key: value" pairs joined by "; ".
// Entries whose value is nil are omitted. A string is returned as is.
func FormatStyles(styles any) string {
	if s, ok := object.AsString(styles); ok {
		return s
	}
	d, ok := object.AsDict(styles)
	if !ok {
		return object.Display(styles)
	}
	parts := make([]string, 0, d.Len())
	d.Range(func(key string, value any) bool {
		if value != nil {
			parts = append(parts, key+": "+object.Display(value))
		}
		return true
	})
	return strings.Join(parts, "; ")
}

// FormatAttrs renders a mapping as attributes. true renders a valueless
// attribute, false and nil are omitted, anything else renders as
// name="escaped value". Every attribute carries a leading space.
func FormatAttrs(attrs any) Markup {
	return renderAttrs("", attrs, false)
}

// RenderDataAttrs renders a mapping as data-* attributes.
func RenderDataAttrs(data any) Markup {
	return renderAttrs("data-", data, false)
}

// RenderAriaAttrs renders a mapping as aria-* attributes. Booleans render
// as the literal strings "true" and "false".
func RenderAriaAttrs(aria any) Markup {
	return renderAttrs("aria-", aria, true)
}

// FormatAttr renders a single attribute following the same rules as
// FormatAttrs.
func FormatAttr(name string, value any) Markup {
	var sb strings.Builder
	writeAttr(&sb, name, value, false)
	return Markup(sb.String())
}

// FormatAriaAttr renders a single attribute following the rules of
// RenderAriaAttrs.
func FormatAriaAttr(name string, value any) Markup {
	var sb strings.Builder
	writeAttr(&sb, name, value, true)
	return Markup(sb.String())
}

func renderAttrs(prefix string, attrs any, aria bool) Markup {
	d, ok := object.AsDict(attrs)
	if !ok {
		return ""
	}
	var sb strings.Builder
	d.Range(func(key string, value any) bool {
		writeAttr(&sb, prefix+key, value, aria)
		return true
	})
	return Markup(sb.String())
}

func writeAttr(sb *strings.Builder, name string, value any, aria bool) {
	switch v := value.(type) {
	case nil:
		return
	case bool:
		switch {
		case aria:
			sb.WriteString(" " + name + `="` + boolText(v) + `"`)
		case v:
			sb.WriteString(" " + name)
		}
		return
	}
	sb.WriteString(" " + name + `="` + EscapeAttr(value) + `"`)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// JoinChildren concatenates children into one trusted markup value.
// Markup is kept as is and other values are stringified without escaping.
func JoinChildren(children []any) Markup {
	var sb strings.Builder
	for _, c := range children {
		if m, ok := c.(Markup); ok {
			sb.WriteString(string(m))
			continue
		}
		sb.WriteString(object.Display(c))
	}
	return Markup(sb.String())
}
