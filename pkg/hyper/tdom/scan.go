package tdom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/nodes"
)

// FragmentTag is the tag name "<>" and "</>" are rewritten to before
// scanning.
const FragmentTag = "hyper-fragment"

var placeholderPattern = regexp.MustCompile(`hyper-slot-(\d+)-end`)

// placeholder is the scanner-safe stand-in for slot i. It is a valid tag
// name, attribute name and unquoted attribute value.
func placeholder(i int) string {
	return fmt.Sprintf("hyper-slot-%d-end", i)
}

func rewriteFragments(chunk string) string {
	chunk = strings.ReplaceAll(chunk, "</>", "</"+FragmentTag+">")
	return strings.ReplaceAll(chunk, "<>", "<"+FragmentTag+">")
}

// rawTag is a start or end tag as written, with the case of names kept and
// valueless attributes distinguished from empty ones.
type rawTag struct {
	name        string
	attrs       []rawAttr
	end         bool
	selfClosing bool
}

type rawAttr struct {
	name     string
	value    string
	hasValue bool
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// scanTag reads the raw bytes of a tag token.
func scanTag(raw string) rawTag {
	var tag rawTag
	i := 1 // '<'
	if i < len(raw) && raw[i] == '/' {
		tag.end = true
		i++
	}
	start := i
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}
	tag.name = raw[start:i]

	for i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}
		if raw[i] == '/' {
			if i+1 < len(raw) && raw[i+1] == '>' {
				tag.selfClosing = true
			}
			i++
			continue
		}

		start = i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		if i == start {
			// A stray '=' with no name.
			i++
			continue
		}
		attr := rawAttr{name: raw[start:i]}

		j := i
		for j < len(raw) && isSpace(raw[j]) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			attr.hasValue = true
			i = j + 1
			for i < len(raw) && isSpace(raw[i]) {
				i++
			}
			if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
				quote := raw[i]
				i++
				start = i
				for i < len(raw) && raw[i] != quote {
					i++
				}
				attr.value = raw[start:i]
				i++
			} else {
				start = i
				for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
					i++
				}
				attr.value = raw[start:i]
				// <input value=x/> closes the tag rather than ending the value.
				if strings.HasSuffix(attr.value, "/") && i < len(raw) && raw[i] == '>' {
					attr.value = strings.TrimSuffix(attr.value, "/")
					tag.selfClosing = true
				}
			}
		}
		tag.attrs = append(tag.attrs, attr)
	}
	return tag
}

// splitParts cuts text at every placeholder. ok reports whether each index
// may be claimed; placeholders that may not are left as literal text.
func splitParts(text string, ok func(int) bool) []nodes.Part {
	var parts []nodes.Part
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		idx, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || !ok(idx) {
			continue
		}
		parts = nodes.AppendParts(parts, nodes.Literal(text[last:m[0]]), nodes.Slot(idx))
		last = m[1]
	}
	return nodes.AppendParts(parts, nodes.Literal(text[last:]))
}
