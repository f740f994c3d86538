package content

import (
	"regexp"
	"strings"
)

// Markdown holds the fields the Markdown parser adds to every record. Embed
// it with a squash tag to get the slug, heading and table-of-contents
// accessors:
//
//	type Post struct {
//		content.Markdown `content:",squash"`
//		Title string
//	}
type Markdown struct {
	ID   string `content:"id"`
	Body string `content:"body"`
	HTML string `content:"html"`
	// Slug overrides the ID-derived slug when the frontmatter sets one.
	SlugField string `content:"slug"`

	headings Computed[[]Heading]
}

// Heading is an ATX heading found in a Markdown body.
type Heading struct {
	Level int    // 1-6
	Text  string // heading text as written
	Slug  string // anchor id
}

// TOCEntry is a heading with the headings nested under it.
type TOCEntry struct {
	Heading  Heading
	Children []*TOCEntry
}

// Slug returns the record's URL slug: the frontmatter slug when set,
// otherwise the record ID.
func (m *Markdown) Slug() string {
	if m.SlugField != "" {
		return m.SlugField
	}
	if m.ID != "" {
		return m.ID
	}
	return "unknown"
}

var atxHeading = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)(?:[ \t]+#{1,6})?[ \t]*\r?$`)

// Headings returns the body's ATX headings in document order.
func (m *Markdown) Headings() []Heading {
	return m.headings.Get(func() []Heading {
		var out []Heading
		for _, match := range atxHeading.FindAllStringSubmatch(m.Body, -1) {
			text := strings.TrimSpace(match[2])
			out = append(out, Heading{Level: len(match[1]), Text: text, Slug: Slugify(text)})
		}
		return out
	})
}

// TOC nests the body's headings: each heading holds the following headings
// of a deeper level.
func (m *Markdown) TOC() []*TOCEntry {
	var roots, stack []*TOCEntry
	for _, h := range m.Headings() {
		entry := &TOCEntry{Heading: h}
		for len(stack) > 0 && stack[len(stack)-1].Heading.Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, entry)
		} else {
			roots = append(roots, entry)
		}
		stack = append(stack, entry)
	}
	return roots
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdEmphasis = regexp.MustCompile("[*_~`]")
	nonSlug    = regexp.MustCompile(`[^\w\s-]`)
	slugSpace  = regexp.MustCompile(`[-\s]+`)
)

// Slugify turns heading text into an anchor id: Markdown links and
// emphasis are dropped, the rest is lower-cased and hyphenated.
func Slugify(text string) string {
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdEmphasis.ReplaceAllString(text, "")
	text = strings.ToLower(text)
	text = nonSlug.ReplaceAllString(text, "")
	text = slugSpace.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}
