package tdom

import (
	"errors"
	"strings"
	"testing"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/nodes"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

func mustSplit(t *testing.T, src string) *tstring.Template {
	t.Helper()
	tmpl, err := tstring.Split(src)
	if err != nil {
		t.Fatalf("Split(%q) error: %v", src, err)
	}
	return tmpl
}

func TestParseTrees(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"element", "<div>Hello</div>", `
Element div
  Text "Hello"`},
		{"text slot", "<p>Hello, {name}!</p>", `
Element p
  Text "Hello, " #0 "!"`},
		{"interpolated attr", "<button disabled={flag}>Click</button>", `
Element button disabled=#0
  Text "Click"`},
		{"spread", "<div {attrs}></div>", `
Element div ...#0`},
		{"templated attr", `<a href="/u/{id}/edit" class=x target>go</a>`, `
Element a href=["/u/" #0 "/edit"] class="x" target
  Text "go"`},
		{"empty value", `<option value="">-</option>`, `
Element option value=""
  Text "-"`},
		{"case kept", `<svg viewBox="0 0 1 1"><clipPath></clipPath></svg>`, `
Element svg viewBox="0 0 1 1"
  Element clipPath`},
		{"fragment", "<><b>a</b><i>b</i></>", `
Fragment
  Element b
    Text "a"
  Element i
    Text "b"`},
		{"several roots", "<b>a</b> <i>b</i>", `
Fragment
  Element b
    Text "a"
  Text " "
  Element i
    Text "b"`},
		{"empty", "", `
Fragment`},
		{"void elements", `<br><img src={src}></br>`, `
Fragment
  Element br
  Element img src=#0`},
		{"self closing", `<div class="x" />`, `
Element div class="x"`},
		{"component", `<{Card} title="x" data-id={id}>{...}</{Card}>`, `
Component #0 title="x" data-id=#1
  Text #2`},
		{"self closing component", `<{Icon} name="star" />`, `
Component #0 name="star"`},
		{"conditional", `<!--@ if {a} --><b>A</b><!--@ elif {b} -->B<!--@ else -->C<!--@ end -->`, `
Conditional
  if #0
    Element b
      Text "A"
  if #1
    Text "B"
  else
    Text "C"`},
		{"match", "<!--@ match {kind} -->\n  <!--@ case {'a'} -->one<!--@ case {...} -->other<!--@ end -->", `
Match #0
  case #1
    Text "one"
  case #2
    Text "other"`},
		{"nested directive in element", `<ul><!--@ if {xs} --><li>x</li><!--@ end --></ul>`, `
Element ul
  Conditional
    if #0
      Element li
        Text "x"`},
		{"comments merge", `<!-- a --><!-- b -->`, `
Comment " a  b "`},
		{"comment slot", `<!-- v{version} -->`, `
Comment " v" #0 " "`},
		{"server comment dropped", `a<!--# note {x} -->b`, `
Text "ab"`},
		{"doctype", `<!DOCTYPE html><html></html>`, `
Fragment
  DocumentType "html"
  Element html`},
		{"raw text", `<script>if (a < b) {{ go() }}</script>`, `
Element script
  Text "if (a < b) { go() }"`},
		{"entities kept", `<p>a &amp; b</p>`, `
Element p
  Text "a &amp; b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseUncached(mustSplit(t, tt.input))
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			want := strings.TrimPrefix(tt.want, "\n") + "\n"
			if got := nodes.Dump(tree); got != want {
				t.Errorf("Parse(%q) =\n%s\nwant\n%s", tt.input, got, want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"<div><span></div>", "PARSE-0001"},
		{"</div>", "PARSE-0002"},
		{"<div>", "PARSE-0003"},
		{"<>a", "PARSE-0003"},
		{"<{Card}>", "PARSE-0003"},
		{`<hyper-fragment id="x"></>`, "PARSE-0004"},
		{"<{A}></{B}>", "PARSE-0005"},
		{"<!DOCTYPE {x}>", "PARSE-0006"},
		{`<div {name}="x"></div>`, "PARSE-0007"},
		{`<h{level}>x</h{level}>`, "PARSE-0007"},
		{"<!--@ if cond -->x<!--@ end -->", "PARSE-0101"},
		{"<!--@ case {a} {b} -->", "PARSE-0101"},
		{"<!--@ else -->", "PARSE-0102"},
		{"<!--@ end -->", "PARSE-0102"},
		{"<!--@ match {x} --><!--@ elif {y} -->", "PARSE-0102"},
		{"<!--@ if {a} -->x<!--@ else -->y<!--@ elif {b} -->z<!--@ end -->", "PARSE-0103"},
		{"<!--@ if {a} -->x<!--@ else -->y<!--@ else -->z<!--@ end -->", "PARSE-0103"},
		{"<!--@ loop {x} -->", "PARSE-0104"},
		{"<!--@ match {x} --><p>x</p><!--@ case {1} --><!--@ end -->", "PARSE-0105"},
		{"<!--@ match {x} --><!--@ end -->", "PARSE-0105"},
		{"<!--@ if {a} --><div><!--@ end --></div>", "PARSE-0106"},
		{"<!--@ if {a} --><div><!--@ else --></div><!--@ end -->", "PARSE-0106"},
		{"<!--@ end {x} -->", "PARSE-0107"},
		{"<!--@ if {a} -->x", "PARSE-0003"},
		{"<!--@ if {a} --><p>x<!--@ end -->", "PARSE-0106"},
		{"<!--@ if {a} -->x</p><!--@ end -->", "PARSE-0003"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tree, err := ParseUncached(mustSplit(t, tt.input))
			if err == nil {
				t.Fatalf("Parse(%q) = %s, want error %s", tt.input, nodes.Dump(tree), tt.code)
			}
			var he *herrors.HyperError
			if !errors.As(err, &he) {
				t.Fatalf("Parse(%q) error %T is not a HyperError", tt.input, err)
			}
			if he.Code != tt.code {
				t.Errorf("Parse(%q) code = %s, want %s (%s)", tt.input, he.Code, tt.code, he.Message)
			}
			if !herrors.IsParse(err) {
				t.Errorf("Parse(%q) error class = %s, want parse", tt.input, he.Class)
			}
		})
	}
}

func TestParseErrorLine(t *testing.T) {
	_, err := ParseUncached(mustSplit(t, "<div>\n  <p>{\n  x\n  }\n</div>"))
	var he *herrors.HyperError
	if !errors.As(err, &he) {
		t.Fatalf("expected HyperError, got %v", err)
	}
	if he.Code != "PARSE-0001" || he.Line != 5 {
		t.Errorf("error = %s at line %d, want PARSE-0001 at line 5", he.Code, he.Line)
	}
}

func TestEagerComponentIdentity(t *testing.T) {
	card := func() {}
	other := func() {}

	ok := tstring.Of([]string{"<", ">x</", ">"}, card, card)
	if _, err := ParseUncached(ok); err != nil {
		t.Fatalf("matching callee: %v", err)
	}

	bad := tstring.Of([]string{"<", ">x</", ">"}, card, other)
	_, err := ParseUncached(bad)
	var he *herrors.HyperError
	if !errors.As(err, &he) || he.Code != "PARSE-0005" {
		t.Errorf("mismatched callee error = %v, want PARSE-0005", err)
	}
}

func TestCacheSharesTreesByStrings(t *testing.T) {
	c := NewCache(8)
	a := mustSplit(t, "<p>{x}</p>")
	b := mustSplit(t, "<p>{y + 1}</p>")

	ta, err := c.Parse(a)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := c.Parse(b)
	if err != nil {
		t.Fatal(err)
	}
	if ta != tb {
		t.Error("templates with the same strings should share a tree")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheChecksComponentsPerTemplate(t *testing.T) {
	c := NewCache(8)
	if _, err := c.Parse(mustSplit(t, "<{A}>x</{A}>")); err != nil {
		t.Fatal(err)
	}
	_, err := c.Parse(mustSplit(t, "<{A}>x</{B}>"))
	var he *herrors.HyperError
	if !errors.As(err, &he) || he.Code != "PARSE-0005" {
		t.Errorf("cached parse error = %v, want PARSE-0005", err)
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)
	for _, src := range []string{"<a></a>", "<b></b>", "<i></i>"} {
		if _, err := c.Parse(mustSplit(t, src)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c := NewCache(8)
	if _, err := c.Parse(mustSplit(t, "<div>")); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestScanTag(t *testing.T) {
	tag := scanTag(`<Input  type="text" value=hyper-slot-0-end/>`)
	if tag.name != "Input" || !tag.selfClosing || len(tag.attrs) != 2 {
		t.Fatalf("scanTag = %+v", tag)
	}
	if tag.attrs[1].value != "hyper-slot-0-end" {
		t.Errorf("value = %q", tag.attrs[1].value)
	}

	end := scanTag("</Section >")
	if !end.end || end.name != "Section" {
		t.Errorf("scanTag(end) = %+v", end)
	}
}
