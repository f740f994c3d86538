package codegen

import (
	"errors"
	"strings"
	"testing"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/tdom"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

func generate(t *testing.T, src string) (*Program, error) {
	t.Helper()
	tmpl, err := tstring.Split(src)
	if err != nil {
		t.Fatalf("Split(%q): %v", src, err)
	}
	tree, err := tdom.ParseUncached(tmpl)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return Generate(tree, tmpl, Options{Name: "test"})
}

// instructions renders the program one instruction per entry.
func instructions(p *Program) []string {
	out := make([]string, len(p.Code))
	for i, ins := range p.Code {
		out[i] = strings.TrimSpace(Op(ins).String() + " " + p.operand(ins))
	}
	return out
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"static", "<div>Hello</div>", []string{
			`TEXT "<div>Hello</div>"`,
		}},
		{"text slot", "<p>Hello, {name}!</p>", []string{
			`TEXT "<p>Hello, "`,
			`EVAL #0 {name}`,
			`ESCAPE`,
			`TEXT "!</p>"`,
		}},
		{"interpolated attr", "<button disabled={flag}>Click</button>", []string{
			`TEXT "<button"`,
			`EVAL #0 {flag}`,
			`ATTR "disabled"`,
			`TEXT ">Click</button>"`,
		}},
		{"class and style", `<p class={c} style={s}></p>`, []string{
			`TEXT "<p class=\""`,
			`EVAL #0 {c}`,
			`CLASS`,
			`TEXT "\" style=\""`,
			`EVAL #1 {s}`,
			`STYLE`,
			`TEXT "\"></p>"`,
		}},
		{"data aria", `<p data={d} aria={a} aria-hidden={h}></p>`, []string{
			`TEXT "<p"`,
			`EVAL #0 {d}`,
			`DATA`,
			`EVAL #1 {a}`,
			`ARIA`,
			`EVAL #2 {h}`,
			`ARIA_ATTR "aria-hidden"`,
			`TEXT "></p>"`,
		}},
		{"templated attr", `<a href="/u/{id}">x</a>`, []string{
			`TEXT "<a href=\"/u/"`,
			`EVAL #0 {id}`,
			`ATTR_ESCAPE`,
			`TEXT "\">x</a>"`,
		}},
		{"spread and static", `<input {attrs} type="text" required>`, []string{
			`TEXT "<input"`,
			`EVAL #0 {attrs}`,
			`SPREAD`,
			`TEXT " type=\"text\" required />"`,
		}},
		{"comment and doctype", `<!DOCTYPE html><!-- v{n} -->`, []string{
			`TEXT "<!DOCTYPE html><!-- v"`,
			`EVAL #0 {n}`,
			`ESCAPE`,
			`TEXT " -->"`,
		}},
		{"conditional", `<!--@ if {a} -->A<!--@ elif {b} -->B<!--@ else -->C<!--@ end -->`, []string{
			`EVAL #0 {a}`,
			`JUMP_IF_FALSE -> 0004`,
			`TEXT "A"`,
			`JUMP -> 0009`,
			`EVAL #1 {b}`,
			`JUMP_IF_FALSE -> 0008`,
			`TEXT "B"`,
			`JUMP -> 0009`,
			`TEXT "C"`,
		}},
		{"conditional without else", `<!--@ if {a} -->A<!--@ end -->!`, []string{
			`EVAL #0 {a}`,
			`JUMP_IF_FALSE -> 0004`,
			`TEXT "A"`,
			`JUMP -> 0004`,
			`TEXT "!"`,
		}},
		{"match", `<!--@ match {k} --><!--@ case {1} -->one<!--@ case {_} -->other<!--@ end -->`, []string{
			`EVAL #0 {k}`,
			`EVAL #1 {1}`,
			`MATCH`,
			`JUMP_IF_FALSE -> 0006`,
			`TEXT "one"`,
			`JUMP -> 0007`,
			`TEXT "other"`,
			`POP`,
		}},
		{"component", `<{Card} title="x" is-open>{...}</{Card}>`, []string{
			`EVAL #0 {Card}`,
			`NEW_ARGS`,
			`CONST "x"`,
			`SET_ARG "title"`,
			`CONST true`,
			`SET_ARG "is_open"`,
			`CAPTURE`,
			`CHILDREN`,
			`END_CAPTURE`,
			`CALL #0 {Card}, children`,
		}},
		{"component templated and spread", `<{Icon} {opts} label="a {b}" />`, []string{
			`EVAL #0 {Icon}`,
			`NEW_ARGS`,
			`EVAL #1 {opts}`,
			`MERGE_ARGS`,
			`CONST "a "`,
			`EVAL #2 {b}`,
			`CONCAT 2`,
			`SET_ARG "label"`,
			`CALL #0 {Icon}`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := generate(t, tt.input)
			if err != nil {
				t.Fatalf("Generate(%q) error: %v", tt.input, err)
			}
			got := instructions(prog)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("Generate(%q) =\n%s\nwant\n%s", tt.input,
					strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestGenerateWildcardMustBeLast(t *testing.T) {
	_, err := generate(t, `<!--@ match {k} --><!--@ case {...} -->any<!--@ case {1} -->one<!--@ end -->`)
	var he *herrors.HyperError
	if !errors.As(err, &he) || he.Code != "COMP-0006" {
		t.Errorf("error = %v, want COMP-0006", err)
	}
}

func TestGenerateExpressionSyntaxError(t *testing.T) {
	_, err := generate(t, "<div>\n<p>{1 +}</p></div>")
	if err == nil {
		t.Fatal("expected error")
	}
	if !herrors.IsParse(err) {
		t.Errorf("error class = %v, want parse", err)
	}
	var he *herrors.HyperError
	if errors.As(err, &he) && he.Line != 2 {
		t.Errorf("line = %d, want 2", he.Line)
	}
}

func TestGenerateEager(t *testing.T) {
	tmpl := tstring.Of([]string{"<p>", " ", "</p>"}, "hi", tstring.Ellipsis)
	tree, err := tdom.ParseUncached(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	prog, err := Generate(tree, tmpl, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !prog.Eager() || prog.Exprs != nil {
		t.Fatal("eager template should carry values, not expressions")
	}
	want := []string{`TEXT "<p>"`, `EVAL #0 {"hi"}`, `ESCAPE`, `TEXT " "`, `CHILDREN`, `TEXT "</p>"`}
	if got := instructions(prog); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("instructions = %q, want %q", got, want)
	}
}

func TestListing(t *testing.T) {
	tmpl, _ := tstring.Split("<p>{name}</p>")
	tree, _ := tdom.ParseUncached(tmpl)
	prog, err := Generate(tree, tmpl, Options{Name: "Greeting", Props: []string{"name: string"}})
	if err != nil {
		t.Fatal(err)
	}
	listing := prog.Listing()
	for _, want := range []string{
		"; program Greeting",
		";   name: string",
		";   #0 {name}",
		`0000  TEXT          "<p>"`,
		"0002  ESCAPE\n",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestStringConstantsShared(t *testing.T) {
	prog, err := generate(t, `<a title={x}></a><b title={y}></b>`)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, c := range prog.Consts {
		if c == "title" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("constant \"title\" stored %d times, want 1", count)
	}
}
