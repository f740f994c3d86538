package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/logging"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// rootCause returns the innermost HyperError err wraps.
func rootCause(err error) *herrors.HyperError {
	var he *herrors.HyperError
	for err != nil {
		var next *herrors.HyperError
		if !errors.As(err, &next) {
			break
		}
		he = next
		err = next.Err
	}
	return he
}

var nopComponent = vm.ComponentFunc(func(context.Context, *object.Dict, []runtime.Markup) (runtime.Markup, error) {
	return "", nil
})

func TestCompileProps(t *testing.T) {
	src := `title: string
count: int = 3
tags: list[string] = ["a", "b"]
theme: dict = {mode: "dark"}
offset: float = -1.5
user_agent: Header[string]
_label = title.upper()
total = count * 2
---
<p>{_label} {total}</p>`

	compiled, err := New(Options{}).Compile("card", "", []byte(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var names []string
	for _, p := range compiled.Props {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "title,count,tags,theme,offset,user_agent" {
		t.Fatalf("props = %s", got)
	}

	tests := []struct {
		name       string
		hasDefault bool
		def        any
		dependency bool
	}{
		{"title", false, nil, false},
		{"count", true, int64(3), false},
		{"tags", true, []any{"a", "b"}, false},
		{"offset", true, -1.5, false},
		{"user_agent", false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := compiled.Prop(tt.name)
			if !ok {
				t.Fatalf("prop %s missing", tt.name)
			}
			if p.HasDefault != tt.hasDefault || p.IsDependency != tt.dependency {
				t.Errorf("%s: HasDefault=%v IsDependency=%v", tt.name, p.HasDefault, p.IsDependency)
			}
			if tt.hasDefault && !object.Equal(p.Default, tt.def) {
				t.Errorf("%s default = %v, want %v", tt.name, p.Default, tt.def)
			}
		})
	}

	theme, _ := compiled.Prop("theme")
	if d, ok := theme.Default.(*object.Dict); !ok || !object.Equal(d.ToMap()["mode"], "dark") {
		t.Errorf("theme default = %v", theme.Default)
	}
	if n := len(compiled.Program.Aux); n != 2 {
		t.Errorf("aux statements = %d, want 2", n)
	}
	if compiled.Identity == "" {
		t.Error("missing identity")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantCode string
		wantHint string
	}{
		{"unknown type", "a: strng\n---\n<p/>", "COMP-0002", "did you mean 'string'?"},
		{"computed default", "a: int = 1 + 2\n---\n<p/>", "COMP-0003", ""},
		{"default from name", "a: int = b\n---\n<p/>", "COMP-0003", ""},
		{"reserved children", "children: list\n---\n<p/>", "COMP-0004", ""},
		{"reserved attrs", "attrs: dict\n---\n<p/>", "COMP-0004", ""},
		{"declared twice", "a: int\na: str\n---\n<p/>", "COMP-0005", ""},
		{"import without resolver", "import Card \"card.hyper\"\n---\n<p/>", "IMPORT-0001", ""},
		{"wildcard not last", "<!--@ match {1} --><!--@ case {...} -->a<!--@ case {1} -->b<!--@ end -->", "COMP-0006", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Compile("t", "", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !herrors.IsCompile(err) {
				t.Errorf("%v is not a compile error", err)
			}
			var outer *herrors.HyperError
			if !errors.As(err, &outer) || outer.Code != "COMP-0001" {
				t.Errorf("outer error = %v, want COMP-0001", err)
			}
			cause := rootCause(err)
			if cause == nil || cause.Code != tt.wantCode {
				t.Fatalf("cause = %v, want %s", cause, tt.wantCode)
			}
			if tt.wantHint != "" && !strings.Contains(strings.Join(cause.Hints, "\n"), tt.wantHint) {
				t.Errorf("hints = %q, want %q", cause.Hints, tt.wantHint)
			}
		})
	}
}

func TestCompileWrapsParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{"header", "a: [int]\n---\n<p/>", 1},
		{"slot expression", "a: int\n---\n\n<p>{a +}</p>", 4},
		{"markup", "<div>\n<span></div>", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Compile("page", "", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !herrors.IsParse(err) || !herrors.IsCompile(err) {
				t.Fatalf("%v should be both a parse and a compile error", err)
			}
			var he *herrors.HyperError
			errors.As(err, &he)
			if he.Line != tt.wantLine {
				t.Errorf("line = %d, want %d (%v)", he.Line, tt.wantLine, err)
			}
			if he.File != "page" {
				t.Errorf("file = %q, want page", he.File)
			}
		})
	}
}

func TestCompileImports(t *testing.T) {
	var dirs, paths []string
	resolver := ResolverFunc(func(fromDir, path string) (vm.Component, error) {
		dirs = append(dirs, fromDir)
		paths = append(paths, path)
		return nopComponent, nil
	})

	src := "import Card \"parts/card.hyper\"\nimport \"icon.hyper\"\nslot: Card\n---\n<{Card} />"
	compiled, err := New(Options{Resolver: resolver}).Compile("page", filepath.Join("views", "page.hyper"), []byte(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := compiled.Scope["Card"]; !ok {
		t.Error("Card not bound")
	}
	if _, ok := compiled.Scope["icon"]; !ok {
		t.Error("icon not bound to the file stem")
	}
	if !reflect.DeepEqual(paths, []string{"parts/card.hyper", "icon.hyper"}) {
		t.Errorf("resolved %v", paths)
	}
	for _, d := range dirs {
		if d != "views" {
			t.Errorf("fromDir = %q, want views", d)
		}
	}

	slot, _ := compiled.Prop("slot")
	if !slot.Type.Check(nopComponent) || slot.Type.Check("text") {
		t.Error("an imported component type should accept components only")
	}
}

func TestCompileImportFailure(t *testing.T) {
	missing := herrors.New("IMPORT-0001", map[string]any{"Name": "nav"})
	resolver := ResolverFunc(func(string, string) (vm.Component, error) { return nil, missing })

	_, err := New(Options{Resolver: resolver}).Compile("page", "", []byte("import \"nav\"\n---\n<p/>"))
	if !errors.Is(err, missing) {
		t.Errorf("err = %v, want it to wrap %v", err, missing)
	}
}

type user struct{ Name string }

func TestPropTypes(t *testing.T) {
	src := `s: string
i: int
n: number
b: bool
l: list[int]
d: dict
when: time
who: User
any_thing: any
---
<p/>`
	c := New(Options{Types: map[string]reflect.Type{"User": reflect.TypeOf(user{})}})
	compiled, err := c.Compile("types", "", []byte(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		prop string
		v    any
		want bool
	}{
		{"s", "text", true},
		{"s", runtime.Markup("<b>"), true},
		{"s", 3, false},
		{"i", int64(3), true},
		{"i", 3.5, false},
		{"n", 3.5, true},
		{"n", "3", false},
		{"b", false, true},
		{"b", 0, false},
		{"l", []any{int64(1), 2}, true},
		{"l", []int{1, 2}, true},
		{"l", []any{"a"}, false},
		{"l", "ab", false},
		{"d", map[string]any{"a": 1}, true},
		{"d", []any{}, false},
		{"when", time.Now(), true},
		{"when", "2024-01-01", false},
		{"who", user{"ann"}, true},
		{"who", &user{"ann"}, true},
		{"who", "ann", false},
		{"any_thing", struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			p, _ := compiled.Prop(tt.prop)
			if got := p.Type.Check(tt.v); got != tt.want {
				t.Errorf("%s.Check(%#v) = %v, want %v", p.TypeName, tt.v, got, tt.want)
			}
		})
	}
}

func TestCompileCache(t *testing.T) {
	c := New(Options{})
	src := []byte("a: int\n---\n<p>{a}</p>")

	first, err := c.Compile("a", "a.hyper", src)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := c.Compile("a", "a.hyper", src)
	if first != second {
		t.Error("same source should return the cached artifact")
	}
	other, _ := c.Compile("b", "b.hyper", src)
	if other == first {
		t.Error("different paths compile separately")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	c.Invalidate("a.hyper")
	if c.Len() != 1 {
		t.Errorf("Len after Invalidate = %d, want 1", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}

	again, _ := c.Compile("a", "a.hyper", src)
	if again == first || again.Identity != first.Identity {
		t.Error("recompiling the same source should keep its identity")
	}

	if _, err := c.Compile("bad", "", []byte("<div>")); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 1 {
		t.Error("failed compiles must not be cached")
	}
}

func TestDebugListing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card.hyper")
	log, buf := logging.NewBuffer()

	c := New(Options{Debug: true, Logger: log})
	if _, err := c.Compile("card", path, []byte("title: string\n---\n<h1>{title}</h1>")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "card.gen.txt"))
	if err != nil {
		t.Fatalf("listing not written: %v", err)
	}
	for _, want := range []string{"; program card", ";   title: string (required)", "ESCAPE"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("listing missing %q:\n%s", want, data)
		}
	}
	if !strings.Contains(buf.String(), "[DEBUG] compiler: wrote") {
		t.Errorf("log = %q", buf.String())
	}

	out := filepath.Join(t.TempDir(), "gen")
	c = New(Options{Debug: true, DebugDir: out})
	if _, err := c.Compile("inline", "", []byte("<p/>")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "inline.gen.txt")); err != nil {
		t.Errorf("listing not written to DebugDir: %v", err)
	}
}

func TestDebugListingFailureIsNotFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	log, buf := logging.NewBuffer()
	c := New(Options{Debug: true, DebugDir: filepath.Join(blocker, "sub"), Logger: log})
	if _, err := c.Compile("x", "", []byte("<p/>")); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}

func TestSplitSource(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		wantHeader string
		wantBody   string
		wantLine   int
	}{
		{"no header", "<p/>", "", "<p/>", 1},
		{"header", "a: int\n---\n<p/>", "a: int\n", "<p/>", 3},
		{"padded separator", "a: int\n  ---  \n<p/>", "a: int\n", "<p/>", 3},
		{"crlf", "a: int\r\n---\r\n<p/>", "a: int\r\n", "<p/>", 3},
		{"empty header", "---\n<p/>", "", "<p/>", 2},
		{"separator last", "a: int\n---", "a: int\n", "", 3},
		{"dashes inside a line", "<p>---</p>", "", "<p>---</p>", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, body, line := SplitSource(tt.src)
			if header != tt.wantHeader || body != tt.wantBody || line != tt.wantLine {
				t.Errorf("SplitSource(%q) = %q, %q, %d; want %q, %q, %d",
					tt.src, header, body, line, tt.wantHeader, tt.wantBody, tt.wantLine)
			}
		})
	}
}

func TestDebugFromEnv(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want bool
	}{
		{map[string]string{}, false},
		{map[string]string{"DEBUG": "1"}, true},
		{map[string]string{"HYPER_DEBUG": "Yes"}, true},
		{map[string]string{"DEBUG": "on"}, true},
		{map[string]string{"DEBUG": "0"}, false},
		{map[string]string{"HYPER_DEBUG": "false"}, false},
	}
	for _, tt := range tests {
		getenv := func(k string) string { return tt.env[k] }
		if got := DebugFromEnv(getenv); got != tt.want {
			t.Errorf("DebugFromEnv(%v) = %v, want %v", tt.env, got, tt.want)
		}
	}
}
