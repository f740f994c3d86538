package hyper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/inject"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

func mustCompile(t *testing.T, name, src string, opts ...Option) *Template {
	t.Helper()
	tmpl, err := Compile(name, src, opts...)
	if err != nil {
		t.Fatalf("Compile(%s): %v", name, err)
	}
	return tmpl
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		props map[string]any
		want  string
	}{
		{"A static", "<div>Hello</div>", nil, "<div>Hello</div>"},
		{"B required prop", "name: string\n---\n<p>Hello, {name}!</p>", map[string]any{"name": "World"}, "<p>Hello, World!</p>"},
		{"C flag true", "flag: bool\n---\n<button disabled={flag}>Click</button>", map[string]any{"flag": true}, "<button disabled>Click</button>"},
		{"C flag false", "flag: bool\n---\n<button disabled={flag}>Click</button>", map[string]any{"flag": false}, "<button>Click</button>"},
		{"D loading", `status: string
---
<!--@ if {status == "error"} --><span>Error!</span><!--@ elif {status == "loading"} --><span>Loading...</span><!--@ else --><span>OK</span><!--@ end -->`,
			map[string]any{"status": "loading"}, "<span>Loading...</span>"},
		{"E spread", "opts: dict\n---\n<div {opts}></div>", map[string]any{"opts": object.Pairs("id", "x", "disabled", true)}, `<div id="x" disabled></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustCompile(t, "scenario", tt.src)
			for i := 0; i < 2; i++ {
				got, err := tmpl.Render(context.Background(), tt.props)
				if err != nil {
					t.Fatalf("Render: %v", err)
				}
				if string(got) != tt.want {
					t.Errorf("Render = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestRenderMissingProp(t *testing.T) {
	tmpl := mustCompile(t, "greeting", "name: string\ngreeting: string = \"Hello\"\n---\n<p>{greeting}, {name}!</p>")
	_, err := tmpl.Render(context.Background(), nil)
	if !herrors.IsProp(err) {
		t.Fatalf("err = %v, want a prop error", err)
	}
	var he *herrors.HyperError
	errors.As(err, &he)
	if he.Code != "PROP-0001" || !strings.Contains(he.Message, "'name'") {
		t.Errorf("error = %s %s", he.Code, he.Message)
	}
	table := strings.Join(he.Hints, "\n")
	for _, want := range []string{"name: string (required)", `greeting: string = "Hello"`} {
		if !strings.Contains(table, want) {
			t.Errorf("hints %q missing %q", table, want)
		}
	}

	// The artifact stays usable after a failed call.
	got, err := tmpl.Render(context.Background(), map[string]any{"name": "Ann"})
	if err != nil || got != "<p>Hello, Ann!</p>" {
		t.Errorf("Render = %q, %v", got, err)
	}
}

func TestRenderPropTypes(t *testing.T) {
	tmpl := mustCompile(t, "counter", "count: int = 1\nlabel: string = \"n\"\n---\n<p>{label}={count}</p>")
	tests := []struct {
		name     string
		props    map[string]any
		want     string
		wantCode string
	}{
		{"defaults", nil, "<p>n=1</p>", ""},
		{"provided", map[string]any{"count": 5}, "<p>n=5</p>", ""},
		{"nil passes unchecked", map[string]any{"count": nil}, "<p>n=</p>", ""},
		{"mismatch", map[string]any{"count": "five"}, "", "PROP-0002"},
		{"markup is a string", map[string]any{"label": runtime.Markup("<i>n</i>")}, "<p><i>n</i>=1</p>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tmpl.Render(context.Background(), tt.props)
			if tt.wantCode != "" {
				var he *herrors.HyperError
				if !errors.As(err, &he) || he.Code != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				if he.Message != "counter.count: expected int, got string" {
					t.Errorf("message = %q", he.Message)
				}
				if got != "" {
					t.Errorf("failed render returned %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderAttrsAndChildren(t *testing.T) {
	tmpl := mustCompile(t, "box", "title: string\n---\n<div class=\"box\" {attrs}><h2>{title}</h2>{...}<i>{len(children)}</i></div>")

	got, err := tmpl.Render(context.Background(),
		map[string]any{"title": "T", "id": "main"},
		runtime.Markup("<b>hi</b>"), " & more")
	if err != nil {
		t.Fatal(err)
	}
	want := `<div class="box" id="main"><h2>T</h2><b>hi</b> & more<i>1</i></div>`
	if string(got) != want {
		t.Errorf("Render = %q, want %q", got, want)
	}

	got, _ = tmpl.Render(context.Background(), map[string]any{"title": "T"})
	if string(got) != `<div class="box"><h2>T</h2><i>0</i></div>` {
		t.Errorf("without children = %q", got)
	}
}

func TestComponents(t *testing.T) {
	card := mustCompile(t, "card", `title: string
_heading = title.upper()
---
<section {attrs}><h2>{_heading}</h2>{...}</section>`)
	page := mustCompile(t, "page", "items: list\n---\n<main><!--@ match {len(items)} --><!--@ case {0} --><p>none</p><!--@ case {...} --><{Card} title=\"Items\" role=\"list\"><p>{items.join(\", \")}</p></{Card}><!--@ end --></main>",
		WithGlobal("Card", card))

	tests := []struct {
		name  string
		items []any
		want  string
	}{
		{"empty", []any{}, "<main><p>none</p></main>"},
		{"items", []any{"a", "<b>"}, `<main><section role="list"><h2>ITEMS</h2><p>a, &lt;b&gt;</p></section></main>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := page.Render(context.Background(), map[string]any{"items": tt.items})
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComponentAttrEntities(t *testing.T) {
	card := mustCompile(t, "card", "label: string\n---\n<b>{label}</b>")

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"static", `<{Card} label="a &amp; b" />`, "<b>a &amp; b</b>"},
		{"templated", `x: string` + "\n---\n" + `<{Card} label="{x} &amp; y" />`, "<b>a &amp; y</b>"},
		{"numeric entity", `<{Card} label="&#60;i&#62;" />`, "<b>&lt;i&gt;</b>"},
		{"element keeps entities", `<p title="a &amp; b">x</p>`, `<p title="a &amp; b">x</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustCompile(t, "page", tt.src, WithGlobal("Card", card))
			got, err := page.Render(context.Background(), map[string]any{"x": "a"})
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClosingTagIgnoresCase(t *testing.T) {
	tests := []struct{ src, want string }{
		{"<Div>a</div>", "<Div>a</Div>"},
		{"<ul><LI>x</li></UL>", "<ul><LI>x</LI></ul>"},
		{"<p>a<BR>b</P>", "<p>a<BR />b</p>"},
	}
	for _, tt := range tests {
		got, err := mustCompile(t, "case", tt.src).Render(context.Background(), nil)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.src, err)
		}
		if string(got) != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
	if _, err := Compile("case", "<Div><span></DIV>"); !herrors.IsParse(err) {
		t.Errorf("err = %v, want a parse error", err)
	}
}

func TestComponentPropErrorsReachCaller(t *testing.T) {
	card := mustCompile(t, "card", "title: string\n---\n<h2>{title}</h2>")
	page := mustCompile(t, "page", "<{Card} />", WithGlobal("Card", card))
	_, err := page.Render(context.Background(), nil)
	if !herrors.IsProp(err) {
		t.Errorf("err = %v, want a prop error from card", err)
	}
}

func TestDependencies(t *testing.T) {
	tmpl := mustCompile(t, "agent", "user_agent: Header[string]\nsession: Cookie = \"anon\"\n---\n<p>{user_agent} {session}</p>")

	ctx := inject.With(context.Background(), map[string]any{
		"headers": map[string]any{"User-Agent": "curl/8.0"},
		"cookies": map[string]any{"session": "abc"},
	})
	got, err := tmpl.Render(ctx, nil)
	if err != nil || got != "<p>curl/8.0 abc</p>" {
		t.Errorf("Render = %q, %v", got, err)
	}

	ctx = inject.With(context.Background(), map[string]any{"headers": map[string]any{"User-Agent": "curl/8.0"}})
	got, _ = tmpl.Render(ctx, nil)
	if got != "<p>curl/8.0 anon</p>" {
		t.Errorf("default dependency = %q", got)
	}

	got, err = tmpl.Render(context.Background(), map[string]any{"user_agent": "explicit"})
	if err != nil || got != "<p>explicit anon</p>" {
		t.Errorf("caller-supplied dependency = %q, %v", got, err)
	}

	_, err = tmpl.Render(context.Background(), nil)
	var he *herrors.HyperError
	if !errors.As(err, &he) || he.Code != "PROP-0003" {
		t.Errorf("err = %v, want PROP-0003", err)
	}
}

func TestDependenciesAreCallScoped(t *testing.T) {
	tmpl := mustCompile(t, "who", "user: Annotated[str, Header]\n---\n{user}")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("u%d", i)
			ctx := inject.With(context.Background(), map[string]any{"user": name})
			got, err := tmpl.Render(ctx, nil)
			if err != nil || string(got) != name {
				t.Errorf("render %d = %q, %v", i, got, err)
			}
		}(i)
	}
	wg.Wait()
}

var errLookup = errors.New("lookup failed")

func TestRuntimeErrorsAreNotWrapped(t *testing.T) {
	fail := func(string) (string, error) { return "", errLookup }
	tests := []struct {
		name  string
		src   string
		check func(error) bool
	}{
		{"division", "n: int\n---\n<p>{10 / n}</p>", func(err error) bool {
			var he *herrors.HyperError
			return errors.As(err, &he) && he.Code == "RUN-0001"
		}},
		{"aux division", "n: int\ntotal = 10 % n\n---\n<p>{total}</p>", func(err error) bool {
			var he *herrors.HyperError
			return errors.As(err, &he) && he.Code == "RUN-0001"
		}},
		{"host function", "n: int\n---\n<p>{fetch(\"x\")}</p>", func(err error) bool { return err == errLookup }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustCompile(t, "broken", tt.src, WithGlobal("fetch", fail))
			got, err := tmpl.Render(context.Background(), map[string]any{"n": 0})
			if !tt.check(err) {
				t.Errorf("err = %#v", err)
			}
			if herrors.IsCompile(err) || herrors.IsProp(err) {
				t.Errorf("runtime error was wrapped: %v", err)
			}
			if got != "" {
				t.Errorf("partial output %q", got)
			}
		})
	}
}

func TestCompileReusesArtifact(t *testing.T) {
	src := "<p>{1 + 1}</p>"
	a := mustCompile(t, "two", src)
	b := mustCompile(t, "two", src)
	if a.compiled != b.compiled {
		t.Error("compiling the same source twice should share the artifact")
	}
	if a.Identity() == "" || a.Identity() != b.Identity() {
		t.Errorf("identities %q and %q", a.Identity(), b.Identity())
	}
	if !strings.Contains(a.Source(), "; program two") {
		t.Errorf("Source = %q", a.Source())
	}
	if a.Text() != src {
		t.Errorf("Text = %q", a.Text())
	}
}

func TestCompileErrorsCarryName(t *testing.T) {
	_, err := Compile("broken", "<div>")
	var he *herrors.HyperError
	if !errors.As(err, &he) || he.Code != "COMP-0001" || he.File != "broken" {
		t.Fatalf("err = %v", err)
	}
	if !herrors.IsParse(err) {
		t.Error("the parse error should be reachable")
	}
}

func TestHTML(t *testing.T) {
	item := func(label string) runtime.Markup {
		got, err := HTML(context.Background(), tstring.Of([]string{"<li>", "</li>"}, label))
		if err != nil {
			t.Fatal(err)
		}
		return got
	}
	tests := []struct {
		name string
		t    *tstring.Template
		want string
	}{
		{"escaped text", tstring.Of([]string{"<p>", "</p>"}, "<b>"), "<p>&lt;b&gt;</p>"},
		{"markup passes", tstring.Of([]string{"<ul>", "</ul>"}, item("a&b")), "<ul><li>a&amp;b</li></ul>"},
		{"attr", tstring.Of([]string{"<a href=", ">x</a>"}, `"q"`), `<a href="&#34;q&#34;">x</a>`},
		{"class list", tstring.Of([]string{"<p class=", "></p>"}, []any{"a", map[string]any{"b": true, "c": false}}), `<p class="a b"></p>`},
		{"spread", tstring.Of([]string{"<input ", " />"}, object.Pairs("type", "text", "required", true)), `<input type="text" required />`},
		{"match wildcard", tstring.Of([]string{"<!--@ match ", " --><!--@ case ", " -->one<!--@ case ", " -->other<!--@ end -->"}, 2, 1, tstring.Ellipsis), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTML(context.Background(), tt.t)
			if err != nil {
				t.Fatalf("HTML: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("HTML = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConcurrentRender(t *testing.T) {
	tmpl := mustCompile(t, "n", "n: int\n---\n<b>{n * 2}</b>")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := tmpl.Render(context.Background(), map[string]any{"n": i})
			want := fmt.Sprintf("<b>%d</b>", i*2)
			if err != nil || string(got) != want {
				t.Errorf("render %d = %q, %v", i, got, err)
			}
		}(i)
	}
	wg.Wait()
}
