package tstring

import (
	"errors"
	"reflect"
	"testing"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		strings []string
		exprs   []string
	}{
		{"no slots", "<div>Hello</div>", []string{"<div>Hello</div>"}, nil},
		{"one slot", "<p>Hello, {name}!</p>", []string{"<p>Hello, ", "!</p>"}, []string{"name"}},
		{"adjacent", "{a}{b}", []string{"", "", ""}, []string{"a", "b"}},
		{"trimmed", "{  user.name  }", []string{"", ""}, []string{"user.name"}},
		{"literal braces", "a {{b}} c", []string{"a {b} c"}, nil},
		{"nested dict", "<a {{'x': 1}}>", []string{"<a {'x': 1}>"}, nil},
		{"dict in slot", "<a { {'id': 'x'} }>", []string{"<a ", ">"}, []string{"{'id': 'x'}"}},
		{"brace in string", `{"}" + x}`, []string{"", ""}, []string{`"}" + x`}},
		{"component", "<{Card} title={t}>{...}</{Card}>", []string{"<", " title=", ">", "</", ">"},
			[]string{"Card", "t", "...", "Card"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Split(tt.input)
			if err != nil {
				t.Fatalf("Split(%q) error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(tmpl.Strings, tt.strings) {
				t.Errorf("Strings = %q, want %q", tmpl.Strings, tt.strings)
			}
			var exprs []string
			for i, ip := range tmpl.Interpolations {
				if ip.Index != i {
					t.Errorf("Interpolations[%d].Index = %d", i, ip.Index)
				}
				exprs = append(exprs, ip.Expression)
			}
			if !reflect.DeepEqual(exprs, tt.exprs) {
				t.Errorf("expressions = %q, want %q", exprs, tt.exprs)
			}
		})
	}
}

func TestSplitPositions(t *testing.T) {
	tmpl, err := SplitAt("<ul>\n  <li>{ item }</li>\n</ul>", 4)
	if err != nil {
		t.Fatal(err)
	}
	ip := tmpl.Interpolations[0]
	if ip.Line != 5 || ip.Column != 9 {
		t.Errorf("position = %d:%d, want 5:9", ip.Line, ip.Column)
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"<p>{name</p>", "PARSE-0008"},
		{"<p>a } b</p>", "PARSE-0009"},
		{"<p>{ }</p>", "PARSE-0201"},
		{"{'unterminated}", "PARSE-0008"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Split(tt.input)
			var he *herrors.HyperError
			if !errors.As(err, &he) {
				t.Fatalf("Split(%q) error = %v, want HyperError", tt.input, err)
			}
			if he.Code != tt.code {
				t.Errorf("code = %s, want %s", he.Code, tt.code)
			}
		})
	}
}

func TestOf(t *testing.T) {
	tmpl := Of([]string{"<p>", "</p>"}, 42)
	if !tmpl.Eager || len(tmpl.Interpolations) != 1 || tmpl.Interpolations[0].Value != 42 {
		t.Errorf("Of() = %+v", tmpl)
	}
	if got := tmpl.Describe(0); got != "{42}" {
		t.Errorf("Describe(0) = %q", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Of with mismatched lengths should panic")
		}
	}()
	Of([]string{"a"}, 1)
}

func TestKeyIgnoresSlots(t *testing.T) {
	a, _ := Split("<p>{x}</p>")
	b, _ := Split("<p>{y + 1}</p>")
	c, _ := Split("<p>{x}</p >")
	if a.Key() != b.Key() {
		t.Error("templates with equal strings should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("templates with different strings should not share a key")
	}
}
