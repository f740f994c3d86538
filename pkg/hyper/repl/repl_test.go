package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
)

func TestSessionEval(t *testing.T) {
	s := NewSession(context.Background())

	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2", "3"},
		{"name = \"ada\"", ""},
		{"name.upper()", `"ADA"`},
		{"items = [1, 2, 3]\nitems.len()", "3"},
		{"", ""},
		{"<p>Hi {name}</p>", "<p>Hi ada</p>"},
		{"<i>{\"<a>\"}</i>", "<i>&lt;a&gt;</i>"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := s.Eval(tt.input)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	if v, ok := s.Vars()["name"]; !ok || v != "ada" {
		t.Errorf("Vars = %v", s.Vars())
	}
	s.Reset()
	if len(s.Vars()) != 0 {
		t.Errorf("Vars after Reset = %v", s.Vars())
	}
}

func TestSessionErrors(t *testing.T) {
	s := NewSession(context.Background())

	tests := []struct {
		input string
		check func(error) bool
	}{
		{"1 +", herrors.IsParse},
		{"missing", func(err error) bool { return strings.Contains(err.Error(), "missing") }},
		{"<div>", herrors.IsParse},
		{"import \"x\"", func(err error) bool { return strings.Contains(err.Error(), "imports") }},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := s.Eval(tt.input)
			if err == nil || !tt.check(err) {
				t.Errorf("Eval(%q) err = %v", tt.input, err)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "greet.hyper")
	if err := os.WriteFile(page, []byte("name: string\n---\n<b>{name}</b>"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSession(context.Background())
	s.Set("name", "Bo")
	s.Set("count", int64(2))

	tests := []struct {
		cmd  string
		want []string
	}{
		{":help", []string{":render FILE", "exit, quit"}},
		{":env", []string{"count: int = 2", `name: string = "Bo"`}},
		{":render " + page, []string{"<b>Bo</b>"}},
		{":render", []string{"usage: :render FILE"}},
		{":render " + filepath.Join(dir, "missing.hyper"), []string{"cannot read template"}},
		{":nope", []string{"Unknown command: :nope"}},
		{":clear", []string{"Scope cleared"}},
		{":env", []string{"(no names bound)"}},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		s.Command(tt.cmd, &out)
		for _, w := range tt.want {
			if !strings.Contains(out.String(), w) {
				t.Errorf("%s: output %q does not contain %q", tt.cmd, out.String(), w)
			}
		}
	}
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"1 + 2", false},
		{"x = [1,", true},
		{"f(1", true},
		{"if a {", true},
		{"if a {\n  b = 1\n}", false},
		{`s = "{"`, false},
		{`s = 'it\'s ('`, false},
		{"a < b", false},
		{"<div>", true},
		{"<div>\n  <p>hi</p>", true},
		{"<div>\n  <p>hi</p>\n</div>", false},
		{"<br>", false},
		{"<input type=\"text\">", false},
		{"<img src={src} />", false},
		{"<p>don't</p>", false},
		{"<!-- note --><p>x</p>", false},
		{"<>", true},
		{"<><i>a</i></>", false},
		{"<{Card} title={t}>", true},
		{"<{Card} title={t}>body</{Card}>", false},
		{"<p>{items.map(", true},
		{"<a href=\"x", true},
	}
	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCompletions(t *testing.T) {
	names := []string{"user", "users_total"}

	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"x ", nil},
		{"us", []string{"user", "users_total"}},
		{"1 + users", []string{"1 + users_total"}},
		{"el", []string{"else"}},
		{"up", []string{"upper"}},
		{"x.", nil},
	}
	for _, tt := range tests {
		got := completions(tt.line, names)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("completions(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
