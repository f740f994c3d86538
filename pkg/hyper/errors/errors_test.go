package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestHyperError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *HyperError
		expected string
	}{
		{
			name:     "message only",
			err:      &HyperError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with line and column",
			err:      &HyperError{Message: "unexpected token", Line: 5, Column: 10},
			expected: "line 5, column 10: unexpected token",
		},
		{
			name:     "with file",
			err:      &HyperError{Message: "unclosed element <div>", File: "card.hyper", Line: 3, Column: 1},
			expected: "card.hyper: line 3, column 1: unclosed element <div>",
		},
		{
			name: "with hints",
			err: &HyperError{
				Message: "Card: missing required prop 'title'",
				Hints:   []string{"title: string (required)", "size: int = 1"},
			},
			expected: "Card: missing required prop 'title'\n  title: string (required)\n  size: int = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewFromCatalog(t *testing.T) {
	tests := []struct {
		code    string
		data    map[string]any
		class   ErrorClass
		message string
	}{
		{"PARSE-0001", map[string]any{"Expected": "div", "Got": "span"}, ClassParse, "mismatched closing tag: expected </div>, got </span>"},
		{"PARSE-0102", map[string]any{"Directive": "elif", "Opener": "if"}, ClassParse, "elif directive without matching if"},
		{"COMP-0002", map[string]any{"Prop": "user", "Type": "User", "Known": "string, int"}, ClassCompile, "prop 'user' has unknown type 'User'"},
		{"PROP-0002", map[string]any{"Template": "Card", "Prop": "count", "Expected": "int", "Got": "string"}, ClassProp, "Card.count: expected int, got string"},
		{"RUN-0001", nil, ClassRuntime, "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, tt.data)
			if err.Class != tt.class {
				t.Errorf("Class = %q, want %q", err.Class, tt.class)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %q, want %q", err.Message, tt.message)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("CUSTOM-9999", map[string]any{"message": "custom failure"})
	if err.Message != "custom failure" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestLiteralBraceHint(t *testing.T) {
	err := New("PARSE-0008", nil)
	if len(err.Hints) != 1 || !strings.Contains(err.Hints[0], "{{") {
		t.Errorf("expected literal brace hint, got %v", err.Hints)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := NewWithPosition("PARSE-0003", 4, 2, map[string]any{"Kind": "element", "Name": "<div>"})
	err := Wrap("card.hyper", cause)

	if err.Class != ClassCompile {
		t.Fatalf("Class = %q, want compile", err.Class)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	var inner *HyperError
	if !stderrors.As(err.Unwrap(), &inner) || inner.Class != ClassParse {
		t.Error("expected wrapped parse error")
	}
	if err.Line != 4 || err.Column != 2 {
		t.Errorf("position = %d:%d, want 4:2", err.Line, err.Column)
	}
	if !strings.Contains(err.Message, "unclosed element <div>") {
		t.Errorf("Message = %q", err.Message)
	}
	if err.File != "card.hyper" {
		t.Errorf("File = %q, want card.hyper", err.File)
	}
	if cause.File != "" {
		t.Error("wrapping should not modify the cause")
	}

	nested := Wrap("page.hyper", cause.WithFile("card.hyper"))
	if nested.File != "card.hyper" || nested.Line != 4 {
		t.Errorf("nested = %s:%d, want the cause's file and line", nested.File, nested.Line)
	}
	if !IsCompile(err) || !IsParse(err) || IsProp(err) {
		t.Error("class predicates disagree with wrapped chain")
	}
}

func TestWrapPlainError(t *testing.T) {
	err := Wrap("x", fmt.Errorf("disk on fire"))
	if !strings.HasSuffix(err.Message, ": disk on fire") {
		t.Errorf("Message = %q", err.Message)
	}
	if IsParse(err) {
		t.Error("plain cause should not look like a parse error")
	}
}

func TestWithFileAndPositionCopy(t *testing.T) {
	orig := NewSimple(ClassParse, "bad")
	withFile := orig.WithFile("a.hyper").WithPosition(2, 3)
	if orig.File != "" || orig.Line != 0 {
		t.Error("original should not be modified")
	}
	if withFile.String() != "a.hyper: line 2, column 3: bad" {
		t.Errorf("got %q", withFile.String())
	}
}

func TestPrettyString(t *testing.T) {
	cause := NewWithPosition("PARSE-0002", 3, 1, map[string]any{"Tag": "p"})
	err := Wrap("page.hyper", cause)
	pretty := err.PrettyString()
	for _, want := range []string{"Compile error", "in: page.hyper", "line 3", "caused by: "} {
		if !strings.Contains(pretty, want) {
			t.Errorf("PrettyString() missing %q:\n%s", want, pretty)
		}
	}
}

func TestToJSON(t *testing.T) {
	err := NewWithPosition("UNDEF-0001", 1, 5, map[string]any{"Name": "nmae"})
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatal(jerr)
	}
	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatal(jerr)
	}
	if decoded["class"] != "undefined" || decoded["code"] != "UNDEF-0001" {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestFindClosestMatch(t *testing.T) {
	tests := []struct {
		input      string
		candidates []string
		expected   string
	}{
		{"nmae", []string{"name", "count"}, "name"},
		{"name", []string{"name"}, ""},
		{"zzzzzz", []string{"name", "count"}, ""},
		{"", []string{"name"}, ""},
		{"titel", []string{"title", "items"}, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FindClosestMatch(tt.input, tt.candidates); got != tt.expected {
				t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewUndefinedIdentifierHint(t *testing.T) {
	err := NewUndefinedIdentifier("usr", []string{"user", "items"})
	if len(err.Hints) != 1 || !strings.Contains(err.Hints[0], "user") {
		t.Errorf("hints = %v", err.Hints)
	}
}
