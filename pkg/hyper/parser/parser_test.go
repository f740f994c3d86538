package parser

import (
	"testing"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
)

func TestParseExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"-a * b", "((-a) * b)"},
		{"!flag && other", "((!flag) && other)"},
		{"not done", "(!done)"},
		{"a or b and c", "(a || (b && c))"},
		{`status == "error"`, `(status == "error")`},
		{"a < b == c > d", "((a < b) == (c > d))"},
		{"user.name ?? 'anon'", `(user.name ?? "anon")`},
		{"x ? a : b", "(x ? a : b)"},
		{"x ? a : y ? b : c", "(x ? a : (y ? b : c))"},
		{"n > 0 ? n : 0", "((n > 0) ? n : 0)"},
		{"items[0].title.upper()", "items[0].title.upper()"},
		{"len(items) + 1", "(len(items) + 1)"},
		{"(a + b) * c", "((a + b) * c)"},
		{`"x" in tags`, `("x" in tags)`},
		{"[1, 2, 3]", "[1, 2, 3]"},
		{"[]", "[]"},
		{`{id: "x", "disabled": true}`, `{"id": "x", "disabled": true}`},
		{"{}", "{}"},
		{"[i * 2 for i in items if i > 1]", "[(i * 2) for i in items if (i > 1)]"},
		{"[k for k, v in d]", "[k for k, v in d]"},
		{"...", "..."},
		{"nil", "nil"},
		{"1_000 + 2.5", "(1_000 + 2.5)"},
		{"format('%d items', n)", `format("%d items", n)`},
		{"a.in", "a.in"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseExpression(tt.input, 1, 0)
			if err != nil {
				t.Fatalf("ParseExpression(%q) error: %v", tt.input, err)
			}
			if got := expr.String(); got != tt.expected {
				t.Errorf("ParseExpression(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseExpressionErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"", "PARSE-0201"},
		{"a +", "PARSE-0202"},
		{"a b", "PARSE-0202"},
		{"(a", "PARSE-0201"},
		{`"open`, "PARSE-0203"},
		{"a @ b", "PARSE-0205"},
		{"x ? a", "PARSE-0201"},
		{"{a 1}", "PARSE-0201"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseExpression(tt.input, 1, 0)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			he, ok := err.(*herrors.HyperError)
			if !ok {
				t.Fatalf("expected *HyperError, got %T", err)
			}
			if he.Class != herrors.ClassParse || he.Code != tt.code {
				t.Errorf("error = %s %s (%s), want %s", he.Class, he.Code, he.Message, tt.code)
			}
		})
	}
}

func TestParseExpressionPosition(t *testing.T) {
	_, err := ParseExpression("a +", 4, 7)
	he := err.(*herrors.HyperError)
	if he.Line != 4 {
		t.Errorf("line = %d, want 4", he.Line)
	}
}

func TestParseProgram(t *testing.T) {
	input := `
import Button "./button.hyper"
import "./card.hyper"

title: string
count: int = 0
tags: list[string] = ["a", "b"]
request: Request
greeting = "Hello, " + title
if count > 10 {
    label = "many"
} else if count > 0 {
    label = "some"
} else {
    label = "none"
}
`
	program, err := ParseProgram(input)
	if err != nil {
		t.Fatalf("ParseProgram error: %v", err)
	}
	if len(program.Statements) != 8 {
		t.Fatalf("got %d statements, want 8:\n%s", len(program.Statements), program)
	}

	imp, ok := program.Statements[0].(*ast.ImportStatement)
	if !ok || imp.Name != "Button" || imp.Path != "./button.hyper" {
		t.Errorf("statement 0 = %#v", program.Statements[0])
	}
	if imp, ok := program.Statements[1].(*ast.ImportStatement); !ok || imp.Name != "" {
		t.Errorf("statement 1 = %#v", program.Statements[1])
	}

	prop, ok := program.Statements[2].(*ast.PropStatement)
	if !ok || prop.Name != "title" || prop.Type.String() != "string" || prop.Default != nil {
		t.Errorf("statement 2 = %v", program.Statements[2])
	}
	prop, ok = program.Statements[3].(*ast.PropStatement)
	if !ok || prop.Default == nil || prop.Default.String() != "0" {
		t.Errorf("statement 3 = %v", program.Statements[3])
	}
	prop, ok = program.Statements[4].(*ast.PropStatement)
	if !ok || prop.Type.String() != "list[string]" {
		t.Errorf("statement 4 = %v", program.Statements[4])
	}

	if _, ok := program.Statements[6].(*ast.AssignStatement); !ok {
		t.Errorf("statement 6 = %T", program.Statements[6])
	}
	ifs, ok := program.Statements[7].(*ast.IfStatement)
	if !ok {
		t.Fatalf("statement 7 = %T", program.Statements[7])
	}
	if len(ifs.Branches) != 2 || ifs.Alternative == nil {
		t.Errorf("if statement = %s", ifs)
	}
}

func TestParseProgramMultilineLiterals(t *testing.T) {
	input := "links = [\n  {href: \"/\", label: \"Home\"},\n  {\n    href: \"/about\",\n    label: \"About\",\n  },\n]\nx = 1; y = 2"
	program, err := ParseProgram(input)
	if err != nil {
		t.Fatalf("ParseProgram error: %v", err)
	}
	if len(program.Statements) != 3 {
		t.Fatalf("got %d statements:\n%s", len(program.Statements), program)
	}
	assign := program.Statements[0].(*ast.AssignStatement)
	list := assign.Value.(*ast.ListLiteral)
	if len(list.Elements) != 2 {
		t.Errorf("links has %d elements", len(list.Elements))
	}
}

func TestParseProgramErrors(t *testing.T) {
	tests := []string{
		"import 42",
		"x = ",
		"a b",
		"if x { y = 1",
		"name: = 1",
		"tags: list[string",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseProgram(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		})
	}
}

func TestIsConstant(t *testing.T) {
	tests := []struct {
		input    string
		constant bool
	}{
		{"1", true},
		{"-1.5", true},
		{`"x"`, true},
		{"[1, [true, nil]]", true},
		{`{a: 1, "b": [2]}`, true},
		{"x", false},
		{"1 + 2", false},
		{"[x]", false},
		{"len(x)", false},
	}
	for _, tt := range tests {
		expr, err := ParseExpression(tt.input, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := ast.IsConstant(expr); got != tt.constant {
			t.Errorf("IsConstant(%q) = %v, want %v", tt.input, got, tt.constant)
		}
	}
}
