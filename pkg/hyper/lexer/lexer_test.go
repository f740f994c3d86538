package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `user.name ?? "anon" == 'x' && !flag || n >= 1.5 ... [a, b] {k: 2} % not and or in`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{IDENT, "user"},
		{DOT, "."},
		{IDENT, "name"},
		{NULLISH, "??"},
		{STRING, "anon"},
		{EQ, "=="},
		{STRING, "x"},
		{AND, "&&"},
		{BANG, "!"},
		{IDENT, "flag"},
		{OR, "||"},
		{IDENT, "n"},
		{GTE, ">="},
		{FLOAT, "1.5"},
		{DOTDOTDOT, "..."},
		{LBRACKET, "["},
		{IDENT, "a"},
		{COMMA, ","},
		{IDENT, "b"},
		{RBRACKET, "]"},
		{LBRACE, "{"},
		{IDENT, "k"},
		{COLON, ":"},
		{INT, "2"},
		{RBRACE, "}"},
		{PERCENT, "%"},
		{BANG, "not"},
		{AND, "and"},
		{OR, "or"},
		{IN, "in"},
		{EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"a\nb"`, "a\nb"},
		{`'it\'s'`, "it's"},
		{`"say \"hi\""`, `say "hi"`},
		{`"tab\tx"`, "tab\tx"},
		{`"\d"`, `\d`},
		{`"héllo"`, "héllo"},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != STRING || tok.Literal != tt.expected {
			t.Errorf("New(%s) = %v, want STRING %q", tt.input, tok, tt.expected)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	tok := New(`"open`).NextToken()
	if tok.Type != ILLEGAL {
		t.Errorf("expected ILLEGAL, got %v", tok)
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"42", INT},
		{"1_000", INT},
		{"3.25", FLOAT},
		{"1e3", FLOAT},
		{"2.5E-2", FLOAT},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.typ || tok.Literal != tt.input {
			t.Errorf("New(%q) = %v, want %s", tt.input, tok, tt.typ)
		}
	}
}

func TestStatementNewlines(t *testing.T) {
	input := "name: string\n\n# comment\ncount: int = 0 // trailing\nitems = [\n  1,\n  2,\n]\n"
	var types []TokenType
	for _, tok := range NewStatements(input).Tokens() {
		types = append(types, tok.Type)
	}
	expected := []TokenType{
		IDENT, COLON, IDENT, NEWLINE,
		IDENT, COLON, IDENT, ASSIGN, INT, NEWLINE,
		IDENT, ASSIGN, LBRACKET, INT, COMMA, INT, COMMA, RBRACKET, NEWLINE,
		EOF,
	}
	if len(types) != len(expected) {
		t.Fatalf("got %v, want %v", types, expected)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Fatalf("token %d = %s, want %s (all: %v)", i, types[i], expected[i], types)
		}
	}
}

func TestExpressionModeIgnoresNewlines(t *testing.T) {
	toks := New("a\n+\nb").Tokens()
	if len(toks) != 4 || toks[1].Type != PLUS {
		t.Errorf("unexpected tokens %v", toks)
	}
}

func TestPositions(t *testing.T) {
	l := NewAt("x + y", 3, 10)
	x := l.NextToken()
	l.NextToken()
	y := l.NextToken()
	if x.Line != 3 || x.Column != 11 {
		t.Errorf("x at %d:%d, want 3:11", x.Line, x.Column)
	}
	if y.Column != 15 {
		t.Errorf("y at column %d, want 15", y.Column)
	}
}
