// Package lexer tokenizes the expression and header-statement language used
// inside template slots and template headers.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	NEWLINE // statement separator in headers

	// Identifiers and literals
	IDENT  // name, user, _private
	INT    // 1343456
	FLOAT  // 3.14159
	STRING // "foobar" or 'foobar'

	// Operators
	ASSIGN   // =
	PLUS     // +
	MINUS    // -
	BANG     // ! or not
	ASTERISK // *
	SLASH    // /
	PERCENT  // %
	LT       // <
	GT       // >
	LTE      // <=
	GTE      // >=
	EQ       // ==
	NOT_EQ   // !=
	AND      // && or and
	OR       // || or or
	NULLISH  // ??
	QUESTION // ?

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOT       // .
	DOTDOTDOT // ...
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]

	// Keywords
	TRUE   // "true"
	FALSE  // "false"
	NIL    // "nil"
	IF     // "if"
	ELSE   // "else"
	FOR    // "for"
	IN     // "in"
	IMPORT // "import"
)

var tokenNames = map[TokenType]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	NEWLINE:   "NEWLINE",
	IDENT:     "IDENT",
	INT:       "INT",
	FLOAT:     "FLOAT",
	STRING:    "STRING",
	ASSIGN:    "=",
	PLUS:      "+",
	MINUS:     "-",
	BANG:      "!",
	ASTERISK:  "*",
	SLASH:     "/",
	PERCENT:   "%",
	LT:        "<",
	GT:        ">",
	LTE:       "<=",
	GTE:       ">=",
	EQ:        "==",
	NOT_EQ:    "!=",
	AND:       "&&",
	OR:        "||",
	NULLISH:   "??",
	QUESTION:  "?",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DOT:       ".",
	DOTDOTDOT: "...",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	TRUE:      "true",
	FALSE:     "false",
	NIL:       "nil",
	IF:        "if",
	ELSE:      "else",
	FOR:       "for",
	IN:        "in",
	IMPORT:    "import",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

var keywords = map[string]TokenType{
	"true":   TRUE,
	"false":  FALSE,
	"nil":    NIL,
	"if":     IF,
	"else":   ELSE,
	"for":    FOR,
	"in":     IN,
	"import": IMPORT,
	"and":    AND,
	"or":     OR,
	"not":    BANG,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Lexer represents the lexical analyzer
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination (first byte)
	chRune       rune // current character as a rune
	chSize       int  // byte size of current character
	line         int  // current line number
	column       int  // current column number
	newlines     bool // emit NEWLINE tokens (header mode)
	depth        int  // nesting of ( and [, inside which newlines are insignificant
}

// New creates a lexer for a single expression. Newlines are whitespace.
func New(input string) *Lexer {
	return NewAt(input, 1, 0)
}

// NewAt creates an expression lexer whose positions start at line/column.
func NewAt(input string, line, column int) *Lexer {
	l := &Lexer{input: input, line: line, column: column}
	l.readChar()
	return l
}

// NewStatements creates a lexer for header statements, where newlines
// separate statements.
func NewStatements(input string) *Lexer {
	l := &Lexer{input: input, line: 1, newlines: true}
	l.readChar()
	return l
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.chRune = 0
		l.chSize = 0
		l.position = l.readPosition
		return
	}

	b := l.input[l.readPosition]
	if b < utf8.RuneSelf {
		l.ch = b
		l.chRune = rune(b)
		l.chSize = 1
		l.position = l.readPosition
		l.readPosition++
		if l.ch == '\n' {
			l.line++
			l.column = 0
		} else {
			l.column++
		}
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = b
	l.chRune = r
	l.chSize = size
	l.position = l.readPosition
	l.readPosition += size
	l.column++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespace(); ok {
		return tok
	}

	line, column := l.line, l.column
	tok := Token{Line: line, Column: column}

	two := func(tt TokenType) Token {
		lit := l.input[l.position : l.position+2]
		l.readChar()
		l.readChar()
		return Token{Type: tt, Literal: lit, Line: line, Column: column}
	}
	one := func(tt TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: tt, Literal: lit, Line: line, Column: column}
	}

	switch l.ch {
	case 0:
		tok.Type = EOF
		return tok
	case '=':
		if l.peekChar() == '=' {
			return two(EQ)
		}
		return one(ASSIGN)
	case '!':
		if l.peekChar() == '=' {
			return two(NOT_EQ)
		}
		return one(BANG)
	case '<':
		if l.peekChar() == '=' {
			return two(LTE)
		}
		return one(LT)
	case '>':
		if l.peekChar() == '=' {
			return two(GTE)
		}
		return one(GT)
	case '&':
		if l.peekChar() == '&' {
			return two(AND)
		}
		return one(ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return two(OR)
		}
		return one(ILLEGAL)
	case '?':
		if l.peekChar() == '?' {
			return two(NULLISH)
		}
		return one(QUESTION)
	case '+':
		return one(PLUS)
	case '-':
		return one(MINUS)
	case '*':
		return one(ASTERISK)
	case '/':
		return one(SLASH)
	case '%':
		return one(PERCENT)
	case ',':
		return one(COMMA)
	case ';':
		return one(SEMICOLON)
	case ':':
		return one(COLON)
	case '.':
		if l.peekChar() == '.' && l.readPosition+1 < len(l.input) && l.input[l.readPosition+1] == '.' {
			l.readChar()
			l.readChar()
			l.readChar()
			return Token{Type: DOTDOTDOT, Literal: "...", Line: line, Column: column}
		}
		return one(DOT)
	case '(':
		l.depth++
		return one(LPAREN)
	case ')':
		if l.depth > 0 {
			l.depth--
		}
		return one(RPAREN)
	case '[':
		l.depth++
		return one(LBRACKET)
	case ']':
		if l.depth > 0 {
			l.depth--
		}
		return one(RBRACKET)
	case '{':
		return one(LBRACE)
	case '}':
		return one(RBRACE)
	case '"', '\'':
		str, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Line: line, Column: column}
		}
		l.readChar()
		return Token{Type: STRING, Literal: str, Line: line, Column: column}
	}

	if isLetterRune(l.chRune) {
		lit := l.readIdentifier()
		return Token{Type: LookupIdent(lit), Literal: lit, Line: line, Column: column}
	}
	if isDigit(l.ch) {
		lit, isFloat := l.readNumber()
		if isFloat {
			return Token{Type: FLOAT, Literal: lit, Line: line, Column: column}
		}
		return Token{Type: INT, Literal: lit, Line: line, Column: column}
	}

	lit := l.input[l.position : l.position+max(l.chSize, 1)]
	l.readChar()
	return Token{Type: ILLEGAL, Literal: lit, Line: line, Column: column}
}

// Tokens returns every token up to and including EOF.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

// skipWhitespace skips spaces and comments. In statement mode a newline
// outside brackets is returned as a NEWLINE token; runs collapse into one.
func (l *Lexer) skipWhitespace() (Token, bool) {
	var nl *Token
	for {
		switch {
		case l.ch == '\n':
			if l.newlines && l.depth == 0 && nl == nil {
				nl = &Token{Type: NEWLINE, Literal: "\n", Line: l.line, Column: l.column}
			}
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '#' || (l.ch == '/' && l.peekChar() == '/'):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			if nl != nil {
				return *nl, true
			}
			return Token{}, false
		}
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetterRune(l.chRune) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a number (integer or float)
func (l *Lexer) readNumber() (string, bool) {
	position := l.position
	isFloat := false
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[position:l.position], isFloat
}

// readString reads a quoted string with backslash escapes. It stops on the
// closing quote, which the caller consumes.
func (l *Lexer) readString(quote byte) (string, bool) {
	var result []byte
	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\', '"', '\'':
				result = append(result, l.ch)
			case 0:
				return string(result), false
			default:
				result = append(result, '\\')
				result = append(result, l.input[l.position:l.position+l.chSize]...)
			}
		} else {
			result = append(result, l.input[l.position:l.position+l.chSize]...)
		}
		l.readChar()
	}

	return string(result), l.ch == quote
}

func isLetterRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
