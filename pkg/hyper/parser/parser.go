// Package parser is a Pratt parser for slot expressions and template
// header statements.
package parser

import (
	"strconv"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	TERNARY     // c ? a : b
	NULLISH     // ??
	LOGIC_OR    // or, ||
	LOGIC_AND   // and, &&
	EQUALS      // ==, !=, in
	LESSGREATER // > or <
	SUM         // +
	PRODUCT     // *
	PREFIX      // -X or !X
	INDEX       // array[index], obj.member
	CALL        // fn(X)
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.QUESTION: TERNARY,
	lexer.NULLISH:  NULLISH,
	lexer.OR:       LOGIC_OR,
	lexer.AND:      LOGIC_AND,
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.IN:       EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.LTE:      LESSGREATER,
	lexer.GTE:      LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.SLASH:    PRODUCT,
	lexer.ASTERISK: PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LBRACKET: INDEX,
	lexer.DOT:      INDEX,
	lexer.LPAREN:   CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser represents the parser
type Parser struct {
	l      *lexer.Lexer
	errors []*herrors.HyperError

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = map[lexer.TokenType]prefixParseFn{
		lexer.IDENT:     p.parseIdentifier,
		lexer.INT:       p.parseIntegerLiteral,
		lexer.FLOAT:     p.parseFloatLiteral,
		lexer.STRING:    p.parseStringLiteral,
		lexer.TRUE:      p.parseBoolean,
		lexer.FALSE:     p.parseBoolean,
		lexer.NIL:       p.parseNil,
		lexer.DOTDOTDOT: p.parseEllipsis,
		lexer.BANG:      p.parsePrefixExpression,
		lexer.MINUS:     p.parsePrefixExpression,
		lexer.LPAREN:    p.parseGroupedExpression,
		lexer.LBRACKET:  p.parseListOrComprehension,
		lexer.LBRACE:    p.parseDictLiteral,
	}

	p.infixParseFns = map[lexer.TokenType]infixParseFn{
		lexer.QUESTION: p.parseTernaryExpression,
		lexer.LBRACKET: p.parseIndexExpression,
		lexer.DOT:      p.parseMemberExpression,
		lexer.LPAREN:   p.parseCallExpression,
	}
	for _, tt := range []lexer.TokenType{
		lexer.NULLISH, lexer.OR, lexer.AND, lexer.EQ, lexer.NOT_EQ, lexer.IN,
		lexer.LT, lexer.GT, lexer.LTE, lexer.GTE,
		lexer.PLUS, lexer.MINUS, lexer.SLASH, lexer.ASTERISK, lexer.PERCENT,
	} {
		p.infixParseFns[tt] = p.parseInfixExpression
	}

	p.nextToken()
	p.nextToken()
	return p
}

// ParseExpression parses src as a single expression. line and column give
// the position of the character before src, so errors point into the
// enclosing template.
func ParseExpression(src string, line, column int) (ast.Expression, error) {
	p := New(lexer.NewAt(src, line, column))
	if p.curTokenIs(lexer.EOF) {
		return nil, herrors.NewWithPosition("PARSE-0201", line, column,
			map[string]any{"Expected": "expression", "Got": "end of input"})
	}
	expr := p.parseExpression(LOWEST)
	if p.err() == nil && !p.peekTokenIs(lexer.EOF) {
		p.nextToken()
		p.unexpected(p.curToken)
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseProgram parses header statements.
func ParseProgram(src string) (*ast.Program, error) {
	p := New(lexer.NewStatements(src))
	program := p.ParseProgram()
	if err := p.err(); err != nil {
		return nil, err
	}
	return program, nil
}

// Errors returns all recorded parse errors.
func (p *Parser) Errors() []*herrors.HyperError {
	return p.errors
}

func (p *Parser) err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}

// addError records an error. Only the first is kept; later ones are
// usually cascading noise.
func (p *Parser) addError(err *herrors.HyperError) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, err)
}

func (p *Parser) unexpected(tok lexer.Token) {
	if tok.Type == lexer.ILLEGAL {
		if tok.Literal == "unterminated string" {
			p.addError(herrors.NewWithPosition("PARSE-0203", tok.Line, tok.Column, nil))
			return
		}
		p.addError(herrors.NewWithPosition("PARSE-0205", tok.Line, tok.Column, map[string]any{"Char": tok.Literal}))
		return
	}
	p.addError(herrors.NewWithPosition("PARSE-0202", tok.Line, tok.Column, map[string]any{"Token": describe(tok)}))
}

func (p *Parser) expected(what string, tok lexer.Token) {
	p.addError(herrors.NewWithPosition("PARSE-0201", tok.Line, tok.Column,
		map[string]any{"Expected": what, "Got": describe(tok)}))
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.NEWLINE:
		return "newline"
	}
	return tok.Literal
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType, what string) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.expected(what, p.peekToken)
	return false
}

func (p *Parser) skipPeekNewlines() {
	for p.peekTokenIs(lexer.NEWLINE) {
		p.nextToken()
	}
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.curTokenIs(lexer.EOF) && len(p.errors) == 0 {
		if p.curTokenIs(lexer.NEWLINE) || p.curTokenIs(lexer.SEMICOLON) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt == nil {
			break
		}
		program.Statements = append(program.Statements, stmt)
		if !p.endStatement(false) {
			break
		}
	}
	return program
}

// endStatement checks that the statement just parsed is followed by a
// separator and moves past it.
func (p *Parser) endStatement(inBlock bool) bool {
	switch {
	case p.peekTokenIs(lexer.NEWLINE), p.peekTokenIs(lexer.SEMICOLON):
		p.nextToken()
		p.nextToken()
		return true
	case p.peekTokenIs(lexer.EOF):
		p.nextToken()
		return true
	case inBlock && p.peekTokenIs(lexer.RBRACE):
		p.nextToken()
		return true
	}
	p.expected("end of statement", p.peekToken)
	return false
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.IMPORT:
		return p.parseImportStatement()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.IDENT:
		if p.peekTokenIs(lexer.COLON) {
			return p.parsePropStatement()
		}
		if p.peekTokenIs(lexer.ASSIGN) {
			return p.parseAssignStatement()
		}
	}
	tok := p.curToken
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	return &ast.ExpressionStatement{Token: tok, Expression: expr}
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStatement{Token: p.curToken}
	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		stmt.Name = p.curToken.Literal
	}
	if !p.expectPeek(lexer.STRING, "import path string") {
		return nil
	}
	stmt.Path = p.curToken.Literal
	return stmt
}

func (p *Parser) parsePropStatement() ast.Statement {
	stmt := &ast.PropStatement{Token: p.curToken, Name: p.curToken.Literal}
	p.nextToken() // ':'
	p.nextToken()
	stmt.Type = p.parseTypeExpression()
	if stmt.Type == nil {
		return nil
	}
	if p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken()
		p.nextToken()
		stmt.Default = p.parseExpression(LOWEST)
		if stmt.Default == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseTypeExpression() *ast.TypeExpression {
	switch p.curToken.Type {
	case lexer.IDENT, lexer.NIL:
	case lexer.STRING:
		return &ast.TypeExpression{Token: p.curToken, Name: strconv.Quote(p.curToken.Literal)}
	default:
		p.expected("type name", p.curToken)
		return nil
	}
	te := &ast.TypeExpression{Token: p.curToken, Name: p.curToken.Literal}
	for p.peekTokenIs(lexer.DOT) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT, "type name") {
			return nil
		}
		te.Name += "." + p.curToken.Literal
	}
	if !p.peekTokenIs(lexer.LBRACKET) {
		return te
	}
	p.nextToken()
	for {
		p.nextToken()
		arg := p.parseTypeExpression()
		if arg == nil {
			return nil
		}
		te.Args = append(te.Args, arg)
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.RBRACKET, "']'") {
			return nil
		}
		return te
	}
}

func (p *Parser) parseAssignStatement() ast.Statement {
	stmt := &ast.AssignStatement{Token: p.curToken, Name: p.curToken.Literal}
	p.nextToken() // '='
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	for {
		p.nextToken()
		cond := p.parseExpression(LOWEST)
		if cond == nil {
			return nil
		}
		if !p.expectPeek(lexer.LBRACE, "'{'") {
			return nil
		}
		body := p.parseBlockStatement()
		if body == nil {
			return nil
		}
		stmt.Branches = append(stmt.Branches, ast.IfBranch{Condition: cond, Body: body})

		if !p.peekTokenIs(lexer.ELSE) {
			return stmt
		}
		p.nextToken()
		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.LBRACE, "'{'") {
			return nil
		}
		stmt.Alternative = p.parseBlockStatement()
		if stmt.Alternative == nil {
			return nil
		}
		return stmt
	}
}

// parseBlockStatement parses from '{' to the matching '}'.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()
	for {
		for p.curTokenIs(lexer.NEWLINE) || p.curTokenIs(lexer.SEMICOLON) {
			p.nextToken()
		}
		if p.curTokenIs(lexer.RBRACE) {
			return block
		}
		if p.curTokenIs(lexer.EOF) {
			p.expected("'}'", p.curToken)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		if !p.endStatement(true) {
			return nil
		}
	}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.unexpected(p.curToken)
		return nil
	}

	leftExp := prefix()
	for leftExp != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := strings.ReplaceAll(p.curToken.Literal, "_", "")
	value, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		p.addError(herrors.NewWithPosition("PARSE-0204", p.curToken.Line, p.curToken.Column,
			map[string]any{"Literal": p.curToken.Literal}))
		return nil
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := strings.ReplaceAll(p.curToken.Literal, "_", "")
	value, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.addError(herrors.NewWithPosition("PARSE-0204", p.curToken.Line, p.curToken.Column,
			map[string]any{"Literal": p.curToken.Literal}))
		return nil
	}
	return &ast.FloatLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parseNil() ast.Expression {
	return &ast.NilLiteral{Token: p.curToken}
}

func (p *Parser) parseEllipsis() ast.Expression {
	return &ast.Ellipsis{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	if expr.Operator == "not" {
		expr.Operator = "!"
	}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.curToken, Left: left, Operator: p.curToken.Literal}
	switch expr.Operator {
	case "and":
		expr.Operator = "&&"
	case "or":
		expr.Operator = "||"
	}
	precedence := p.curPrecedence()
	p.nextToken()
	p.skipCurNewlines()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) skipCurNewlines() {
	for p.curTokenIs(lexer.NEWLINE) {
		p.nextToken()
	}
}

func (p *Parser) parseTernaryExpression(cond ast.Expression) ast.Expression {
	expr := &ast.TernaryExpression{Token: p.curToken, Condition: cond}
	p.nextToken()
	expr.Consequence = p.parseExpression(TERNARY)
	if expr.Consequence == nil {
		return nil
	}
	if !p.expectPeek(lexer.COLON, "':' in conditional expression") {
		return nil
	}
	p.nextToken()
	expr.Alternative = p.parseExpression(TERNARY - 1)
	if expr.Alternative == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	return expr
}

func (p *Parser) parseListOrComprehension() ast.Expression {
	tok := p.curToken
	if p.peekTokenIs(lexer.RBRACKET) {
		p.nextToken()
		return &ast.ListLiteral{Token: tok}
	}
	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	if p.peekTokenIs(lexer.FOR) {
		p.nextToken()
		return p.parseComprehension(tok, first)
	}

	list := &ast.ListLiteral{Token: tok, Elements: []ast.Expression{first}}
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if p.peekTokenIs(lexer.RBRACKET) {
			break
		}
		p.nextToken()
		el := p.parseExpression(LOWEST)
		if el == nil {
			return nil
		}
		list.Elements = append(list.Elements, el)
	}
	if !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	return list
}

// parseComprehension parses the rest of `[elem for x in xs if cond]`; the
// current token is 'for'.
func (p *Parser) parseComprehension(tok lexer.Token, elem ast.Expression) ast.Expression {
	comp := &ast.ComprehensionExpression{Token: tok, Element: elem}
	if !p.expectPeek(lexer.IDENT, "loop variable") {
		return nil
	}
	comp.Variable = p.curToken.Literal
	if p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT, "loop variable") {
			return nil
		}
		comp.Key = comp.Variable
		comp.Variable = p.curToken.Literal
	}
	if !p.expectPeek(lexer.IN, "'in'") {
		return nil
	}
	p.nextToken()
	comp.Iterable = p.parseExpression(LOWEST)
	if comp.Iterable == nil {
		return nil
	}
	if p.peekTokenIs(lexer.IF) {
		p.nextToken()
		p.nextToken()
		comp.Condition = p.parseExpression(LOWEST)
		if comp.Condition == nil {
			return nil
		}
	}
	if !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	return comp
}

func (p *Parser) parseDictLiteral() ast.Expression {
	dict := &ast.DictLiteral{Token: p.curToken}
	p.skipPeekNewlines()
	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		var key ast.Expression
		if p.curTokenIs(lexer.IDENT) {
			key = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
		} else {
			key = p.parseExpression(LOWEST)
			if key == nil {
				return nil
			}
		}
		if !p.expectPeek(lexer.COLON, "':' after dict key") {
			return nil
		}
		p.nextToken()
		p.skipCurNewlines()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		dict.Pairs = append(dict.Pairs, ast.DictPair{Key: key, Value: value})

		p.skipPeekNewlines()
		if !p.peekTokenIs(lexer.RBRACE) {
			if !p.expectPeek(lexer.COMMA, "',' or '}'") {
				return nil
			}
			p.skipPeekNewlines()
		}
	}
	p.nextToken()
	return dict
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if expr.Index == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	return expr
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	if !isName(p.curToken.Literal) {
		p.expected("member name", p.curToken)
		return nil
	}
	return &ast.MemberExpression{Token: tok, Object: left, Property: p.curToken.Literal}
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	call := &ast.CallExpression{Token: p.curToken, Function: fn}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return call
	}
	for {
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		call.Arguments = append(call.Arguments, arg)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(lexer.RPAREN) {
			break
		}
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	return call
}

// isName reports whether s is identifier-shaped. Keywords are allowed
// after a dot.
func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || (i > 0 && '0' <= r && r <= '9') || r > 127 {
			continue
		}
		return false
	}
	return true
}
