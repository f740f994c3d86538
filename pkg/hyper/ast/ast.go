// Package ast defines the syntax tree of template expressions and header
// statements.
package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Program is a sequence of header statements.
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	lines := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

// ImportStatement binds a template loaded from Path to Name.
// Name is empty for `import "path"`, which binds the file stem.
type ImportStatement struct {
	Token lexer.Token // the 'import' token
	Name  string
	Path  string
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Literal }
func (is *ImportStatement) String() string {
	if is.Name == "" {
		return "import " + strconv.Quote(is.Path)
	}
	return "import " + is.Name + " " + strconv.Quote(is.Path)
}

// TypeExpression names a prop type, optionally parameterised:
// string, list[string], Header[string].
type TypeExpression struct {
	Token lexer.Token
	Name  string
	Args  []*TypeExpression
}

func (te *TypeExpression) TokenLiteral() string { return te.Token.Literal }
func (te *TypeExpression) String() string {
	if len(te.Args) == 0 {
		return te.Name
	}
	args := make([]string, len(te.Args))
	for i, a := range te.Args {
		args[i] = a.String()
	}
	return te.Name + "[" + strings.Join(args, ", ") + "]"
}

// PropStatement declares a template prop: `name: Type` or `name: Type = default`.
type PropStatement struct {
	Token   lexer.Token // the name token
	Name    string
	Type    *TypeExpression
	Default Expression // nil when required
}

func (ps *PropStatement) statementNode()       {}
func (ps *PropStatement) TokenLiteral() string { return ps.Token.Literal }
func (ps *PropStatement) String() string {
	out := ps.Name + ": " + ps.Type.String()
	if ps.Default != nil {
		out += " = " + ps.Default.String()
	}
	return out
}

// AssignStatement binds the value of an expression to a name.
type AssignStatement struct {
	Token lexer.Token // the name token
	Name  string
	Value Expression
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) TokenLiteral() string { return as.Token.Literal }
func (as *AssignStatement) String() string       { return as.Name + " = " + as.Value.String() }

// ExpressionStatement evaluates an expression for its effect.
type ExpressionStatement struct {
	Token      lexer.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string       { return es.Expression.String() }

// BlockStatement is a braced statement list.
type BlockStatement struct {
	Token      lexer.Token // the '{' token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for i, s := range bs.Statements {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(s.String())
	}
	out.WriteString(" }")
	return out.String()
}

// IfBranch is one condition/body pair of an if statement.
type IfBranch struct {
	Condition Expression
	Body      *BlockStatement
}

// IfStatement is `if c { } else if c { } else { }`.
type IfStatement struct {
	Token       lexer.Token // the 'if' token
	Branches    []IfBranch
	Alternative *BlockStatement
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	for i, b := range is.Branches {
		if i > 0 {
			out.WriteString(" else ")
		}
		out.WriteString("if " + b.Condition.String() + " " + b.Body.String())
	}
	if is.Alternative != nil {
		out.WriteString(" else " + is.Alternative.String())
	}
	return out.String()
}

// Identifier represents a name reference.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// IntegerLiteral represents an integer.
type IntegerLiteral struct {
	Token lexer.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

// FloatLiteral represents a float.
type FloatLiteral struct {
	Token lexer.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

// StringLiteral represents a quoted string.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return strconv.Quote(sl.Value) }

// Boolean represents true or false.
type Boolean struct {
	Token lexer.Token
	Value bool
}

func (b *Boolean) expressionNode()      {}
func (b *Boolean) TokenLiteral() string { return b.Token.Literal }
func (b *Boolean) String() string       { return b.Token.Literal }

// NilLiteral represents nil.
type NilLiteral struct {
	Token lexer.Token
}

func (n *NilLiteral) expressionNode()      {}
func (n *NilLiteral) TokenLiteral() string { return n.Token.Literal }
func (n *NilLiteral) String() string       { return "nil" }

// Ellipsis is `...`: the children in text position, the wildcard as a
// case pattern.
type Ellipsis struct {
	Token lexer.Token
}

func (e *Ellipsis) expressionNode()      {}
func (e *Ellipsis) TokenLiteral() string { return e.Token.Literal }
func (e *Ellipsis) String() string       { return "..." }

// ListLiteral represents `[a, b]`.
type ListLiteral struct {
	Token    lexer.Token // the '[' token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLiteral) String() string       { return "[" + joinExprs(ll.Elements) + "]" }

// DictPair is one key/value entry of a dict literal.
type DictPair struct {
	Key   Expression
	Value Expression
}

// DictLiteral represents `{"k": v}`. Pair order is preserved.
type DictLiteral struct {
	Token lexer.Token // the '{' token
	Pairs []DictPair
}

func (dl *DictLiteral) expressionNode()      {}
func (dl *DictLiteral) TokenLiteral() string { return dl.Token.Literal }
func (dl *DictLiteral) String() string {
	parts := make([]string, len(dl.Pairs))
	for i, p := range dl.Pairs {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PrefixExpression represents `!x` or `-x`.
type PrefixExpression struct {
	Token    lexer.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string       { return "(" + pe.Operator + pe.Right.String() + ")" }

// InfixExpression represents binary operators.
type InfixExpression struct {
	Token    lexer.Token // the operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// TernaryExpression represents `c ? a : b`.
type TernaryExpression struct {
	Token       lexer.Token // the '?' token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Literal }
func (te *TernaryExpression) String() string {
	return "(" + te.Condition.String() + " ? " + te.Consequence.String() + " : " + te.Alternative.String() + ")"
}

// MemberExpression represents `obj.name`.
type MemberExpression struct {
	Token    lexer.Token // the '.' token
	Object   Expression
	Property string
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MemberExpression) String() string       { return me.Object.String() + "." + me.Property }

// IndexExpression represents `x[i]`.
type IndexExpression struct {
	Token lexer.Token // the '[' token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	return ie.Left.String() + "[" + ie.Index.String() + "]"
}

// CallExpression represents `f(a, b)`. A call on a MemberExpression is a
// method call.
type CallExpression struct {
	Token     lexer.Token // the '(' token
	Function  Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	return ce.Function.String() + "(" + joinExprs(ce.Arguments) + ")"
}

// ComprehensionExpression represents `[elem for x in items if cond]`.
// Key is set for the two-variable form `for k, v in mapping`.
type ComprehensionExpression struct {
	Token     lexer.Token // the '[' token
	Element   Expression
	Key       string
	Variable  string
	Iterable  Expression
	Condition Expression // nil when absent
}

func (ce *ComprehensionExpression) expressionNode()      {}
func (ce *ComprehensionExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *ComprehensionExpression) String() string {
	var out bytes.Buffer
	out.WriteString("[" + ce.Element.String() + " for ")
	if ce.Key != "" {
		out.WriteString(ce.Key + ", ")
	}
	out.WriteString(ce.Variable + " in " + ce.Iterable.String())
	if ce.Condition != nil {
		out.WriteString(" if " + ce.Condition.String())
	}
	out.WriteString("]")
	return out.String()
}

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// IsConstant reports whether e is built only from literals, so it can be
// evaluated once at compile time.
func IsConstant(e Expression) bool {
	switch n := e.(type) {
	case *IntegerLiteral, *FloatLiteral, *StringLiteral, *Boolean, *NilLiteral:
		return true
	case *PrefixExpression:
		return n.Operator == "-" && IsConstant(n.Right)
	case *ListLiteral:
		for _, el := range n.Elements {
			if !IsConstant(el) {
				return false
			}
		}
		return true
	case *DictLiteral:
		for _, p := range n.Pairs {
			if !IsConstant(p.Key) || !IsConstant(p.Value) {
				return false
			}
		}
		return true
	}
	return false
}
