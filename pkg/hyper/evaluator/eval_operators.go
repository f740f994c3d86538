package evaluator

import (
	"html"
	"math"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/runtime"
)

func evalPrefix(tok lexer.Token, op string, right any) (any, error) {
	switch op {
	case "!":
		return !object.Truthy(right), nil
	case "-":
		if object.IsFloat(right) {
			f, _ := object.AsFloat(right)
			return -f, nil
		}
		if i, ok := object.AsInt(right); ok {
			return -i, nil
		}
	}
	return nil, at(tok, herrors.New("TYPE-0001", map[string]any{
		"Op": op, "Left": "", "Right": object.TypeName(right),
	}))
}

func evalInfixExpression(node *ast.InfixExpression, env *Environment) (any, error) {
	left, err := Eval(node.Left, env)
	if err != nil {
		return nil, err
	}

	// Short-circuit operators return one of their operands.
	switch node.Operator {
	case "&&":
		if !object.Truthy(left) {
			return left, nil
		}
		return Eval(node.Right, env)
	case "||":
		if object.Truthy(left) {
			return left, nil
		}
		return Eval(node.Right, env)
	case "??":
		if left != nil {
			return left, nil
		}
		return Eval(node.Right, env)
	}

	right, err := Eval(node.Right, env)
	if err != nil {
		return nil, err
	}
	return evalInfix(node.Token, node.Operator, left, right)
}

func evalInfix(tok lexer.Token, op string, left, right any) (any, error) {
	switch op {
	case "==":
		return object.Equal(left, right), nil
	case "!=":
		return !object.Equal(left, right), nil
	case "in":
		return evalIn(tok, left, right)
	case "<", "<=", ">", ">=":
		cmp, ok := object.Compare(left, right)
		if !ok {
			return nil, operandError(tok, op, left, right)
		}
		switch op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		}
		return cmp >= 0, nil
	case "+":
		return evalPlus(tok, left, right)
	case "*":
		if s, ok := object.AsString(left); ok {
			if n, ok := object.AsInt(right); ok && n >= 0 {
				return strings.Repeat(s, int(n)), nil
			}
		}
	}
	return evalArithmetic(tok, op, left, right)
}

func evalArithmetic(tok lexer.Token, op string, left, right any) (any, error) {
	li, lInt := object.AsInt(left)
	ri, rInt := object.AsInt(right)
	if lInt && rInt && !object.IsFloat(left) && !object.IsFloat(right) && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, at(tok, herrors.New("RUN-0001", nil))
			}
			return li % ri, nil
		}
	}

	lf, lok := object.AsFloat(left)
	rf, rok := object.AsFloat(right)
	if !lok || !rok {
		return nil, operandError(tok, op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, at(tok, herrors.New("RUN-0001", nil))
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, at(tok, herrors.New("RUN-0001", nil))
		}
		return math.Mod(lf, rf), nil
	}
	return nil, operandError(tok, op, left, right)
}

// evalPlus concatenates strings, lists and dicts, and adds numbers.
// Combining Markup with plain text escapes the plain text.
func evalPlus(tok lexer.Token, left, right any) (any, error) {
	lm, lIsMarkup := left.(runtime.Markup)
	rm, rIsMarkup := right.(runtime.Markup)
	if lIsMarkup || rIsMarkup {
		ls, lok := object.AsString(left)
		rs, rok := object.AsString(right)
		if lok && rok {
			if !lIsMarkup {
				ls = html.EscapeString(ls)
			} else {
				ls = string(lm)
			}
			if !rIsMarkup {
				rs = html.EscapeString(rs)
			} else {
				rs = string(rm)
			}
			return runtime.Markup(ls + rs), nil
		}
	}
	if ls, ok := object.AsString(left); ok {
		if rs, ok := object.AsString(right); ok {
			return ls + rs, nil
		}
		return nil, operandError(tok, "+", left, right)
	}
	if ll, ok := left.([]any); ok {
		if rl, ok := object.Items(right); ok {
			out := make([]any, 0, len(ll)+len(rl))
			out = append(out, ll...)
			return append(out, rl...), nil
		}
	}
	if ld, ok := left.(*object.Dict); ok {
		if rd, ok := object.AsDict(right); ok {
			out := ld.Clone()
			out.Merge(rd)
			return out, nil
		}
	}
	return evalArithmetic(tok, "+", left, right)
}

func evalIn(tok lexer.Token, left, right any) (any, error) {
	if s, ok := object.AsString(right); ok {
		sub, ok := object.AsString(left)
		if !ok {
			return nil, operandError(tok, "in", left, right)
		}
		return strings.Contains(s, sub), nil
	}
	if d, ok := object.AsDict(right); ok {
		return d.Has(object.Display(left)), nil
	}
	items, ok := object.Items(right)
	if !ok {
		return nil, operandError(tok, "in", left, right)
	}
	for _, item := range items {
		if object.Equal(left, item) {
			return true, nil
		}
	}
	return false, nil
}

func operandError(tok lexer.Token, op string, left, right any) error {
	return at(tok, herrors.New("TYPE-0001", map[string]any{
		"Op": op, "Left": object.TypeName(left), "Right": object.TypeName(right),
	}))
}
