package session

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/scpid/scpid/internal/scpierr"
)

// evalExpression evaluates the admin-gated `$[...]` expression form
// (spec.md §4.1). There is no domain-specific expression grammar in
// the spec beyond "evaluated expression"; this implements a small,
// side-effect-free subset of Go expression syntax (arithmetic,
// comparison, boolean, string concatenation, parenthesization, and
// session-variable identifiers) by parsing with the standard library's
// own Go expression parser and walking the resulting AST, rather than
// hand-rolling a second recursive-descent parser next to the one in
// internal/parser.
func evalExpression(expr string, ctx *Context) (string, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", scpierr.NewParseError(expr, 0, err.Error(), "", err)
	}
	v, err := evalNode(node, ctx)
	if err != nil {
		return "", scpierr.NewParseError(expr, 0, err.Error(), "", err)
	}
	return stringifyExprValue(v), nil
}

func evalNode(n ast.Expr, ctx *Context) (any, error) {
	switch e := n.(type) {
	case *ast.ParenExpr:
		return evalNode(e.X, ctx)
	case *ast.BasicLit:
		return literalValue(e)
	case *ast.Ident:
		if v, ok := ctx.lookupVariable(e.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("undefined variable %q", e.Name)
	case *ast.UnaryExpr:
		x, err := evalNode(e.X, ctx)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.SUB:
			return -asFloat(x), nil
		case token.NOT:
			return !asBool(x), nil
		default:
			return nil, fmt.Errorf("unsupported unary operator %s", e.Op)
		}
	case *ast.BinaryExpr:
		return evalBinary(e, ctx)
	default:
		return nil, fmt.Errorf("unsupported expression syntax")
	}
}

func literalValue(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT, token.FLOAT:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
	}
}

func evalBinary(e *ast.BinaryExpr, ctx *Context) (any, error) {
	// Short-circuit boolean operators.
	if e.Op == token.LAND || e.Op == token.LOR {
		x, err := evalNode(e.X, ctx)
		if err != nil {
			return nil, err
		}
		if e.Op == token.LAND && !asBool(x) {
			return false, nil
		}
		if e.Op == token.LOR && asBool(x) {
			return true, nil
		}
		y, err := evalNode(e.Y, ctx)
		if err != nil {
			return nil, err
		}
		return asBool(y), nil
	}

	x, err := evalNode(e.X, ctx)
	if err != nil {
		return nil, err
	}
	y, err := evalNode(e.Y, ctx)
	if err != nil {
		return nil, err
	}

	if xs, xok := x.(string); xok {
		if ys, yok := y.(string); yok && e.Op == token.ADD {
			return xs + ys, nil
		}
		if e.Op == token.EQL {
			return xs == fmt.Sprintf("%v", y), nil
		}
		if e.Op == token.NEQ {
			return xs != fmt.Sprintf("%v", y), nil
		}
	}

	xf, yf := asFloat(x), asFloat(y)
	switch e.Op {
	case token.ADD:
		return xf + yf, nil
	case token.SUB:
		return xf - yf, nil
	case token.MUL:
		return xf * yf, nil
	case token.QUO:
		if yf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return xf / yf, nil
	case token.REM:
		return float64(int64(xf) % int64(yf)), nil
	case token.EQL:
		return xf == yf, nil
	case token.NEQ:
		return xf != yf, nil
	case token.LSS:
		return xf < yf, nil
	case token.LEQ:
		return xf <= yf, nil
	case token.GTR:
		return xf > yf, nil
	case token.GEQ:
		return xf >= yf, nil
	default:
		return nil, fmt.Errorf("unsupported binary operator %s", e.Op)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return false
	}
}

func stringifyExprValue(v any) string {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
