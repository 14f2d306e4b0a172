package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkVisitsNestedExpressions(t *testing.T) {
	inner := &IntLit{Value: 1}
	outer := &BinaryExpr{
		Op:   OpAdd,
		Left: inner,
		Right: &CallExpr{
			Callee: &Ident{Name: "f"},
			Args:   []Expr{&IntLit{Value: 2}, &IntLit{Value: 3}},
		},
	}

	var seen []Expr
	Walk(VisitorFunc(func(e Expr) bool {
		seen = append(seen, e)
		return true
	}), outer)

	require.Len(t, seen, 6) // outer, inner, call, ident callee, arg1, arg2
}

func TestWalkPanicsOnUnknownVariant(t *testing.T) {
	require.Panics(t, func() {
		Walk(VisitorFunc(func(Expr) bool { return true }), unknownExpr{})
	})
}

type unknownExpr struct{ baseExpr }
