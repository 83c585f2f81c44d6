package parsevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArithmeticGrammar mirrors spec.md §8 scenario 1: digits, parens,
// unary minus, and left-associative +/-/* with the usual precedence.
func buildArithmeticGrammar() Node {
	expr := NewRec()

	paren := NewAp(
		NewMap(
			NewSeq(NewCharSatisfy(isChar('('), expectedRune('(')), expr),
			func(v any) any { return func(any) any { return v } },
		),
		NewCharSatisfy(isChar(')'), expectedRune(')')),
	)
	neg := NewMap(
		NewSeq(NewCharSatisfy(isChar('-'), expectedRune('-')), expr),
		func(v any) any { return -v.(int) },
	)
	factor := NewAlt(NewNatural(), NewAlt(neg, paren))

	mulSym := NewMap(
		NewCharSatisfy(isChar('*'), expectedRune('*')),
		func(any) any { return func(x, y any) any { return x.(int) * y.(int) } },
	)
	term := NewChainl(factor, mulSym)

	addSym := NewMap(
		NewCharSatisfy(isChar('+'), expectedRune('+')),
		func(any) any { return func(x, y any) any { return x.(int) + y.(int) } },
	)
	subSym := NewMap(
		NewCharSatisfy(isChar('-'), expectedRune('-')),
		func(any) any { return func(x, y any) any { return x.(int) - y.(int) } },
	)
	addOrSub := NewAlt(addSym, subSym)
	expr.Inner = NewChainl(term, addOrSub)

	return expr
}

func TestArithmetic_OperatorPrecedenceAndGrouping(t *testing.T) {
	prog, err := NewBuilder(buildArithmeticGrammar()).Compile()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"grouping then multiply", "(2+3)*8", 40},
		{"negated group", "-(3+4)", -7},
		{"plain multiply beats add", "2+3*4", 14},
		{"nested parens", "((1))", 1},
		{"chained subtraction", "10-2-3", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseString(prog, tt.input, "<test>")
			require.True(t, result.IsSuccess(), "expected success, got: %s", result.Message())
			assert.Equal(t, tt.expected, result.Value())
		})
	}
}

func TestArithmetic_InvalidInputFails(t *testing.T) {
	prog, err := NewBuilder(buildArithmeticGrammar()).Compile()
	require.NoError(t, err)

	result := ParseString(prog, "(2+3", "<test>")
	assert.False(t, result.IsSuccess())
	assert.NotEmpty(t, result.Message())
}

func TestArithmetic_CompilesIdenticallyUnderForce(t *testing.T) {
	b := NewBuilder(buildArithmeticGrammar())
	first, err := b.Compile()
	require.NoError(t, err)
	second, err := b.Force().Compile()
	require.NoError(t, err)

	assert.Equal(t, len(first.instrs), len(second.instrs))
}
