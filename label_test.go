package parsevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse_LabelReplacesExpectedSet pins Testable Property 8: a
// labelled sub-parser's failure reports the label instead of its
// internals' raw expected item.
func TestParse_LabelReplacesExpectedSet(t *testing.T) {
	grammar := NewLabel(NewCharSatisfy(isChar('a'), expectedRune('a')), "identifier")
	prog, err := NewBuilder(grammar).Compile()
	require.NoError(t, err)

	result := Parse(prog, []byte("b"), "")
	require.False(t, result.IsSuccess())
	assert.Contains(t, result.Message(), "identifier")
	assert.NotContains(t, result.Message(), `"a"`)
}

// TestParse_LabelHidesExpectedSet pins the label=="" hiding case: the
// expected set is dropped entirely rather than replaced.
func TestParse_LabelHidesExpectedSet(t *testing.T) {
	grammar := NewLabel(NewCharSatisfy(isChar('a'), expectedRune('a')), "")
	prog, err := NewBuilder(grammar).Compile()
	require.NoError(t, err)

	result := Parse(prog, []byte("b"), "")
	require.False(t, result.IsSuccess())
	assert.NotContains(t, result.Message(), "expecting")
}

// TestParse_LabelDoesNotLeakHintsPastItsExtent exercises a label
// wrapping an Alt whose failed first alternative contributes to the
// hints buffer; once the label's scope closes, the failure message
// names the label and the sibling's "c", but not the label's inner
// expected items "a" and "b".
func TestParse_LabelDoesNotLeakHintsPastItsExtent(t *testing.T) {
	inner := NewLabel(
		NewAlt(
			NewCharSatisfy(isChar('a'), expectedRune('a')),
			NewCharSatisfy(isChar('b'), expectedRune('b')),
		),
		"letter",
	)
	grammar := NewAlt(inner, NewCharSatisfy(isChar('c'), expectedRune('c')))

	prog, err := NewBuilder(grammar).Compile()
	require.NoError(t, err)

	result := Parse(prog, []byte("z"), "")
	require.False(t, result.IsSuccess())
	assert.Contains(t, result.Message(), `"c"`)
	assert.NotContains(t, result.Message(), `"a"`)
	assert.NotContains(t, result.Message(), `"b"`)
}

func TestParse_BranchAppliesChosenSideToPayload(t *testing.T) {
	left := NewMap(
		NewCharSatisfy(isChar('L'), expectedRune('L')),
		func(v any) any { return either{isRight: false, value: v} },
	)
	right := NewMap(
		NewCharSatisfy(isChar('R'), expectedRune('R')),
		func(v any) any { return either{isRight: true, value: v} },
	)
	scrutinee := NewAlt(left, right)

	onLeft := NewPure(func(x any) any { return "left:" + string(x.(rune)) })
	onRight := NewPure(func(x any) any { return "right:" + string(x.(rune)) })

	grammar := NewBranch(scrutinee, onLeft, onRight)
	prog, err := NewBuilder(grammar).Compile()
	require.NoError(t, err)

	resL := Parse(prog, []byte("L"), "")
	require.True(t, resL.IsSuccess())
	assert.Equal(t, "left:L", resL.Value())

	resR := Parse(prog, []byte("R"), "")
	require.True(t, resR.IsSuccess())
	assert.Equal(t, "right:R", resR.Value())
}

func TestOptimise_BranchPureScrutineeAppliesPayload(t *testing.T) {
	onLeft := NewPure(func(x any) any { return x.(int) + 1 })
	scrutinee := NewPure(either{isRight: false, value: 41})

	out, err := Optimise(NewBranch(scrutinee, onLeft, NewFail("unreached")), false)
	require.NoError(t, err)

	// The fold must apply onLeft to the payload (p <*> Pure(x)), not
	// discard the payload the way NewSeq(NewPure(x), onLeft) would.
	pure, ok := out.(*Pure)
	require.True(t, ok, "Ap(Pure(f), Pure(x)) folds all the way to Pure(f(x))")
	assert.Equal(t, 42, pure.Value)
}
