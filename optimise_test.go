package parsevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimise_ApPureFold(t *testing.T) {
	fn := NewPure(func(any) any { return "called" })
	node := &Ap{Fn: fn, Arg: NewPure(1)}

	out, err := Optimise(node, false)
	require.NoError(t, err)
	pure, ok := out.(*Pure)
	require.True(t, ok)
	assert.Equal(t, "called", pure.Value)
}

func TestOptimise_ApPureFold_SkippedWhenUnsafe(t *testing.T) {
	fn := NewPure(func(any) any { return "called" })
	node := &Ap{Fn: fn, Arg: NewPure(1)}

	out, err := Optimise(node, true)
	require.NoError(t, err)
	_, ok := out.(*Ap)
	assert.True(t, ok, "unsafe() must disable the Pure<*>Pure fold")
}

func TestOptimise_AltEmptyFolds(t *testing.T) {
	p := NewCharSatisfy(func(rune) bool { return true }, nil)

	out, err := Optimise(NewAlt(NewEmpty(), p), false)
	require.NoError(t, err)
	assert.Same(t, p, out)

	out, err = Optimise(NewAlt(p, NewEmpty()), false)
	require.NoError(t, err)
	assert.Same(t, p, out)
}

func TestOptimise_AltPureShortCircuitsRight(t *testing.T) {
	pure := NewPure(1)
	node := NewAlt(pure, NewFail("never reached"))

	out, err := Optimise(node, false)
	require.NoError(t, err)
	assert.Same(t, pure, out)
}

func TestOptimise_AttemptPassThrough(t *testing.T) {
	pure := NewPure(1)
	out, err := Optimise(NewAttempt(pure), false)
	require.NoError(t, err)
	assert.Same(t, pure, out)
}

func TestOptimise_ManyPureIsCompileError(t *testing.T) {
	_, err := Optimise(NewMany(NewPure(1)), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infinite loop")
}

func TestOptimise_ManyEmptyFoldsToEmptySlice(t *testing.T) {
	out, err := Optimise(NewMany(NewEmpty()), false)
	require.NoError(t, err)
	pure, ok := out.(*Pure)
	require.True(t, ok)
	assert.Equal(t, []any{}, pure.Value)
}

func TestOptimise_ChainlPureOperatorIsCompileError(t *testing.T) {
	_, err := Optimise(NewChainl(NewCharSatisfy(func(rune) bool { return true }, nil), NewPure(1)), false)
	require.Error(t, err)
}

func TestOptimise_IfConstantFold(t *testing.T) {
	then := NewPure("then")
	els := NewPure("else")

	out, err := Optimise(NewIf(NewPure(true), then, els), false)
	require.NoError(t, err)
	assert.Same(t, then, out)

	out, err = Optimise(NewIf(NewPure(false), then, els), false)
	require.NoError(t, err)
	assert.Same(t, els, out)
}

func TestOptimise_FilterPureFold(t *testing.T) {
	pass := NewFilter(NewPure(4), func(v any) bool { return v.(int) > 0 })
	out, err := Optimise(pass, false)
	require.NoError(t, err)
	pure, ok := out.(*Pure)
	require.True(t, ok)
	assert.Equal(t, 4, pure.Value)

	fail := NewFilter(NewPure(-1), func(v any) bool { return v.(int) > 0 })
	out, err = Optimise(fail, false)
	require.NoError(t, err)
	_, ok = out.(*Unexpected)
	assert.True(t, ok)
}

func TestOptimise_FilterPureFold_SkippedWhenUnsafe(t *testing.T) {
	node := NewFilter(NewPure(4), func(v any) bool { return v.(int) > 0 })
	out, err := Optimise(node, true)
	require.NoError(t, err)
	_, ok := out.(*Filter)
	assert.True(t, ok)
}

func TestOptimise_PreservesSharingOfRevisitedNode(t *testing.T) {
	shared := NewCharSatisfy(func(rune) bool { return true }, nil)
	root := NewSeq(shared, shared)

	out, err := Optimise(root, false)
	require.NoError(t, err)
	seq := out.(*Seq)
	assert.Same(t, seq.Items[0], seq.Items[1])
}

func TestOptimise_CycleSafeOnRecursiveNode(t *testing.T) {
	rec := NewRec()
	rec.Inner = NewAlt(NewPure(0), NewSeq(NewPure(1), rec))

	out, err := Optimise(rec, false)
	require.NoError(t, err)
	outRec, ok := out.(*Rec)
	require.True(t, ok)
	assert.Same(t, rec, outRec)
}
