package parsevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateRegisters_AssignsDistinctSlots(t *testing.T) {
	a := NewRegisterHandle("a")
	b := NewRegisterHandle("b")
	require.NoError(t, allocateRegisters([]*Register{a, b}))

	assert.True(t, a.bound)
	assert.True(t, b.bound)
	assert.NotEqual(t, a.slot, b.slot)
	assert.GreaterOrEqual(t, a.slot, 0)
	assert.Less(t, a.slot, registerSlots)
}

func TestAllocateRegisters_AlreadyBoundIsSkipped(t *testing.T) {
	a := NewRegisterHandle("a")
	a.slot = 2
	a.bound = true
	b := NewRegisterHandle("b")

	require.NoError(t, allocateRegisters([]*Register{a, b}))
	assert.Equal(t, 2, a.slot)
	assert.NotEqual(t, 2, b.slot)
}

func TestAllocateRegisters_ExhaustionFails(t *testing.T) {
	regs := make([]*Register, registerSlots+1)
	for i := range regs {
		regs[i] = NewRegisterHandle("r")
	}
	err := allocateRegisters(regs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register pool exhausted")
}
