package parsevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLabels_RewritesJumpsAndErasesMarkers(t *testing.T) {
	end := newLabel("end")
	prog := []instr{
		&iJump{Label: end},
		iPush{Value: "skipped"},
		iLabel{Label: end},
		iPush{Value: "landed"},
	}
	resolved := resolveLabels(prog)

	require.Len(t, resolved, 3)
	jump := resolved[0].(*iJump)
	assert.Equal(t, 2, jump.pc, "jump should land on the instruction right after the erased iLabel")
	assert.Equal(t, iPush{Value: "skipped"}, resolved[1])
	assert.Equal(t, iPush{Value: "landed"}, resolved[2])
}

func TestResolveLabels_MultipleRelabelersShareOneLabel(t *testing.T) {
	target := newLabel("target")
	prog := []instr{
		&iJump{Label: target},
		&iJumpGood{Label: target},
		iLabel{Label: target},
		iPush{Value: 1},
	}
	resolved := resolveLabels(prog)
	require.Len(t, resolved, 3)
	assert.Equal(t, 2, resolved[0].(*iJump).pc)
	assert.Equal(t, 2, resolved[1].(*iJumpGood).pc)
}

func TestStatefulIndices_FindsOnlyStatefulInstructions(t *testing.T) {
	prog := []instr{
		iPush{Value: 1},
		&iMany{},
		iPop{},
		&iAltSaveErr{},
	}
	idx := statefulIndices(prog)
	assert.Equal(t, []int{1, 3}, idx)
}
