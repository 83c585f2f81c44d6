package parsevm

// registerSlots is the bounded pool size mandated by spec.md §4.5/§9:
// 4 slots, hard-coded to keep CalleeSave semantics simple.
const registerSlots = 4

// Register is a user-visible handle created by the host combinator
// layer (e.g. one per `newRegister()` call in a grammar); it starts
// unallocated and is bound to a concrete slot by allocateRegisters.
type Register struct {
	name string
	slot int
	bound bool
}

// NewRegisterHandle creates a fresh, as-yet-unallocated register.
func NewRegisterHandle(name string) *Register {
	return &Register{name: name, slot: -1}
}

// calleeSaveFrame is the runtime record pushed by iCalleeSave and
// popped by iCalleeRestore, see context.go.
type calleeSaveFrame struct {
	slots  []int
	values []any
}

// allocateRegisters assigns fresh slots in 0..registerSlots-1 to every
// unallocated register in `used`, in encounter order, failing the
// compilation if demand exceeds the pool (spec.md §4.5).
func allocateRegisters(used []*Register) error {
	taken := map[int]bool{}
	for _, r := range used {
		if r.bound {
			taken[r.slot] = true
		}
	}
	next := 0
	nextFree := func() (int, bool) {
		for next < registerSlots {
			if !taken[next] {
				s := next
				next++
				taken[s] = true
				return s, true
			}
			next++
		}
		return 0, false
	}
	for _, r := range used {
		if r.bound {
			continue
		}
		slot, ok := nextFree()
		if !ok {
			return compileErrorf("register pool exhausted (limit %d, register %q unallocated)", registerSlots, r.name)
		}
		r.slot = slot
		r.bound = true
	}
	return nil
}
