package parsevm

// resolveLabels implements the two-pass scheme grounded on the
// teacher's vm_encoder.go Encode: emit instructions with symbolic
// iLabel markers interspersed, then (1) walk once recording each
// label's resulting pc (an iLabel contributes no instruction of its
// own, so its address is the next surviving instruction's index) while
// compacting away the iLabel markers, then (2) walk the compacted
// stream rewriting every relabeler's embedded symLabel to that
// absolute pc.
func resolveLabels(prog []instr) []instr {
	addr := map[*symLabel]int{}
	compacted := make([]instr, 0, len(prog))
	for _, in := range prog {
		if lbl, ok := in.(iLabel); ok {
			addr[lbl.Label] = len(compacted)
			continue
		}
		compacted = append(compacted, in)
	}
	for _, in := range compacted {
		if r, ok := in.(relabeler); ok {
			r.relabel(addr)
		}
	}
	return compacted
}

// statefulIndices returns the pc of every instruction whose stateful()
// reports true, for CloneForThread to copy independently.
func statefulIndices(prog []instr) []int {
	var out []int
	for pc, in := range prog {
		if in.stateful() {
			out = append(out, pc)
		}
	}
	return out
}
