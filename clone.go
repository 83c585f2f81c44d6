package parsevm

// cloner is implemented by every stateful instruction: it returns a
// fresh copy carrying its own scratch, independent of the original.
type cloner interface {
	clone() instr
}

// Program is a resolved, ready-to-run instruction stream together with
// the pcs of its stateful instructions, as produced by Compile.
type Program struct {
	instrs   []instr
	stateful []int
}

// CloneForThread returns a Program safe to run concurrently with p: every
// stateful instruction (iMany accumulators, iAltSaveErr/iAltAccMerge
// scratch) is deep-copied so two concurrent runs of the same compiled
// grammar never share mutable scratch; everything else is shared
// read-only, mirroring the teacher's Bytecode side-table split between
// immutable code and per-run state.
func (p *Program) CloneForThread() *Program {
	out := make([]instr, len(p.instrs))
	copy(out, p.instrs)
	refFix := map[instr]instr{}
	for _, pc := range p.stateful {
		c := out[pc].(cloner)
		fresh := c.clone()
		refFix[out[pc]] = fresh
		out[pc] = fresh
	}
	// iManyCollect/iAltAccMerge hold a pointer back to their paired
	// stateful instruction; repoint those at the clone.
	for pc, in := range out {
		switch v := in.(type) {
		case *iManyCollect:
			if fresh, ok := refFix[v.ref]; ok {
				nv := *v
				nv.ref = fresh.(*iMany)
				out[pc] = &nv
			}
		case *iAltAccMerge:
			if fresh, ok := refFix[v.acc]; ok {
				nv := *v
				nv.acc = fresh.(*iAltSaveErr)
				out[pc] = &nv
			}
		}
	}
	return &Program{instrs: out, stateful: p.stateful}
}
