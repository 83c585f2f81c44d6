package parsevm

// LetInfo is the let-finder's output (spec.md §4.4): which nodes are
// shared (reached ≥2 times and not a recursion point) or recursive
// (the DFS re-entered a node already on its current path), plus every
// register handle discovered anywhere in the grammar.
//
// Rather than literally splicing Subroutine/Rec wrapper values into
// the tree during a separate preprocess pass (spec.md §4.3), which
// would require either reflection or a second exhaustive type switch
// over every node shape duplicating codegen's own switch, LetInfo is
// consulted directly by codegen.go's existing switch: a node it is
// about to emit inline is first checked against shared/recursive, and
// if present compiled once to a subroutine body called from every
// site. The observable compilation result — each shared or recursive
// sub-tree compiled exactly once and invoked via Call — is the same;
// only the "is this node a wrapper value" bookkeeping moves from the
// tree to a side-table.
type LetInfo struct {
	shared    map[Node]bool
	recursive map[Node]bool
	subLabel  map[Node]*symLabel
	registers []*Register
}

func (li *LetInfo) isShared(n Node) bool    { return li.shared[n] }
func (li *LetInfo) isRecursive(n Node) bool { return li.recursive[n] }

// labelFor returns the (possibly newly allocated) subroutine label for
// a shared or recursive node, memoized so every call site resolves to
// the same symLabel.
func (li *LetInfo) labelFor(n Node) *symLabel {
	if l, ok := li.subLabel[n]; ok {
		return l
	}
	l := newLabel("sub")
	li.subLabel[n] = l
	return l
}

// FindSharing reference-counts every reachable node from root via DFS,
// flags back-edges as recursion points, and collects register handles
// (spec.md §4.4).
func FindSharing(root Node) *LetInfo {
	li := &LetInfo{
		shared:    map[Node]bool{},
		recursive: map[Node]bool{},
		subLabel:  map[Node]*symLabel{},
	}
	refs := map[Node]int{}
	onPath := map[Node]bool{}
	visited := map[Node]bool{}
	seenReg := map[*Register]bool{}

	var walk func(n Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		if onPath[n] {
			li.recursive[n] = true
			return
		}
		refs[n]++
		if visited[n] {
			return
		}
		onPath[n] = true
		for _, reg := range nodeRegisters(n) {
			if reg != nil && !seenReg[reg] {
				seenReg[reg] = true
				li.registers = append(li.registers, reg)
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
		onPath[n] = false
		visited[n] = true
	}
	walk(root)

	for n, count := range refs {
		if count >= 2 && !li.recursive[n] {
			li.shared[n] = true
		}
	}
	return li
}

// nodeRegisters returns the Register handle(s) a single node refers to
// directly (not transitively through children).
func nodeRegisters(n Node) []*Register {
	switch v := n.(type) {
	case *GetRegister:
		return []*Register{v.Reg}
	case *PutRegister:
		return []*Register{v.Reg}
	default:
		return nil
	}
}

// children returns a node's immediate operand nodes, used by the
// let-finder's DFS.
func children(n Node) []Node {
	switch v := n.(type) {
	case *Pure, *Empty, *Fail, *Unexpected, *CharSatisfy, *StringLit,
		*Natural, *Float, *Escape, *WhiteSpace, *SkipComments,
		*Specific, *NonSpecific, *Line, *Col, *GetRegister:
		return nil
	case *MaxOp:
		return v.Alternatives
	case *PutRegister:
		return []Node{v.Expr}
	case *Map:
		return []Node{v.Inner}
	case *Attempt:
		return []Node{v.Inner}
	case *Look:
		return []Node{v.Inner}
	case *NotFollowedBy:
		return []Node{v.Inner}
	case *Many:
		return []Node{v.Inner}
	case *SkipMany:
		return []Node{v.Inner}
	case *Label:
		return []Node{v.Inner}
	case *Reason:
		return []Node{v.Inner}
	case *Filter:
		return []Node{v.Inner}
	case *FilterOut:
		return []Node{v.Inner}
	case *GuardAgainst:
		return []Node{v.Inner}
	case *FastFail:
		return []Node{v.Inner}
	case *FastUnexpected:
		return []Node{v.Inner}
	case *Ap:
		return []Node{v.Fn, v.Arg}
	case *Alt:
		return []Node{v.Left, v.Right}
	case *Seq:
		return v.Items
	case *Branch:
		return []Node{v.Scrutinee, v.OnLeft, v.OnRight}
	case *If:
		return []Node{v.Cond, v.Then, v.Else}
	case *ChainPost:
		return []Node{v.First, v.Body}
	case *ChainPre:
		return []Node{v.Body, v.Last}
	case *Chainl:
		return []Node{v.P, v.Op}
	case *Chainr:
		return []Node{v.P, v.Op, v.Wrap}
	case *SepEndBy1:
		return []Node{v.P, v.Sep}
	case *ManyUntil:
		return []Node{v.Body, v.End}
	case *Subroutine:
		return []Node{v.Inner}
	case *Rec:
		return []Node{v.Inner}
	case *JumpTable:
		out := make([]Node, 0, len(v.Cases)+1)
		for _, c := range v.Cases {
			out = append(out, c.Body)
		}
		if v.Default != nil {
			out = append(out, v.Default)
		}
		return out
	default:
		return nil
	}
}
