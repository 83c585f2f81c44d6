package parsevm

// emitter accumulates the linear instruction stream produced by
// codeGen (spec.md §4.3) and tracks the worklist of shared/recursive
// sub-trees still needing their body emitted as a separately-labelled
// subroutine, called into via Call rather than inlined at every site.
type emitter struct {
	out       []instr
	li        *LetInfo
	queued    map[Node]bool
	worklist  []Node
	regSlots  []int // every allocated slot, for CalleeSave/CalleeRestore
	overflows bool
}

func (e *emitter) emit(i instr) { e.out = append(e.out, i) }

// codeGen lowers an optimised Node into a resolved Program: emit the
// root inline, then drain the worklist of subroutine bodies codegen
// discovered along the way, finally resolving all symbolic labels to
// absolute pcs. overflows selects the continuation-passing Alt-chain
// codegen of spec.md §9 over the default direct-recursive one.
func codeGen(root Node, li *LetInfo, overflows bool) (*Program, error) {
	if err := allocateRegisters(li.registers); err != nil {
		return nil, err
	}
	slots := make([]int, len(li.registers))
	for i, r := range li.registers {
		slots[i] = r.slot
	}
	e := &emitter{li: li, queued: map[Node]bool{}, regSlots: slots, overflows: overflows}

	var genErr error
	e.gen(root, &genErr)
	if genErr != nil {
		return nil, genErr
	}
	e.emit(iHalt{})

	for len(e.worklist) > 0 {
		n := e.worklist[0]
		e.worklist = e.worklist[1:]
		e.emit(iLabel{Label: e.li.labelFor(n)})
		e.genInline(bodyOf(n), &genErr)
		if genErr != nil {
			return nil, genErr
		}
		e.emit(iReturn{})
	}

	resolved := resolveLabels(e.out)
	return &Program{instrs: resolved, stateful: statefulIndices(resolved)}, nil
}

// compileStandalone compiles a sub-tree (e.g. one MaxOp alternative)
// into its own independent Program, with its own register pool reuse
// and its own shared/recursive analysis, since it never participates
// in the enclosing program's label space.
func compileStandalone(n Node) (*Program, error) {
	optimised, err := Optimise(n, false)
	if err != nil {
		return nil, err
	}
	li := FindSharing(optimised)
	return codeGen(optimised, li, false)
}

func bodyOf(n Node) Node {
	switch v := n.(type) {
	case *Rec:
		return v.Inner
	case *Subroutine:
		return v.Inner
	default:
		return n
	}
}

// gen dispatches on n's concrete type, appending n's instructions (and
// those of its children) to e.out. Shared/recursive nodes are
// redirected to a Call into a once-emitted body.
func (e *emitter) gen(n Node, errOut *error) {
	if *errOut != nil {
		return
	}
	if e.li.isShared(n) || e.li.isRecursive(n) {
		label := e.li.labelFor(n)
		if !e.queued[n] {
			e.queued[n] = true
			e.worklist = append(e.worklist, n)
		}
		e.emitCall(label)
		return
	}
	e.genInline(n, errOut)
}

// emitCall wraps a subroutine/recursion Call with CalleeSave/Restore
// over every allocated register, so a recursive call cannot corrupt
// the caller's register bindings (spec.md §4.5/§9).
func (e *emitter) emitCall(label *symLabel) {
	if len(e.regSlots) == 0 {
		e.emit(&iCall{Label: label})
		return
	}
	end := newLabel("calleeEnd")
	e.emit(&iCalleeSave{EndLabel: end, AllocatedSlots: e.regSlots})
	e.emit(&iCall{Label: label})
	e.emit(iLabel{Label: end})
	e.emit(iCalleeRestore{})
}

func (e *emitter) genInline(n Node, errOut *error) {
	switch v := n.(type) {
	case *Pure:
		e.emit(iPush{Value: v.Value})

	case *Empty:
		e.emit(iEmptyI{})

	case *Fail:
		e.emit(iFail{Msg: v.Msg})

	case *Unexpected:
		e.emit(iUnexpected{Item: v.Item})

	case *CharSatisfy:
		e.emit(iSatisfies{Pred: v.Pred, Expected: v.Expected})

	case *StringLit:
		e.emit(iStringTok{Str: v.Value, Expected: v.Expected})

	case *Natural:
		e.emit(iNatural{})

	case *Float:
		e.emit(iFloat{})

	case *Escape:
		e.emit(iEscape{Prefix: v.Prefix})

	case *WhiteSpace:
		e.emit(iWhiteSpace{Pred: v.Pred})

	case *SkipComments:
		e.emit(iSkipComments{LineStart: v.LineStart, BlockStart: v.BlockStart, BlockEnd: v.BlockEnd})

	case *Specific:
		e.emit(iSet{Set: v.Set, Expected: v.Set.expectedItems()})

	case *NonSpecific:
		e.emit(iSet{Set: v.Set, Expected: v.Set.expectedItems(), Invert: true})

	case *Line:
		e.emit(iLine{})

	case *Col:
		e.emit(iCol{})

	case *GetRegister:
		e.emit(iGet{Reg: v.Reg})

	case *PutRegister:
		e.gen(v.Expr, errOut)
		e.emit(iDup{})
		e.emit(iPut{Reg: v.Reg})

	case *Map:
		e.gen(v.Inner, errOut)
		e.emit(iPush{Value: v.Fn})
		e.emit(iSwap{})
		e.emit(iApply{})

	case *Ap:
		e.gen(v.Fn, errOut)
		e.gen(v.Arg, errOut)
		e.emit(iApply{})

	case *Seq:
		e.genSeq(v.Items, errOut)

	case *Attempt:
		e.genAttempt(v.Inner, errOut)

	case *Look:
		e.genLook(v.Inner, errOut)

	case *NotFollowedBy:
		e.genNotFollowedBy(v.Inner, errOut)

	case *Alt:
		if e.overflows {
			e.genAltChain(flattenAlt(v), errOut)
		} else {
			e.genAltChain([]Node{v.Left, v.Right}, errOut)
		}

	case *Many:
		e.genMany(v.Inner, errOut, true)

	case *SkipMany:
		e.genMany(v.Inner, errOut, false)

	case *ChainPost:
		e.genChainPost(v, errOut)

	case *ChainPre:
		e.genChainPre(v, errOut)

	case *Chainl:
		e.genChainl(v, errOut)

	case *Chainr:
		e.genChainr(v, errOut)

	case *SepEndBy1:
		e.genSepEndBy1(v, errOut)

	case *ManyUntil:
		e.genManyUntil(v, errOut)

	case *Branch:
		e.genBranch(v, errOut)

	case *If:
		e.genIf(v, errOut)

	case *Label:
		e.genLabel(v, errOut)

	case *Reason:
		e.gen(v.Inner, errOut)
		e.emit(iErrorReason{Reason: v.Reason})

	case *Filter:
		e.gen(v.Inner, errOut)
		e.emit(iFilter{Pred: v.Pred})

	case *FilterOut:
		e.gen(v.Inner, errOut)
		e.emit(iFilterOut{Pred: v.Pred})

	case *GuardAgainst:
		e.gen(v.Inner, errOut)
		e.emit(iGuardAgainst{Guard: v.Guard})

	case *FastFail:
		e.gen(v.Inner, errOut)
		e.emit(iFastFail{Msg: v.Msg})

	case *FastUnexpected:
		e.gen(v.Inner, errOut)
		e.emit(iFastUnexpected{Msg: v.Msg})

	case *MaxOp:
		e.genMaxOp(v, errOut)

	case *JumpTable:
		e.genJumpTable(v, errOut)

	case *Subroutine:
		e.gen(v.Inner, errOut)

	case *Rec:
		e.gen(v.Inner, errOut)

	case *chainrPairNode:
		e.gen(v.P, errOut)
		e.gen(v.Op, errOut)
		e.emit(iPackChainrPair{})

	default:
		*errOut = compileErrorf("codegen: unhandled node type %T", n)
	}
}

// genSeq threads each item's result as the next item's sole
// dependency is irrelevant here — items are parsed strictly in order
// and only the last one's value is kept, matching applicative
// sequencing `p1 *> p2 *> ... *> pN`.
func (e *emitter) genSeq(items []Node, errOut *error) {
	if len(items) == 0 {
		e.emit(iPush{Value: nil})
		return
	}
	for idx, it := range items {
		e.gen(it, errOut)
		if idx != len(items)-1 {
			e.emit(iPop{})
		}
	}
}

func (e *emitter) genAttempt(inner Node, errOut *error) {
	handler := newLabel("attemptRecover")
	e.emit(&iAttempt{Handler: handler})
	e.gen(inner, errOut)
	e.emit(iPopHandler{})
	end := newLabel("attemptEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: handler})
	e.emit(iAttemptRecover{})
	e.emit(iLabel{Label: end})
}

func (e *emitter) genLook(inner Node, errOut *error) {
	handler := newLabel("lookRecover")
	e.emit(&iLook{Handler: handler})
	e.gen(inner, errOut)
	e.emit(iPopHandler{})
	e.emit(iLookCommit{})
	end := newLabel("lookEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: handler})
	e.emit(iAttemptRecover{})
	e.emit(iLabel{Label: end})
}

func (e *emitter) genNotFollowedBy(inner Node, errOut *error) {
	handler := newLabel("nfbHandler")
	e.emit(&iNotFollowedBy{Handler: handler})
	e.gen(inner, errOut)
	e.emit(iPopHandler{})
	e.emit(iNotFollowedByFail{})
	end := newLabel("nfbEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: handler})
	e.emit(iNotFollowedBySucceed{})
	e.emit(iLabel{Label: end})
}

// flattenAlt walks a run of nested *Alt nodes iteratively (an explicit
// worklist, not Go recursion) so a deeply left- or right-skewed chain
// of alternatives built by repeated Alt() calls compiles without
// consuming host stack proportional to its depth, per spec.md §9's
// "overflows()" mode — grounded on the teacher's
// grammar_ast_visitor.go iterative WalkSequenceNode.
func flattenAlt(root *Alt) []Node {
	var out []Node
	stack := []Node{root.Right, root.Left}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if a, ok := n.(*Alt); ok {
			stack = append(stack, a.Right, a.Left)
			continue
		}
		out = append(out, n)
	}
	return out
}

// genAltChain emits N alternatives left-to-right. Every alternative is
// wrapped with InputCheck/JumpGood/CatchNoConsumed; the first failure
// is stashed via AltSaveErr, every subsequent one (including the last)
// folds into that running accumulator via AltAccMerge, which also
// re-propagates the fully merged error once the last alternative has
// failed too (spec.md §4.6's Merge rule generalized to N branches).
func (e *emitter) genAltChain(alts []Node, errOut *error) {
	end := newLabel("altEnd")
	var acc *iAltSaveErr

	e.emit(iSaveHints{})
	for idx, alt := range alts {
		last := idx == len(alts)-1
		handler := newLabel("altHandler")
		e.emit(&iInputCheck{Handler: handler})
		e.gen(alt, errOut)
		e.emit(&iJumpGood{Label: end})
		e.emit(iLabel{Label: handler})
		e.emit(iCatchNoConsumed{})
		e.emit(iAddErrorToHints{})
		switch {
		case acc == nil:
			acc = &iAltSaveErr{}
			e.emit(acc)
		default:
			e.emit(&iAltAccMerge{acc: acc, final: last})
		}
	}
	e.emit(iLabel{Label: end})
	e.emit(iMergeHints{})
}

func (e *emitter) genMany(inner Node, errOut *error, collect bool) {
	loop := newLabel("manyLoop")
	handler := newLabel("manyHandler")
	var many *iMany

	e.emit(&iInputCheck{Handler: handler})
	e.emit(iLabel{Label: loop})
	e.gen(inner, errOut)
	if collect {
		collectI := &iManyCollect{Loop: loop}
		e.emit(collectI)
	} else {
		e.emit(&iSkipManyCollect{Loop: loop})
	}
	e.emit(iLabel{Label: handler})
	if collect {
		many = &iMany{Body: loop}
		e.emit(many)
		e.fixManyRef(many)
	} else {
		e.emit(&iSkipManyHandler{Body: loop})
	}
}

// fixManyRef patches the just-emitted iManyCollect's ref back-pointer
// to the iMany it feeds, since both are emitted before the other's
// final address is known.
func (e *emitter) fixManyRef(many *iMany) {
	for i := len(e.out) - 1; i >= 0; i-- {
		if mc, ok := e.out[i].(*iManyCollect); ok && mc.ref == nil {
			mc.ref = many
			return
		}
	}
}

func (e *emitter) genChainPost(v *ChainPost, errOut *error) {
	e.gen(v.First, errOut)
	loop := newLabel("chainPostLoop")
	handler := newLabel("chainPostExit")
	e.emit(&iInputCheck{Handler: handler})
	e.emit(iLabel{Label: loop})
	e.gen(v.Body, errOut)
	e.emit(iChainPostFold{})
	e.emit(&iLoopContinue{Loop: loop})
	e.emit(iLabel{Label: handler})
	e.emit(iLoopExit{})
}

func (e *emitter) genChainPre(v *ChainPre, errOut *error) {
	// Collect prefix functions via the Many machinery, then run Last
	// and fold right-to-left.
	e.genMany(v.Body, errOut, true)
	e.gen(v.Last, errOut)
	e.emit(iChainPreApply{})
}

func (e *emitter) genChainl(v *Chainl, errOut *error) {
	e.gen(v.P, errOut)
	loop := newLabel("chainlLoop")
	handler := newLabel("chainlExit")
	e.emit(&iInputCheck{Handler: handler})
	e.emit(iLabel{Label: loop})
	e.gen(v.Op, errOut)
	e.gen(v.P, errOut)
	e.emit(iChainlFold{})
	e.emit(&iLoopContinue{Loop: loop})
	e.emit(iLabel{Label: handler})
	e.emit(iLoopExit{})
}

func (e *emitter) genChainr(v *Chainr, errOut *error) {
	// Gather (p, op) pairs via Many, parse the final p, apply Wrap,
	// then fold every pair right-to-left onto it.
	pairBody := &chainrPairNode{P: v.P, Op: v.Op}
	e.genMany(pairBody, errOut, true)
	e.gen(v.P, errOut)
	e.gen(v.Wrap, errOut)
	e.emit(iSwap{})
	e.emit(iApply{})
	e.emit(iChainrFoldAll{})
}

// chainrPairNode is a codegen-internal node (never produced by the
// builder API) representing one Chainr iteration's body: parse P then
// Op and pack them for the later right fold.
type chainrPairNode struct {
	base
	P, Op Node
}

func (v *chainrPairNode) meta() *base { return &v.base }

// genSepEndBy1 parses one P unconditionally, then loops (Sep *> P)*
// via the Many machinery, and finally prepends the first result to the
// collected rest.
func (e *emitter) genSepEndBy1(v *SepEndBy1, errOut *error) {
	e.gen(v.P, errOut)
	loop := newLabel("sepLoop")
	handler := newLabel("sepExit")
	e.emit(&iInputCheck{Handler: handler})
	e.emit(iLabel{Label: loop})
	e.gen(v.Sep, errOut)
	e.emit(iPop{})
	e.gen(v.P, errOut)
	collect := &iManyCollect{Loop: loop}
	e.emit(collect)
	e.emit(iLabel{Label: handler})
	many := &iMany{Body: loop}
	e.emit(many)
	e.fixManyRef(many)
	e.emit(iConsFirst{})
}

func (e *emitter) genManyUntil(v *ManyUntil, errOut *error) {
	loop := newLabel("untilLoop")
	endCheck := newLabel("untilEndCheck")
	handler := newLabel("untilHandler")

	e.emit(&iInputCheck{Handler: handler})
	e.emit(iLabel{Label: loop})
	endHandler := newLabel("untilEndFail")
	e.emit(&iInputCheck{Handler: endHandler})
	e.gen(v.End, errOut)
	e.emit(iPop{})
	e.emit(&iJumpGood{Label: endCheck})
	e.emit(iLabel{Label: endHandler})
	e.emit(iCatchNoConsumed{})
	e.gen(v.Body, errOut)
	collect := &iManyCollect{Loop: loop}
	e.emit(collect)
	e.emit(iLabel{Label: handler})
	many := &iMany{Body: loop}
	e.emit(many)
	e.fixManyRef(many)
	e.emit(iLabel{Label: endCheck})
}

// genBranch applies whichever of OnLeft/OnRight the scrutinee's Either
// selects to the Either's payload, matching the folded case's
// `p <*> Pure(x)` shape (spec.md §4.3): iCase leaves the payload on
// top of the stack, the chosen side is generated (pushing the
// function it produces), iSwap restores Ap's (f, x) order, and iApply
// combines them into the single value the stack discipline requires.
func (e *emitter) genBranch(v *Branch, errOut *error) {
	e.gen(v.Scrutinee, errOut)
	rightLabel := newLabel("branchRight")
	e.emit(&iCase{Label: rightLabel})
	e.gen(v.OnLeft, errOut)
	e.emit(iSwap{})
	e.emit(iApply{})
	end := newLabel("branchEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: rightLabel})
	e.gen(v.OnRight, errOut)
	e.emit(iSwap{})
	e.emit(iApply{})
	e.emit(iLabel{Label: end})
}

func (e *emitter) genIf(v *If, errOut *error) {
	e.gen(v.Cond, errOut)
	elseLabel := newLabel("ifElse")
	e.emit(&iIf{Label: elseLabel})
	e.gen(v.Then, errOut)
	end := newLabel("ifEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: elseLabel})
	e.gen(v.Else, errOut)
	e.emit(iLabel{Label: end})
}

// genLabel scopes the hints buffer to Inner's extent: iSaveHints opens
// a fresh scope right before Inner runs, and iRelabelHints closes it
// on the success path, rewriting whatever Inner contributed to
// Desc(label) before folding it back into the enclosing scope. On the
// failure path the scope is never explicitly closed here — fail()'s
// generic handler-recovery bookkeeping (context.go's pushHandler/fail)
// already truncates the hints stack back to what it was when
// iErrorLabel's handler was installed (before this scope opened), so
// the frame iSaveHints pushed is discarded automatically rather than
// leaking past the label.
func (e *emitter) genLabel(v *Label, errOut *error) {
	handler := newLabel("labelHandler")
	e.emit(&iErrorLabel{Label: v.Name, Handler: handler})
	e.emit(iSaveHints{})
	e.gen(v.Inner, errOut)
	e.emit(iRelabelHints{Label: v.Name})
	e.emit(iPopHandler{})
	end := newLabel("labelEnd")
	e.emit(&iJump{Label: end})
	e.emit(iLabel{Label: handler})
	e.emit(iErrorLabelApply{Label: v.Name})
	e.emit(iLabel{Label: end})
}

func (e *emitter) genMaxOp(v *MaxOp, errOut *error) {
	bodies := make([]*Program, 0, len(v.Alternatives))
	for _, alt := range v.Alternatives {
		p, err := compileStandalone(alt)
		if err != nil {
			*errOut = err
			return
		}
		bodies = append(bodies, p)
	}
	e.emit(iMaxOp{Bodies: bodies})
}

func (e *emitter) genJumpTable(v *JumpTable, errOut *error) {
	end := newLabel("jumpTableEnd")
	for _, c := range v.Cases {
		nextCase := newLabel("jumpCaseNext")
		e.emit(&jumpTableTest{Set: c.Set, pc: 0, label: nextCase})
		e.gen(c.Body, errOut)
		e.emit(&iJump{Label: end})
		e.emit(iLabel{Label: nextCase})
	}
	e.gen(v.Default, errOut)
	e.emit(iLabel{Label: end})
}
