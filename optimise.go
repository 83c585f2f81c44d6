package parsevm

import "fmt"

// CompileError reports a defect the optimiser or codegen found in the
// grammar itself (as opposed to a runtime parse failure) — grounded on
// the teacher's grammar_compiler.go convention of surfacing structural
// grammar problems as plain errors rather than panics.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string { return "parsevm: " + e.Msg }

func compileErrorf(format string, args ...any) error {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

// Optimise runs the bottom-up peephole pass of spec.md §4.3/§9:
// constant-folds combinations involving Pure/Empty that can be
// resolved at compile time, and rejects shapes that would loop
// forever (a repetition combinator whose body can succeed without
// consuming input).
//
// Sharing is preserved by memoizing on the original node's identity,
// so two occurrences of the same shared sub-tree optimise once and
// keep pointing at the same result; a cycle (recursion) is detected
// by a visiting-set and left untouched at the back-edge, since
// folding through a recursive occurrence would not terminate and
// codegen compiles it separately via a subroutine body regardless.
func Optimise(root Node, unsafe bool) (Node, error) {
	memo := map[Node]Node{}
	visiting := map[Node]bool{}
	var err error

	var rec func(Node) Node
	rec = func(n Node) Node {
		if n == nil || err != nil {
			return n
		}
		if out, ok := memo[n]; ok {
			return out
		}
		if visiting[n] {
			return n
		}
		visiting[n] = true
		out, e := rewriteOne(n, rec, unsafe)
		if e != nil && err == nil {
			err = e
		}
		visiting[n] = false
		memo[n] = out
		return out
	}
	out := rec(root)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func rewriteOne(n Node, rec func(Node) Node, unsafe bool) (Node, error) {
	switch v := n.(type) {
	case *Ap:
		fn := rec(v.Fn)
		arg := rec(v.Arg)
		if !unsafe {
			if pf, ok := fn.(*Pure); ok {
				if pa, ok := arg.(*Pure); ok {
					return NewPure(pf.Value.(func(any) any)(pa.Value)), nil
				}
			}
		}
		return &Ap{Fn: fn, Arg: arg}, nil

	case *Alt:
		left := rec(v.Left)
		if _, ok := left.(*Pure); ok {
			// Pure always succeeds without consuming: the right
			// alternative is dead.
			return left, nil
		}
		right := rec(v.Right)
		if _, ok := left.(*Empty); ok {
			return right, nil
		}
		if _, ok := right.(*Empty); ok {
			return left, nil
		}
		return &Alt{Left: left, Right: right}, nil

	case *Attempt:
		inner := rec(v.Inner)
		switch inner.(type) {
		case *Pure, *Empty:
			return inner, nil
		}
		return &Attempt{Inner: inner}, nil

	case *Many:
		inner := rec(v.Inner)
		if _, ok := inner.(*Pure); ok {
			return nil, compileErrorf("many() body always succeeds without consuming input: infinite loop")
		}
		if _, ok := inner.(*Empty); ok {
			return NewPure([]any{}), nil
		}
		return &Many{Inner: inner}, nil

	case *SkipMany:
		inner := rec(v.Inner)
		if _, ok := inner.(*Pure); ok {
			return nil, compileErrorf("skipMany() body always succeeds without consuming input: infinite loop")
		}
		if _, ok := inner.(*Empty); ok {
			return NewPure(nil), nil
		}
		return &SkipMany{Inner: inner}, nil

	case *ChainPost:
		first := rec(v.First)
		body := rec(v.Body)
		if _, ok := body.(*Pure); ok {
			return nil, compileErrorf("chainPost() fold body always succeeds without consuming input: infinite loop")
		}
		return &ChainPost{First: first, Body: body}, nil

	case *ChainPre:
		body := rec(v.Body)
		last := rec(v.Last)
		if _, ok := body.(*Pure); ok {
			return nil, compileErrorf("chainPre() fold body always succeeds without consuming input: infinite loop")
		}
		return &ChainPre{Body: body, Last: last}, nil

	case *Chainl:
		p := rec(v.P)
		op := rec(v.Op)
		if _, ok := op.(*Pure); ok {
			return nil, compileErrorf("chainl() operator always succeeds without consuming input: infinite loop")
		}
		return &Chainl{P: p, Op: op}, nil

	case *Chainr:
		p := rec(v.P)
		op := rec(v.Op)
		wrap := rec(v.Wrap)
		if _, ok := op.(*Pure); ok {
			return nil, compileErrorf("chainr() operator always succeeds without consuming input: infinite loop")
		}
		return &Chainr{P: p, Op: op, Wrap: wrap}, nil

	case *Branch:
		scrutinee := rec(v.Scrutinee)
		onLeft := rec(v.OnLeft)
		onRight := rec(v.OnRight)
		if p, ok := scrutinee.(*Pure); ok {
			if e, ok := p.Value.(either); ok {
				side := onLeft
				if e.isRight {
					side = onRight
				}
				if pf, ok := side.(*Pure); ok && !unsafe {
					return NewPure(pf.Value.(func(any) any)(e.value)), nil
				}
				return NewAp(side, NewPure(e.value)), nil
			}
		}
		return &Branch{Scrutinee: scrutinee, OnLeft: onLeft, OnRight: onRight}, nil

	case *If:
		cond := rec(v.Cond)
		then := rec(v.Then)
		els := rec(v.Else)
		if p, ok := cond.(*Pure); ok {
			if b, ok := p.Value.(bool); ok {
				if b {
					return then, nil
				}
				return els, nil
			}
		}
		return &If{Cond: cond, Then: then, Else: els}, nil

	case *Filter:
		inner := rec(v.Inner)
		if !unsafe {
			if p, ok := inner.(*Pure); ok {
				if v.Pred(p.Value) {
					return p, nil
				}
				return NewUnexpected(fmt.Sprint(p.Value)), nil
			}
		}
		return &Filter{Inner: inner, Pred: v.Pred}, nil

	case *FilterOut:
		inner := rec(v.Inner)
		return &FilterOut{Inner: inner, Pred: v.Pred}, nil

	case *GuardAgainst:
		return &GuardAgainst{Inner: rec(v.Inner), Guard: v.Guard}, nil

	case *FastFail:
		return &FastFail{Inner: rec(v.Inner), Msg: v.Msg}, nil

	case *FastUnexpected:
		return &FastUnexpected{Inner: rec(v.Inner), Msg: v.Msg}, nil

	case *Map:
		inner := rec(v.Inner)
		if p, ok := inner.(*Pure); ok {
			return NewPure(v.Fn(p.Value)), nil
		}
		return &Map{Inner: inner, Fn: v.Fn}, nil

	case *Look:
		inner := rec(v.Inner)
		if _, ok := inner.(*Pure); ok {
			return inner, nil
		}
		return &Look{Inner: inner}, nil

	case *NotFollowedBy:
		return &NotFollowedBy{Inner: rec(v.Inner)}, nil

	case *Label:
		return &Label{Inner: rec(v.Inner), Name: v.Name}, nil

	case *Reason:
		return &Reason{Inner: rec(v.Inner), Reason: v.Reason}, nil

	case *Seq:
		items := make([]Node, len(v.Items))
		for i, it := range v.Items {
			items[i] = rec(it)
		}
		return &Seq{Items: items}, nil

	case *SepEndBy1:
		return &SepEndBy1{P: rec(v.P), Sep: rec(v.Sep)}, nil

	case *ManyUntil:
		return &ManyUntil{Body: rec(v.Body), End: rec(v.End)}, nil

	case *PutRegister:
		return &PutRegister{Reg: v.Reg, Expr: rec(v.Expr)}, nil

	case *MaxOp:
		alts := make([]Node, len(v.Alternatives))
		for i, a := range v.Alternatives {
			alts[i] = rec(a)
		}
		return &MaxOp{Alternatives: alts}, nil

	case *JumpTable:
		cases := make([]JumpCase, len(v.Cases))
		for i, c := range v.Cases {
			cases[i] = JumpCase{Set: c.Set, Body: rec(c.Body)}
		}
		return &JumpTable{Default: rec(v.Default), Cases: cases}, nil

	case *Subroutine:
		return &Subroutine{Inner: rec(v.Inner)}, nil

	case *Rec:
		// Mutate in place: v.Inner may (and for a genuine recursive
		// grammar, will) eventually point back to v itself, so a copy
		// would desynchronize the cycle from the node codegen sees
		// via this same *Rec pointer.
		v.Inner = rec(v.Inner)
		return v, nil

	default:
		// Leaves: Pure, Empty, Fail, Unexpected, CharSatisfy,
		// StringLit, Natural, Float, Escape, WhiteSpace,
		// SkipComments, Specific, NonSpecific, Line, Col,
		// GetRegister have no children to fold.
		return n, nil
	}
}
