package parsevm

// Node is the deep-embedding AST of spec.md §3/§4.3: an immutable
// tree of parser nodes, identity-by-reference (two occurrences of the
// same *node value indicate sharing discovered by the let-finder).
// The three compiler phases (preprocess, optimise, codeGen) are
// pattern matches over the concrete variants below, kept in
// letfinder.go, optimise.go and codegen.go respectively rather than
// as methods on Node, mirroring how the teacher's compiler visits
// AstNode variants from outside the node types themselves.
type Node interface {
	// shared/cached bookkeeping, see base.
	meta() *base
}

// base is embedded in every concrete node and reserves slots for a
// cached `size` (code length contribution), a `processed` flag and a
// reference count. No compiler pass sets them: the let-finder keeps its
// counts in LetInfo, and codegen does not record sizes.
type base struct {
	size      int
	processed bool
	refs      int // reference count; not set by any pass
}

func (b *base) meta() *base { return b }

// ---- Leaves ----

// Pure wraps a host value without consuming input; it never fails.
type Pure struct {
	base
	Value any
}

func NewPure(v any) *Pure { return &Pure{Value: v} }

// Empty always fails without consuming input and without an error
// message of its own (the surrounding combinator supplies one).
type Empty struct{ base }

func NewEmpty() *Empty { return &Empty{} }

// Fail is a free-form ("fancy") failure.
type Fail struct {
	base
	Msg string
}

func NewFail(msg string) *Fail { return &Fail{Msg: msg} }

// Unexpected fails reporting a specific unexpected item.
type Unexpected struct {
	base
	Item string
}

func NewUnexpected(item string) *Unexpected { return &Unexpected{Item: item} }

// CharSatisfy matches a single rune against predicate Pred; Expected,
// when non-nil, is reported verbatim on failure instead of a generic
// message. Pred is boxed as an opaque predicate index resolved by the
// host combinator layer (kept as `func(rune) bool` here since the
// core is the only consumer that needs to invoke it).
type CharSatisfy struct {
	base
	Pred     func(rune) bool
	Expected *ErrorItem
}

func NewCharSatisfy(pred func(rune) bool, expected *ErrorItem) *CharSatisfy {
	return &CharSatisfy{Pred: pred, Expected: expected}
}

// StringLit matches a literal string.
type StringLit struct {
	base
	Value    string
	Expected *ErrorItem
}

func NewStringLit(s string) *StringLit { return &StringLit{Value: s} }

// Natural, Float, Escape, WhiteSpace, SkipComments are the
// tokenization primitives named in spec.md §3's node shape list; they
// are leaves whose matching behavior is fixed (unlike CharSatisfy,
// which is parameterized by a host predicate).
type Natural struct{ base }
type Float struct{ base }
type Escape struct {
	base
	Prefix string
}
type WhiteSpace struct {
	base
	Pred func(rune) bool
}
type SkipComments struct {
	base
	LineStart  string
	BlockStart string
	BlockEnd   string
}

func NewNatural() *Natural       { return &Natural{} }
func NewFloat() *Float           { return &Float{} }
func NewEscape(p string) *Escape { return &Escape{Prefix: p} }
func NewWhiteSpace(pred func(rune) bool) *WhiteSpace {
	return &WhiteSpace{Pred: pred}
}
func NewSkipComments(lineStart, blockStart, blockEnd string) *SkipComments {
	return &SkipComments{LineStart: lineStart, BlockStart: blockStart, BlockEnd: blockEnd}
}

// Specific/NonSpecific wrap a charset-driven match, compiled to a
// single Set instruction (see charset.go). They are built directly;
// CharSatisfy alternatives are not folded into them.
type Specific struct {
	base
	Set *charset
}
type NonSpecific struct {
	base
	Set *charset
}

func NewSpecific(cs *charset) *Specific       { return &Specific{Set: cs} }
func NewNonSpecific(cs *charset) *NonSpecific { return &NonSpecific{Set: cs} }

// MaxOp matches the longest of several alternatives (used by chained
// operator-precedence grammars); all children are tried and the one
// consuming the most input wins.
type MaxOp struct {
	base
	Alternatives []Node
}

func NewMaxOp(alts ...Node) *MaxOp { return &MaxOp{Alternatives: alts} }

// Line/Col push the current 1-based line/column onto the operand
// stack without consuming input.
type Line struct{ base }
type Col struct{ base }

func NewLine() *Line { return &Line{} }
func NewCol() *Col   { return &Col{} }

// GetRegister/PutRegister read/write one of the 4 VM registers.
type GetRegister struct {
	base
	Reg *Register
}
type PutRegister struct {
	base
	Reg  *Register
	Expr Node
}

func NewGetRegister(r *Register) *GetRegister        { return &GetRegister{Reg: r} }
func NewPutRegister(r *Register, e Node) *PutRegister { return &PutRegister{Reg: r, Expr: e} }

// ---- Unary combinators ----

type Map struct {
	base
	Inner Node
	Fn    func(any) any
}

func NewMap(inner Node, fn func(any) any) *Map { return &Map{Inner: inner, Fn: fn} }

type Attempt struct {
	base
	Inner Node
}

func NewAttempt(inner Node) *Attempt { return &Attempt{Inner: inner} }

type Look struct {
	base
	Inner Node
}

func NewLook(inner Node) *Look { return &Look{Inner: inner} }

type NotFollowedBy struct {
	base
	Inner Node
}

func NewNotFollowedBy(inner Node) *NotFollowedBy { return &NotFollowedBy{Inner: inner} }

// Many is `p*`: zero or more repetitions, collected into a slice.
type Many struct {
	base
	Inner Node
}

func NewMany(inner Node) *Many { return &Many{Inner: inner} }

// SkipMany is Many but discards its results.
type SkipMany struct {
	base
	Inner Node
}

func NewSkipMany(inner Node) *SkipMany { return &SkipMany{Inner: inner} }

// Label attaches a user label to the expected-set of any failure
// inside Inner (empty label hides the expected set entirely).
type Label struct {
	base
	Inner Node
	Name  string
}

func NewLabel(inner Node, name string) *Label { return &Label{Inner: inner, Name: name} }

// Reason wraps Inner with an explanatory reason string. The string is
// carried into the compiled iErrorReason, which leaves the error
// unchanged: a failure of Inner is reported without the reason.
type Reason struct {
	base
	Inner  Node
	Reason string
}

func NewReason(inner Node, reason string) *Reason { return &Reason{Inner: inner, Reason: reason} }

// Filter/FilterOut/GuardAgainst/FastFail/FastUnexpected all pop a
// value off the stack and decide, via Pred, whether to keep going or
// fail. They differ in what happens on the "fail" branch:
//   - Filter fails iff Pred(x) is false.
//   - FilterOut fails iff Pred(x) is true.
//   - GuardAgainst calls Guard(x), which returns a message and a flag;
//     when the flag is true it fails with that fancy message.
//   - FastFail maps x through Msg and fails with that fancy message
//     unconditionally reached (post a prior Filter-style gate upstream).
//   - FastUnexpected maps x through Msg and fails reporting it as the
//     unexpected item.
type Filter struct {
	base
	Inner Node
	Pred  func(any) bool
}
type FilterOut struct {
	base
	Inner Node
	Pred  func(any) bool
}
type GuardAgainst struct {
	base
	Inner Node
	Guard func(any) (string, bool)
}
type FastFail struct {
	base
	Inner Node
	Msg   func(any) string
}
type FastUnexpected struct {
	base
	Inner Node
	Msg   func(any) string
}

func NewFilter(inner Node, pred func(any) bool) *Filter { return &Filter{Inner: inner, Pred: pred} }
func NewFilterOut(inner Node, pred func(any) bool) *FilterOut {
	return &FilterOut{Inner: inner, Pred: pred}
}
func NewGuardAgainst(inner Node, guard func(any) (string, bool)) *GuardAgainst {
	return &GuardAgainst{Inner: inner, Guard: guard}
}
func NewFastFail(inner Node, msg func(any) string) *FastFail {
	return &FastFail{Inner: inner, Msg: msg}
}
func NewFastUnexpected(inner Node, msg func(any) string) *FastUnexpected {
	return &FastUnexpected{Inner: inner, Msg: msg}
}

// ---- Binary / n-ary combinators ----

type Ap struct {
	base
	Fn  Node
	Arg Node
}

func NewAp(fn, arg Node) *Ap { return &Ap{Fn: fn, Arg: arg} }

type Alt struct {
	base
	Left, Right Node
}

func NewAlt(left, right Node) *Alt { return &Alt{Left: left, Right: right} }

type Seq struct {
	base
	Items []Node
}

func NewSeq(items ...Node) *Seq { return &Seq{Items: items} }

// Branch is the Either-eliminator: Scrutinee yields an Either, Left
// feeds OnLeft, Right feeds OnRight.
type Branch struct {
	base
	Scrutinee      Node
	OnLeft, OnRight Node
}

func NewBranch(scrutinee, onLeft, onRight Node) *Branch {
	return &Branch{Scrutinee: scrutinee, OnLeft: onLeft, OnRight: onRight}
}

// If picks Then or Else based on a boolean Cond.
type If struct {
	base
	Cond, Then, Else Node
}

func NewIf(cond, then, els Node) *If { return &If{Cond: cond, Then: then, Else: els} }

// ---- Iteration combinators with an explicit fold operator ----

// ChainPost repeats Body, left-folding each result onto the previous
// via accumulation performed by Body itself (Body pops the
// accumulator, produces a new one).
type ChainPost struct {
	base
	First, Body Node
}

func NewChainPost(first, body Node) *ChainPost { return &ChainPost{First: first, Body: body} }

// ChainPre is the mirror of ChainPost: Body produces prefix
// transformations applied right-to-left to First.
type ChainPre struct {
	base
	Body, Last Node
}

func NewChainPre(body, last Node) *ChainPre { return &ChainPre{Body: body, Last: last} }

// Chainl parses `p (op p)*` left-associatively; op yields a binary
// function applied to the running accumulator and the next p.
type Chainl struct {
	base
	P, Op Node
}

func NewChainl(p, op Node) *Chainl { return &Chainl{P: p, Op: op} }

// Chainr parses `p (op p)*` right-associatively; Wrap is applied to a
// lone p with no following op.
type Chainr struct {
	base
	P, Op, Wrap Node
}

func NewChainr(p, op, wrap Node) *Chainr { return &Chainr{P: p, Op: op, Wrap: wrap} }

// SepEndBy1 parses one-or-more P separated by Sep. A trailing Sep that
// consumes input and is not followed by a P makes the parse fail; an
// ending Sep is not accepted.
type SepEndBy1 struct {
	base
	P, Sep Node
}

func NewSepEndBy1(p, sep Node) *SepEndBy1 { return &SepEndBy1{P: p, Sep: sep} }

// ManyUntil repeats Body until End succeeds (End's result is
// discarded).
type ManyUntil struct {
	base
	Body, End Node
}

func NewManyUntil(body, end Node) *ManyUntil { return &ManyUntil{Body: body, End: end} }

// ---- Sharing / recursion markers, assigned by the let-finder ----

// Subroutine wraps a shared sub-tree: Inner is compiled exactly once
// and called from every occurrence.
type Subroutine struct {
	base
	Inner Node
	label *symLabel // not set by codegen, which takes labels from LetInfo.labelFor
}

// Rec wraps a parser that transitively references itself; its body is
// compiled lazily (resolved once the whole grammar has been visited)
// so that recursive grammars terminate compilation. Build circular
// grammars by creating a Rec first and assigning Inner once the body
// referencing it exists:
//
//	expr := NewRec()
//	expr.Inner = NewAlt(term, NewSeq(term, plus, expr))
type Rec struct {
	base
	Inner Node
	label *symLabel
}

func NewRec() *Rec { return &Rec{} }

func NewSubroutine(inner Node) *Subroutine { return &Subroutine{Inner: inner} }

// JumpTable dispatches to one of several bodies keyed by the next
// input byte/charset membership, the codegen-level optimisation of an
// Alt-chain of mutually-exclusive CharSatisfy/StringLit heads.
type JumpTable struct {
	base
	Cases   []JumpCase
	Default Node
}

type JumpCase struct {
	Set  *charset
	Body Node
}

func NewJumpTable(def Node, cases ...JumpCase) *JumpTable {
	return &JumpTable{Default: def, Cases: cases}
}
