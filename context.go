package parsevm

import "unicode/utf8"

// Status is the Context's three-valued run state (spec.md §3).
type Status int

const (
	StatusGood Status = iota
	StatusRecover
	StatusFailed
)

// Context is the parsing VM of spec.md §4.1: it binds a compiled
// instruction array to an input and drives dispatch, owning every
// runtime stack named in §3.
type Context struct {
	input []byte
	offset int
	line, col int

	stack      opstack
	calls      []callFrame
	depth      int
	states     []savedState
	checkStack []int
	handlers   []handlerEntry
	regs       [registerSlots]any

	calleeSaves []calleeSaveFrame

	status Status
	pc     int
	instrs []instr
	halted bool

	errs             []DefuncError
	hints            DefuncHints
	hintsValidOffset int
	hintStack        []hintFrame
}

type hintFrame struct {
	hints       DefuncHints
	validOffset int
}

// NewContext binds instrs to input, ready to run from pc 0.
func NewContext(instrs []instr, input []byte) *Context {
	return &Context{
		input:            input,
		line:             1,
		col:              1,
		instrs:           instrs,
		hints:            EmptyHints{},
		hintsValidOffset: -1,
	}
}

// Run drives the dispatch loop described in spec.md §4.1's "Entry":
// dispatch instructions until Halted, or until status is Failed.
func (c *Context) Run() (any, DefuncError) {
	for !c.halted && c.status != StatusFailed {
		if c.pc >= len(c.instrs) {
			if len(c.calls) == 0 {
				c.halted = true
				break
			}
			c.ret()
			continue
		}
		c.instrs[c.pc].exec(c)
	}
	if c.status == StatusFailed {
		var err DefuncError
		if len(c.errs) > 0 {
			err = c.errs[len(c.errs)-1]
		} else {
			err = EmptyError{Offset: c.offset, Line: c.line, Col: c.col}
		}
		return nil, err
	}
	if c.stack.len() == 0 {
		return nil, nil
	}
	return c.stack.peek(), nil
}

// ---- call/ret/fail: the dispatch contract of §4.1 ----

func (c *Context) call(at int) {
	c.calls = append(c.calls, callFrame{returnPC: c.pc + 1, returnInstrs: c.instrs})
	c.pc = at
	c.depth++
}

func (c *Context) ret() {
	n := len(c.calls) - 1
	f := c.calls[n]
	c.calls = c.calls[:n]
	c.pc = f.returnPC
	c.instrs = f.returnInstrs
	c.depth--
}

// fail implements §4.1's fail(err?): push err (enriched with hints)
// when provided, then recover at the nearest handler or terminally
// fail when none remains.
func (c *Context) fail(err DefuncError) {
	if err != nil {
		c.useHints(err)
	}
	if len(c.handlers) == 0 {
		c.status = StatusFailed
		return
	}
	n := len(c.handlers) - 1
	h := c.handlers[n]
	c.handlers = c.handlers[:n]
	c.calls = truncateCalls(c.calls, h.depth)
	c.instrs = h.instrs
	c.pc = h.pc
	c.stack.truncate(h.stackSz)
	c.depth = h.depth
	if h.hintsSz <= len(c.hintStack) {
		c.hintStack = c.hintStack[:h.hintsSz]
	}
	c.hints = h.hints
	c.hintsValidOffset = h.hintsValidOffset
	c.status = StatusRecover
}

func truncateCalls(calls []callFrame, depth int) []callFrame {
	if depth > len(calls) {
		return calls
	}
	return calls[:depth]
}

func (c *Context) useHints(err DefuncError) {
	if c.hintsValidOffset == c.offset {
		err = WithHints{Err: err, Hints: c.hints}
	}
	c.errs = append(c.errs, err)
}

// ---- Input / position ----

func (c *Context) peekRune() (rune, bool) {
	if c.offset >= len(c.input) {
		return 0, false
	}
	r, _ := utf8.DecodeRune(c.input[c.offset:])
	if r == utf8.RuneError {
		return 0, false
	}
	return r, true
}

// consumeChar advances offset/line/col over one rune, applying the
// tab → next multiple of 4 rule and newline → reset column rule of
// spec.md §4.1.
func (c *Context) consumeChar() {
	r, size := utf8.DecodeRune(c.input[c.offset:])
	c.offset += size
	switch r {
	case '\n':
		c.line++
		c.col = 1
	case '\t':
		c.col += 4 - ((c.col - 1) % 4)
	default:
		c.col++
	}
}

// fastUncheckedConsumeChars bulk-advances n bytes when the caller
// guarantees the span contains no newlines or tabs (spec.md §4.1).
func (c *Context) fastUncheckedConsumeChars(n int) {
	c.offset += n
	c.col += n
}

// ---- Choice/backtrack primitives ----

func (c *Context) pushCheck() {
	c.checkStack = append(c.checkStack, c.offset)
}

func (c *Context) pushHandler(pc int) {
	c.handlers = append(c.handlers, handlerEntry{
		depth:            len(c.calls),
		pc:               pc,
		instrs:           c.instrs,
		stackSz:          c.stack.len(),
		hintsSz:          len(c.hintStack),
		hints:            c.hints,
		hintsValidOffset: c.hintsValidOffset,
	})
}

func (c *Context) saveState() {
	c.states = append(c.states, savedState{offset: c.offset, line: c.line, col: c.col})
}

func (c *Context) restoreState() {
	n := len(c.states) - 1
	s := c.states[n]
	c.states = c.states[:n]
	c.offset, c.line, c.col = s.offset, s.line, s.col
}

// ---- Hints lifecycle (spec.md §4.1/§4.7) ----

// saveHints pushes the current hints; unless shadow, also clears them
// so a nested scope starts from empty.
func (c *Context) saveHints(shadow bool) {
	c.hintStack = append(c.hintStack, hintFrame{hints: c.hints, validOffset: c.hintsValidOffset})
	if !shadow {
		c.hints = EmptyHints{}
		c.hintsValidOffset = -1
	}
}

// restoreHints pops the saved frame, discarding whatever hints were
// accumulated in the nested scope.
func (c *Context) restoreHints() {
	n := len(c.hintStack) - 1
	f := c.hintStack[n]
	c.hintStack = c.hintStack[:n]
	c.hints = f.hints
	c.hintsValidOffset = f.validOffset
}

// commitHints drops the saved frame without restoring — the nested
// scope's hints become the live ones.
func (c *Context) commitHints() {
	c.hintStack = c.hintStack[:len(c.hintStack)-1]
}

// mergeHints: if the saved frame was recorded at the current offset,
// merge it into the live hints; either way, commit.
func (c *Context) mergeHints() {
	n := len(c.hintStack) - 1
	f := c.hintStack[n]
	c.hintStack = c.hintStack[:n]
	if f.validOffset == c.offset {
		c.hints = MergeHints{A: f.hints, B: c.hints}
		if c.hintsValidOffset != c.offset {
			c.hintsValidOffset = c.offset
		}
	}
}

// relabelHints closes the scope opened by saveHints(false) for a
// Label: whatever the wrapped sub-parser contributed to the hints
// buffer (if still valid at the current offset) is rewritten to
// Desc(label) before being folded back into the enclosing scope, so a
// labelled sub-parser's hints read as the label rather than its
// internals (mirrors iRelabelHints' old unscoped behavior, but bounded
// to the label's own extent instead of leaking for the rest of the
// parse).
func (c *Context) relabelHints(label string) {
	n := len(c.hintStack) - 1
	f := c.hintStack[n]
	c.hintStack = c.hintStack[:n]
	if c.hintsValidOffset != c.offset {
		c.hints = f.hints
		c.hintsValidOffset = f.validOffset
		return
	}
	relabeled := ReplaceHints{Label: label, Inner: c.hints}
	if f.validOffset == c.offset {
		c.hints = MergeHints{A: f.hints, B: relabeled}
	} else {
		c.hints = relabeled
	}
	c.hintsValidOffset = c.offset
}

// addErrorToHints folds the top trivial error's expected set into the
// hints buffer, provided it's non-empty and at the current offset.
func (c *Context) addErrorToHints() {
	if len(c.errs) == 0 {
		return
	}
	top := c.errs[len(c.errs)-1]
	pe := top.asParseError()
	te, ok := pe.(*TrivialError)
	if !ok || len(te.Expected) == 0 || te.Offset != c.offset {
		return
	}
	if c.hintsValidOffset != c.offset {
		c.hints = EmptyHints{}
	}
	c.hints = AddErrorHints{Inner: c.hints, Err: te}
	c.hintsValidOffset = c.offset
}

// ---- ErrorItemBuilder / LineBuilder contracts (spec.md §6) ----

// ErrorItemBuilder decouples error reification from input
// representation.
type ErrorItemBuilder interface {
	InRange(offset int) bool
	CharAt(offset int) (rune, bool)
	Substring(offset, size int) string
}

// LineBuilder supplies the source line + caret machinery for
// pretty-printing (spec.md §4.6).
type LineBuilder interface {
	NearestNewlineBefore(offset int) int
	NearestNewlineAfter(offset int) int
	SegmentBetween(start, end int) string
}

func (c *Context) InRange(offset int) bool { return offset >= 0 && offset < len(c.input) }

func (c *Context) CharAt(offset int) (rune, bool) {
	if !c.InRange(offset) {
		return 0, false
	}
	r, _ := utf8.DecodeRune(c.input[offset:])
	return r, true
}

func (c *Context) Substring(offset, size int) string {
	end := offset + size
	if end > len(c.input) {
		end = len(c.input)
	}
	if offset < 0 || offset > end {
		return ""
	}
	return string(c.input[offset:end])
}

func (c *Context) NearestNewlineBefore(offset int) int {
	if offset > len(c.input) {
		offset = len(c.input)
	}
	for i := offset - 1; i >= 0; i-- {
		if c.input[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

func (c *Context) NearestNewlineAfter(offset int) int {
	for i := offset; i < len(c.input); i++ {
		if c.input[i] == '\n' {
			return i
		}
	}
	return len(c.input)
}

func (c *Context) SegmentBetween(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(c.input) {
		end = len(c.input)
	}
	if start > end {
		return ""
	}
	return string(c.input[start:end])
}
