package parsevm

// DefuncHints is the defunctionalized hints tree of spec.md §3/§4.7: a
// buffer of expected-item sets harvested from nearby failed
// alternatives at the current offset, used to enrich a later error at
// the same offset. Like DefuncError, construction is O(1); the sets
// are only computed on demand by toSets.
type DefuncHints interface {
	toSets() []itemSet
}

// EmptyHints yields nothing.
type EmptyHints struct{}

func (EmptyHints) toSets() []itemSet { return nil }

// MergeHints concatenates the sets yielded by two hints trees.
type MergeHints struct {
	A, B DefuncHints
}

func (h MergeHints) toSets() []itemSet {
	return append(h.A.toSets(), h.B.toSets()...)
}

// ReplaceHints substitutes every item in the wrapped hints' yielded
// sets with a single Desc(label) item — used by RelabelHints so a
// labelled sub-parser's hints read as the label, not its internals.
type ReplaceHints struct {
	Label string
	Inner DefuncHints
}

func (h ReplaceHints) toSets() []itemSet {
	inner := h.Inner.toSets()
	if len(inner) == 0 {
		return nil
	}
	out := make([]itemSet, len(inner))
	replacement := newItemSet(DescItem(h.Label))
	for i := range inner {
		out[i] = replacement
	}
	return out
}

// PopHints drops the most recently pushed set of the wrapped hints.
// No instruction of the VM constructs it.
type PopHints struct {
	Inner DefuncHints
}

func (h PopHints) toSets() []itemSet {
	sets := h.Inner.toSets()
	if len(sets) == 0 {
		return nil
	}
	return sets[:len(sets)-1]
}

// AddErrorHints folds a trivial error's expected set into the hints
// buffer, used by Context.addErrorToHints.
type AddErrorHints struct {
	Inner DefuncHints
	Err   *TrivialError
}

func (h AddErrorHints) toSets() []itemSet {
	sets := h.Inner.toSets()
	if h.Err == nil || len(h.Err.Expected) == 0 {
		return sets
	}
	return append(sets, h.Err.Expected)
}
