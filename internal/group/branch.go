package group

import "cadence/internal/behavior"

// Branch picks one of two children when it is set up and runs it in place. The
// predicate is evaluated exactly once per admission.
type Branch struct {
	behavior.Base

	cond    func() bool
	onTrue  behavior.Behavior
	onFalse behavior.Behavior

	selected behavior.Behavior
}

// NewBranch returns a Branch. Either child may be nil, in which case selecting it
// makes the branch finish on its first tick.
func NewBranch(name string, cond func() bool, onTrue, onFalse behavior.Behavior, opts ...behavior.Option) (*Branch, error) {
	if cond == nil {
		cond = func() bool { return false }
	}
	b := &Branch{Base: behavior.NewBase(name, opts...), cond: cond, onTrue: onTrue, onFalse: onFalse}
	var entries []Entry
	for _, c := range []behavior.Behavior{onTrue, onFalse} {
		if c != nil {
			entries = append(entries, Child(c))
		}
	}
	if len(entries) > 0 {
		union, err := adopt(b, entries)
		if err != nil {
			return nil, err
		}
		b.Base.Require(union.IDs()...)
	}
	return b, nil
}

// Selected returns the child chosen at the last setup, or nil.
func (b *Branch) Selected() behavior.Behavior { return b.selected }

func (b *Branch) Interruptible() bool {
	if !b.Base.Interruptible() {
		return false
	}
	if b.selected != nil && b.selected.Core().Running() && !b.selected.Interruptible() {
		return false
	}
	return true
}

// Setup evaluates the predicate and starts the chosen child directly. The child's
// own requirements are cleared since the branch already holds them.
func (b *Branch) Setup() {
	b.selected = b.onFalse
	if b.cond() {
		b.selected = b.onTrue
	}
	if b.selected == nil {
		return
	}
	b.selected.Core().ClearRequirements()
	raise(start(b.selected, b.Now()))
}

func (b *Branch) Step() {
	if b.selected == nil || !b.selected.Core().Running() {
		return
	}
	_, err := advance(Child(b.selected), b.Now())
	raise(err)
}

func (b *Branch) IsFinished() bool {
	return b.selected == nil || !b.selected.Core().Running()
}

func (b *Branch) Teardown()    { b.halt() }
func (b *Branch) OnInterrupt() { b.halt() }

func (b *Branch) halt() {
	if b.selected != nil && b.selected.Core().Running() {
		raise(behavior.Interrupt(b.selected, b.Now()))
	}
}
