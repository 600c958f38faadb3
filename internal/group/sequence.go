package group

import "cadence/internal/behavior"

// Sequence runs its children one at a time in order. The first child starts on the
// sequence's first Step; by default each following child starts on the tick after
// its predecessor ends.
type Sequence struct {
	behavior.Base

	entries  []Entry
	sameTick bool

	next    int
	current int
	done    bool
}

// SequenceOption configures a Sequence.
type SequenceOption func(s *Sequence)

// AdvanceSameTick starts the next child on the tick its predecessor ended.
func AdvanceSameTick() SequenceOption {
	return func(s *Sequence) { s.sameTick = true }
}

// WithCore applies behavior options (timeout, interruptibility) to the sequence itself.
func WithCore(opts ...behavior.Option) SequenceOption {
	return func(s *Sequence) {
		for _, o := range opts {
			if o != nil {
				o(&s.Base)
			}
		}
	}
}

// NewSequence returns a Sequence owning entries.
func NewSequence(name string, entries []Entry, opts ...SequenceOption) (*Sequence, error) {
	s := &Sequence{Base: behavior.NewBase(name), current: -1}
	union, err := adopt(s, entries)
	if err != nil {
		return nil, err
	}
	s.entries = append([]Entry(nil), entries...)
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	s.Base.Require(union.IDs()...)
	return s, nil
}

// Current returns the running child, or nil.
func (s *Sequence) Current() behavior.Behavior {
	if s.current < 0 {
		return nil
	}
	return s.entries[s.current].Behavior
}

// Interruptible is false if the sequence or its running child is uninterruptible.
func (s *Sequence) Interruptible() bool {
	if !s.Base.Interruptible() {
		return false
	}
	if c := s.Current(); c != nil && !c.Interruptible() {
		return false
	}
	return true
}

func (s *Sequence) Setup() {
	s.next = 0
	s.current = -1
	s.done = false
}

func (s *Sequence) Step() {
	now := s.Now()
	for !s.done {
		if s.current < 0 {
			if s.next >= len(s.entries) {
				s.done = true
				return
			}
			s.current = s.next
			s.next++
			if err := start(s.entries[s.current].Behavior, now); err != nil {
				s.current = -1
				raise(err)
			}
		}

		running, err := advance(s.entries[s.current], now)
		if running {
			return
		}
		s.current = -1
		raise(err)
		if s.next >= len(s.entries) {
			s.done = true
			return
		}
		if !s.sameTick {
			return
		}
	}
}

func (s *Sequence) IsFinished() bool { return s.done }

func (s *Sequence) Teardown()    { s.halt() }
func (s *Sequence) OnInterrupt() { s.halt() }

func (s *Sequence) halt() {
	c := s.Current()
	s.current = -1
	if c != nil && c.Core().Running() {
		raise(behavior.Interrupt(c, s.Now()))
	}
}
