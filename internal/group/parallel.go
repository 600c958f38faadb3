package group

import (
	"errors"
	"fmt"

	"cadence/internal/behavior"
)

// Mode selects when a Parallel behavior finishes.
type Mode int

const (
	// All finishes once every child has been removed.
	All Mode = iota
	// Race finishes as soon as any child is removed; the rest are interrupted.
	Race
	// Deadline finishes when the first child is removed; the rest are interrupted.
	Deadline
)

func (m Mode) String() string {
	switch m {
	case All:
		return "all"
	case Race:
		return "race"
	case Deadline:
		return "deadline"
	default:
		return "unknown"
	}
}

// Parallel starts all of its children together on its first Step and drives them
// every tick. Children that end are torn down immediately while the others go on.
type Parallel struct {
	behavior.Base

	entries []Entry
	mode    Mode

	started bool
	done    bool
}

// NewParallel returns a Parallel owning entries. Children may not share resources
// and each child may appear only once.
func NewParallel(name string, mode Mode, entries []Entry, opts ...behavior.Option) (*Parallel, error) {
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].Behavior, entries[j].Behavior
			if a == nil || b == nil {
				continue
			}
			if a.Core().ID() == b.Core().ID() {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateChild, a.Core().Name())
			}
			if a.Requirements().Intersects(b.Requirements()) {
				return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingRequirements, a.Core().Name(), b.Core().Name())
			}
		}
	}
	p := &Parallel{Base: behavior.NewBase(name, opts...), mode: mode}
	union, err := adopt(p, entries)
	if err != nil {
		return nil, err
	}
	p.entries = append([]Entry(nil), entries...)
	p.Base.Require(union.IDs()...)
	return p, nil
}

func (p *Parallel) Mode() Mode { return p.mode }

// Interruptible is false if the group or any running child is uninterruptible.
func (p *Parallel) Interruptible() bool {
	if !p.Base.Interruptible() {
		return false
	}
	for _, e := range p.entries {
		if e.Behavior.Core().Running() && !e.Behavior.Interruptible() {
			return false
		}
	}
	return true
}

func (p *Parallel) Setup() {
	p.started = false
	p.done = false
}

func (p *Parallel) Step() {
	if p.done {
		return
	}
	now := p.Now()
	var errs []error
	if !p.started {
		p.started = true
		for _, e := range p.entries {
			errs = append(errs, start(e.Behavior, now))
		}
	}

	removed, remaining := false, 0
	for _, e := range p.entries {
		if !e.Behavior.Core().Running() {
			continue
		}
		running, err := advance(e, now)
		errs = append(errs, err)
		if running {
			remaining++
		} else {
			removed = true
		}
	}

	switch p.mode {
	case All:
		p.done = remaining == 0
	case Race:
		p.done = removed || remaining == 0
	case Deadline:
		p.done = !p.entries[0].Behavior.Core().Running()
	}
	if p.done {
		errs = append(errs, stop(p.entries, now))
	}
	raise(errors.Join(errs...))
}

func (p *Parallel) IsFinished() bool { return p.done }

func (p *Parallel) Teardown()    { raise(stop(p.entries, p.Now())) }
func (p *Parallel) OnInterrupt() { raise(stop(p.entries, p.Now())) }
