package trigger

import (
	"sync/atomic"
	"time"
)

// Condition is sampled once per poll with the scheduler's tick time.
type Condition func(now time.Time) bool

// Of adapts a plain predicate.
func Of(f func() bool) Condition {
	return func(time.Time) bool { return f() }
}

// Always is true on every poll.
func Always() Condition { return func(time.Time) bool { return true } }

// And is true when every condition is true. Evaluation stops at the first false.
func And(conds ...Condition) Condition {
	return func(now time.Time) bool {
		for _, c := range conds {
			if !c(now) {
				return false
			}
		}
		return true
	}
}

// Or is true when any condition is true. Evaluation stops at the first true.
func Or(conds ...Condition) Condition {
	return func(now time.Time) bool {
		for _, c := range conds {
			if c(now) {
				return true
			}
		}
		return false
	}
}

func Not(c Condition) Condition {
	return func(now time.Time) bool { return !c(now) }
}

// Manual is a condition set from outside the tick, for example by an operator
// command or a test. It is safe to Set from any goroutine.
type Manual struct {
	v        atomic.Bool
	inverted bool
}

// NewManual returns a Manual source. An inverted source reports the opposite of
// the value last Set.
func NewManual(inverted bool) *Manual { return &Manual{inverted: inverted} }

func (m *Manual) Set(v bool) { m.v.Store(v) }

func (m *Manual) Get() bool { return m.v.Load() != m.inverted }

func (m *Manual) Condition() Condition {
	return func(time.Time) bool { return m.Get() }
}
