// Package trigger turns polled conditions into scheduler requests.
//
// A Trigger remembers the value of its condition from the previous poll and
// fires its bindings on the rising edge (press), the falling edge (release) or
// while the condition holds. Triggers are registered as scheduler pollers.
package trigger

import (
	"errors"
	"strings"

	"cadence/internal/behavior"
	"cadence/internal/scheduler"
)

type bindKind int

const (
	bindPress bindKind = iota
	bindRelease
	bindWhileHeld
	bindWhenHeld
	bindToggle
	bindCancelOnPress
)

type binding struct {
	kind bindKind
	b    behavior.Behavior
}

// Trigger is an edge-detected condition with behavior bindings. The binding
// methods return the trigger so calls can be chained.
type Trigger struct {
	name     string
	cond     Condition
	last     bool
	bindings []binding
}

// New returns a Trigger over cond. A nil cond is never true.
func New(name string, cond Condition) *Trigger {
	if cond == nil {
		cond = Not(Always())
	}
	return &Trigger{name: strings.TrimSpace(name), cond: cond}
}

func (t *Trigger) Name() string { return t.name }

// Held reports the value seen at the last poll.
func (t *Trigger) Held() bool { return t.last }

// OnPress requests b when the condition becomes true.
func (t *Trigger) OnPress(b behavior.Behavior) *Trigger { return t.bind(bindPress, b) }

// OnRelease requests b when the condition becomes false.
func (t *Trigger) OnRelease(b behavior.Behavior) *Trigger { return t.bind(bindRelease, b) }

// WhileHeld requests b on every poll the condition is true and cancels it on
// release. Repeated requests for a running behavior are no-ops.
func (t *Trigger) WhileHeld(b behavior.Behavior) *Trigger { return t.bind(bindWhileHeld, b) }

// WhenHeld requests b on press and cancels it on release.
func (t *Trigger) WhenHeld(b behavior.Behavior) *Trigger { return t.bind(bindWhenHeld, b) }

// Toggle requests b on press, or cancels it if it is already scheduled.
func (t *Trigger) Toggle(b behavior.Behavior) *Trigger { return t.bind(bindToggle, b) }

// CancelOnPress cancels b on press.
func (t *Trigger) CancelOnPress(b behavior.Behavior) *Trigger { return t.bind(bindCancelOnPress, b) }

func (t *Trigger) bind(k bindKind, b behavior.Behavior) *Trigger {
	if b != nil {
		t.bindings = append(t.bindings, binding{kind: k, b: b})
	}
	return t
}

// Poll samples the condition and applies the bindings in the order they were
// added. Request errors are joined and returned; they do not stop other bindings.
func (t *Trigger) Poll(r scheduler.Requester) error {
	cur := t.cond(r.Now())
	pressed := !t.last && cur
	released := t.last && !cur
	t.last = cur

	var errs []error
	for _, bd := range t.bindings {
		switch bd.kind {
		case bindPress:
			if pressed {
				errs = append(errs, r.Request(bd.b))
			}
		case bindRelease:
			if released {
				errs = append(errs, r.Request(bd.b))
			}
		case bindWhileHeld:
			if cur {
				errs = append(errs, r.Request(bd.b))
			} else if released {
				r.Cancel(bd.b)
			}
		case bindWhenHeld:
			if pressed {
				errs = append(errs, r.Request(bd.b))
			} else if released {
				r.Cancel(bd.b)
			}
		case bindToggle:
			if pressed {
				if r.IsScheduled(bd.b) {
					r.Cancel(bd.b)
				} else {
					errs = append(errs, r.Request(bd.b))
				}
			}
		case bindCancelOnPress:
			if pressed {
				r.Cancel(bd.b)
			}
		}
	}
	return errors.Join(errs...)
}
