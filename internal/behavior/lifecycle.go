package behavior

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrComposed is returned when a behavior is already owned by another composite.
var ErrComposed = errors.New("behavior is already part of a composite")

// Outcome is the result of driving a running behavior for one tick.
type Outcome int

const (
	// Continue means the behavior stays running.
	Continue Outcome = iota
	// Finished means IsFinished reported true after Step.
	Finished
	// TimedOut means the configured timeout elapsed; Step was not called.
	TimedOut
	// Cancelled means a cancel was requested; Step was not called.
	Cancelled
	// Failed means Step or IsFinished panicked.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Finished:
		return "FINISHED"
	case TimedOut:
		return "TIMED_OUT"
	case Cancelled:
		return "CANCELLED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Ends reports whether the outcome removes the behavior through Teardown.
func (o Outcome) Ends() bool { return o == Finished || o == TimedOut }

// Interrupts reports whether the outcome removes the behavior through OnInterrupt.
func (o Outcome) Interrupts() bool { return o == Cancelled || o == Failed }

// PanicError is returned by the drivers when a hook panics.
type PanicError struct {
	Behavior string
	Hook     string
	Value    any
	Stack    string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("behavior %q panicked in %s: %v", e.Behavior, e.Hook, e.Value)
}

func call(b Behavior, hook string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Behavior: b.Core().Name(), Hook: hook, Value: r, Stack: string(debug.Stack())}
		}
	}()
	fn()
	return nil
}

// MarkPending records that b is queued for admission. A running behavior is left alone.
func MarkPending(b Behavior) {
	c := b.Core()
	if c.state != Running {
		c.state = Pending
	}
}

// MarkIdle returns a pending behavior to Idle after a failed or dropped admission.
func MarkIdle(b Behavior) {
	c := b.Core()
	if c.state == Pending {
		c.state = Idle
	}
}

// Start marks b running at now and runs Setup. A panicking Setup leaves b running;
// the caller is expected to interrupt it.
func Start(b Behavior, now time.Time) error {
	c := b.Core()
	c.state = Running
	c.startedAt = now
	c.now = now
	c.cancelled = false
	return call(b, "setup", b.Setup)
}

// Run drives a running behavior for one tick.
//
// A pending cancel or an elapsed timeout is reported without calling Step. Otherwise
// Step runs and IsFinished is consulted. The caller removes the behavior with Finish
// or Interrupt according to the outcome.
func Run(b Behavior, now time.Time) (Outcome, error) {
	c := b.Core()
	c.now = now
	if c.cancelled {
		return Cancelled, nil
	}
	if c.TimedOut() {
		return TimedOut, nil
	}
	if err := call(b, "step", b.Step); err != nil {
		return Failed, err
	}
	done := false
	if err := call(b, "is_finished", func() { done = b.IsFinished() }); err != nil {
		return Failed, err
	}
	if done {
		return Finished, nil
	}
	return Continue, nil
}

// Finish runs Teardown and marks b Ended.
func Finish(b Behavior, now time.Time) error {
	c := b.Core()
	c.now = now
	err := call(b, "teardown", b.Teardown)
	c.state = Ended
	c.cancelled = false
	return err
}

// Interrupt runs OnInterrupt and marks b Interrupted.
func Interrupt(b Behavior, now time.Time) error {
	c := b.Core()
	c.now = now
	err := call(b, "on_interrupt", b.OnInterrupt)
	c.state = Interrupted
	c.cancelled = false
	return err
}

// RequestCancel flags a running behavior for interruption on its next Run.
// It reports false if b is not running.
func RequestCancel(b Behavior) bool {
	c := b.Core()
	if c.state != Running {
		return false
	}
	c.cancelled = true
	return true
}

// Adopt records parent as the owner of child.
func Adopt(parent, child Behavior) error {
	pc, cc := parent.Core(), child.Core()
	if pc == cc {
		return fmt.Errorf("%w: %s cannot contain itself", ErrComposed, pc.Name())
	}
	if cc.owner != "" && cc.owner != pc.ID() {
		return fmt.Errorf("%w: %s", ErrComposed, cc.Name())
	}
	cc.owner = pc.ID()
	return nil
}

// Release clears the owner link set by Adopt.
func Release(child Behavior) { child.Core().owner = "" }
