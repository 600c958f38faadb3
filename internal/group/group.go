// Package group composes behaviors into sequential, parallel and conditional
// behaviors that the scheduler admits as a single unit.
//
// A composite holds the union of its children's requirements for as long as it
// runs and drives the children itself; the children never pass through the
// scheduler's admission queue.
package group

import (
	"errors"
	"fmt"
	"time"

	"cadence/internal/behavior"
	"cadence/internal/resource"
)

var (
	ErrEmpty                   = errors.New("group has no children")
	ErrNilChild                = errors.New("group child is nil")
	ErrOverlappingRequirements = errors.New("parallel children share a resource")
	ErrDuplicateChild          = errors.New("parallel child listed twice")
	ErrComposed                = behavior.ErrComposed
)

// Entry is one child of a composite with an optional per-child timeout. When the
// timeout elapses the child is interrupted and the composite moves on.
type Entry struct {
	Behavior behavior.Behavior
	Timeout  time.Duration
}

// Child wraps b without a timeout.
func Child(b behavior.Behavior) Entry { return Entry{Behavior: b} }

// Timed wraps b with a per-child timeout.
func Timed(b behavior.Behavior, d time.Duration) Entry { return Entry{Behavior: b, Timeout: d} }

// Children wraps each behavior without a timeout.
func Children(bs ...behavior.Behavior) []Entry {
	out := make([]Entry, 0, len(bs))
	for _, b := range bs {
		out = append(out, Child(b))
	}
	return out
}

// adopt links every child to parent and returns the union of their requirements.
// On failure the links made so far are undone.
func adopt(parent behavior.Behavior, entries []Entry) (resource.Set, error) {
	if len(entries) == 0 {
		return resource.Set{}, ErrEmpty
	}
	var union resource.Set
	for i, e := range entries {
		if e.Behavior == nil {
			release(entries[:i])
			return resource.Set{}, fmt.Errorf("%w: index %d", ErrNilChild, i)
		}
		if err := behavior.Adopt(parent, e.Behavior); err != nil {
			release(entries[:i])
			return resource.Set{}, err
		}
		union = union.Union(e.Behavior.Requirements())
	}
	return union, nil
}

func release(entries []Entry) {
	for _, e := range entries {
		if e.Behavior != nil {
			behavior.Release(e.Behavior)
		}
	}
}

// start runs a child's Setup. A panicking Setup interrupts the child right away.
func start(child behavior.Behavior, now time.Time) error {
	if err := behavior.Start(child, now); err != nil {
		return errors.Join(err, behavior.Interrupt(child, now))
	}
	return nil
}

// advance drives a started child for one tick and removes it once it is done.
// A per-child timeout is checked before Step and interrupts the child; the child's
// own timeout or completion ends it through Teardown. It reports whether the child
// is still running.
func advance(e Entry, now time.Time) (bool, error) {
	child := e.Behavior
	if e.Timeout > 0 && now.Sub(child.Core().StartedAt()) >= e.Timeout {
		return false, behavior.Interrupt(child, now)
	}
	out, runErr := behavior.Run(child, now)
	switch {
	case out == behavior.Continue:
		return true, nil
	case out.Ends():
		return false, behavior.Finish(child, now)
	default:
		return false, errors.Join(runErr, behavior.Interrupt(child, now))
	}
}

// stop interrupts every child that is still running.
func stop(entries []Entry, now time.Time) error {
	var errs []error
	for _, e := range entries {
		if e.Behavior.Core().Running() {
			errs = append(errs, behavior.Interrupt(e.Behavior, now))
		}
	}
	return errors.Join(errs...)
}

// raise surfaces a child failure through the composite's own hook, so the driver
// above removes the composite and reports the error.
func raise(err error) {
	if err != nil {
		panic(err)
	}
}
