// Package resource defines the mutually exclusive units (subsystems) that behaviors
// require, and the handle set used to declare those requirements.
//
// Resources are registered with a scheduler, which hands back an ID: a small integer
// index into the scheduler's resource arena. Behaviors only ever hold IDs, never the
// Resource values themselves.
package resource

import "strings"

// ID is an arena handle assigned at registration. The zero value is a valid handle
// (the first registered resource); use Invalid for "no resource".
type ID int

// Invalid is never assigned by a scheduler.
const Invalid ID = -1

// Resource is a lockable unit such as a drivetrain or an arm.
//
// Periodic is invoked once per tick before any behavior steps, whether or not the
// resource is currently held. It must return promptly.
type Resource interface {
	Name() string
	Periodic()
}

// Func adapts a name and an optional periodic hook into a Resource.
type Func struct {
	name     string
	periodic func()
}

// New returns a Resource with the given name. periodic may be nil.
func New(name string, periodic func()) *Func {
	return &Func{name: strings.TrimSpace(name), periodic: periodic}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Periodic() {
	if f.periodic != nil {
		f.periodic()
	}
}
