package behavior

import "time"

// Hooks are the optional callbacks of a Func behavior.
type Hooks struct {
	Setup func()
	Step  func()
	// Until reports completion. A nil Until never finishes; the behavior runs until
	// cancelled, evicted or timed out.
	Until func() bool
	// End runs on removal. interrupted is false for Teardown, true for OnInterrupt.
	End func(interrupted bool)
}

// Func is a behavior assembled from plain functions.
type Func struct {
	Base
	hooks Hooks
}

// New returns a Func behavior.
func New(name string, h Hooks, opts ...Option) *Func {
	return &Func{Base: NewBase(name, opts...), hooks: h}
}

func (f *Func) Setup() {
	if f.hooks.Setup != nil {
		f.hooks.Setup()
	}
}

func (f *Func) Step() {
	if f.hooks.Step != nil {
		f.hooks.Step()
	}
}

func (f *Func) IsFinished() bool {
	if f.hooks.Until == nil {
		return false
	}
	return f.hooks.Until()
}

func (f *Func) Teardown() {
	if f.hooks.End != nil {
		f.hooks.End(false)
	}
}

func (f *Func) OnInterrupt() {
	if f.hooks.End != nil {
		f.hooks.End(true)
	}
}

// Instant runs fn at setup and finishes on its first tick.
func Instant(name string, fn func(), opts ...Option) *Func {
	return New(name, Hooks{
		Setup: fn,
		Until: func() bool { return true },
	}, opts...)
}

// Repeat returns a behavior that calls fn every tick until cancelled.
func Repeat(name string, fn func(), opts ...Option) *Func {
	return New(name, Hooks{Step: fn}, opts...)
}

// Wait finishes once d has elapsed since setup.
func Wait(name string, d time.Duration, opts ...Option) *Func {
	f := New(name, Hooks{}, opts...)
	f.hooks.Until = func() bool { return f.Elapsed() >= d }
	return f
}

// WaitUntil finishes on the first tick at which cond reports true.
func WaitUntil(name string, cond func() bool, opts ...Option) *Func {
	return New(name, Hooks{Until: cond}, opts...)
}

// Hold returns a behavior that holds its requirements and never finishes.
// It is the usual fallback for a resource.
func Hold(name string, opts ...Option) *Func {
	return New(name, Hooks{}, opts...)
}
