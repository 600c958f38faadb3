// Package behavior defines the schedulable unit of work and its lifecycle.
//
// A Behavior embeds Base and overrides the hooks it needs. The scheduler and the
// composite kinds in package group move behaviors through their states with the
// drivers Start, Run, Finish and Interrupt; those drivers recover panics from the
// hooks and report them as *PanicError.
package behavior
