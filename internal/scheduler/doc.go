// Package scheduler is the cooperative tick scheduler.
//
// A Scheduler owns a fixed arena of resources and the list of running behaviors.
// At most one running behavior holds a resource at any time. Admission is
// all-or-nothing: a request either evicts every interruptible holder of the
// resources it needs, or, if any holder is uninterruptible, is dropped.
//
// Each Tick runs five phases in order:
//
//  1. poll triggers, most recently registered first
//  2. call every resource's Periodic hook
//  3. step each running behavior and remove the finished, timed-out, cancelled and failed ones
//  4. admit queued requests in FIFO order
//  5. admit fallbacks for unheld resources and confirm every resource for the tick
//
// Panics raised by behaviors, triggers or resources are recovered, logged and
// published as "behavior.failed" events; they never abort the tick.
package scheduler
