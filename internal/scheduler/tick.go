package scheduler

import (
	"errors"
	"fmt"
	"runtime/debug"

	"cadence/internal/behavior"
	"cadence/internal/eventbus"
	"cadence/pkg/logx"
)

// Tick runs one scheduling pass: poll triggers, run resource periodic hooks, step
// running behaviors, drain the request queue, then admit fallbacks and confirm
// resources. A disabled scheduler does nothing; a Disable from inside the pass
// skips whatever phases remain.
func (s *Scheduler) Tick() {
	if !s.enabled {
		return
	}
	s.tick++
	s.tickTime = s.now()

	for _, phase := range []func(){s.pollTriggers, s.runPeriodic, s.stepActive, s.drainPending, s.admitFallbacks} {
		if !s.enabled {
			return
		}
		phase()
	}
}

// TickCount returns the number of enabled ticks run so far.
func (s *Scheduler) TickCount() uint64 { return s.tick }

func (s *Scheduler) pollTriggers() {
	for i := len(s.pollers) - 1; i >= 0; i-- {
		p := s.pollers[i]
		s.guard("poll", p.Name(), func() {
			if err := p.Poll(s); err != nil {
				s.warnf("trigger poll failed", logx.String("trigger", p.Name()), logx.Err(err))
			}
		})
	}
}

func (s *Scheduler) runPeriodic() {
	for i := range s.slots {
		sl := &s.slots[i]
		s.guard("periodic", sl.name, sl.res.Periodic)
	}
}

// stepActive iterates over a copy of the active list; entries removed by an
// earlier step in the same pass are skipped, and so is an entry whose own Step
// removed it.
func (s *Scheduler) stepActive() {
	snapshot := append([]*entry(nil), s.active...)
	for _, e := range snapshot {
		if !s.enabled {
			return
		}
		if !s.isActive(e) {
			continue
		}
		out, err := behavior.Run(e.b, s.tickTime)
		if !s.isActive(e) {
			continue
		}
		switch out {
		case behavior.Continue:
		case behavior.Finished:
			s.remove(e, false, ReasonFinished, nil)
		case behavior.TimedOut:
			s.remove(e, false, ReasonTimeout, nil)
		case behavior.Cancelled:
			s.remove(e, true, ReasonCancelled, nil)
		default:
			s.remove(e, true, ReasonFailed, err)
		}
	}
}

// drainPending admits queued behaviors in FIFO order. Requests made by a Setup
// during the drain are appended and handled in the same pass. If a Setup disables
// the scheduler, the rest stay queued.
func (s *Scheduler) drainPending() {
	i := 0
	for ; i < len(s.pending) && s.enabled; i++ {
		b := s.pending[i]
		delete(s.pendingBy, b.Core().ID())
		if _, ok := s.activeBy[b.Core().ID()]; ok {
			continue
		}
		s.admit(b)
	}
	rest := copy(s.pending, s.pending[i:])
	clear(s.pending[rest:])
	s.pending = s.pending[:rest]
}

func (s *Scheduler) admitFallbacks() {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.holder == nil && sl.fallback != nil && !s.IsRunning(sl.fallback) {
			behavior.MarkPending(sl.fallback)
			s.admit(sl.fallback)
		}
		sl.confirmedTick = s.tick
	}
}

// admit grants b every resource it requires, or nothing. Interruptible holders are
// evicted first; a single uninterruptible holder drops the request.
func (s *Scheduler) admit(b behavior.Behavior) {
	reqs := b.Requirements()
	ids := reqs.IDs()
	for _, id := range ids {
		h := s.slots[id].holder
		if h != nil && !h.Interruptible() {
			behavior.MarkIdle(b)
			s.counters.Blocked++
			if !s.log.IsZero() {
				s.log.Debug("admission blocked", logx.String("behavior", b.Core().Name()), logx.String("resource", s.slots[id].name), logx.String("holder", h.Core().Name()))
			}
			s.publish(EventBlocked, BehaviorEvent{
				ID:        string(b.Core().ID()),
				Name:      b.Core().Name(),
				Resources: s.names(reqs),
				Reason:    ReasonHeld,
				Holder:    h.Core().Name(),
			})
			return
		}
	}

	s.admitting = true
	for _, id := range ids {
		h := s.slots[id].holder
		if h == nil {
			continue
		}
		if e := s.activeBy[h.Core().ID()]; e != nil {
			s.remove(e, true, ReasonEvicted, nil)
		}
	}
	e := &entry{b: b, held: reqs, admittedTick: s.tick}
	for _, id := range ids {
		s.slots[id].holder = b
	}
	s.active = append(s.active, e)
	s.activeBy[b.Core().ID()] = e
	s.admitting = false

	err := behavior.Start(b, s.Now())
	s.counters.Admitted++
	if !s.log.IsZero() {
		s.log.Debug("behavior admitted", logx.String("behavior", b.Core().Name()), logx.Strings("resources", s.names(reqs)))
	}
	s.publish(EventAdmitted, BehaviorEvent{ID: string(b.Core().ID()), Name: b.Core().Name(), Resources: s.names(reqs)})
	if err != nil {
		s.remove(e, true, ReasonFailed, err)
	}
}

// remove releases e's resources, drops it from the active list and runs its
// Teardown or OnInterrupt.
func (s *Scheduler) remove(e *entry, interrupted bool, reason string, cause error) {
	if !s.isActive(e) {
		return
	}
	b := e.b
	c := b.Core()
	for _, id := range e.held.IDs() {
		if s.slots[id].holder == b {
			s.slots[id].holder = nil
		}
	}
	delete(s.activeBy, c.ID())
	for i, a := range s.active {
		if a == e {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}

	elapsed := c.Elapsed()
	var hookErr error
	if interrupted {
		hookErr = behavior.Interrupt(b, s.Now())
	} else {
		hookErr = behavior.Finish(b, s.Now())
	}

	ev := BehaviorEvent{
		ID:        string(c.ID()),
		Name:      c.Name(),
		Resources: s.names(e.held),
		Reason:    reason,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if interrupted {
		s.counters.Interrupted++
		s.publish(EventInterrupted, ev)
	} else {
		s.counters.Ended++
		s.publish(EventEnded, ev)
	}
	if !s.log.IsZero() {
		s.log.Debug("behavior removed", logx.String("behavior", c.Name()), logx.String("reason", reason), logx.Duration("elapsed", elapsed))
	}

	for _, err := range []error{cause, hookErr} {
		if err == nil {
			continue
		}
		s.counters.Failed++
		ev.Error = err.Error()
		s.publish(EventFailed, ev)
		fields := []logx.Field{logx.String("behavior", c.Name()), logx.Err(err)}
		var pe *behavior.PanicError
		if errors.As(err, &pe) {
			fields = append(fields, logx.String("hook", pe.Hook), logx.Stack(pe.Stack))
		}
		s.errorf("behavior failed", fields...)
	}
}

func (s *Scheduler) isActive(e *entry) bool {
	return s.activeBy[e.b.Core().ID()] == e
}

func (s *Scheduler) reject(b behavior.Behavior) {
	s.counters.Rejected++
	s.warnf("request rejected during admission", logx.String("behavior", b.Core().Name()))
	s.publish(EventRejected, BehaviorEvent{ID: string(b.Core().ID()), Name: b.Core().Name(), Reason: ReasonReentrant})
}

// guard runs fn and turns a panic into a logged failure so the rest of the tick
// still runs.
func (s *Scheduler) guard(phase, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.counters.Failed++
			s.errorf("panic during tick",
				logx.String("phase", phase),
				logx.String("name", name),
				logx.String("panic", fmt.Sprint(r)),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
}

func (s *Scheduler) warnf(msg string, fields ...logx.Field) {
	if s.log.IsZero() || !s.warn.Allow() {
		return
	}
	s.log.Warn(msg, fields...)
}

func (s *Scheduler) errorf(msg string, fields ...logx.Field) {
	if s.log.IsZero() || !s.warn.Allow() {
		return
	}
	s.log.Error(msg, fields...)
}

func (s *Scheduler) publish(typ string, data BehaviorEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.Now(), Tick: s.tick, Data: data})
}
