package scheduler

import "cadence/internal/resource"

// Snapshot copies the reporting view of the scheduler. Active behaviors are listed
// in admission order.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Enabled:   s.enabled,
		Tick:      s.tick,
		TickTime:  s.tickTime,
		Active:    make([]ActiveInfo, 0, len(s.active)),
		Pending:   make([]string, 0, len(s.pending)),
		Resources: make([]ResourceInfo, 0, len(s.slots)),
		Counters:  s.counters,
	}
	for _, e := range s.active {
		c := e.b.Core()
		snap.Active = append(snap.Active, ActiveInfo{
			ID:            string(c.ID()),
			Name:          c.Name(),
			Resources:     s.names(e.held),
			Interruptible: e.b.Interruptible(),
			Elapsed:       c.Elapsed(),
			AdmittedTick:  e.admittedTick,
		})
	}
	for _, b := range s.pending {
		if _, ok := s.pendingBy[b.Core().ID()]; ok {
			snap.Pending = append(snap.Pending, b.Core().Name())
		}
	}
	for i, sl := range s.slots {
		ri := ResourceInfo{
			ID:            resource.ID(i),
			Name:          sl.name,
			ConfirmedTick: sl.confirmedTick,
			Idle:          sl.holder == nil,
		}
		if sl.holder != nil {
			ri.Holder = sl.holder.Core().Name()
		}
		if sl.fallback != nil {
			ri.Fallback = sl.fallback.Core().Name()
		}
		snap.Resources = append(snap.Resources, ri)
	}
	return snap
}
