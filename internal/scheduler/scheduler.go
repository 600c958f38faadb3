package scheduler

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cadence/internal/behavior"
	"cadence/internal/eventbus"
	"cadence/internal/resource"
	"cadence/pkg/logx"
)

type slot struct {
	res           resource.Resource
	name          string
	holder        behavior.Behavior
	fallback      behavior.Behavior
	confirmedTick uint64
}

type entry struct {
	b            behavior.Behavior
	held         resource.Set
	admittedTick uint64
}

// Scheduler arbitrates resources between behaviors and drives them once per Tick.
//
// A Scheduler is not safe for concurrent use. All calls, including Request and
// Cancel from other goroutines, must be serialized with Tick; package loop does
// that for a running host.
type Scheduler struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	enabled   bool
	admitting bool
	tick      uint64
	tickTime  time.Time

	slots  []slot
	byName map[string]resource.ID

	active   []*entry
	activeBy map[behavior.ID]*entry

	pending   []behavior.Behavior
	pendingBy map[behavior.ID]struct{}

	pollers []Poller

	warn     *rate.Limiter
	counters Counters
}

// New returns a Scheduler. bus may be nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:       cfg,
		log:       log,
		bus:       bus,
		now:       time.Now,
		enabled:   !cfg.StartDisabled,
		byName:    map[string]resource.ID{},
		activeBy:  map[behavior.ID]*entry{},
		pendingBy: map[behavior.ID]struct{}{},
		warn:      rate.NewLimiter(rate.Limit(cfg.WarnRatePerSec), cfg.WarnRatePerSec),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// RegisterResource adds r to the arena and returns its handle.
func (s *Scheduler) RegisterResource(r resource.Resource) (resource.ID, error) {
	if r == nil {
		return resource.Invalid, ErrNilResource
	}
	name := strings.TrimSpace(r.Name())
	if name == "" {
		return resource.Invalid, fmt.Errorf("%w: empty name", ErrNilResource)
	}
	if _, ok := s.byName[name]; ok {
		return resource.Invalid, fmt.Errorf("%w: %s", ErrDuplicateResource, name)
	}
	id := resource.ID(len(s.slots))
	s.slots = append(s.slots, slot{res: r, name: name})
	s.byName[name] = id
	if !s.log.IsZero() {
		s.log.Debug("resource registered", logx.String("resource", name), logx.Int("id", int(id)))
	}
	return id, nil
}

// Lookup returns the handle registered under name.
func (s *Scheduler) Lookup(name string) (resource.ID, bool) {
	id, ok := s.byName[strings.TrimSpace(name)]
	return id, ok
}

// ResourceName returns the registered name of id, or "".
func (s *Scheduler) ResourceName(id resource.ID) string {
	if !s.known(id) {
		return ""
	}
	return s.slots[id].name
}

// SetFallback makes b the behavior admitted whenever id is left unheld at the end
// of a tick. b must require id. A nil b clears the fallback.
func (s *Scheduler) SetFallback(id resource.ID, b behavior.Behavior) error {
	if !s.known(id) {
		return fmt.Errorf("%w: %d", ErrUnknownResource, id)
	}
	if b == nil {
		s.slots[id].fallback = nil
		return nil
	}
	if !b.Requirements().Has(id) {
		return fmt.Errorf("%w: %s does not require %s", ErrFallbackRequirement, b.Core().Name(), s.slots[id].name)
	}
	if err := s.validate(b); err != nil {
		return err
	}
	s.slots[id].fallback = b
	return nil
}

// Fallback returns the fallback of id, or nil.
func (s *Scheduler) Fallback(id resource.ID) behavior.Behavior {
	if !s.known(id) {
		return nil
	}
	return s.slots[id].fallback
}

// Holder returns the behavior currently holding id, or nil.
func (s *Scheduler) Holder(id resource.ID) behavior.Behavior {
	if !s.known(id) {
		return nil
	}
	return s.slots[id].holder
}

// AddPoller registers p to be polled every enabled tick.
func (s *Scheduler) AddPoller(p Poller) {
	if p != nil {
		s.pollers = append(s.pollers, p)
	}
}

// Request queues b for admission on the next drain. It is a no-op if b is already
// queued or running.
//
// A request made while the scheduler is interrupting holders for another admission
// is rejected with ErrReentrantAdmission and never queued.
func (s *Scheduler) Request(b behavior.Behavior) error {
	if b == nil {
		return ErrNilBehavior
	}
	if s.admitting {
		s.reject(b)
		return fmt.Errorf("%w: %s", ErrReentrantAdmission, b.Core().Name())
	}
	if err := s.validate(b); err != nil {
		return err
	}
	id := b.Core().ID()
	if _, ok := s.activeBy[id]; ok {
		return nil
	}
	if _, ok := s.pendingBy[id]; ok {
		return nil
	}
	s.pending = append(s.pending, b)
	s.pendingBy[id] = struct{}{}
	behavior.MarkPending(b)
	return nil
}

// Cancel flags a running behavior for interruption at its next step. Queued and
// idle behaviors are left alone.
func (s *Scheduler) Cancel(b behavior.Behavior) {
	if b == nil {
		return
	}
	if _, ok := s.activeBy[b.Core().ID()]; ok {
		behavior.RequestCancel(b)
	}
}

// CancelByID is Cancel for callers that only hold an identity.
func (s *Scheduler) CancelByID(id behavior.ID) bool {
	e, ok := s.activeBy[id]
	if !ok {
		return false
	}
	return behavior.RequestCancel(e.b)
}

// IsScheduled reports whether b is queued or running.
func (s *Scheduler) IsScheduled(b behavior.Behavior) bool {
	if b == nil {
		return false
	}
	id := b.Core().ID()
	if _, ok := s.activeBy[id]; ok {
		return true
	}
	_, ok := s.pendingBy[id]
	return ok
}

// IsRunning reports whether b is admitted and running.
func (s *Scheduler) IsRunning(b behavior.Behavior) bool {
	if b == nil {
		return false
	}
	_, ok := s.activeBy[b.Core().ID()]
	return ok
}

// Now returns the time of the current tick, or the clock when no tick ran yet.
func (s *Scheduler) Now() time.Time {
	if s.tickTime.IsZero() {
		return s.now()
	}
	return s.tickTime
}

func (s *Scheduler) Enabled() bool { return s.enabled }

func (s *Scheduler) Enable() {
	if s.enabled {
		return
	}
	s.enabled = true
	if !s.log.IsZero() {
		s.log.Info("scheduler enabled")
	}
}

// Disable turns every following tick into a no-op. With InterruptOnDisable set,
// active behaviors are interrupted right away; otherwise they resume on Enable.
func (s *Scheduler) Disable() {
	if !s.enabled {
		return
	}
	s.enabled = false
	if !s.log.IsZero() {
		s.log.Info("scheduler disabled", logx.Bool("interrupt", s.cfg.InterruptOnDisable), logx.Int("active", len(s.active)))
	}
	if s.cfg.InterruptOnDisable {
		s.RemoveAll()
	}
}

// SetInterruptOnDisable changes the disable policy.
func (s *Scheduler) SetInterruptOnDisable(v bool) { s.cfg.InterruptOnDisable = v }

// RemoveAll interrupts every active behavior immediately, interruptible or not.
// Queued requests stay queued.
func (s *Scheduler) RemoveAll() {
	snapshot := append([]*entry(nil), s.active...)
	for _, e := range snapshot {
		if _, ok := s.activeBy[e.b.Core().ID()]; !ok {
			continue
		}
		s.remove(e, true, ReasonRemoved, nil)
	}
}

func (s *Scheduler) known(id resource.ID) bool {
	return id >= 0 && int(id) < len(s.slots)
}

func (s *Scheduler) validate(b behavior.Behavior) error {
	c := b.Core()
	if c.Owner() != "" {
		return fmt.Errorf("%w: %s", ErrComposed, c.Name())
	}
	for _, id := range b.Requirements().IDs() {
		if !s.known(id) {
			return fmt.Errorf("%w: %s requires %d", ErrUnknownResource, c.Name(), id)
		}
	}
	return nil
}

func (s *Scheduler) names(set resource.Set) []string {
	ids := set.IDs()
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.ResourceName(id))
	}
	return out
}
