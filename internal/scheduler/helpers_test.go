package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cadence/internal/behavior"
	"cadence/internal/eventbus"
	"cadence/internal/resource"
	"cadence/pkg/logx"
)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// probe counts lifecycle calls and lets tests hook into them.
type probe struct {
	behavior.Base

	setups, steps, finishedCalls, teardowns, interrupts int

	finished  bool
	panicStep bool

	onSetup     func()
	onStep      func()
	onInterrupt func()
	onTeardown  func()
}

func newProbe(name string, opts ...behavior.Option) *probe {
	return &probe{Base: behavior.NewBase(name, opts...)}
}

func (p *probe) Setup() {
	p.setups++
	if p.onSetup != nil {
		p.onSetup()
	}
}

func (p *probe) Step() {
	p.steps++
	if p.onStep != nil {
		p.onStep()
	}
	if p.panicStep {
		panic("probe step")
	}
}

func (p *probe) IsFinished() bool {
	p.finishedCalls++
	return p.finished
}

func (p *probe) Teardown() {
	p.teardowns++
	if p.onTeardown != nil {
		p.onTeardown()
	}
}

func (p *probe) OnInterrupt() {
	p.interrupts++
	if p.onInterrupt != nil {
		p.onInterrupt()
	}
}

type countingResource struct {
	name     string
	periodic int
	panics   bool
}

func (r *countingResource) Name() string { return r.name }
func (r *countingResource) Periodic() {
	r.periodic++
	if r.panics {
		panic("periodic")
	}
}

type harness struct {
	s     *Scheduler
	clock *fakeClock
	bus   eventbus.Bus
	evs   <-chan eventbus.Event
	res   []*countingResource
	ids   []resource.ID
}

func newHarness(t *testing.T, cfg Config, resources ...string) *harness {
	t.Helper()
	h := &harness{clock: newClock(), bus: eventbus.New()}
	h.evs, _ = h.bus.SubscribePrefix("behavior.", 1024)
	h.s = New(cfg, logx.Nop(), h.bus, WithClock(h.clock.Now))
	for _, name := range resources {
		r := &countingResource{name: name}
		id, err := h.s.RegisterResource(r)
		require.NoError(t, err)
		h.res = append(h.res, r)
		h.ids = append(h.ids, id)
	}
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.s.Tick()
	}
}

// events drains every event published so far.
func (h *harness) events() []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-h.evs:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(evs []eventbus.Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

type recordingPoller struct {
	name  string
	polls int
	order *[]string
	poll  func(r Requester) error
}

func (p *recordingPoller) Name() string { return p.name }
func (p *recordingPoller) Poll(r Requester) error {
	p.polls++
	if p.order != nil {
		*p.order = append(*p.order, p.name)
	}
	if p.poll != nil {
		return p.poll(r)
	}
	return nil
}
