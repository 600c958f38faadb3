package behavior

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"cadence/internal/resource"
)

// ID identifies one behavior instance. Two behaviors built from the same
// constructor arguments still have distinct IDs.
type ID string

func newID() ID { return ID("bhv_" + uuid.New().String()) }

// State is the lifecycle position of a behavior.
type State int

const (
	Idle State = iota
	Pending
	Running
	Ended
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Ended:
		return "ENDED"
	case Interrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is Ended or Interrupted.
func (s State) Terminal() bool { return s == Ended || s == Interrupted }

// Behavior is a schedulable unit of work.
//
// Implementations embed Base, which supplies identity, requirements and no-op
// hooks; a leaf type overrides only the hooks it needs. None of the hooks may
// block: long-running work is spread across Step calls on successive ticks.
type Behavior interface {
	Core() *Base

	Requirements() resource.Set
	Interruptible() bool

	// Setup runs once per admission, before the first Step.
	Setup()
	// Step runs once per tick while the behavior is running.
	Step()
	// IsFinished is consulted right after each Step.
	IsFinished() bool
	// Teardown runs once when the behavior ends normally or times out.
	Teardown()
	// OnInterrupt runs instead of Teardown when the behavior is cancelled or evicted.
	OnInterrupt()
}

// Option configures a Base at construction.
type Option func(c *Base)

// Requires adds resource handles to the requirement set.
func Requires(ids ...resource.ID) Option {
	return func(c *Base) { c.requires = c.requires.With(ids...) }
}

// RequiresSet adds every member of s to the requirement set.
func RequiresSet(s resource.Set) Option {
	return func(c *Base) { c.requires = c.requires.Union(s) }
}

// Timeout forces the behavior to end once d has elapsed since setup. 0 disables it.
func Timeout(d time.Duration) Option {
	return func(c *Base) {
		if d < 0 {
			d = 0
		}
		c.timeout = d
	}
}

// Uninterruptible makes conflicting admissions fail instead of evicting the behavior.
func Uninterruptible() Option {
	return func(c *Base) { c.uninterruptible = true }
}

// Base carries the identity, declared requirements and lifecycle bookkeeping of a
// behavior. Embed it by value; the zero value is usable (interruptible, no
// requirements, ID assigned on first use).
//
// Lifecycle fields are only mutated by the drivers in this package (Start, Run,
// Finish, Interrupt, ...), which the scheduler and composites call.
type Base struct {
	id              ID
	name            string
	requires        resource.Set
	uninterruptible bool
	timeout         time.Duration

	state     State
	startedAt time.Time
	now       time.Time
	cancelled bool
	owner     ID
}

// NewBase returns a Base with a fresh identity.
func NewBase(name string, opts ...Option) Base {
	c := Base{id: newID(), name: strings.TrimSpace(name)}
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return c
}

// Core returns c itself so that embedding types satisfy Behavior.
func (c *Base) Core() *Base { return c }

func (c *Base) ID() ID {
	if c.id == "" {
		c.id = newID()
	}
	return c.id
}

// Name returns the configured name, falling back to the identity.
func (c *Base) Name() string {
	if c.name == "" {
		return string(c.ID())
	}
	return c.name
}

func (c *Base) SetName(name string) { c.name = strings.TrimSpace(name) }

func (c *Base) Requirements() resource.Set { return c.requires }

// Require adds resource handles to the requirement set.
func (c *Base) Require(ids ...resource.ID) { c.requires = c.requires.With(ids...) }

// ClearRequirements empties the requirement set. A conditional branch does this to
// the child it starts, since the parent already holds the resources.
func (c *Base) ClearRequirements() { c.requires = resource.Set{} }

func (c *Base) Interruptible() bool { return !c.uninterruptible }

func (c *Base) SetInterruptible(v bool) { c.uninterruptible = !v }

func (c *Base) Timeout() time.Duration { return c.timeout }

func (c *Base) State() State { return c.state }

// Running reports whether the behavior is between setup and removal.
func (c *Base) Running() bool { return c.state == Running }

// Cancelled reports whether a cancel was requested since the last setup.
func (c *Base) Cancelled() bool { return c.cancelled }

// Owner returns the composite that adopted this behavior, or "".
func (c *Base) Owner() ID { return c.owner }

// Now returns the time of the tick currently driving the behavior.
func (c *Base) Now() time.Time { return c.now }

// StartedAt returns the tick time at which Setup last ran.
func (c *Base) StartedAt() time.Time { return c.startedAt }

// Elapsed returns the time since setup, as seen by the driving tick.
func (c *Base) Elapsed() time.Duration {
	if c.startedAt.IsZero() {
		return 0
	}
	d := c.now.Sub(c.startedAt)
	if d < 0 {
		return 0
	}
	return d
}

// TimedOut reports whether a configured timeout has elapsed.
func (c *Base) TimedOut() bool {
	return c.timeout > 0 && c.state == Running && c.Elapsed() >= c.timeout
}

func (c *Base) Setup()           {}
func (c *Base) Step()            {}
func (c *Base) IsFinished() bool { return false }
func (c *Base) Teardown()        {}
func (c *Base) OnInterrupt()     {}
