package scheduler

import (
	"time"

	"cadence/internal/behavior"
	"cadence/internal/resource"
)

// Config controls a Scheduler.
type Config struct {
	// StartDisabled keeps every tick a no-op until Enable is called.
	StartDisabled bool
	// InterruptOnDisable makes Disable interrupt every active behavior.
	InterruptOnDisable bool
	// WarnRatePerSec caps repeated warnings (re-entrant requests, panics).
	// 0 applies a default.
	WarnRatePerSec int
}

func (c Config) withDefaults() Config {
	if c.WarnRatePerSec <= 0 {
		c.WarnRatePerSec = 5
	}
	return c
}

// Option configures a Scheduler at construction.
type Option func(s *Scheduler)

// WithClock replaces the wall clock used to stamp ticks.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Requester is the part of the scheduler that triggers and proxies drive.
type Requester interface {
	Request(b behavior.Behavior) error
	Cancel(b behavior.Behavior)
	IsScheduled(b behavior.Behavior) bool
	// Now returns the time of the current tick.
	Now() time.Time
}

// Poller is polled once per enabled tick, before any behavior runs. Pollers
// registered later are polled first.
type Poller interface {
	Name() string
	Poll(r Requester) error
}

// BehaviorEvent is the Data of every "behavior.*" event.
type BehaviorEvent struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Resources []string `json:"resources,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Holder    string   `json:"holder,omitempty"`
	ElapsedMs int64    `json:"elapsed_ms,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Event types published on the bus.
const (
	EventAdmitted    = "behavior.admitted"
	EventEnded       = "behavior.ended"
	EventInterrupted = "behavior.interrupted"
	EventBlocked     = "behavior.blocked"
	EventRejected    = "behavior.rejected"
	EventFailed      = "behavior.failed"
)

// Removal reasons carried in BehaviorEvent.Reason.
const (
	ReasonFinished  = "finished"
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
	ReasonEvicted   = "evicted"
	ReasonFailed    = "failed"
	ReasonRemoved   = "removed"
	ReasonReentrant = "reentrant"
	ReasonHeld      = "held"
)

// Counters are cumulative since construction.
type Counters struct {
	Admitted    uint64 `json:"admitted"`
	Ended       uint64 `json:"ended"`
	Interrupted uint64 `json:"interrupted"`
	Blocked     uint64 `json:"blocked"`
	Rejected    uint64 `json:"rejected"`
	Failed      uint64 `json:"failed"`
}

// ActiveInfo describes one running behavior.
type ActiveInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Resources     []string      `json:"resources,omitempty"`
	Interruptible bool          `json:"interruptible"`
	Elapsed       time.Duration `json:"elapsed"`
	AdmittedTick  uint64        `json:"admitted_tick"`
}

// ResourceInfo describes one registered resource.
type ResourceInfo struct {
	ID            resource.ID `json:"id"`
	Name          string      `json:"name"`
	Holder        string      `json:"holder,omitempty"`
	Fallback      string      `json:"fallback,omitempty"`
	ConfirmedTick uint64      `json:"confirmed_tick"`
	Idle          bool        `json:"idle"`
}

// Snapshot is a read-only copy of scheduler state for reporting.
type Snapshot struct {
	Enabled   bool           `json:"enabled"`
	Tick      uint64         `json:"tick"`
	TickTime  time.Time      `json:"tick_time"`
	Active    []ActiveInfo   `json:"active"`
	Pending   []string       `json:"pending"`
	Resources []ResourceInfo `json:"resources"`
	Counters  Counters       `json:"counters"`
}
