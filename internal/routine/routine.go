// Package routine builds the resources and scheduled routines declared in the
// config and registers them with a scheduler.
package routine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cadence/internal/behavior"
	"cadence/internal/config"
	"cadence/internal/group"
	"cadence/internal/resource"
	"cadence/internal/scheduler"
	"cadence/internal/trigger"
	"cadence/pkg/logx"
)

// Resource is one registered resource.
type Resource struct {
	ID       resource.ID
	Name     string
	Fallback behavior.Behavior
}

// Routine is a behavior bound to a schedule trigger.
type Routine struct {
	Name     string
	Behavior behavior.Behavior
	Schedule *trigger.Schedule
	Trigger  *trigger.Trigger
	Steps    int
}

// Catalogue is what Build registered.
type Catalogue struct {
	Location  *time.Location
	Resources []Resource
	Routines  []*Routine
}

// Routine returns the routine called name, or nil.
func (c *Catalogue) Routine(name string) *Routine {
	for _, r := range c.Routines {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Build registers every configured resource (with its idle fallback) and every
// routine's trigger on s. s must not have ticked yet.
func Build(cfg *config.Config, s *scheduler.Scheduler, log logx.Logger) (*Catalogue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	period, _, err := cfg.Loop.LoopTimings()
	if err != nil {
		return nil, err
	}
	cat := &Catalogue{Location: loc}

	for _, rc := range cfg.Resources {
		name := strings.TrimSpace(rc.Name)
		id, err := s.RegisterResource(resource.New(name, nil))
		if err != nil {
			return nil, err
		}
		r := Resource{ID: id, Name: name}
		if strings.TrimSpace(rc.Fallback) == config.FallbackIdle {
			r.Fallback = behavior.Hold(name+".idle", behavior.Requires(id))
			if err := s.SetFallback(id, r.Fallback); err != nil {
				return nil, err
			}
		}
		cat.Resources = append(cat.Resources, r)
	}

	for _, rc := range cfg.Routines {
		rt, err := buildRoutine(rc, s, loc, period)
		if err != nil {
			return nil, fmt.Errorf("routine %q: %w", rc.Name, err)
		}
		s.AddPoller(rt.Trigger)
		cat.Routines = append(cat.Routines, rt)
		log.Debug("routine registered",
			logx.String("routine", rt.Name),
			logx.String("schedule", rc.Schedule),
			logx.Int("steps", rt.Steps),
			logx.Bool("interruptible", rc.IsInterruptible()),
		)
	}
	return cat, nil
}

func buildRoutine(rc config.RoutineConfig, s *scheduler.Scheduler, loc *time.Location, period time.Duration) (*Routine, error) {
	name := strings.TrimSpace(rc.Name)
	sched, err := trigger.NewSchedule(rc.Schedule, loc)
	if err != nil {
		return nil, err
	}
	// An interval that fits in one tick keeps the trigger held and never fires again.
	if sp := sched.Spec(); sp.Kind == trigger.SpecInterval && sp.Every <= period {
		return nil, fmt.Errorf("%w: %s is not longer than the loop period %s", errShortInterval, sp.Every, period)
	}
	reqs, err := lookup(s, rc.Requires)
	if err != nil {
		return nil, err
	}
	timeout, _ := config.ParseDurationField("timeout", rc.Timeout)

	opts := []behavior.Option{behavior.Requires(reqs...), behavior.Timeout(timeout)}
	if !rc.IsInterruptible() {
		opts = append(opts, behavior.Uninterruptible())
	}

	rt := &Routine{Name: name, Schedule: sched, Steps: len(rc.Steps)}
	if len(rc.Steps) == 0 {
		d, _ := config.ParseDurationField("duration", rc.Duration)
		rt.Behavior = behavior.Wait(name, d, opts...)
	} else {
		entries := make([]group.Entry, 0, len(rc.Steps))
		for i, sc := range rc.Steps {
			stepReqs, err := lookup(s, sc.Requires)
			if err != nil {
				return nil, err
			}
			stepName := strings.TrimSpace(sc.Name)
			if stepName == "" {
				stepName = fmt.Sprintf("%s.%d", name, i)
			}
			d, _ := config.ParseDurationField("duration", sc.Duration)
			st, _ := config.ParseDurationField("timeout", sc.Timeout)
			entries = append(entries, group.Timed(behavior.Wait(stepName, d, behavior.Requires(stepReqs...)), st))
		}
		seqOpts := []group.SequenceOption{group.WithCore(opts...)}
		if rc.SameTick {
			seqOpts = append(seqOpts, group.AdvanceSameTick())
		}
		seq, err := group.NewSequence(name, entries, seqOpts...)
		if err != nil {
			return nil, err
		}
		rt.Behavior = seq
	}
	rt.Trigger = trigger.New(name, sched.Condition()).OnPress(rt.Behavior)
	return rt, nil
}

var (
	errUnknown       = errors.New("unknown resource")
	errShortInterval = errors.New("schedule interval too short")
)

func lookup(s *scheduler.Scheduler, names []string) ([]resource.ID, error) {
	ids := make([]resource.ID, 0, len(names))
	for _, n := range names {
		id, ok := s.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknown, n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
