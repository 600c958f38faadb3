package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the on-disk configuration of a cadence host. JSON and YAML are both
// accepted; unknown keys are rejected.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Loop      LoopConfig      `json:"loop"`

	// Storage is optional; nil disables the lifecycle journal's persistence.
	Storage *StorageConfig `json:"storage,omitempty"`
	Journal *JournalConfig `json:"journal,omitempty"`

	Resources []ResourceConfig `json:"resources"`
	Routines  []RoutineConfig  `json:"routines"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format is "text" (default) or "json" for the console sink.
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the tick scheduler.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// InterruptOnDisable interrupts every running behavior when the scheduler is
	// disabled (including on reload). Otherwise they resume when re-enabled.
	InterruptOnDisable bool `json:"interrupt_on_disable,omitempty"`
	WarnRatePerSec     int  `json:"warn_rate_per_sec,omitempty"`
	// Timezone for cron schedules (IANA name). Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}

// LoopConfig controls the host loop. Durations are Go duration strings.
//
// Defaults: period "20ms", overrun_warn = period.
type LoopConfig struct {
	Period        string `json:"period,omitempty"`
	OverrunWarn   string `json:"overrun_warn,omitempty"`
	SystemdNotify bool   `json:"systemd_notify,omitempty"`
}

// StorageConfig selects the journal store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cadence.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// JournalConfig controls recording of behavior lifecycle events.
type JournalConfig struct {
	Enabled bool `json:"enabled"`
	Buffer  int  `json:"buffer,omitempty"`
}

// ResourceConfig declares one resource. Fallback "idle" holds the resource with a
// behavior that never finishes whenever nothing else does.
type ResourceConfig struct {
	Name     string `json:"name"`
	Fallback string `json:"fallback,omitempty"`
}

// RoutineConfig is a named behavior bound to a schedule trigger. A routine is
// either a single wait of Duration or a sequence of Steps.
type RoutineConfig struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Requires []string `json:"requires,omitempty"`
	Duration string   `json:"duration,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
	// Interruptible defaults to true when omitted.
	Interruptible *bool        `json:"interruptible,omitempty"`
	Steps         []StepConfig `json:"steps,omitempty"`
	SameTick      bool         `json:"same_tick,omitempty"`
}

// StepConfig is one child of a sequential routine. Timeout interrupts the step.
type StepConfig struct {
	Name     string   `json:"name"`
	Requires []string `json:"requires,omitempty"`
	Duration string   `json:"duration"`
	Timeout  string   `json:"timeout,omitempty"`
}

// IsInterruptible applies the default.
func (r RoutineConfig) IsInterruptible() bool {
	return r.Interruptible == nil || *r.Interruptible
}

// FallbackIdle is the only supported resource fallback kind.
const FallbackIdle = "idle"

// Validate checks the structural rules that do not need other packages:
// unique names, known resource references and well-formed durations.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported %q", c.Logging.Format))
	}
	if _, err := ParseDurationField("loop.period", c.Loop.Period); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("loop.overrun_warn", c.Loop.OverrunWarn); err != nil {
		errs = append(errs, err)
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	resources := map[string]struct{}{}
	for i, r := range c.Resources {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("resources[%d]: name required", i))
			continue
		}
		if _, dup := resources[name]; dup {
			errs = append(errs, fmt.Errorf("resources[%d]: duplicate name %q", i, name))
		}
		resources[name] = struct{}{}
		if fb := strings.TrimSpace(r.Fallback); fb != "" && fb != FallbackIdle {
			errs = append(errs, fmt.Errorf("resources[%d]: unsupported fallback %q", i, r.Fallback))
		}
	}

	checkRequires := func(path string, names []string) {
		for _, n := range names {
			if _, ok := resources[strings.TrimSpace(n)]; !ok {
				errs = append(errs, fmt.Errorf("%s: unknown resource %q", path, n))
			}
		}
	}

	routines := map[string]struct{}{}
	for i, r := range c.Routines {
		path := fmt.Sprintf("routines[%d]", i)
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s: name required", path))
		} else if _, dup := routines[name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", path, name))
		}
		routines[name] = struct{}{}
		if strings.TrimSpace(r.Schedule) == "" {
			errs = append(errs, fmt.Errorf("%s.schedule: required", path))
		}
		checkRequires(path+".requires", r.Requires)
		if _, err := ParseDurationField(path+".duration", r.Duration); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField(path+".timeout", r.Timeout); err != nil {
			errs = append(errs, err)
		}
		if len(r.Steps) > 0 && strings.TrimSpace(r.Duration) != "" {
			errs = append(errs, fmt.Errorf("%s: duration and steps are mutually exclusive", path))
		}
		for j, s := range r.Steps {
			sp := fmt.Sprintf("%s.steps[%d]", path, j)
			checkRequires(sp+".requires", s.Requires)
			if _, err := ParseDurationField(sp+".duration", s.Duration); err != nil {
				errs = append(errs, err)
			}
			if _, err := ParseDurationField(sp+".timeout", s.Timeout); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
