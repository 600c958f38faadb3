package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero; negative
// values are rejected. path names the field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

const DefaultLoopPeriod = 20 * time.Millisecond

// LoopTimings resolves the loop durations with defaults applied. OverrunWarn
// defaults to the period.
func (l LoopConfig) LoopTimings() (period, overrunWarn time.Duration, err error) {
	period, err = ParseDurationOrDefault("loop.period", l.Period, DefaultLoopPeriod)
	if err != nil {
		return 0, 0, err
	}
	overrunWarn, err = ParseDurationOrDefault("loop.overrun_warn", l.OverrunWarn, period)
	if err != nil {
		return 0, 0, err
	}
	return period, overrunWarn, nil
}

// Location resolves the scheduler timezone. Empty means time.Local.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}
