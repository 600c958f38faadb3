package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 5s", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "250ms", kind: SpecInterval, source: "duration", duration: 250 * time.Millisecond},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix hhmm", raw: "every:00:05", kind: SpecInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			if tt.kind == SpecInterval {
				assert.Equal(t, tt.duration, got.Every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5s", "cron:", "interval:", "00:61", "00:00"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewScheduleRejectsBadCron(t *testing.T) {
	t.Parallel()
	_, err := NewSchedule("99 * * * *", time.UTC)
	assert.Error(t, err)
}

func TestCronScheduleDue(t *testing.T) {
	t.Parallel()
	s, err := NewSchedule("*/15 * * * * *", time.UTC)
	require.NoError(t, err)
	start := time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)

	assert.False(t, s.Due(start), "first poll only arms the schedule")
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 15, 0, time.UTC), s.Next())
	assert.False(t, s.Due(start.Add(10*time.Second)))
	assert.True(t, s.Due(start.Add(14*time.Second)))
	assert.False(t, s.Due(start.Add(15*time.Second)))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC), s.Next())
}
