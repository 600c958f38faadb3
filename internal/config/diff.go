package config

import (
	"reflect"
	"sort"
	"strings"

	"cadence/pkg/logx"
)

// Change is the summary of a reload.
type Change struct {
	// Sections lists the top-level sections that differ, sorted.
	Sections []string
	// Fields are safe structured log fields describing the new values.
	Fields []logx.Field
	// RestartRequired is set when resources or routines changed; those are only
	// applied at startup.
	RestartRequired bool
}

// Has reports whether section changed.
func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeConfigChange compares two configs section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		ch.Sections = append(ch.Sections, "logging")
		ch.Fields = append(ch.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		ch.Sections = append(ch.Sections, "scheduler")
		ch.Fields = append(ch.Fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Bool("scheduler.interrupt_on_disable", newCfg.Scheduler.InterruptOnDisable),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if oldCfg.Loop != newCfg.Loop {
		ch.Sections = append(ch.Sections, "loop")
		ch.Fields = append(ch.Fields,
			logx.String("loop.period", strings.TrimSpace(newCfg.Loop.Period)),
			logx.Bool("loop.systemd_notify", newCfg.Loop.SystemdNotify),
		)
	}

	// Nil means disabled. Paths are reported as set/unset only.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		ch.Sections = append(ch.Sections, "storage")
		ch.RestartRequired = true
		ch.Fields = append(ch.Fields,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Journal, newCfg.Journal) {
		ch.Sections = append(ch.Sections, "journal")
		ch.RestartRequired = true
	}

	if fingerprint(oldCfg.Resources) != fingerprint(newCfg.Resources) {
		ch.Sections = append(ch.Sections, "resources")
		ch.RestartRequired = true
		ch.Fields = append(ch.Fields, logx.Int("resources.count", len(newCfg.Resources)))
	}
	if fingerprint(oldCfg.Routines) != fingerprint(newCfg.Routines) {
		ch.Sections = append(ch.Sections, "routines")
		ch.RestartRequired = true
		ch.Fields = append(ch.Fields, logx.Int("routines.count", len(newCfg.Routines)))
	}

	sort.Strings(ch.Sections)
	return ch
}
