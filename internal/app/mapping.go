package app

import (
	"fmt"
	"strings"
	"time"

	"cadence/internal/config"
	"cadence/internal/journal"
	"cadence/internal/loop"
	"cadence/internal/scheduler"
	"cadence/internal/storage"
	"cadence/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		StartDisabled:      !cfg.Scheduler.Enabled,
		InterruptOnDisable: cfg.Scheduler.InterruptOnDisable,
		WarnRatePerSec:     cfg.Scheduler.WarnRatePerSec,
	}
}

func mapLoopConfig(cfg *config.Config) (loop.Config, error) {
	period, warn, err := cfg.Loop.LoopTimings()
	if err != nil {
		return loop.Config{}, err
	}
	return loop.Config{Period: period, OverrunWarn: warn, SystemdNotify: cfg.Loop.SystemdNotify}, nil
}

// mapJournalConfig reports whether the journal is enabled.
func mapJournalConfig(cfg *config.Config) (journal.Config, bool) {
	if cfg.Journal == nil || !cfg.Journal.Enabled {
		return journal.Config{}, false
	}
	return journal.Config{Buffer: cfg.Journal.Buffer}, true
}

// mapStorageConfig reports whether storage is enabled.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			path = "./cadence.journal.jsonl"
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// OpenStore opens the configured journal store, or returns nil when storage is
// disabled.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	return storage.Open(sc, log)
}
