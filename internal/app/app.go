// Package app wires config, logging, the scheduler and its host loop, the
// routine catalogue and the lifecycle journal into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cadence/internal/config"
	"cadence/internal/eventbus"
	"cadence/internal/journal"
	"cadence/internal/loop"
	"cadence/internal/routine"
	rtsup "cadence/internal/runtime/supervisor"
	"cadence/internal/scheduler"
	"cadence/internal/storage"
	"cadence/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager
	sup     *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched   *scheduler.Scheduler
	loop    *loop.Loop
	journal *journal.Service
	cat     *routine.Catalogue
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string, opts ...loop.Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	bus := eventbus.New()

	store, err := OpenStore(cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	sched := scheduler.New(mapSchedulerConfig(cfg), log.With(logx.String("comp", "scheduler")), bus)
	cat, err := routine.Build(cfg, sched, log.With(logx.String("comp", "routine")))
	if err != nil {
		closeStore(store)
		return nil, err
	}

	lc, err := mapLoopConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sched:   sched,
		loop:    loop.New(lc, sched, log.With(logx.String("comp", "loop")), opts...),
		cat:     cat,
	}
	if jc, ok := mapJournalConfig(cfg); ok {
		a.journal = journal.New(jc, log.With(logx.String("comp", "journal")), bus, store)
	}
	return a, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

func (a *App) Logger() logx.Logger { return a.log }
func (a *App) Catalogue() *routine.Catalogue { return a.cat }
func (a *App) Loop() *loop.Loop { return a.loop }
func (a *App) Journal() *journal.Service { return a.journal }
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Snapshot() scheduler.Snapshot { return a.loop.Snapshot() }
func (a *App) Supervisor() *rtsup.Supervisor { return a.sup }
func (a *App) ConfigManager() *config.ConfigManager { return a.cfgm }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapLoopConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		// Routines are only rebuilt on restart, but a new loop period must still
		// suit them.
		dry := scheduler.New(scheduler.Config{StartDisabled: true}, logx.Nop(), nil)
		_, err := routine.Build(cfg, dry, logx.Nop())
		return err
	})

	// The journal outlives the app context so Stop can drain the final events.
	if a.journal != nil {
		a.journal.Start(context.WithoutCancel(a.sup.Context()))
	}

	a.sup.Go("loop", a.loop.Run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Uint64("tick", e.Tick))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Int("resources", len(a.cat.Resources)),
		logx.Int("routines", len(a.cat.Routines)),
		logx.Bool("journal", a.journal != nil),
	)
	return nil
}

// applyConfig applies the live-reloadable parts of newCfg.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	change := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(change.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Fields...)
	a.log.Debug("config change summary", fields...)

	if change.Has("logging") {
		a.logs.Apply(mapLoggingConfig(newCfg))
	}
	if change.Has("loop") {
		lc, err := mapLoopConfig(newCfg)
		if err != nil {
			a.log.Warn("invalid loop config; keeping previous", logx.Err(err))
		} else {
			a.loop.Apply(lc)
		}
	}
	if change.Has("scheduler") {
		enabled := newCfg.Scheduler.Enabled
		interrupt := newCfg.Scheduler.InterruptOnDisable
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.loop.Do(dctx, func(s *scheduler.Scheduler) {
			s.SetInterruptOnDisable(interrupt)
			switch {
			case enabled && !s.Enabled():
				s.Enable()
				a.log.Info("scheduler enabled via config")
			case !enabled && s.Enabled():
				s.Disable()
				a.log.Info("scheduler disabled via config", logx.Bool("interrupt", interrupt))
			}
		})
		cancel()
		if err != nil {
			a.log.Warn("scheduler config not applied", logx.Err(err))
		}
	}
	if change.RestartRequired {
		a.log.Warn("config changes need a restart to take effect", logx.String("changed", strings.Join(change.Sections, ",")))
	}
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		closeStore(a.store)
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancelling stops the loop, which interrupts active behaviors.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	// The loop's final interrupts are published before the journal drains.
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("journal", 2*time.Second, func(c context.Context) error {
		if a.journal == nil {
			return nil
		}
		return a.journal.Stop(c)
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	snap := a.loop.Snapshot()
	a.log.Info("stopped",
		logx.Uint64("ticks", snap.Tick),
		logx.Uint64("admitted", snap.Counters.Admitted),
		logx.Uint64("failed", snap.Counters.Failed),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
