// Package loop drives a scheduler at a fixed period.
//
// The scheduler is not safe for concurrent use, so everything that touches it
// after Run starts goes through Do, which executes on the loop goroutine
// between ticks. Readers that only need state use Snapshot.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"

	"cadence/internal/scheduler"
	"cadence/pkg/logx"
)

var (
	ErrStopped = errors.New("loop stopped")
	ErrRunning = errors.New("loop already running")
)

const DefaultPeriod = 20 * time.Millisecond

type Config struct {
	Period time.Duration
	// OverrunWarn is the tick duration above which a warning is logged.
	// 0 means Period.
	OverrunWarn time.Duration
	// SystemdNotify sends READY=1, WATCHDOG=1 and STOPPING=1.
	SystemdNotify bool
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.OverrunWarn <= 0 {
		c.OverrunWarn = c.Period
	}
	return c
}

// Notifier sends an sd_notify state. It reports whether the message was sent.
type Notifier func(state string) (bool, error)

type Option func(*Loop)

// WithNotifier replaces daemon.SdNotify.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) {
		if n != nil {
			l.notify = n
		}
	}
}

// WithWatchdog overrides the interval read from WATCHDOG_USEC.
func WithWatchdog(interval time.Duration) Option {
	return func(l *Loop) { l.watchdog = interval }
}

type call struct {
	fn   func(s *scheduler.Scheduler)
	err  error
	done chan struct{}
}

type Loop struct {
	sched *scheduler.Scheduler
	log   logx.Logger

	cfg     atomic.Pointer[Config]
	applyCh chan Config
	calls   chan *call
	done    chan struct{}
	running atomic.Bool

	snap     atomic.Pointer[scheduler.Snapshot]
	overruns atomic.Uint64
	warn     *rate.Limiter

	notify   Notifier
	watchdog time.Duration
}

func New(cfg Config, sched *scheduler.Scheduler, log logx.Logger, opts ...Option) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	l := &Loop{
		sched:   sched,
		log:     log,
		applyCh: make(chan Config, 1),
		calls:   make(chan *call),
		done:    make(chan struct{}),
		// One overrun warning per second is enough to notice a slow behavior.
		warn: rate.NewLimiter(rate.Every(time.Second), 1),
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
	l.cfg.Store(&cfg)
	for _, o := range opts {
		o(l)
	}
	snap := sched.Snapshot()
	l.snap.Store(&snap)
	return l
}

func (l *Loop) Config() Config { return *l.cfg.Load() }

// Apply changes the loop settings. A running loop picks them up before its
// next tick.
func (l *Loop) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	l.cfg.Store(&cfg)
	select {
	case l.applyCh <- cfg:
	default:
		// A pending apply is replaced by the newer one.
		select {
		case <-l.applyCh:
		default:
		}
		select {
		case l.applyCh <- cfg:
		default:
		}
	}
}

// Snapshot returns the scheduler state after the latest tick.
func (l *Loop) Snapshot() scheduler.Snapshot { return *l.snap.Load() }

func (l *Loop) Overruns() uint64 { return l.overruns.Load() }

// Do runs fn on the loop goroutine and waits for it to return. A panic in fn is
// returned as an error and the loop keeps ticking.
func (l *Loop) Do(ctx context.Context, fn func(s *scheduler.Scheduler)) error {
	c := &call{fn: fn, done: make(chan struct{})}
	select {
	case l.calls <- c:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return c.err
	case <-l.done:
		select {
		case <-c.done:
			return c.err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(c *call) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("loop call panicked: %v", r)
			l.log.Error("loop call panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	c.fn(l.sched)
}

// Run ticks until ctx is done, then interrupts whatever is still active. It can
// only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(l.done)

	cfg := l.Config()
	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	var (
		wdInterval time.Duration
		lastPing   time.Time
	)
	if cfg.SystemdNotify {
		wdInterval = l.watchdogInterval()
		l.sdNotify(daemon.SdNotifyReady)
		defer l.sdNotify(daemon.SdNotifyStopping)
	}
	l.log.Info("loop started", logx.Duration("period", cfg.Period), logx.Bool("systemd", cfg.SystemdNotify), logx.Duration("watchdog", wdInterval))

	for {
		select {
		case <-ctx.Done():
			// Behaviors still running are interrupted so their hooks run.
			l.sched.RemoveAll()
			l.publish()
			l.log.Info("loop stopped", logx.Uint64("ticks", l.sched.TickCount()), logx.Uint64("overruns", l.overruns.Load()))
			return nil

		case c := <-l.calls:
			l.run(c)
			l.publish()

		case next := <-l.applyCh:
			if next.Period != cfg.Period {
				ticker.Reset(next.Period)
				l.log.Info("loop period changed", logx.Duration("from", cfg.Period), logx.Duration("to", next.Period))
			}
			cfg = next

		case now := <-ticker.C:
			start := time.Now()
			l.sched.Tick()
			took := time.Since(start)
			l.publish()

			if took > cfg.OverrunWarn {
				l.overruns.Add(1)
				if l.warn.Allow() {
					l.log.Warn("tick overrun", logx.Duration("took", took), logx.Duration("budget", cfg.OverrunWarn), logx.Uint64("overruns", l.overruns.Load()))
				}
			}
			if wdInterval > 0 && now.Sub(lastPing) >= wdInterval {
				l.sdNotify(daemon.SdNotifyWatchdog)
				lastPing = now
			}
		}
	}
}

func (l *Loop) publish() {
	snap := l.sched.Snapshot()
	l.snap.Store(&snap)
}

// watchdogInterval is half the systemd watchdog timeout, or 0 when disabled.
func (l *Loop) watchdogInterval() time.Duration {
	if l.watchdog > 0 {
		return l.watchdog
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		l.log.Warn("systemd watchdog config invalid", logx.Err(err))
		return 0
	}
	return d / 2
}

func (l *Loop) sdNotify(state string) {
	sent, err := l.notify(state)
	if err != nil {
		l.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		l.log.Debug("sd_notify sent", logx.String("state", state))
	}
}
