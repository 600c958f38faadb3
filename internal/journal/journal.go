// Package journal records behavior lifecycle events from the bus.
//
// Records go to a storage.Store when one is configured and always to a small
// in-memory history, so the latest events are visible without persistence.
package journal

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cadence/internal/eventbus"
	rtsup "cadence/internal/runtime/supervisor"
	"cadence/internal/scheduler"
	"cadence/internal/storage"
	"cadence/pkg/logx"
)

// Config controls the journal.
type Config struct {
	// Buffer is the bus subscription size. Events beyond it are dropped by the bus.
	Buffer int
	// History is the size of the in-memory ring.
	History int
	// WriteTimeout bounds one store append.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.History <= 0 {
		c.History = 200
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	return c
}

type Service struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	mu    sync.Mutex
	sup   *rtsup.Supervisor
	unsub func()

	hmu     sync.Mutex
	history []storage.Record
	next    int

	written atomic.Uint64
	failed  atomic.Uint64
}

// New returns a journal. store may be nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), log: log, bus: bus, store: store}
}

// Start subscribes to lifecycle events and writes them from a supervised
// goroutine. Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || s.bus == nil {
		return
	}
	ch, unsub := s.bus.SubscribePrefix("behavior.", s.cfg.Buffer)
	s.unsub = unsub
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.GoRestart("journal.writer", func(ctx context.Context) error {
		return s.consume(ctx, ch)
	})
	s.log.Debug("journal started", logx.Bool("persistent", s.store != nil), logx.Int("buffer", s.cfg.Buffer))
}

// Stop unsubscribes and waits for the writer. Events still buffered are written.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup, unsub := s.sup, s.unsub
	s.sup, s.unsub = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	// Closing the subscription ends consume after it drains the buffer.
	unsub()
	err := sup.Wait(ctx)
	sup.Cancel()
	s.log.Debug("journal stopped", logx.Uint64("written", s.written.Load()), logx.Uint64("failed", s.failed.Load()))
	return err
}

func (s *Service) consume(ctx context.Context, ch <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.Record(ctx, ev)
		}
	}
}

// Record converts ev and stores it. Store errors are logged, not returned.
func (s *Service) Record(ctx context.Context, ev eventbus.Event) {
	r := toRecord(ev)
	s.remember(r)
	if s.store == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.store.AppendEvent(wctx, r); err != nil {
		s.failed.Add(1)
		s.log.Warn("journal append failed", logx.String("type", r.Type), logx.Err(err))
		return
	}
	s.written.Add(1)
}

func (s *Service) remember(r storage.Record) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	if len(s.history) < s.cfg.History {
		s.history = append(s.history, r)
		return
	}
	s.history[s.next] = r
	s.next = (s.next + 1) % len(s.history)
}

// History returns up to limit in-memory records, oldest first.
func (s *Service) History(limit int) []storage.Record {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	ordered := append(append([]storage.Record(nil), s.history[s.next:]...), s.history[:s.next]...)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// Recent reads from the store when present, else from memory.
func (s *Service) Recent(ctx context.Context, limit int) ([]storage.Record, error) {
	if s.store == nil {
		return s.History(limit), nil
	}
	return s.store.Recent(ctx, limit)
}

func toRecord(ev eventbus.Event) storage.Record {
	r := storage.Record{At: ev.Time, Tick: ev.Tick, Type: ev.Type}
	switch d := ev.Data.(type) {
	case scheduler.BehaviorEvent:
		r.BehaviorID = d.ID
		r.Name = d.Name
		r.Resources = d.Resources
		r.Reason = d.Reason
		r.Holder = d.Holder
		r.ElapsedMS = d.ElapsedMs
		r.Error = d.Error
	case *scheduler.BehaviorEvent:
		if d != nil {
			return toRecord(eventbus.Event{Type: ev.Type, Time: ev.Time, Tick: ev.Tick, Data: *d})
		}
	case string:
		r.Name = strings.TrimSpace(d)
	}
	return r
}
