package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cadence/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT    NOT NULL,
	tick        INTEGER NOT NULL,
	type        TEXT    NOT NULL,
	behavior_id TEXT,
	name        TEXT,
	resources   TEXT,
	reason      TEXT,
	holder      TEXT,
	elapsed_ms  INTEGER NOT NULL DEFAULT 0,
	err         TEXT
);
CREATE INDEX IF NOT EXISTS journal_behavior ON journal(behavior_id);
`

type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	retain int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retain: cfg.Retain, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendEvent(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	var resources any
	if len(r.Resources) > 0 {
		b, err := json.Marshal(r.Resources)
		if err != nil {
			return err
		}
		resources = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal(at, tick, type, behavior_id, name, resources, reason, holder, elapsed_ms, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), int64(r.Tick), r.Type, nullStr(r.BehaviorID), nullStr(r.Name),
		resources, nullStr(r.Reason), nullStr(r.Holder), r.ElapsedMS, nullStr(r.Error),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("journal prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, tick, type, behavior_id, name, resources, reason, holder, elapsed_ms, err
		 FROM (SELECT * FROM journal ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                           Record
			at                                          string
			tick                                        int64
			id, name, resources, reason, holder, errStr sql.NullString
		)
		if err := rows.Scan(&at, &tick, &r.Type, &id, &name, &resources, &reason, &holder, &r.ElapsedMS, &errStr); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.Tick = uint64(tick)
		r.BehaviorID, r.Name, r.Reason, r.Holder, r.Error = id.String, name.String, reason.String, holder.String, errStr.String
		if resources.Valid && resources.String != "" {
			_ = json.Unmarshal([]byte(resources.String), &r.Resources)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// prune drops all but the newest retain rows.
func (s *sqliteStore) prune(ctx context.Context) error {
	if s == nil || s.db == nil || s.retain <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM journal WHERE id <= (SELECT id FROM journal ORDER BY id DESC LIMIT 1 OFFSET ?)`, s.retain)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
