package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// DefaultRetain is the number of records kept when Config.Retain is zero.
const DefaultRetain = 10000

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retain      int
}

// Record is one behavior lifecycle event.
// Keep it compact and schema-stable.
type Record struct {
	At         time.Time `json:"at"`
	Tick       uint64    `json:"tick"`
	Type       string    `json:"type"`
	BehaviorID string    `json:"behavior_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Resources  []string  `json:"resources,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Holder     string    `json:"holder,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Store is the persistence API used by the journal and the CLI.
type Store interface {
	AppendEvent(ctx context.Context, r Record) error
	// Recent returns up to limit records, oldest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
