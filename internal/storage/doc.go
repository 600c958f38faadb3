// Package storage persists the behavior lifecycle journal.
//
// Records are operator history only; the scheduler never restores state from them.
//
// Drivers:
//   - "file": JSON Lines, compacted to the newest Retain records
//   - "sqlite": a single table (modernc.org/sqlite, no cgo)
package storage
