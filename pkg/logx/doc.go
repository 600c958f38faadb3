// Package logx configures cadence's structured logging on top of zerolog.
//
// Console output is short-timestamped text with a file:line caller, or JSON
// lines for journald. The file sink is always JSON. Service.Apply swaps level
// and sinks at runtime for config hot reload.
package logx
