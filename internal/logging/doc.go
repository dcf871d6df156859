// Package logging builds the slog loggers used across stride.
//
// Two output formats are supported: a human-oriented console format
// (timestamp, level, component prefix, key=value attrs) and plain JSON for
// log collectors. Components derive their logger via NewComponentLogger so
// every line carries a component attribute.
package logging
