// Package audit routes reconciliation notices (below-threshold misses,
// auto-cancellations, run summaries) to configured sinks. Recording is
// fire-and-forget: a sink failure never affects the run.
package audit

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Severity levels for audit notices.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Sink receives audit notices. Implementations must not block the caller
// and must swallow their own failures.
type Sink interface {
	Record(level, message string, fields map[string]any)
}

// LogSink writes audit notices through the global zerolog logger.
type LogSink struct{}

// NewLogSink creates the default zerolog-backed sink.
func NewLogSink() *LogSink { return &LogSink{} }

// Record implements Sink.
func (s *LogSink) Record(level, message string, fields map[string]any) {
	var event *zerolog.Event
	switch level {
	case LevelError:
		event = log.Error()
	case LevelWarn:
		event = log.Warn()
	default:
		event = log.Info()
	}

	event = event.Str("audit", "reconciler")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Multi fans a notice out to several sinks.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(level, message string, fields map[string]any) {
	for _, s := range m {
		s.Record(level, message, fields)
	}
}

// Nop discards every notice. Useful in tests.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(string, string, map[string]any) {}
