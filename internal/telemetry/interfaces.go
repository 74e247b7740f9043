// Package telemetry holds the narrow diagnostics ports server components
// depend on instead of concrete loggers and counters.
package telemetry

import (
	"fmt"
	"log"

	"hexclash/server/logging"
)

// Counter keys recorded by the match hub.
const (
	KeyTokensIssued      = "tokens_issued"
	KeyActionsCommitted  = "actions_committed"
	KeyRequestsRejected  = "requests_rejected"
	KeyTurnsStarted      = "turns_started"
	KeyIdleTimeouts      = "turns_idle_timeouts"
	KeyBroadcastBytes    = "broadcast_bytes"
	KeyBroadcastMessages = "broadcast_messages"
	KeyKeyframeSize      = "keyframe_journal_size"
	KeyKeyframeNewest    = "keyframe_newest_sequence"
	KeySessions          = "sessions"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// NopLogger discards every line.
func NopLogger() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// WithPrefix tags every line written through logger, for example with the
// match id.
func WithPrefix(logger Logger, prefix string) Logger {
	if logger == nil {
		return NopLogger()
	}
	if prefix == "" {
		return logger
	}
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
	})
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics adapts the logging metrics into the Metrics interface.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return &metricsAdapter{metrics: metrics}
}

type metricsAdapter struct {
	metrics *logging.Metrics
}

func (m *metricsAdapter) Add(key string, delta uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryAdd(key, delta)
}

func (m *metricsAdapter) Store(key string, value uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryStore(key, value)
}
