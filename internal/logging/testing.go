// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Entry is a recorded log line, flattened for assertions.
type Entry struct {
	Scope   string
	Level   string
	Message string
	Fields  map[string]any
}

// TestLogManager provides a LoggerProvider suitable for tests.
// It records every entry in memory instead of writing a file.
type TestLogManager struct {
	logs    *observer.ObservedLogs
	baseZap *zap.Logger
	loggers map[string]*ScopedLogger
	mu      sync.RWMutex
}

// NewTestLogManager creates a LoggerProvider that records at debug level.
func NewTestLogManager() *TestLogManager {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogManager{
		logs:    logs,
		baseZap: zap.New(core),
		loggers: make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger for the given scope name.
// Named For() to match the production Manager API.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	m.mu.RLock()
	if logger, ok := m.loggers[scope]; ok {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}

	logger := newScopedLogger(m.baseZap.Named(scope), zapcore.DebugLevel, scope)
	m.loggers[scope] = logger
	return logger
}

// Entries returns everything logged so far.
func (m *TestLogManager) Entries() []Entry {
	all := m.logs.All()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		out = append(out, Entry{
			Scope:   e.LoggerName,
			Level:   e.Level.CapitalString(),
			Message: e.Message,
			Fields:  e.ContextMap(),
		})
	}
	return out
}

// Has reports whether an entry with the given level and message was logged.
func (m *TestLogManager) Has(level, msg string) bool {
	for _, e := range m.Entries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
