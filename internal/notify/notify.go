// pattern: Imperative Shell

// Package notify carries user-visible notifications out of the core.
package notify

import (
	"sync"

	"wtctl/internal/logging"
)

// Severity of a notification.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notifier is the single sink for user-visible outcomes.
type Notifier interface {
	Notify(title, message string, sev Severity)
}

// Log writes notifications to a scoped logger.
type Log struct {
	Logger *logging.ScopedLogger
}

func (l Log) Notify(title, message string, sev Severity) {
	logger := logging.OrNop(l.Logger)
	switch sev {
	case Error:
		logger.Error(title, "message", message)
	case Warning:
		logger.Warn(title, "message", message)
	default:
		logger.Info(title, "message", message)
	}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(title, message string, sev Severity) {
	for _, n := range m {
		if n != nil {
			n.Notify(title, message, sev)
		}
	}
}

// Note is one recorded notification.
type Note struct {
	Title    string
	Message  string
	Severity Severity
}

// Recorder keeps notifications in memory. Used by tests.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) Notify(title, message string, sev Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Title: title, Message: message, Severity: sev})
}

// Notes returns a copy of everything recorded.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Find returns the first note with the given title.
func (r *Recorder) Find(title string) (Note, bool) {
	for _, n := range r.Notes() {
		if n.Title == title {
			return n, true
		}
	}
	return Note{}, false
}

// OrLog returns n, or a logging notifier when n is nil.
func OrLog(n Notifier, logger *logging.ScopedLogger) Notifier {
	if n == nil {
		return Log{Logger: logger}
	}
	return n
}
