// Package notify is the user-facing notifier collaborator.
package notify

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Kind classifies a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notifier delivers one user-visible message.
type Notifier interface {
	Notify(kind Kind, message string)
}

// Logger routes notifications to structured logs. The UI collaborator that
// renders toasts tails these.
type Logger struct {
	log *log.Logger
}

// NewLogger creates a log-backed notifier.
func NewLogger(logger *log.Logger) *Logger {
	return &Logger{log: logger}
}

func (l *Logger) Notify(kind Kind, message string) {
	entry := l.log.WithField("kind", string(kind))
	switch kind {
	case Error:
		entry.Error(message)
	case Success, Info:
		entry.Info(message)
	default:
		entry.Info(message)
	}
}

// Notification is one recorded Notify call.
type Notification struct {
	Kind    Kind
	Message string
}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Notification{Kind: kind, Message: message})
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
