// Package notify carries transient user-facing messages from the
// resilience layer to whatever surface renders them.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one transient message.
type Notification struct {
	Kind    Kind
	Message string
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use; fetch completions arrive from background goroutines.
type Notifier interface {
	Notify(n Notification)
}

// Funcs adapts plain functions to Notifier.
type Funcs func(n Notification)

func (f Funcs) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the structured log. It is the
// default sink for headless use.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.With().Str("component", "notify").Logger()}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(n Notification) {
	event := l.logger.Info()
	if n.Kind == KindError {
		event = l.logger.Warn()
	}
	event.Str("kind", string(n.Kind)).Msg(n.Message)
}

// Buffer collects notifications in memory, mainly for tests.
type Buffer struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (b *Buffer) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
}

// Items returns a copy of all notifications received so far.
func (b *Buffer) Items() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Success sends a success notification.
func Success(n Notifier, message string) {
	n.Notify(Notification{Kind: KindSuccess, Message: message})
}

// Error sends an error notification.
func Error(n Notifier, message string) {
	n.Notify(Notification{Kind: KindError, Message: message})
}

// Info sends an informational notification.
func Info(n Notifier, message string) {
	n.Notify(Notification{Kind: KindInfo, Message: message})
}
