// Package notify defines the collaborator the roster reports user-facing
// failures to, plus a default that writes them to the log.
package notify

import (
	"fmt"
	"sync"

	"github.com/meszmate/buddylist/internal/logging"
)

// Notifier shows error messages to the user. Handle identifies the object
// a message is about so that pending messages can be closed when that
// object goes away.
type Notifier interface {
	Error(handle any, title, primary, secondary string)
	CloseWithHandle(handle any)
}

var logger = logging.Component("notify")

// Log is a Notifier that records messages in the log and keeps the ones
// still open, keyed by handle.
type Log struct {
	mu   sync.Mutex
	open map[any][]Message
}

// Message is a notification that has not been closed yet
type Message struct {
	Title     string
	Primary   string
	Secondary string
}

// String formats the message on one line
func (m Message) String() string {
	if m.Secondary == "" {
		return fmt.Sprintf("%s: %s", m.Title, m.Primary)
	}
	return fmt.Sprintf("%s: %s (%s)", m.Title, m.Primary, m.Secondary)
}

// NewLog creates a log-backed notifier
func NewLog() *Log {
	return &Log{open: make(map[any][]Message)}
}

// Error logs the message and keeps it open under handle
func (l *Log) Error(handle any, title, primary, secondary string) {
	m := Message{Title: title, Primary: primary, Secondary: secondary}
	logger.Error("%s", m)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.open[handle] = append(l.open[handle], m)
}

// CloseWithHandle drops every open message for handle
func (l *Log) CloseWithHandle(handle any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, handle)
}

// Open returns the messages still open for handle
func (l *Log) Open(handle any) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.open[handle]...)
}

// All returns every open message
func (l *Log) All() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Message
	for _, msgs := range l.open {
		out = append(out, msgs...)
	}
	return out
}
