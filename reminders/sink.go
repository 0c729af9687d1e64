// Package reminders pushes task items to an external reminder application.
package reminders

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives reminders. EnsureReminder is idempotent per title: it
// reports created=false when an open reminder with that title exists.
type Sink interface {
	EnsureReminder(ctx context.Context, title, notes string, remindAt time.Time) (created bool, err error)
}

// Router picks a sink per project tag.
type Router interface {
	SinkFor(project string) Sink
}

// Resetter removes completed reminders and reports how many went away.
type Resetter interface {
	ResetCompleted(ctx context.Context) (int, error)
}

// LogSink only logs. It stands in on machines without a reminder app.
type LogSink struct {
	mu   sync.Mutex
	seen map[string]bool
	log  zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{seen: make(map[string]bool), log: log}
}

func (s *LogSink) EnsureReminder(_ context.Context, title, notes string, remindAt time.Time) (bool, error) {
	key := strings.TrimSpace(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	s.log.Info().
		Str("title", key).
		Int("notes_len", len(notes)).
		Time("remind_at", remindAt).
		Msg("reminder")
	return true, nil
}

// ResetCompleted forgets every title seen so far.
func (s *LogSink) ResetCompleted(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.seen)
	s.seen = make(map[string]bool)
	s.log.Info().Int("deleted", n).Msg("reminders reset")
	return n, nil
}
