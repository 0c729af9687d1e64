// server/reminders/sync.go
package reminders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/rs/zerolog"
)

// Lister is the part of the repository the sync needs.
type Lister interface {
	List(ctx context.Context, folder string) ([]domain.Item, error)
}

type Result struct {
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Syncer hands every item of the tasks folder to a Sink.
type Syncer struct {
	items  Lister
	sink   Sink
	folder string
	hour   int
	minute int
	now    func() time.Time
	log    zerolog.Logger
}

// NewSyncer schedules reminders at timeOfDay ("HH:MM"); an invalid value
// falls back to 09:00.
func NewSyncer(items Lister, sink Sink, timeOfDay string, log zerolog.Logger) *Syncer {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		log.Warn().Err(err).Msg("using default reminder time 09:00")
		hour, minute = 9, 0
	}
	return &Syncer{
		items:  items,
		sink:   sink,
		folder: domain.FolderTasks,
		hour:   hour,
		minute: minute,
		now:    time.Now,
		log:    log,
	}
}

// WithClock replaces time.Now.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Sync lists the tasks and ensures a reminder for each. A failing item is
// counted and does not stop the rest.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	items, err := s.items.List(ctx, s.folder)
	if err != nil {
		return Result{}, err
	}

	at := NextOccurrence(s.now(), s.hour, s.minute)
	var res Result
	for _, it := range items {
		sink := s.sink
		if router, ok := sink.(Router); ok {
			sink = router.SinkFor(it.ProjectName())
		}

		created, err := sink.EnsureReminder(ctx, it.Title, it.Content, at)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", it.Title, err))
			s.log.Warn().Err(err).Str("id", it.ID).Msg("reminder failed")
		case created:
			res.Created++
		default:
			res.Existing++
		}
	}

	s.log.Info().
		Int("created", res.Created).
		Int("existing", res.Existing).
		Int("failed", res.Failed).
		Msg("reminders synced")
	return res, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextOccurrence is today at hour:minute, or tomorrow if that has passed.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
