package reminders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultList   = "Kişisel Not Defterim Anımsatıcılar"
	scriptTimeout = 10 * time.Second
	titleMaxRunes = 200
	notesMaxRunes = 500
)

// DefaultProjectLists routes some projects to their own lists.
var DefaultProjectLists = map[string]string{
	"TYPEFULLY - LinkedIn - Makale Konuları": "LinkedIn - Makale Konuları",
	"TYPEFULLY - X - Makale Konuları":        "X - Makale Konuları",
}

// Runner executes an AppleScript and returns its trimmed output.
type Runner func(ctx context.Context, script string) (string, error)

// OsaScript runs script with osascript -e.
func OsaScript(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("osascript: timeout after %s", scriptTimeout)
		}
		return "", fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Script drives the macOS Reminders app.
type Script struct {
	list         string
	projectLists map[string]string
	run          Runner
	log          zerolog.Logger
}

func NewScript(list string, projectLists map[string]string, run Runner, log zerolog.Logger) *Script {
	if list == "" {
		list = DefaultList
	}
	if run == nil {
		run = OsaScript
	}
	return &Script{list: list, projectLists: projectLists, run: run, log: log}
}

// SinkFor returns a sink writing to the list mapped to project, or s.
func (s *Script) SinkFor(project string) Sink {
	list, ok := s.projectLists[project]
	if !ok || list == s.list {
		return s
	}
	cp := *s
	cp.list = list
	return &cp
}

func (s *Script) List() string {
	return s.list
}

func (s *Script) EnsureReminder(ctx context.Context, title, notes string, remindAt time.Time) (bool, error) {
	title = cleanTitle(title)
	out, err := s.run(ctx, existsScript(s.list, title))
	if err != nil {
		return false, err
	}
	if strings.EqualFold(out, "true") {
		return false, nil
	}

	if _, err := s.run(ctx, ensureListScript(s.list)); err != nil {
		return false, err
	}
	if _, err := s.run(ctx, addScript(s.list, title, notes, remindAt)); err != nil {
		return false, err
	}
	s.log.Info().Str("list", s.list).Str("title", title).Time("remind_at", remindAt).Msg("reminder added")
	return true, nil
}

// ResetCompleted deletes completed reminders from the list and returns how
// many were removed.
func (s *Script) ResetCompleted(ctx context.Context) (int, error) {
	out, err := s.run(ctx, fmt.Sprintf(`
tell application "Reminders"
	tell list "%s"
		set completedReminders to (every reminder whose completed is true)
		set deletedCount to count of completedReminders
		repeat with r in completedReminders
			delete r
		end repeat
		return deletedCount
	end tell
end tell`, quote(s.list)))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("reset %s: unexpected osascript output %q", s.list, out)
	}
	s.log.Info().Str("list", s.list).Int("deleted", n).Msg("completed reminders removed")
	return n, nil
}

func existsScript(list, title string) string {
	return fmt.Sprintf(`
tell application "Reminders"
	tell list "%s"
		set matchingReminders to (every reminder whose name contains "%s" and completed is false)
		return (count of matchingReminders) > 0
	end tell
end tell`, quote(list), quote(title))
}

func ensureListScript(list string) string {
	return fmt.Sprintf(`
tell application "Reminders"
	if not (exists list "%[1]s") then
		make new list with properties {name:"%[1]s"}
	end if
end tell`, quote(list))
}

func addScript(list, title, notes string, at time.Time) string {
	notes = strings.ReplaceAll(quote(truncate(notes, notesMaxRunes)), "\n", `\n`)
	// day is reset to 1 first so changing the month cannot overflow
	return fmt.Sprintf(`
tell application "Reminders"
	set reminderDate to current date
	set day of reminderDate to 1
	set year of reminderDate to %d
	set month of reminderDate to %d
	set day of reminderDate to %d
	set hours of reminderDate to %d
	set minutes of reminderDate to %d
	set seconds of reminderDate to 0
	tell list "%s"
		set newReminder to make new reminder with properties {name:"%s", body:"%s"}
		set due date of newReminder to reminderDate
		set remind me date of newReminder to reminderDate
	end tell
end tell`, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), quote(list), quote(title), notes)
}

func cleanTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	return truncate(strings.TrimSpace(title), titleMaxRunes)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
