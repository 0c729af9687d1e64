//go:build darwin

package reminders

import "github.com/rs/zerolog"

// Platform returns the Reminders.app sink.
func Platform(list string, log zerolog.Logger) Sink {
	return NewScript(list, DefaultProjectLists, OsaScript, log)
}
