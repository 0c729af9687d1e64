//go:build !darwin

package reminders

import "github.com/rs/zerolog"

// Platform returns a logging sink; Reminders.app only exists on macOS.
func Platform(list string, log zerolog.Logger) Sink {
	return NewLogSink(log.With().Str("list", list).Logger())
}
