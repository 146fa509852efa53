// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing to w. JSON output is used
// unless console is set.
func New(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Level maps the debug flag to a log level.
func Level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
