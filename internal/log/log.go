// Package log provides the structured logger every command and service in
// this module shares, built on zerolog the way the teacher's services
// build theirs on the standard logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger. When pretty is true, output goes through zerolog's
// console writer (human-readable, for a terminal); otherwise it emits
// newline-delimited JSON suitable for log aggregation.
func New(w io.Writer, pretty bool, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return l.Level(lvl)
}

// Round logs one completed round at info level with the fields a reader
// auditing a tabulation run would want first: round number, what happened,
// and the running exhausted/residual totals.
func Round(logger zerolog.Logger, round int, note string, elected, eliminated int, exhaustedTotal, residualTotal string) {
	logger.Info().
		Int("round", round).
		Int("elected", elected).
		Int("eliminated", eliminated).
		Str("exhausted_total", exhaustedTotal).
		Str("residual_total", residualTotal).
		Str("note", note).
		Msg("round complete")
}
