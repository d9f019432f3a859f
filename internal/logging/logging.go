package logging

import (
	"io"
	"strings"

	"github.com/phuslu/log"
)

// New builds a logger writing to w. Format "json" emits one JSON object per
// line; anything else uses the human readable console writer.
func New(level, format string, w io.Writer) *log.Logger {
	lg := &log.Logger{
		Level: log.ParseLevel(strings.ToLower(level)),
	}
	if strings.EqualFold(format, "json") {
		lg.Writer = &log.IOWriter{Writer: w}
	} else {
		lg.Writer = &log.ConsoleWriter{Writer: w, QuoteString: true, EndWithMessage: true}
	}
	return lg
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// OrNop returns lg, or a discarding logger when lg is nil.
func OrNop(lg *log.Logger) *log.Logger {
	if lg == nil {
		return Nop()
	}
	return lg
}
