package errors

import (
	"os"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes errors through a zerolog logger.
// The zero value logs to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Logger receives the entries. A nil Logger writes JSON lines to stderr.
	Logger *zerolog.Logger
}

func (h *LogHandler) logger() *zerolog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &l
}

// HandleError logs a PermsError at error level.
func (h *LogHandler) HandleError(err *PermsError) {
	if err == nil {
		return
	}
	ev := h.logger().Error().
		Str("op", err.Op).
		Str("kind", err.Kind.String()).
		Err(err.Err)
	if err.Channel != "" {
		ev = ev.Str("channel", err.Channel)
	}
	if err.RequestCode != 0 {
		ev = ev.Int("request_code", err.RequestCode)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("perms error")
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.logger().Error().Interface("value", err.Value)
	if err.Op != "" {
		ev = ev.Str("op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("perms panic")
}
