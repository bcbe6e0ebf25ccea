// Package logging provides structured logging for both CLI and TUI modes.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/constants"
)

// Logging modes.
const (
	ModeCLI = "cli"
	ModeTUI = "tui"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog   zerolog.Logger
	mode   string    // "cli" or "tui"
	output io.Writer // current output writer
	file   *os.File  // log file owned by the logger in TUI mode
}

// NewLogger creates a new logger for the specified mode.
//
// CLI mode writes human-readable lines to stdout (stderr is reserved for
// progress bars). TUI mode writes to a log file, since the terminal belongs
// to the interface; if the file cannot be opened the output is discarded.
func NewLogger(mode string) *Logger {
	l := &Logger{mode: mode}

	if mode == ModeTUI {
		f, err := OpenLogFile()
		if err != nil {
			l.SetOutput(io.Discard)
			return l
		}
		l.file = f
		l.SetOutput(f)
		return l
	}

	l.SetOutput(os.Stdout)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	l := &Logger{mode: ModeCLI}
	l.SetOutput(io.Discard)
	return l
}

// OpenLogFile opens the application log file for appending, creating the
// log directory as needed.
func OpenLogFile() (*os.File, error) {
	if err := config.EnsureLogDirectory(); err != nil {
		return nil, err
	}
	path := filepath.Join(config.LogDirectory(), constants.AppLogFile)
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Mode reports whether the logger is in "cli" or "tui" mode.
func (l *Logger) Mode() string {
	return l.mode
}

// SetOutput changes the output writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	if l.mode == ModeTUI {
		// Files get plain JSON lines so they stay grep-able
		l.zlog = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
