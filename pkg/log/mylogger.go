package log

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Log level constants
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// currentLevel holds the configured log level
var currentLevel = LevelInfo

type MyLoggerOptions struct {
	// if we output to  stdout
	Stdout bool
	// Path of the file , if present log to it
	Path string
	// What level to log
	Level string
	// Emit JSON records instead of text
	JSON bool
}

// ConfigureMyLogger points the standard logger at the configured writer and
// returns a structured logger sharing the same destination and level.
func ConfigureMyLogger(options *MyLoggerOptions) *slog.Logger {
	var writer io.Writer

	if options.Path != "" {
		logfile, err := os.OpenFile(options.Path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o666)
		if err != nil {
			panic(err)
		}
		if options.Stdout {
			writer = io.MultiWriter(logfile, os.Stdout)
		} else {
			writer = logfile
		}
	} else if options.Stdout {
		writer = os.Stdout
	} else {
		writer = os.Stderr
	}

	log.SetOutput(writer)

	currentLevel = parseLevel(options.Level)

	return NewLogger(writer, options.Level, options.JSON)
}

// NewLogger builds a slog logger writing to w at the given textual level.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: SlogLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SlogLevel maps TRACE..ERROR onto slog levels; TRACE has no slog
// equivalent and is folded into DEBUG.
func SlogLevel(level string) slog.Level {
	switch parseLevel(level) {
	case LevelTrace, LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLevel(level string) int {
	switch strings.ToUpper(level) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Trace logs a message at TRACE level
func Trace(format string, v ...interface{}) {
	if currentLevel <= LevelTrace {
		log.Printf("[TRACE] "+format, v...)
	}
}

// Debug logs a message at DEBUG level
func Debug(format string, v ...interface{}) {
	if currentLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Warn logs a message at WARN level
func Warn(format string, v ...interface{}) {
	if currentLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}
