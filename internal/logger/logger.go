package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Init initializes the default logger with a console writer on os.Stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		setOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
}

// InitJSON switches the default logger to JSON lines on w. Used by the API server.
func InitJSON(w io.Writer) {
	Init()
	setOutput(w)
}

// SetOutput replaces the destination of the default logger. Tests use io.Discard.
func SetOutput(w io.Writer) {
	Init()
	setOutput(w)
}

func setOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the global minimum level from a name such as "debug" or "warn".
// Unknown names leave the level unchanged.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// Info logs an informational message with key/value pairs.
func Info(msg string, args ...any) {
	Get().Info().Fields(args).Msg(msg)
}

// Warn logs a warning message with key/value pairs.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(args).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(args).Msg(msg)
}

// Debug logs a debug message with key/value pairs.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(args).Msg(msg)
}
