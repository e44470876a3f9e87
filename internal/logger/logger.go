package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger *Logger
	once         sync.Once

	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
)

// Logger wraps zerolog.Logger so callers do not depend on zerolog directly.
type Logger struct {
	zerolog.Logger
}

// LogFormat defines the available log formats
type LogFormat string

const (
	// FormatJSON is the JSON format
	FormatJSON LogFormat = "json"
	// FormatConsole is the human-readable console format
	FormatConsole LogFormat = "console"
)

// ParseLogFormat parses a string into a LogFormat
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(format) {
	case "console":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string
	// Format is the log format (json, console)
	Format LogFormat
	// Output is the output writer (default: os.Stdout)
	Output io.Writer
	// TimeFormat is the time format (default: time.RFC3339)
	TimeFormat string
}

// Setup initializes the global logger with the given configuration.
// Only the first call has an effect.
func Setup(cfg Config) {
	once.Do(func() {
		setupLogger(cfg)
	})
}

// Get returns the global logger instance, initializing it with defaults if needed.
func Get() *Logger {
	once.Do(func() {
		if globalLogger == nil {
			setupLogger(defaultConfig)
		}
	})
	return globalLogger
}

// ResetForTesting resets the global logger so tests can re-run Setup.
func ResetForTesting() {
	globalLogger = nil
	once = sync.Once{}
}

func setupLogger(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var logger zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		})
	default:
		logger = zerolog.New(output)
	}

	logger = logger.Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)

	globalLogger = &Logger{Logger: logger}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	if l == nil {
		return Get().WithComponent(name)
	}
	child := l.Logger.With().Str("component", name).Logger()
	return &Logger{Logger: child}
}

// HTTPMiddleware logs every HTTP request with method, path, status and duration.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rww := &responseWriterWrapper{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rww, r)

		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			ip = r.RemoteAddr
		}

		Get().Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Str("ip", ip).
			Int("status", rww.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture the status code
type responseWriterWrapper struct {
	http.ResponseWriter
	status int
}

func (r *responseWriterWrapper) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
