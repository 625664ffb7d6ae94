package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Logger wraps zerolog with the application's configuration.
type Logger struct {
	zl zerolog.Logger
}

type ctxKey struct{}

var loggerCtxKey = ctxKey{}

var (
	// DefaultLogger is the global logger instance
	DefaultLogger *Logger
)

// Config holds logger configuration
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Format sets the output format (json, console)
	Format string
	// Output sets the output destination (defaults to stdout)
	Output io.Writer
}

// Init initializes the default logger with the given configuration
func Init(cfg Config) {
	DefaultLogger = build(cfg)
	zerolog.TimeFieldFormat = time.RFC3339
}

func build(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var zl zerolog.Logger
	if cfg.Format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(cfg.Output).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return &Logger{zl: zl.Level(level)}
}

func ensure() *Logger {
	if DefaultLogger == nil {
		Init(Config{Level: "info", Format: "json"})
	}
	return DefaultLogger
}

// Debug logs a debug message
func (l *Logger) Debug() *zerolog.Event {
	return l.zl.Debug()
}

// Info logs an info message
func (l *Logger) Info() *zerolog.Event {
	return l.zl.Info()
}

// Warn logs a warning message
func (l *Logger) Warn() *zerolog.Event {
	return l.zl.Warn()
}

// Error logs an error message
func (l *Logger) Error() *zerolog.Event {
	return l.zl.Error()
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal() *zerolog.Event {
	return l.zl.Fatal()
}

// With returns a sub-logger with additional fields
func (l *Logger) With() zerolog.Context {
	return l.zl.With()
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithRequestID returns a child logger that stamps every entry with id.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{zl: l.zl.With().Str("request_id", id).Logger()}
}

func Debug() *zerolog.Event { return ensure().Debug() }

func Info() *zerolog.Event { return ensure().Info() }

func Warn() *zerolog.Event { return ensure().Warn() }

func Error() *zerolog.Event { return ensure().Error() }

func Fatal() *zerolog.Event { return ensure().Fatal() }

// ContextWithLogger returns a new context with the logger attached
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*Logger); ok {
		return logger
	}
	return ensure()
}

// Audit logs a security-sensitive operation at info level with a distinct "audit" tag.
func Audit(action string, userID string, fields map[string]string) {
	event := ensure().Info().
		Str("log_type", "audit").
		Str("action", action).
		Str("user_id", userID)
	for k, v := range fields {
		event = event.Str(k, v)
	}
	event.Msg("audit event")
}

// Middleware returns a Fiber middleware that logs requests
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		l := ensure()
		event := l.Info()
		if err != nil {
			event = l.Error().Err(err)
		}

		requestID, _ := c.Locals("request_id").(string)
		userID, _ := c.Locals("user_id").(string)

		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int("bytes_sent", len(c.Response().Body())).
			Str("ip", c.IP()).
			Dur("latency", time.Since(start)).
			Str("request_id", requestID).
			Str("user_id", userID).
			Msg("HTTP request")

		return err
	}
}
