package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

type Logger struct {
	*zerolog.Logger
}

// New creates a new logger instance with service context
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter is New with an explicit destination, used by tests to capture output.
func NewWithWriter(service string, w io.Writer) *Logger {
	hostname, _ := os.Hostname()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "@timestamp" // ELK compatible

	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("version", getEnv("SERVICE_VERSION", "unknown")).
		Logger()

	return &Logger{&logger}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{&logger}
}

// WithContext returns a logger from context or creates a new one
func WithContext(ctx context.Context, service string) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return New(service)
}

// ToContext adds logger to context
func (l *Logger) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// WithRunID adds the correlation ID of a single scheduler run
func (l *Logger) WithRunID(runID string) *Logger {
	logger := l.Logger.With().Str("run_id", runID).Logger()
	return &Logger{&logger}
}

// WithScheduler adds scheduler context
func (l *Logger) WithScheduler(key string) *Logger {
	logger := l.Logger.With().
		Str("scheduler", key).
		Str("job_type", "recurring").
		Logger()
	return &Logger{&logger}
}

// LogRunStart logs the start of a dispatched run
func (l *Logger) LogRunStart(jobName, trigger string) {
	l.Info().
		Str("action", "run_start").
		Str("job_name", jobName).
		Str("trigger", trigger).
		Msg("Starting sync run")
}

// LogRunComplete logs a finished run with its outcome
func (l *Logger) LogRunComplete(jobName string, duration time.Duration, success bool, message string) {
	event := l.Info()
	if !success {
		event = l.Error()
	}

	event.
		Str("action", "run_complete").
		Str("job_name", jobName).
		Dur("duration", duration).
		Bool("success", success).
		Str("result_message", message).
		Msg("Sync run completed")
}

// LogAPICall logs external API calls
func (l *Logger) LogAPICall(method, url string, statusCode int, duration time.Duration, err error) {
	event := l.Info()
	if err != nil {
		event = l.Error().Err(err)
	}

	event.
		Str("action", "api_call").
		Str("method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("External API call")
}

// LogDatabaseOperation logs settings store operations
func (l *Logger) LogDatabaseOperation(operation string, table string, affectedRows int, duration time.Duration, err error) {
	event := l.Debug()
	if err != nil {
		event = l.Error().Err(err)
	}

	event.
		Str("action", "db_operation").
		Str("operation", operation).
		Str("table", table).
		Int("affected_rows", affectedRows).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("Database operation")
}

// CronLogger adapts the logger to the cron.Logger interface
func (l *Logger) CronLogger() CronAdapter {
	return CronAdapter{l: l}
}

// CronAdapter satisfies cron.Logger. Info messages from cron are noisy and go to debug.
type CronAdapter struct {
	l *Logger
}

func (c CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Str("action", "cron").Fields(keysAndValues).Msg(msg)
}

func (c CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Str("action", "cron").Fields(keysAndValues).Msg(msg)
}

// SetupLogger configures global log level based on environment
func SetupLogger() {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Pretty logging for development
	if getEnv("ENVIRONMENT", "development") == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
		logger := zerolog.New(output).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &logger
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
