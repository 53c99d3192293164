// Package log provides the structured logging used across every package of
// the placement and durability engine: a single global zerolog.Logger,
// initialized once at process start, with component-scoped child loggers
// handed out to each long-running subsystem.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// Default logger so packages that log before Init (unit tests, early
	// bootstrap) don't panic on a zero-value Logger.
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithDisk creates a child logger with disk field
func WithDisk(diskUUID string) zerolog.Logger {
	return Logger.With().Str("disk", diskUUID).Logger()
}

// WithSet creates a child logger with set field
func WithSet(setIndex int) zerolog.Logger {
	return Logger.With().Int("set", setIndex).Logger()
}

// WithBucket creates a child logger with bucket field
func WithBucket(bucket string) zerolog.Logger {
	return Logger.With().Str("bucket", bucket).Logger()
}

// WithJob creates a child logger with job_id field
func WithJob(jobID string) zerolog.Logger {
	return Logger.With().Str("job_id", jobID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msgf(format, err)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
