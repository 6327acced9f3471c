// Package log provides structured logging utilities for the embermine client.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var handler slog.Handler

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// Create handler based on format
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	// Logs go to stderr so command output on stdout stays clean
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	// Create base logger with service context
	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithRound returns a logger with round-specific fields
func (l *Logger) WithRound(round uint64) *Logger {
	return l.WithFields("round", round)
}

// WithWallet returns a logger with the mining authority address
func (l *Logger) WithWallet(address string) *Logger {
	return l.WithFields("wallet", address)
}

// WithSignature returns a logger with a transaction signature field
func (l *Logger) WithSignature(signature string) *Logger {
	return l.WithFields("signature", signature)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Performance logging helpers

// LogDuration logs the duration of an operation
func (l *Logger) LogDuration(operation string, duration time.Duration) {
	l.Info("operation completed",
		"operation", operation,
		"duration_ms", float64(duration.Nanoseconds())/1e6,
	)
}

// LogHashRate logs the aggregate search speed across workers
func (l *Logger) LogHashRate(hashesPerSec float64, totalHashes uint64, workers int) {
	l.Info("hash rate",
		"hashes_per_sec", hashesPerSec,
		"total_hashes", totalHashes,
		"workers", workers,
	)
}

// Mining-specific logging helpers

// LogSolutionFound logs a winning nonce for the current round
func (l *Logger) LogSolutionFound(round, nonce uint64, digest string, attempts uint64, duration time.Duration) {
	l.Info("solution found",
		"round", round,
		"nonce", nonce,
		"digest", digest,
		"attempts", attempts,
		"duration_ms", float64(duration.Nanoseconds())/1e6,
	)
}

// LogSubmission logs a transaction submission attempt
func (l *Logger) LogSubmission(signature string, round uint64, attempt int, priorityFee uint64) {
	l.Info("transaction submitted",
		"signature", signature,
		"round", round,
		"attempt", attempt,
		"priority_fee", priorityFee,
	)
}

// LogSubmissionOutcome logs the terminal state of a submission
func (l *Logger) LogSubmissionOutcome(signature, outcome string, round uint64, reward uint64) {
	l.Info("submission outcome",
		"signature", signature,
		"outcome", outcome,
		"round", round,
		"reward", reward,
	)
}

// LogRoundTransition logs the board advancing to a new round
func (l *Logger) LogRoundTransition(oldRound, newRound uint64, difficulty string) {
	l.Info("round transition",
		"old_round", oldRound,
		"new_round", newRound,
		"difficulty", difficulty,
	)
}

// LogClaim logs a reward claim
func (l *Logger) LogClaim(amount uint64, beneficiary, signature string) {
	l.Info("rewards claimed",
		"amount", amount,
		"beneficiary", beneficiary,
		"signature", signature,
	)
}
