// Package logging sets up the process-wide zap logger.
//
// spinup is an interactive CLI, so logs go to stderr and stay quiet at
// Info unless SPINUP_LOG_LEVEL (or LOG_LEVEL) asks for debug.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.Logger

// Init initializes the default logger and installs it as zap's global.
func Init() error {
	config := zap.NewProductionConfig()

	level := os.Getenv("SPINUP_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "debug" {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// stdout belongs to command output (status tables, ssh sessions).
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return err
	}
	defaultLogger = logger
	zap.ReplaceGlobals(defaultLogger)
	return nil
}

// Logger returns the default logger, falling back to a fresh one if
// Init was never called.
func Logger() *zap.Logger {
	if defaultLogger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		defaultLogger = logger
	}
	return defaultLogger
}

// Sync flushes any buffered log entries. Safe to call on exit.
func Sync() {
	if defaultLogger != nil {
		// Sync errors on stderr are expected and unactionable.
		_ = defaultLogger.Sync()
	}
}
