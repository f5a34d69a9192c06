package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger stays usable before Init so packages and tests can log freely.
var logger = zap.NewNop()

// Init initializes the global logger
func Init(isDevelopment bool) error {
	var config zap.Config

	if isDevelopment {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	built, err := config.Build()
	if err != nil {
		return err
	}

	logger = built
	return nil
}

// Set replaces the global logger, e.g. with zaptest or an observer core.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L returns the global logger.
func L() *zap.Logger {
	return logger
}

// Sync flushes any buffered log entries
func Sync() error {
	return logger.Sync()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// MatchID is the field every match-scoped log line carries.
func MatchID(id string) zap.Field {
	return zap.String("match_id", id)
}
