package promo

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the zap level and encoding
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultLoggingConfig returns info-level JSON logging
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{Level: "info", Format: "json"}
}

// ZapLogger implements Logger on top of a zap SugaredLogger
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a zap-backed Logger from cfg.
//
// Level must be one of "debug", "info", "warn", "error" and Format either "json" or "console".
func NewZapLogger(cfg *LoggingConfig) (*ZapLogger, error) {
	if cfg == nil {
		cfg = DefaultLoggingConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// NewZapLoggerFrom wraps an existing zap logger
func NewZapLoggerFrom(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// Info logs an info message
func (l *ZapLogger) Info(msg string, args ...any) { l.sugar.Infof(msg, args...) }

// Error logs an error message
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorf(msg, args...) }

// Debug logs a debug message
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugf(msg, args...) }

// Sync flushes buffered log entries
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

// Info does nothing (silent)
func (l *SilentLogger) Info(msg string, args ...any) {}

// Error does nothing (silent)
func (l *SilentLogger) Error(msg string, args ...any) {}

// Debug does nothing (silent)
func (l *SilentLogger) Debug(msg string, args ...any) {}
