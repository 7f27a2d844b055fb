package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxQueryLength caps how much SQL text ends up in a single log line.
const maxQueryLength = 256

// Logger defines the interface for structured logging operations.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
	// Zap exposes the underlying logger for middleware that needs it.
	Zap() *zap.Logger
}

// Options select the encoder and level of a logger.
type Options struct {
	// Environment is "development" or "production".
	Environment string
	// Level is any level understood by zapcore.ParseLevel.
	Level string
	// Encoding is "json" or "console". Empty picks the environment default.
	Encoding string
}

type zapLogger struct {
	logger *zap.Logger
}

// New builds a logger from opts. Unknown levels fall back to info.
func New(opts Options) (Logger, error) {
	var config zap.Config

	if opts.Environment == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}

	if opts.Encoding != "" {
		config.Encoding = opts.Encoding
		if opts.Encoding == "json" {
			config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		}
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &zapLogger{logger: logger}, nil
}

// NewDevelopmentLogger creates a console logger at debug level.
func NewDevelopmentLogger() (Logger, error) {
	return New(Options{Environment: "development", Level: "debug"})
}

// NewFromEnv reads ENVIRONMENT, LOG_LEVEL and LOG_ENCODING.
func NewFromEnv() (Logger, error) {
	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "production"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return New(Options{
		Environment: environment,
		Level:       level,
		Encoding:    os.Getenv("LOG_ENCODING"),
	})
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.logger.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.logger.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.logger.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.logger.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.logger.Fatal(msg, fields...) }

// With returns a child logger with fields attached to every entry.
func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

// Sync flushes buffered entries. Should be called before exit.
func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

func (l *zapLogger) Zap() *zap.Logger {
	return l.logger.WithOptions(zap.AddCallerSkip(-1))
}

// Op tags an entry with the statement verb.
func Op(op string) zap.Field {
	return zap.String("op", op)
}

// Query tags an entry with the SQL text, truncated to keep lines bounded.
func Query(query string) zap.Field {
	if len(query) > maxQueryLength {
		query = query[:maxQueryLength] + "..."
	}
	return zap.String("query", query)
}

// RequestID tags an entry with the HTTP request ID.
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// NoOpLogger discards everything. Useful for testing.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...zap.Field) {}
func (l *NoOpLogger) Info(msg string, fields ...zap.Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...zap.Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...zap.Field) {}
func (l *NoOpLogger) Fatal(msg string, fields ...zap.Field) {}
func (l *NoOpLogger) With(fields ...zap.Field) Logger       { return l }
func (l *NoOpLogger) Sync() error                           { return nil }
func (l *NoOpLogger) Zap() *zap.Logger                      { return zap.NewNop() }

// NewNoOpLogger creates a no-op logger for testing.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}
