package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var defaultLogger *zap.Logger

func init() {
	logger, err := newConfig(os.Getenv("LOG_DEV"), os.Getenv("LOG_LEVEL")).Build()
	if err != nil {
		logger = zap.NewNop()
	}
	defaultLogger = logger
}

// newConfig returns a development config if dev is set, a json config otherwise.
// The level defaults to info.
func newConfig(dev, level string) zap.Config {
	var cfg zap.Config
	if dev != "" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	l := zapcore.InfoLevel
	if level != "" {
		if err := l.UnmarshalText([]byte(level)); err != nil {
			l = zapcore.InfoLevel
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(l)
	return cfg
}

// Logger returns the logger attached to the context, or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// With returns a copy of ctx whose logger carries the additional key/value field
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.Any(key, value)))
}

// WithLogger attaches logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Fatal logs the message with the default logger and exits
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Fatal(msg, fields...)
}
