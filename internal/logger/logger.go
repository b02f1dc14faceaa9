package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey struct{}

var key = &contextKey{}

// Init builds the global logger from config
func Init(config zap.Config, opts ...zap.Option) error {
	log, err := config.Build(append(opts, zap.AddCallerSkip(2))...)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	return nil
}

// Logger returns the logger stored in ctx, or the global one
func Logger(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(key).(*zap.Logger); ok {
		return log
	}
	return zap.L()
}

// IntoContext stores log in ctx
func IntoContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, key, log)
}

func Sync() error {
	return zap.L().Sync()
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.DebugLevel, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.InfoLevel, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.WarnLevel, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.ErrorLevel, msg, fields...)
}

func With(ctx context.Context, fields ...zap.Field) context.Context {
	return IntoContext(ctx, Logger(ctx).With(fields...))
}

// write is called through the exported helpers only; the logger skips two
// frames to report their caller.
func write(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	Logger(ctx).Check(level, msg).Write(fields...)
}
