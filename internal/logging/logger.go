package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

type ctxKey struct{}

// NewLogger builds a production logger writing to stderr at level.
func NewLogger(level string) (*Logger, error) {
	config := zap.NewProductionConfig()

	// Parse log level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = zapLevel > zapcore.DebugLevel

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

func Nop() *Logger {
	return &Logger{zap.NewNop()}
}

// WithFields returns ctx carrying fields for every logger derived through For.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]zap.Field)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// For returns the logger annotated with the fields stored in ctx.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	if fields, ok := ctx.Value(ctxKey{}).([]zap.Field); ok && len(fields) > 0 {
		return l.With(fields...)
	}
	return l.Logger
}
