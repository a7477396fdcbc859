// Package logging builds the process logger and wires it into the gateway and
// router as hooks.
package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bjaus/fixgate"
)

// New returns a JSON logger writing to stdout. Unknown levels mean info.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		lvl,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

type (
	ctxKey    struct{}
	scopedKey struct{}
)

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return fallback
}

// GatewayOptions logs every dispatch. The build hook stores a logger scoped
// to the template in the context so later hooks and transports share it.
func GatewayOptions(l *zap.Logger) []fixgate.Option {
	return []fixgate.Option{
		fixgate.WithOnBuild(func(ctx context.Context, key fixgate.TemplateKey) context.Context {
			ctx = WithLogger(ctx, FromContext(ctx, l).With(
				zap.String("version", key.Version),
				zap.String("message_type", key.MessageType),
			))
			return context.WithValue(ctx, scopedKey{}, true)
		}),
		fixgate.WithOnSuccess(func(ctx context.Context, key fixgate.TemplateKey, id fixgate.SessionID, seq int, d time.Duration) {
			FromContext(ctx, l).Info("message sent",
				zap.Stringer("session", id),
				zap.Int("seq_num", seq),
				zap.Duration("duration", d),
			)
		}),
		fixgate.WithOnFailure(func(ctx context.Context, key fixgate.TemplateKey, o fixgate.Outcome, err error, d time.Duration) {
			log := FromContext(ctx, l)
			if ctx.Value(scopedKey{}) == nil {
				log = log.With(zap.String("version", key.Version), zap.String("message_type", key.MessageType))
			}
			fields := []zap.Field{zap.Stringer("outcome", o), zap.Error(err), zap.Duration("duration", d)}
			switch o {
			case fixgate.BuildFailed:
				log.Error("dispatch failed", fields...)
			default:
				log.Warn("dispatch failed", fields...)
			}
		}),
	}
}

// RouterOption logs session state changes.
func RouterOption(l *zap.Logger) fixgate.RouterOption {
	return fixgate.WithOnStateChange(func(id fixgate.SessionID, from, to fixgate.State) {
		l.Info("session state changed",
			zap.Stringer("session", id),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	})
}
