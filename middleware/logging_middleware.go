package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware records the dispatched event name, span, duration,
// and any handler error for every invocation.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := next(ctx, inv)
			fields := []zap.Field{
				zap.String("event", inv.Event),
				zap.Uint64("span", inv.Span),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("invocation failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("invocation completed", fields...)
			}
			return err
		}
	}
}
