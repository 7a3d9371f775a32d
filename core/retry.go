package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// executeWithRetry handles the retry logic and execution of a single item.
// ctx must carry an attempt counter; the counter holds the zero-based attempt
// while exec runs and keeps the last value for fallback and Post.
func executeWithRetry[In any, Out any](
	ctx context.Context,
	s *settings,
	input In,
	exec func(context.Context, In) (Out, error),
	fallback func(context.Context, In, error) (Out, error),
) (Out, error) {
	counter := attemptFrom(ctx)
	var zero Out

	for i := 0; i < s.maxRetries; i++ {
		if counter != nil {
			counter.n.Store(int64(i))
		}
		out, err := exec(ctx, input)
		if err == nil {
			return out, nil
		}
		if i == s.maxRetries-1 {
			s.log().Debug("exec failed, running fallback",
				zap.String("node", s.name),
				zap.Int("attempts", s.maxRetries),
				zap.Error(err))
			return fallback(ctx, input, err)
		}

		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", i),
			attribute.String("error", err.Error()),
		))
		if s.wait > 0 {
			if werr := sleep(ctx, s.wait); werr != nil {
				return zero, werr
			}
		}
	}
	return zero, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
