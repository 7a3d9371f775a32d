package core

import (
	"context"
	"sync/atomic"
)

type ctxKey int

const (
	paramsKey ctxKey = iota
	attemptKey
)

// withParams binds the params of the current traversal step to ctx.
func withParams(ctx context.Context, p Params) context.Context {
	return context.WithValue(ctx, paramsKey, p)
}

// ParamsFrom returns the params bound to the running workflow. Hooks read their
// per-run parameters here instead of from node fields, so one node value can be
// driven by several concurrent traversals.
func ParamsFrom(ctx context.Context) Params {
	p, _ := ctx.Value(paramsKey).(Params)
	return p
}

// Param looks up a single typed parameter.
func Param[T any](ctx context.Context, key string) (T, bool) {
	v, ok := ParamsFrom(ctx)[key].(T)
	return v, ok
}

type attemptCounter struct {
	n atomic.Int64
}

func withAttemptCounter(ctx context.Context) context.Context {
	return context.WithValue(ctx, attemptKey, &attemptCounter{})
}

func attemptFrom(ctx context.Context) *attemptCounter {
	c, _ := ctx.Value(attemptKey).(*attemptCounter)
	return c
}

// Attempt returns the zero-based Exec attempt of the current invocation.
// Post and ExecFallback observe the attempt that ran last.
func Attempt(ctx context.Context) int {
	if c := attemptFrom(ctx); c != nil {
		return int(c.n.Load())
	}
	return 0
}
