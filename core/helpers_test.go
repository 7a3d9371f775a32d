package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("boom")

// TestNode is a configurable lifecycle for tests. Unset hooks fall back to BaseNode.
type TestNode struct {
	BaseNode[Shared, any, any]
	prep     func(ctx context.Context, s Shared) (any, error)
	exec     func(ctx context.Context, p any) (any, error)
	post     func(ctx context.Context, s Shared, p, e any) (Action, error)
	fallback func(ctx context.Context, p any, err error) (any, error)
}

func (t *TestNode) Prep(ctx context.Context, s Shared) (any, error) {
	if t.prep == nil {
		return t.BaseNode.Prep(ctx, s)
	}
	return t.prep(ctx, s)
}

func (t *TestNode) Exec(ctx context.Context, p any) (any, error) {
	if t.exec == nil {
		return t.BaseNode.Exec(ctx, p)
	}
	return t.exec(ctx, p)
}

func (t *TestNode) Post(ctx context.Context, s Shared, p, e any) (Action, error) {
	if t.post == nil {
		return t.BaseNode.Post(ctx, s, p, e)
	}
	return t.post(ctx, s, p, e)
}

func (t *TestNode) ExecFallback(ctx context.Context, p any, err error) (any, error) {
	if t.fallback == nil {
		return t.BaseNode.ExecFallback(ctx, p, err)
	}
	return t.fallback(ctx, p, err)
}

func newTestNode(t *TestNode, opts ...Option) *Node[Shared, any, any] {
	return NewNode[Shared, any, any](t, opts...)
}

// visitNode appends name to shared["visited"] and returns action.
func visitNode(name string, action Action, opts ...Option) *Node[Shared, any, any] {
	opts = append([]Option{WithName(name)}, opts...)
	return newTestNode(&TestNode{
		post: func(_ context.Context, s Shared, _, _ any) (Action, error) {
			Append(s, "visited", name)
			return action, nil
		},
	}, opts...)
}

// TestFlowHooks is a configurable flow lifecycle.
type TestFlowHooks struct {
	BaseFlow[Shared]
	prep func(ctx context.Context, s Shared) (any, error)
	post func(ctx context.Context, s Shared, p any) (Action, error)
}

func (h *TestFlowHooks) Prep(ctx context.Context, s Shared) (any, error) {
	if h.prep == nil {
		return h.BaseFlow.Prep(ctx, s)
	}
	return h.prep(ctx, s)
}

func (h *TestFlowHooks) Post(ctx context.Context, s Shared, p any) (Action, error) {
	if h.post == nil {
		return h.BaseFlow.Post(ctx, s, p)
	}
	return h.post(ctx, s, p)
}

// TestBatchFlowHooks is a configurable batch flow lifecycle.
type TestBatchFlowHooks struct {
	BaseBatchFlow[Shared]
	prep func(ctx context.Context, s Shared) ([]Params, error)
	post func(ctx context.Context, s Shared, batch []Params) (Action, error)
}

func (h *TestBatchFlowHooks) Prep(ctx context.Context, s Shared) ([]Params, error) {
	if h.prep == nil {
		return h.BaseBatchFlow.Prep(ctx, s)
	}
	return h.prep(ctx, s)
}

func (h *TestBatchFlowHooks) Post(ctx context.Context, s Shared, batch []Params) (Action, error) {
	if h.post == nil {
		return h.BaseBatchFlow.Post(ctx, s, batch)
	}
	return h.post(ctx, s, batch)
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	c, logs := observer.New(zapcore.DebugLevel)
	return zap.New(c), logs
}
