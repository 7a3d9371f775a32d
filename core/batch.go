package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BatchNode runs Exec once per item produced by Prep, strictly in order.
// The first item that fails terminally aborts the batch; later items never start.
type BatchNode[State any, Item any, Result any] struct {
	vertex[State]
	lifecycle BatchLifecycle[State, Item, Result]
}

// NewBatchNode wraps a batch lifecycle into a sequential batch node.
func NewBatchNode[State any, Item any, Result any](lifecycle BatchLifecycle[State, Item, Result], opts ...Option) *BatchNode[State, Item, Result] {
	n := &BatchNode[State, Item, Result]{
		vertex:    newVertex[State](opts),
		lifecycle: lifecycle,
	}
	if n.name == "" {
		n.name = fmt.Sprintf("%T", lifecycle)
	}
	return n
}

// Run executes the batch on the node's own params.
func (n *BatchNode[State, Item, Result]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, n, state)
}

func (n *BatchNode[State, Item, Result]) execute(ctx context.Context, state State, params Params) (Action, error) {
	ctx = withParams(ctx, params)

	items, err := n.lifecycle.Prep(ctx, state)
	if err != nil {
		return "", err
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		res, err := executeWithRetry(withAttemptCounter(ctx), &n.settings, item, n.lifecycle.Exec, n.lifecycle.ExecFallback)
		if err != nil {
			return "", err
		}
		results = append(results, res)
	}

	action, err := n.lifecycle.Post(ctx, state, items, results)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}

// ParallelBatchNode runs Exec for every item concurrently and hands the results
// to Post in input order. Concurrency is unbounded unless WithConcurrency is set.
// A terminal item failure cancels nothing: every item still runs and the first
// error is returned. Under a concurrency limit, items still waiting for a slot
// when a failure is seen are skipped.
type ParallelBatchNode[State any, Item any, Result any] struct {
	vertex[State]
	lifecycle BatchLifecycle[State, Item, Result]
}

// NewParallelBatchNode wraps a batch lifecycle into a parallel batch node.
func NewParallelBatchNode[State any, Item any, Result any](lifecycle BatchLifecycle[State, Item, Result], opts ...Option) *ParallelBatchNode[State, Item, Result] {
	n := &ParallelBatchNode[State, Item, Result]{
		vertex:    newVertex[State](opts),
		lifecycle: lifecycle,
	}
	if n.name == "" {
		n.name = fmt.Sprintf("%T", lifecycle)
	}
	return n
}

// SetConcurrency updates the maximum number of items in flight. Zero means unbounded.
func (n *ParallelBatchNode[State, Item, Result]) SetConcurrency(limit int) {
	if limit < 0 {
		limit = 0
	}
	n.concurrency = limit
}

// Run executes the batch on the node's own params.
func (n *ParallelBatchNode[State, Item, Result]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, n, state)
}

func (n *ParallelBatchNode[State, Item, Result]) execute(ctx context.Context, state State, params Params) (Action, error) {
	ctx = withParams(ctx, params)

	items, err := n.lifecycle.Prep(ctx, state)
	if err != nil {
		return "", err
	}

	results := make([]Result, len(items))
	err = fanOut(len(items), n.concurrency, func(i int) error {
		res, err := executeWithRetry(withAttemptCounter(ctx), &n.settings, items[i], n.lifecycle.Exec, n.lifecycle.ExecFallback)
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return "", err
	}

	action, err := n.lifecycle.Post(ctx, state, items, results)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}

// fanOut runs fn for indexes [0, count) on separate goroutines and waits for all
// of them, returning the first error. Nothing is cancelled on failure. With no
// limit every index runs; with a limit, indexes still queued behind the limit
// once an error is seen are skipped.
func fanOut(count, limit int, fn func(i int) error) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	var failed atomic.Bool
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if limit > 0 && failed.Load() {
				return nil
			}
			if err := fn(i); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
