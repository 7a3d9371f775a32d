package core

import (
	"context"
)

// BatchFlow re-runs its whole graph once per parameter set returned by Prep,
// one traversal after another, all against the same shared state.
type BatchFlow[State any] struct {
	Flow[State]
	batch BatchFlowLifecycle[State]
}

// NewBatchFlow creates a sequential batch flow over the graph starting at startNode.
func NewBatchFlow[State any](startNode Workflow[State], lifecycle BatchFlowLifecycle[State], opts ...Option) *BatchFlow[State] {
	if lifecycle == nil {
		lifecycle = BaseBatchFlow[State]{}
	}
	f := &BatchFlow[State]{
		Flow:  *NewFlow(startNode, opts...),
		batch: lifecycle,
	}
	if f.name == "flow" {
		f.name = "batch-flow"
	}
	return f
}

// SetLifecycle replaces the batch hooks. A nil lifecycle restores the defaults.
// It shadows Flow.SetLifecycle: batch flows take their hooks only from a
// BatchFlowLifecycle.
func (f *BatchFlow[State]) SetLifecycle(lifecycle BatchFlowLifecycle[State]) *BatchFlow[State] {
	if lifecycle == nil {
		lifecycle = BaseBatchFlow[State]{}
	}
	f.batch = lifecycle
	return f
}

// Run executes every traversal on the flow's own params.
func (f *BatchFlow[State]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, f, state)
}

func (f *BatchFlow[State]) execute(ctx context.Context, state State, params Params) (Action, error) {
	effective := f.params.Merge(params)
	hookCtx := withParams(ctx, effective)

	batch, err := f.batch.Prep(hookCtx, state)
	if err != nil {
		return "", err
	}
	for _, set := range batch {
		if err := f.orchestrate(ctx, state, effective.Merge(set)); err != nil {
			return "", err
		}
	}

	action, err := f.batch.Post(hookCtx, state, batch)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}

// ParallelBatchFlow runs one traversal per parameter set concurrently against
// the same shared state. Each traversal gets its own params binding; writes to
// the shared state are not synchronised by the engine. Failures follow the
// same rules as ParallelBatchNode.
type ParallelBatchFlow[State any] struct {
	Flow[State]
	batch BatchFlowLifecycle[State]
}

// NewParallelBatchFlow creates a parallel batch flow over the graph starting at startNode.
func NewParallelBatchFlow[State any](startNode Workflow[State], lifecycle BatchFlowLifecycle[State], opts ...Option) *ParallelBatchFlow[State] {
	if lifecycle == nil {
		lifecycle = BaseBatchFlow[State]{}
	}
	f := &ParallelBatchFlow[State]{
		Flow:  *NewFlow(startNode, opts...),
		batch: lifecycle,
	}
	if f.name == "flow" {
		f.name = "parallel-batch-flow"
	}
	return f
}

// SetLifecycle replaces the batch hooks. A nil lifecycle restores the defaults.
func (f *ParallelBatchFlow[State]) SetLifecycle(lifecycle BatchFlowLifecycle[State]) *ParallelBatchFlow[State] {
	if lifecycle == nil {
		lifecycle = BaseBatchFlow[State]{}
	}
	f.batch = lifecycle
	return f
}

// Run executes every traversal on the flow's own params.
func (f *ParallelBatchFlow[State]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, f, state)
}

func (f *ParallelBatchFlow[State]) execute(ctx context.Context, state State, params Params) (Action, error) {
	effective := f.params.Merge(params)
	hookCtx := withParams(ctx, effective)

	batch, err := f.batch.Prep(hookCtx, state)
	if err != nil {
		return "", err
	}
	err = fanOut(len(batch), f.concurrency, func(i int) error {
		return f.orchestrate(ctx, state, effective.Merge(batch[i]))
	})
	if err != nil {
		return "", err
	}

	action, err := f.batch.Post(hookCtx, state, batch)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}
