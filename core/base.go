package core

import "context"

// BaseNode provides default hooks for a Lifecycle. Embed it and override the
// hooks you need.
type BaseNode[State any, PrepResult any, ExecResult any] struct{}

func (BaseNode[State, PrepResult, ExecResult]) Prep(context.Context, State) (PrepResult, error) {
	var zero PrepResult
	return zero, nil
}

func (BaseNode[State, PrepResult, ExecResult]) Exec(context.Context, PrepResult) (ExecResult, error) {
	var zero ExecResult
	return zero, nil
}

func (BaseNode[State, PrepResult, ExecResult]) Post(context.Context, State, PrepResult, ExecResult) (Action, error) {
	return ActionDefault, nil
}

// ExecFallback re-raises the last Exec error. Override it to recover.
func (BaseNode[State, PrepResult, ExecResult]) ExecFallback(_ context.Context, _ PrepResult, err error) (ExecResult, error) {
	var zero ExecResult
	return zero, err
}

// BaseBatchNode provides default hooks for a BatchLifecycle.
type BaseBatchNode[State any, Item any, Result any] struct{}

func (BaseBatchNode[State, Item, Result]) Prep(context.Context, State) ([]Item, error) {
	return nil, nil
}

func (BaseBatchNode[State, Item, Result]) Exec(context.Context, Item) (Result, error) {
	var zero Result
	return zero, nil
}

func (BaseBatchNode[State, Item, Result]) Post(context.Context, State, []Item, []Result) (Action, error) {
	return ActionDefault, nil
}

// ExecFallback re-raises the last Exec error of the item.
func (BaseBatchNode[State, Item, Result]) ExecFallback(_ context.Context, _ Item, err error) (Result, error) {
	var zero Result
	return zero, err
}

// BaseFlow provides default flow-level hooks.
type BaseFlow[State any] struct{}

func (BaseFlow[State]) Prep(context.Context, State) (any, error) {
	return nil, nil
}

func (BaseFlow[State]) Post(context.Context, State, any) (Action, error) {
	return ActionDefault, nil
}

// BaseBatchFlow provides default batch flow hooks; with no Prep override the
// batch is empty.
type BaseBatchFlow[State any] struct{}

func (BaseBatchFlow[State]) Prep(context.Context, State) ([]Params, error) {
	return nil, nil
}

func (BaseBatchFlow[State]) Post(context.Context, State, []Params) (Action, error) {
	return ActionDefault, nil
}
