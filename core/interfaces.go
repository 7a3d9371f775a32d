package core

import "context"

// Lifecycle defines the hooks of a single node.
// This follows the three-phase execution model: Prep -> Exec -> Post
type Lifecycle[State any, PrepResult any, ExecResult any] interface {
	// Prep reads from the shared state and produces the input for Exec.
	Prep(ctx context.Context, state State) (PrepResult, error)

	// Exec performs the core logic. It may be retried and must not touch the shared state.
	Exec(ctx context.Context, prepResult PrepResult) (ExecResult, error)

	// Post writes results into the shared state and returns the action used for routing.
	Post(ctx context.Context, state State, prepResult PrepResult, execResult ExecResult) (Action, error)

	// ExecFallback is called once after every Exec attempt failed.
	ExecFallback(ctx context.Context, prepResult PrepResult, err error) (ExecResult, error)
}

// BatchLifecycle defines the hooks of a node that runs Exec once per item.
type BatchLifecycle[State any, Item any, Result any] interface {
	// Prep produces the items to process.
	Prep(ctx context.Context, state State) ([]Item, error)

	// Exec processes a single item.
	Exec(ctx context.Context, item Item) (Result, error)

	// Post receives every item and its result, in input order.
	Post(ctx context.Context, state State, items []Item, results []Result) (Action, error)

	// ExecFallback is called for an item once all its attempts failed.
	ExecFallback(ctx context.Context, item Item, err error) (Result, error)
}

// FlowLifecycle defines the optional flow-level hooks run around orchestration.
type FlowLifecycle[State any] interface {
	Prep(ctx context.Context, state State) (any, error)
	Post(ctx context.Context, state State, prepResult any) (Action, error)
}

// BatchFlowLifecycle defines the hooks of a flow that re-runs its graph once per
// parameter set.
type BatchFlowLifecycle[State any] interface {
	Prep(ctx context.Context, state State) ([]Params, error)
	Post(ctx context.Context, state State, batch []Params) (Action, error)
}

// Workflow represents a unit of execution that can be connected to other workflows.
// Nodes, batch nodes and all flow kinds implement it, so flows nest like nodes.
type Workflow[State any] interface {
	// Run executes the workflow on its own params and returns its action.
	// Successors are not followed; use a Flow for that.
	Run(ctx context.Context, state State) (Action, error)

	// GetSuccessor returns the successor workflow for a given action.
	GetSuccessor(action Action) Workflow[State]

	// AddSuccessor connects a successor workflow for a specific action
	// (ActionDefault when omitted) and returns the successor.
	AddSuccessor(successor Workflow[State], action ...Action) Workflow[State]

	// Successors returns a copy of the transition table.
	Successors() map[Action]Workflow[State]

	// SetParams replaces the workflow's own params.
	SetParams(params Params)

	// Params returns the workflow's own params.
	Params() Params

	vertexOf() *vertex[State]
	execute(ctx context.Context, state State, params Params) (Action, error)
}
