package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Flow represents a workflow subgraph that implements Workflow interface
type Flow[State any] struct {
	vertex[State]
	startNode Workflow[State]
	lifecycle FlowLifecycle[State]
}

// NewFlow creates a new flow starting at startNode.
func NewFlow[State any](startNode Workflow[State], opts ...Option) *Flow[State] {
	f := &Flow[State]{
		vertex:    newVertex[State](opts),
		startNode: startNode,
		lifecycle: BaseFlow[State]{},
	}
	if f.name == "" {
		f.name = "flow"
	}
	return f
}

// SetLifecycle installs flow-level Prep and Post hooks.
func (f *Flow[State]) SetLifecycle(lifecycle FlowLifecycle[State]) *Flow[State] {
	if lifecycle == nil {
		lifecycle = BaseFlow[State]{}
	}
	f.lifecycle = lifecycle
	return f
}

// Start returns the entry workflow.
func (f *Flow[State]) Start() Workflow[State] {
	return f.startNode
}

// Run executes the flow on its own params and returns the action of the flow's Post.
func (f *Flow[State]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, f, state)
}

// Exec always fails: a flow orchestrates its graph and has no unit of work of its own.
func (f *Flow[State]) Exec(context.Context, any) (any, error) {
	return nil, ErrFlowExec
}

func (f *Flow[State]) execute(ctx context.Context, state State, params Params) (Action, error) {
	effective := f.params.Merge(params)
	hookCtx := withParams(ctx, effective)

	prepRes, err := f.lifecycle.Prep(hookCtx, state)
	if err != nil {
		return "", err
	}
	if err := f.orchestrate(ctx, state, effective); err != nil {
		return "", err
	}
	action, err := f.lifecycle.Post(hookCtx, state, prepRes)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}

// orchestrate walks the graph from the start node until no successor is left.
// Every step is bound to params without mutating the step's workflow.
func (f *Flow[State]) orchestrate(ctx context.Context, state State, params Params) error {
	if f.startNode == nil {
		return ErrNoStart
	}
	runID := uuid.NewString()

	current := f.startNode
	for step := 0; current != nil; step++ {
		action, err := f.runStep(ctx, runID, step, current, state, params)
		if err != nil {
			return err
		}
		current = resolve(f.log(), current, action)
	}
	return nil
}

func (f *Flow[State]) runStep(ctx context.Context, runID string, step int, current Workflow[State], state State, params Params) (Action, error) {
	name := current.vertexOf().name
	ctx, span := f.trace().Start(ctx, "brainyflow.step", trace.WithAttributes(
		attribute.String("brainyflow.flow", f.name),
		attribute.String("brainyflow.run_id", runID),
		attribute.Int("brainyflow.step", step),
		attribute.String("brainyflow.node", name),
	))
	defer span.End()

	action, err := current.execute(ctx, state, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("step %d (%s) failed", step, name))
		return "", err
	}
	span.SetAttributes(attribute.String("brainyflow.action", string(action)))
	return action, nil
}
