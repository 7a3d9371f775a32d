package core

import (
	"context"
	"fmt"
)

// Node represents a single node in the workflow graph and implements Workflow
type Node[State any, PrepResult any, ExecResult any] struct {
	vertex[State]
	lifecycle Lifecycle[State, PrepResult, ExecResult]
}

// NewNode wraps a lifecycle into a node. By default Exec runs once with no wait.
func NewNode[State any, PrepResult any, ExecResult any](lifecycle Lifecycle[State, PrepResult, ExecResult], opts ...Option) *Node[State, PrepResult, ExecResult] {
	n := &Node[State, PrepResult, ExecResult]{
		vertex:    newVertex[State](opts),
		lifecycle: lifecycle,
	}
	if n.name == "" {
		n.name = fmt.Sprintf("%T", lifecycle)
	}
	return n
}

// Run implements the Workflow interface and executes the three-phase execution model
func (n *Node[State, PrepResult, ExecResult]) Run(ctx context.Context, state State) (Action, error) {
	return runDirect[State](ctx, n, state)
}

func (n *Node[State, PrepResult, ExecResult]) execute(ctx context.Context, state State, params Params) (Action, error) {
	ctx = withAttemptCounter(withParams(ctx, params))

	prepRes, err := n.lifecycle.Prep(ctx, state)
	if err != nil {
		return "", err
	}

	execRes, err := executeWithRetry(ctx, &n.settings, prepRes, n.lifecycle.Exec, n.lifecycle.ExecFallback)
	if err != nil {
		return "", err
	}

	action, err := n.lifecycle.Post(ctx, state, prepRes, execRes)
	if err != nil {
		return "", err
	}
	return action.orDefault(), nil
}

// MaxRetries returns how many times Exec is attempted.
func (n *Node[State, PrepResult, ExecResult]) MaxRetries() int {
	return n.maxRetries
}
