package core

import "errors"

// Action represents the result of a node execution that determines flow control
type Action string

// Common actions
const (
	ActionDefault  Action = "default"
	ActionContinue Action = "continue"
	ActionSuccess  Action = "success"
	ActionFailure  Action = "failure"
	ActionRetry    Action = "retry"

	// ActionStop ends the current branch without looking up a successor.
	ActionStop Action = "__stop__"
)

// orDefault maps the empty action to ActionDefault.
func (a Action) orDefault() Action {
	if a == "" {
		return ActionDefault
	}
	return a
}

var (
	// ErrFlowExec is returned when Exec is called on a flow. Flows only orchestrate.
	ErrFlowExec = errors.New("core: flow cannot exec, it only orchestrates")

	// ErrNoStart is returned when a flow has no entry workflow.
	ErrNoStart = errors.New("core: flow has no start workflow")
)

// Params holds run-scoped parameters bound to a workflow by the driving flow.
type Params map[string]any

// Clone returns a shallow copy of the parameters. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Params holding p overlaid with override. Keys in override win.
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}
