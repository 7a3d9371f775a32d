package core

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// vertex carries what every workflow has in common: settings, own params and
// the transition table.
type vertex[State any] struct {
	settings
	successors map[Action]Workflow[State]
}

func newVertex[State any](opts []Option) vertex[State] {
	return vertex[State]{
		settings:   newSettings(opts),
		successors: make(map[Action]Workflow[State]),
	}
}

func (v *vertex[State]) vertexOf() *vertex[State] {
	return v
}

// link registers target under action, warning when an earlier target is replaced.
func (v *vertex[State]) link(action Action, target Workflow[State]) Workflow[State] {
	action = action.orDefault()
	if target == nil {
		v.log().Warn("ignoring nil successor",
			zap.String("node", v.name),
			zap.String("action", string(action)))
		return nil
	}
	if v.successors == nil {
		v.successors = make(map[Action]Workflow[State])
	}
	if _, exists := v.successors[action]; exists {
		v.log().Warn("overwriting successor",
			zap.String("node", v.name),
			zap.String("action", string(action)))
	}
	v.successors[action] = target
	return target
}

// AddSuccessor adds a successor for action, or for ActionDefault when action is omitted.
func (v *vertex[State]) AddSuccessor(successor Workflow[State], action ...Action) Workflow[State] {
	if len(action) == 0 {
		return v.link(ActionDefault, successor)
	}
	return v.link(action[0], successor)
}

// GetSuccessor gets the next workflow for action.
func (v *vertex[State]) GetSuccessor(action Action) Workflow[State] {
	return v.successors[action.orDefault()]
}

// Successors returns a copy of the transition table.
func (v *vertex[State]) Successors() map[Action]Workflow[State] {
	out := make(map[Action]Workflow[State], len(v.successors))
	for k, w := range v.successors {
		out[k] = w
	}
	return out
}

// Next connects target as the unconditional successor and returns it, so
// chains read a.Next(b).Next(c).
func (v *vertex[State]) Next(target Workflow[State]) Workflow[State] {
	return v.link(ActionDefault, target)
}

// On starts a conditional connection: a.On("approve").To(b).
func (v *vertex[State]) On(action Action) Transition[State] {
	return Transition[State]{from: v, action: action}
}

// SetParams replaces the workflow's own params.
func (v *vertex[State]) SetParams(params Params) {
	v.params = params.Clone()
}

// Params returns the workflow's own params.
func (v *vertex[State]) Params() Params {
	return v.params
}

// Transition is the intermediate binding of a two-step connection.
type Transition[State any] struct {
	from   *vertex[State]
	action Action
}

// Connect starts a conditional connection from src under action.
func Connect[State any](src Workflow[State], action Action) Transition[State] {
	return Transition[State]{from: src.vertexOf(), action: action}
}

// To completes the connection and returns target for further chaining.
func (t Transition[State]) To(target Workflow[State]) Workflow[State] {
	return t.from.link(t.action, target)
}

// Chain connects each workflow to the next one with the default action and
// returns the first, ready to be used as a flow's start.
func Chain[State any](first Workflow[State], rest ...Workflow[State]) Workflow[State] {
	prev := first
	for _, w := range rest {
		prev.vertexOf().link(ActionDefault, w)
		prev = w
	}
	return first
}

// resolve picks the successor of current for action. Reaching a label with no
// match ends the run with a warning when current has other successors, and
// silently when it has none.
func resolve[State any](logger *zap.Logger, current Workflow[State], action Action) Workflow[State] {
	if action == ActionStop {
		return nil
	}
	v := current.vertexOf()
	action = action.orDefault()
	next, ok := v.successors[action]
	if !ok && len(v.successors) > 0 {
		known := make([]string, 0, len(v.successors))
		for k := range v.successors {
			known = append(known, string(k))
		}
		sort.Strings(known)
		logger.Warn("flow ends: action not found in successors",
			zap.String("node", v.name),
			zap.String("action", string(action)),
			zap.Strings("successors", known))
	}
	return next
}

// runDirect runs w once on its own params, warning that successors are ignored.
func runDirect[State any](ctx context.Context, w Workflow[State], state State) (Action, error) {
	v := w.vertexOf()
	if len(v.successors) > 0 {
		v.log().Warn("node won't run successors, use a Flow", zap.String("node", v.name))
	}
	return w.execute(ctx, state, v.params)
}
