package tools

import (
	"context"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
)

// ActionNoCalls is returned when the last message requested no tools.
const ActionNoCalls core.Action = "no_tool_calls"

// CallTools is a node lifecycle that runs the tool calls of the latest
// assistant message and appends one tool message carrying the results.
type CallTools[State any] struct {
	core.BaseNode[State, []llm.ToolCall, []llm.ToolResult]

	Tools   Executor
	History func(State) []llm.Message
	Record  func(State, llm.Message)
}

func (n *CallTools[State]) Prep(_ context.Context, state State) ([]llm.ToolCall, error) {
	history := n.History(state)
	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	if last.Role != llm.RoleAssistant {
		return nil, nil
	}
	return last.ToolCalls, nil
}

func (n *CallTools[State]) Exec(ctx context.Context, calls []llm.ToolCall) ([]llm.ToolResult, error) {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, n.Tools.Execute(ctx, call))
	}
	return results, nil
}

func (n *CallTools[State]) Post(_ context.Context, state State, calls []llm.ToolCall, results []llm.ToolResult) (core.Action, error) {
	if len(calls) == 0 {
		return ActionNoCalls, nil
	}
	n.Record(state, llm.Message{Role: llm.RoleTool, ToolResults: results})
	return core.ActionDefault, nil
}

// NewToolNode wires a CallTools lifecycle into a node.
func NewToolNode[State any](tools Executor, history func(State) []llm.Message, record func(State, llm.Message), opts ...core.Option) *core.Node[State, []llm.ToolCall, []llm.ToolResult] {
	return core.NewNode[State, []llm.ToolCall, []llm.ToolResult](&CallTools[State]{
		Tools:   tools,
		History: history,
		Record:  record,
	}, opts...)
}

// SharedHistory reads a conversation kept under key in a core.Shared.
func SharedHistory(key string) func(core.Shared) []llm.Message {
	return func(s core.Shared) []llm.Message {
		return core.GetOr[[]llm.Message](s, key, nil)
	}
}

// SharedRecorder appends to a conversation kept under key in a core.Shared.
func SharedRecorder(key string) func(core.Shared, llm.Message) {
	return func(s core.Shared, m llm.Message) {
		core.Append(s, key, m)
	}
}
