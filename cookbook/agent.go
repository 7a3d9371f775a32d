package cookbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/tools"
	"github.com/alt-coder/brainyflow-go/tools/webfetch"
)

const (
	defaultAgentTask = "What is (12 + 30) * 3? Use the tools."
	agentSystem      = "You are a careful assistant. Use the available tools for arithmetic and for reading web pages, then answer briefly."
	defaultMaxTurns  = 8
)

// ErrMaxTurns is returned when the model keeps requesting tools.
var ErrMaxTurns = errors.New("agent: turn limit reached")

type operands struct {
	A float64 `json:"a" description:"First operand"`
	B float64 `json:"b" description:"Second operand"`
}

// NewAgentTools registers the arithmetic tools and, when fetcher is set, a
// fetch_page tool.
func NewAgentTools(fetcher *webfetch.Fetcher) (*tools.Registry, error) {
	r := tools.NewRegistry()
	if err := tools.Register(r, "add", "Add two numbers", func(_ context.Context, in operands) (float64, error) {
		return in.A + in.B, nil
	}); err != nil {
		return nil, err
	}
	if err := tools.Register(r, "multiply", "Multiply two numbers", func(_ context.Context, in operands) (float64, error) {
		return in.A * in.B, nil
	}); err != nil {
		return nil, err
	}
	if fetcher != nil {
		if err := tools.Register(r, "fetch_page", "Fetch a web page and return it as markdown", fetcher.Tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type think struct {
	core.BaseNode[core.Shared, []llm.Message, llm.Message]
	provider llm.Provider
	maxTurns int
}

func (t *think) Prep(_ context.Context, shared core.Shared) ([]llm.Message, error) {
	turns := core.GetOr(shared, "turns", 0)
	if turns >= t.maxTurns {
		return nil, fmt.Errorf("%w (%d)", ErrMaxTurns, turns)
	}
	shared["turns"] = turns + 1
	return tools.SharedHistory("messages")(shared), nil
}

func (t *think) Exec(ctx context.Context, history []llm.Message) (llm.Message, error) {
	return t.provider.CallLLM(ctx, history)
}

func (t *think) Post(_ context.Context, shared core.Shared, _ []llm.Message, reply llm.Message) (core.Action, error) {
	core.Append(shared, "messages", reply)
	if len(reply.ToolCalls) == 0 {
		shared["answer"] = reply.Content
		return "done", nil
	}
	return "act", nil
}

// NewToolAgentFlow alternates model turns with tool execution until the model
// answers without requesting tools. The conversation lives in
// shared["messages"] and the final reply in shared["answer"].
func NewToolAgentFlow(provider llm.Provider, executor tools.Executor, maxTurns int) *core.Flow[core.Shared] {
	if binder, ok := provider.(llm.ToolBinder); ok {
		provider = binder.BindTools(executor.Specs())
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	model := core.NewNode[core.Shared, []llm.Message, llm.Message](&think{provider: provider, maxTurns: maxTurns},
		core.WithName("think"),
		core.WithMaxRetries(2),
	)
	act := tools.NewToolNode[core.Shared](executor, tools.SharedHistory("messages"), tools.SharedRecorder("messages"),
		core.WithName("act"),
	)
	model.On("act").To(act)
	act.Next(model)
	return core.NewFlow[core.Shared](model, core.WithName("tool-agent"))
}

func runAgent(ctx context.Context, deps Deps) error {
	registry, err := NewAgentTools(deps.Fetcher)
	if err != nil {
		return err
	}
	if deps.Remote != nil {
		registry.SetRemote(deps.Remote)
	}
	shared := core.Shared{"messages": []llm.Message{
		llm.SystemMessage(agentSystem),
		llm.UserMessage(deps.inputOr(defaultAgentTask)),
	}}
	if _, err := NewToolAgentFlow(deps.Provider, registry, defaultMaxTurns).Run(ctx, shared); err != nil {
		return err
	}
	for _, m := range shared["messages"].([]llm.Message) {
		for _, c := range m.ToolCalls {
			fmt.Fprintf(deps.Out, "-> %s(%v)\n", c.Name, c.Args)
		}
		for _, r := range m.ToolResults {
			fmt.Fprintf(deps.Out, "<- %s: %s\n", r.Name, r.Content)
		}
	}
	fmt.Fprintf(deps.Out, "Answer: %s\n", shared["answer"])
	return nil
}
