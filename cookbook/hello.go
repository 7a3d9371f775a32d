package cookbook

import (
	"context"
	"fmt"
	"time"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
)

const defaultQuestion = "In one sentence, what's the end of the universe?"

type answerStep struct {
	core.BaseNode[core.Shared, string, string]
	provider llm.Provider
}

func (a *answerStep) Prep(_ context.Context, shared core.Shared) (string, error) {
	q, ok := core.Get[string](shared, "question")
	if !ok || q == "" {
		return "", fmt.Errorf("no question in shared state")
	}
	return q, nil
}

func (a *answerStep) Exec(ctx context.Context, question string) (string, error) {
	return llm.Ask(ctx, a.provider, question)
}

func (a *answerStep) Post(_ context.Context, shared core.Shared, _, answer string) (core.Action, error) {
	shared["answer"] = answer
	return core.ActionDefault, nil
}

// NewHelloFlow answers shared["question"] into shared["answer"], retrying
// provider failures three times.
func NewHelloFlow(provider llm.Provider) *core.Flow[core.Shared] {
	answer := core.NewNode[core.Shared, string, string](&answerStep{provider: provider},
		core.WithName("answer"),
		core.WithMaxRetries(3),
		core.WithWait(time.Second),
	)
	return core.NewFlow[core.Shared](answer, core.WithName("hello"))
}

func runHello(ctx context.Context, deps Deps) error {
	shared := core.Shared{"question": deps.inputOr(defaultQuestion)}
	if _, err := NewHelloFlow(deps.Provider).Run(ctx, shared); err != nil {
		return err
	}
	fmt.Fprintf(deps.Out, "Question: %s\nAnswer: %s\n", shared["question"], shared["answer"])
	return nil
}
