package structured

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
)

// ErrEmptyInput is returned when there is no text to extract from.
var ErrEmptyInput = errors.New("structured: input is empty")

// BuildPrompt wraps input and optional context sections around the output
// instructions for T.
func BuildPrompt[T any](input string, extra ...string) string {
	var b strings.Builder
	b.WriteString("Analyze the following data and extract the requested information.\n\n")
	b.WriteString("**Input Data:**\n```\n")
	b.WriteString(input)
	b.WriteString("\n```\n\n")
	for i, c := range extra {
		fmt.Fprintf(&b, "**Additional Context %d:**\n%s\n\n", i+1, c)
	}
	b.WriteString(GeneratePrompt[T]())
	return b.String()
}

// Extract asks provider to pull a T out of input and decodes the reply.
func Extract[T any](ctx context.Context, provider llm.Provider, input string, extra ...string) (T, error) {
	var zero T
	if strings.TrimSpace(input) == "" {
		return zero, ErrEmptyInput
	}
	reply, err := llm.Ask(ctx, provider, BuildPrompt[T](input, extra...))
	if err != nil {
		return zero, fmt.Errorf("llm call failed: %w", err)
	}
	return Parse[T](reply)
}

// Extractor is a node lifecycle that turns text read from the state into a T.
// Decode and validation failures surface from Exec, so the node's retry
// policy covers malformed replies as well as provider errors.
type Extractor[State any, T any] struct {
	core.BaseNode[State, string, T]

	Provider llm.Provider
	Input    func(State) string
	Output   func(State, T)
	Context  []string
}

func (e *Extractor[State, T]) Prep(_ context.Context, state State) (string, error) {
	input := e.Input(state)
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}
	return input, nil
}

func (e *Extractor[State, T]) Exec(ctx context.Context, input string) (T, error) {
	return Extract[T](ctx, e.Provider, input, e.Context...)
}

func (e *Extractor[State, T]) Post(_ context.Context, state State, _ string, result T) (core.Action, error) {
	if e.Output != nil {
		e.Output(state, result)
	}
	return core.ActionDefault, nil
}

// NewNode wires an Extractor into a retrying node.
func NewNode[State any, T any](provider llm.Provider, input func(State) string, output func(State, T), opts ...core.Option) *core.Node[State, string, T] {
	return core.NewNode[State, string, T](&Extractor[State, T]{
		Provider: provider,
		Input:    input,
		Output:   output,
	}, opts...)
}

// FormatIndexedList renders items one per line prefixed with their index.
func FormatIndexedList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d: %s\n", i, item)
	}
	return b.String()
}
