package cookbook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/structured"
)

const defaultProblem = `You work at a shoe factory. In front of you, there are three pairs of shoes (six individual shoes) with the following sizes: two size 4s, two size 5s, and two size 6s. The factory defines an "acceptable pair" as two shoes that differ in size by a maximum of one size. If you close your eyes and randomly pick three pairs of shoes without replacement, what is the probability that you end up drawing three acceptable pairs?`

// ErrNoVotes is returned when every attempt failed to produce an answer.
var ErrNoVotes = errors.New("majority: no attempt produced an answer")

type vote struct {
	Thinking string `yaml:"thinking"`
	Answer   string `yaml:"answer" validate:"required"`
}

type majorityVote struct {
	core.BaseBatchNode[core.Shared, string, string]
	provider llm.Provider
}

func (m *majorityVote) Prep(_ context.Context, shared core.Shared) ([]string, error) {
	question := core.GetOr(shared, "question", "(No question provided)")
	tries := core.GetOr(shared, "num_tries", 3)
	items := make([]string, tries)
	for i := range items {
		items[i] = question
	}
	return items, nil
}

func (m *majorityVote) Exec(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf("You are a helpful assistant. Please answer the user's question below.\nQuestion: %s\n\n"+
		"Return strictly using the following YAML structure:\n"+
		"```yaml\nthinking: |\n    (Your thinking process here)\nanswer: 0.123 # Final answer as a decimal with 3 decimal places\n```", question)
	reply, err := llm.Ask(ctx, m.provider, prompt)
	if err != nil {
		return "", err
	}
	v, err := structured.Parse[vote](reply)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v.Answer), nil
}

// ExecFallback turns a failed attempt into an abstention.
func (m *majorityVote) ExecFallback(context.Context, string, error) (string, error) {
	return "", nil
}

func (m *majorityVote) Post(_ context.Context, shared core.Shared, _ []string, answers []string) (core.Action, error) {
	best, freq := majority(answers)
	if freq == 0 {
		return "", ErrNoVotes
	}
	shared["answers"] = answers
	shared["majority_answer"] = best
	shared["majority_count"] = freq
	return "end", nil
}

// majority returns the most frequent non-empty answer. Ties go to the answer
// seen first.
func majority(answers []string) (string, int) {
	counts := make(map[string]int)
	for _, a := range answers {
		if a != "" {
			counts[a]++
		}
	}
	var best string
	for _, a := range answers {
		if counts[a] > counts[best] {
			best = a
		}
	}
	return best, counts[best]
}

// NewMajorityFlow asks shared["question"] shared["num_tries"] times in
// parallel and stores the most common answer in shared["majority_answer"].
func NewMajorityFlow(provider llm.Provider, concurrency int) *core.Flow[core.Shared] {
	node := core.NewParallelBatchNode[core.Shared, string, string](&majorityVote{provider: provider},
		core.WithName("majority-vote"),
		core.WithConcurrency(concurrency),
	)
	return core.NewFlow[core.Shared](node, core.WithName("majority"))
}

func runMajority(ctx context.Context, deps Deps) error {
	shared := core.Shared{
		"question":  deps.inputOr(defaultProblem),
		"num_tries": 5,
	}
	if _, err := NewMajorityFlow(deps.Provider, deps.Concurrency).Run(ctx, shared); err != nil {
		return err
	}
	fmt.Fprintf(deps.Out, "answers: %q\nmajority: %s (%d votes)\n",
		shared["answers"], shared["majority_answer"], shared["majority_count"])
	return nil
}
