package cookbook

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/structured"
)

const (
	defaultResearchQuestion = "Who won the Nobel Prize in Physics 2024?"
	dummyAnswer             = "Sorry, I'm on a coffee break right now. All information I provide is completely made up anyway. The answer to your question is 42, or maybe purple unicorns. Who knows? Certainly not me!"
	rejectionNote           = "\n\nNOTE: Previous answer attempt was rejected by supervisor."
	defaultMaxRejections    = 5
)

var nonsenseMarkers = []string{"coffee break", "purple unicorns", "made up", "42", "Who knows?"}

// ErrTooManyRejections ends a supervised run that keeps producing bad answers.
var ErrTooManyRejections = errors.New("supervisor: too many rejected answers")

// SearchFunc looks query up and returns the results as text.
type SearchFunc func(ctx context.Context, query string) (string, error)

type decision struct {
	Thinking    string `yaml:"thinking"`
	Action      string `yaml:"action" validate:"required,oneof=search answer"`
	Reason      string `yaml:"reason"`
	SearchQuery string `yaml:"search_query" validate:"required_if=Action search"`
}

type research struct {
	Question string
	Context  string
}

type decideAction struct {
	core.BaseNode[core.Shared, research, decision]
	provider llm.Provider
}

func (d *decideAction) Prep(_ context.Context, shared core.Shared) (research, error) {
	question, ok := core.Get[string](shared, "question")
	if !ok || question == "" {
		return research{}, errors.New("no question in shared state")
	}
	return research{Question: question, Context: core.GetOr(shared, "context", "No previous search")}, nil
}

func (d *decideAction) Exec(ctx context.Context, r research) (decision, error) {
	prompt := fmt.Sprintf(`### CONTEXT
You are a research assistant that can search the web.
Question: %s
Previous Research: %s

### ACTION SPACE
[1] search
  Description: Look up more information on the web
  Parameters:
    - query (str): What to search for

[2] answer
  Description: Answer the question with current knowledge
  Parameters:
    - answer (str): Final answer to the question

## NEXT ACTION
Decide the next action based on the context and available actions.
Return your response in this format:

`+"```yaml"+`
thinking: |
    <your step-by-step reasoning process>
action: search OR answer
reason: <why you chose this action>
search_query: <specific search query if action is search>
`+"```", r.Question, r.Context)
	reply, err := llm.Ask(ctx, d.provider, prompt)
	if err != nil {
		return decision{}, err
	}
	return structured.Parse[decision](reply)
}

// ExecFallback answers with what is known when no usable decision came back.
func (d *decideAction) ExecFallback(context.Context, research, error) (decision, error) {
	return decision{Action: "answer", Reason: "no usable decision"}, nil
}

func (d *decideAction) Post(_ context.Context, shared core.Shared, _ research, dec decision) (core.Action, error) {
	if dec.Action == "search" {
		shared["search_query"] = dec.SearchQuery
	}
	return core.Action(dec.Action), nil
}

type searchWeb struct {
	core.BaseNode[core.Shared, string, string]
	search SearchFunc
}

func (s *searchWeb) Prep(_ context.Context, shared core.Shared) (string, error) {
	return core.GetOr(shared, "search_query", ""), nil
}

func (s *searchWeb) Exec(ctx context.Context, query string) (string, error) {
	return s.search(ctx, query)
}

func (s *searchWeb) ExecFallback(_ context.Context, _ string, err error) (string, error) {
	return "search failed: " + err.Error(), nil
}

func (s *searchWeb) Post(_ context.Context, shared core.Shared, query, results string) (core.Action, error) {
	shared["context"] = core.GetOr(shared, "context", "") + "\n\nSEARCH: " + query + "\nRESULTS: " + results
	return "decide", nil
}

// unreliableAnswer answers from the gathered context, except when coin says
// to return nonsense instead.
type unreliableAnswer struct {
	core.BaseNode[core.Shared, research, string]
	provider llm.Provider
	coin     func() bool
}

func (u *unreliableAnswer) Prep(_ context.Context, shared core.Shared) (research, error) {
	return research{
		Question: core.GetOr(shared, "question", ""),
		Context:  core.GetOr(shared, "context", ""),
	}, nil
}

func (u *unreliableAnswer) Exec(ctx context.Context, r research) (string, error) {
	if u.coin() {
		return dummyAnswer, nil
	}
	prompt := fmt.Sprintf(`### CONTEXT
Based on the following information, answer the question.
Question: %s
Research: %s

## YOUR ANSWER:
Provide a comprehensive answer using the research results.`, r.Question, r.Context)
	return llm.Ask(ctx, u.provider, prompt)
}

func (u *unreliableAnswer) Post(_ context.Context, shared core.Shared, _ research, answer string) (core.Action, error) {
	shared["answer"] = answer
	return core.ActionDefault, nil
}

type verdict struct {
	Valid  bool
	Reason string
}

type supervise struct {
	core.BaseNode[core.Shared, string, verdict]
	maxRejections int
}

func (s *supervise) Prep(_ context.Context, shared core.Shared) (string, error) {
	return core.GetOr(shared, "answer", ""), nil
}

func (s *supervise) Exec(_ context.Context, answer string) (verdict, error) {
	for _, m := range nonsenseMarkers {
		if strings.Contains(answer, m) {
			return verdict{Reason: "answer appears to be nonsensical or unhelpful"}, nil
		}
	}
	if strings.TrimSpace(answer) == "" {
		return verdict{Reason: "answer is empty"}, nil
	}
	return verdict{Valid: true, Reason: "answer appears to be legitimate"}, nil
}

func (s *supervise) Post(_ context.Context, shared core.Shared, _ string, v verdict) (core.Action, error) {
	if v.Valid {
		return core.ActionDefault, nil
	}
	rejected := core.GetOr(shared, "rejections", 0) + 1
	shared["rejections"] = rejected
	if rejected >= s.maxRejections {
		return "", fmt.Errorf("%w: %d attempts, last: %s", ErrTooManyRejections, rejected, v.Reason)
	}
	delete(shared, "answer")
	shared["context"] = core.GetOr(shared, "context", "") + rejectionNote
	return core.ActionRetry, nil
}

// NewAgentFlow builds the research agent: decide either searches and decides
// again, or answers.
func NewAgentFlow(provider llm.Provider, search SearchFunc, coin func() bool) *core.Flow[core.Shared] {
	decide := core.NewNode[core.Shared, research, decision](&decideAction{provider: provider},
		core.WithName("decide"),
		core.WithMaxRetries(3),
	)
	searchNode := core.NewNode[core.Shared, string, string](&searchWeb{search: search}, core.WithName("search"))
	answer := core.NewNode[core.Shared, research, string](&unreliableAnswer{provider: provider, coin: coin},
		core.WithName("answer"),
		core.WithMaxRetries(3),
	)

	decide.On("search").To(searchNode)
	decide.On("answer").To(answer)
	searchNode.On("decide").To(decide)
	return core.NewFlow[core.Shared](decide, core.WithName("research-agent"))
}

// NewSupervisorFlow wraps the research agent in a flow whose supervisor sends
// nonsense answers back for another attempt. The agent flow is a node of the
// outer graph, so a rejected answer re-runs it from the start.
func NewSupervisorFlow(provider llm.Provider, search SearchFunc, coin func() bool) *core.Flow[core.Shared] {
	agent := NewAgentFlow(provider, search, coin)
	supervisor := core.NewNode[core.Shared, string, verdict](&supervise{maxRejections: defaultMaxRejections},
		core.WithName("supervisor"),
	)
	agent.Next(supervisor)
	supervisor.On(core.ActionRetry).To(agent)
	return core.NewFlow[core.Shared](agent, core.WithName("supervised-research"))
}

func runSupervisor(ctx context.Context, deps Deps) error {
	shared := core.Shared{"question": deps.inputOr(defaultResearchQuestion)}
	coin := func() bool { return rand.Float64() < 0.5 }
	if _, err := NewSupervisorFlow(deps.Provider, deps.Search, coin).Run(ctx, shared); err != nil {
		return err
	}
	fmt.Fprintf(deps.Out, "Question: %s\nAnswer: %s\nRejected attempts: %d\n",
		shared["question"], shared["answer"], core.GetOr(shared, "rejections", 0))
	return nil
}
