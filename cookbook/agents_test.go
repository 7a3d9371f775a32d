package cookbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/tools/webfetch"
)

const (
	searchDecision = "```yaml\nthinking: |\n    need facts\naction: search\nreason: nothing known yet\nsearch_query: nobel physics 2024\n```"
	answerDecision = "```yaml\nthinking: |\n    enough facts\naction: answer\nreason: research is done\n```"
)

func researchModel() *llm.MockProvider {
	mock := llm.NewMockProvider("mock")
	mock.SetHandler(func(messages []llm.Message) (llm.Message, error) {
		prompt := lastContent(messages)
		reply := "John Hopfield and Geoffrey Hinton."
		if strings.Contains(prompt, "ACTION SPACE") {
			reply = searchDecision
			if strings.Contains(prompt, "SEARCH: ") {
				reply = answerDecision
			}
		}
		return llm.Message{Role: llm.RoleAssistant, Content: reply}, nil
	})
	return mock
}

func coins(flips ...bool) func() bool {
	i := 0
	return func() bool {
		if i >= len(flips) {
			return flips[len(flips)-1]
		}
		i++
		return flips[i-1]
	}
}

func TestSupervisorFlow_RetriesRejectedAnswer(t *testing.T) {
	var queries []string
	search := func(_ context.Context, q string) (string, error) {
		queries = append(queries, q)
		return "Hopfield and Hinton won for neural networks.", nil
	}

	shared := core.Shared{"question": "Who won the Nobel Prize in Physics 2024?"}
	flow := NewSupervisorFlow(researchModel(), search, coins(true, false))
	if _, err := flow.Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if shared["answer"] != "John Hopfield and Geoffrey Hinton." {
		t.Errorf("answer = %v", shared["answer"])
	}
	if shared["rejections"] != 1 {
		t.Errorf("rejections = %v, want 1", shared["rejections"])
	}
	if ctx := shared["context"].(string); !strings.HasSuffix(ctx, rejectionNote) {
		t.Errorf("context = %q, want rejection note", ctx)
	}
	if len(queries) != 1 || queries[0] != "nobel physics 2024" {
		t.Errorf("queries = %q", queries)
	}
}

func TestSupervisorFlow_GivesUp(t *testing.T) {
	search := func(context.Context, string) (string, error) { return "results", nil }
	flow := NewSupervisorFlow(researchModel(), search, coins(true))

	shared := core.Shared{"question": "q?"}
	_, err := flow.Run(context.Background(), shared)
	if !errors.Is(err, ErrTooManyRejections) {
		t.Fatalf("Run() error = %v, want ErrTooManyRejections", err)
	}
	if shared["rejections"] != defaultMaxRejections {
		t.Errorf("rejections = %v, want %d", shared["rejections"], defaultMaxRejections)
	}
}

func TestSupervise(t *testing.T) {
	tests := []struct {
		answer string
		valid  bool
	}{
		{answer: "The prize went to Hopfield and Hinton.", valid: true},
		{answer: dummyAnswer},
		{answer: "The answer is 42."},
		{answer: "Who knows?"},
		{answer: "   "},
	}
	s := &supervise{maxRejections: 3}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			v, err := s.Exec(context.Background(), tt.answer)
			if err != nil {
				t.Fatalf("Exec() error = %v", err)
			}
			if v.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%s)", v.Valid, tt.valid, v.Reason)
			}
		})
	}
}

func TestAgentFlow_UnparseableDecisionAnswers(t *testing.T) {
	mock := llm.NewMockProvider("mock")
	mock.SetResponses("I am not sure what to do.")
	search := func(context.Context, string) (string, error) {
		t.Error("search should not run")
		return "", nil
	}

	shared := core.Shared{"question": "q?"}
	if _, err := NewAgentFlow(mock, search, coins(false)).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if shared["answer"] != "I am not sure what to do." {
		t.Errorf("answer = %v", shared["answer"])
	}
	// Three failed decisions, then one answer.
	if got := mock.CallCount(); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}

func TestCommunicationFlow(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTexts int
		wantWords int
	}{
		{name: "quit", input: "hello world\none two three\nq\nnever read\n", wantTexts: 2, wantWords: 5},
		{name: "eof", input: "a b c d", wantTexts: 1, wantWords: 4},
		{name: "immediate quit", input: "q\n", wantTexts: 0, wantWords: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			session := NewTextSession(strings.NewReader(tt.input), &out)
			if _, err := NewCommunicationFlow().Run(context.Background(), session); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if session.Stats.Texts != tt.wantTexts || session.Stats.Words != tt.wantWords {
				t.Errorf("stats = %+v, want %d texts %d words", session.Stats, tt.wantTexts, tt.wantWords)
			}
		})
	}
}

func TestCommunicationFlow_Output(t *testing.T) {
	var out bytes.Buffer
	session := NewTextSession(strings.NewReader("one\none two three four\n"), &out)
	if _, err := NewCommunicationFlow().Run(context.Background(), session); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "- Average words per text: 2.5") {
		t.Errorf("output = %q", out.String())
	}
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/alpha", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><h1>Alpha</h1><p>All about alpha.</p></body></html>")
	})
	mux.HandleFunc("/beta", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><h1>Beta</h1><p>Beta things.</p></body></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlerFlow(t *testing.T) {
	srv := newSiteServer(t)
	mock := llm.NewMockProvider("mock")
	mock.SetHandler(func(messages []llm.Message) (llm.Message, error) {
		if strings.Contains(lastContent(messages), "# Alpha") {
			return llm.Message{Role: llm.RoleAssistant, Content: "```yaml\nsummary: A page about alpha.\ntopics:\n  - alpha\ncontent_type: article\n```"}, nil
		}
		return llm.Message{Role: llm.RoleAssistant, Content: "no idea"}, nil
	})

	urls := []string{srv.URL + "/alpha", srv.URL + "/beta", srv.URL + "/gone"}
	shared := core.Shared{"urls": urls}
	fetcher := webfetch.New(webfetch.WithHTTPClient(srv.Client()))
	if _, err := NewCrawlerFlow(fetcher, mock, nil, 2).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pages := shared["analyzed"].([]CrawledPage)
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	if got := pages[0].Analysis; got.ContentType != "article" || got.Summary != "A page about alpha." {
		t.Errorf("alpha analysis = %+v", got)
	}
	if got := pages[1].Analysis.ContentType; got != "unknown" {
		t.Errorf("beta content type = %q, want unknown", got)
	}
	if pages[2].Err == nil || pages[2].Analysis.ContentType != "unreachable" {
		t.Errorf("gone page = %+v, want unreachable", pages[2])
	}

	report := shared["report"].(string)
	for _, want := range []string{"Total pages analyzed: 3", "Topics: alpha", "Content Type: unreachable"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestCrawlerFlow_NoURLs(t *testing.T) {
	shared := core.Shared{}
	if _, err := NewCrawlerFlow(webfetch.New(), llm.NewMockProvider("mock"), nil, 0).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if shared["report"] != "No results to report" {
		t.Errorf("report = %v", shared["report"])
	}
}

func toolCall(id, name string, a, b float64) llm.Message {
	return llm.Message{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Args: map[string]any{"a": a, "b": b}}}}
}

func TestToolAgentFlow(t *testing.T) {
	registry, err := NewAgentTools(webfetch.New())
	if err != nil {
		t.Fatalf("NewAgentTools() error = %v", err)
	}
	mock := llm.NewMockProvider("mock")
	mock.AddResponse(toolCall("c1", "add", 12, 30))
	mock.AddResponse(toolCall("c2", "multiply", 42, 3))
	mock.AddResponse(llm.Message{Content: "The result is 126."})

	shared := core.Shared{"messages": []llm.Message{llm.UserMessage("(12 + 30) * 3?")}}
	if _, err := NewToolAgentFlow(mock, registry, 0).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if shared["answer"] != "The result is 126." {
		t.Errorf("answer = %v", shared["answer"])
	}
	history := shared["messages"].([]llm.Message)
	if len(history) != 6 {
		t.Fatalf("history = %d messages, want 6", len(history))
	}
	if got := history[2].ToolResults[0].Content; got != "42" {
		t.Errorf("add result = %q, want 42", got)
	}
	if got := history[4].ToolResults[0].Content; got != "126" {
		t.Errorf("multiply result = %q, want 126", got)
	}
	if got := len(mock.Tools()); got != 3 {
		t.Errorf("bound tools = %d, want 3", got)
	}
	if shared["turns"] != 3 {
		t.Errorf("turns = %v, want 3", shared["turns"])
	}
}

func TestToolAgentFlow_TurnLimit(t *testing.T) {
	registry, err := NewAgentTools(nil)
	if err != nil {
		t.Fatalf("NewAgentTools() error = %v", err)
	}
	mock := llm.NewMockProvider("mock")
	mock.AddResponse(toolCall("c", "add", 1, 1))

	shared := core.Shared{"messages": []llm.Message{llm.UserMessage("loop")}}
	_, err = NewToolAgentFlow(mock, registry, 2).Run(context.Background(), shared)
	if !errors.Is(err, ErrMaxTurns) {
		t.Fatalf("Run() error = %v, want ErrMaxTurns", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.CallCount())
	}
}

func TestAgentRecipe(t *testing.T) {
	mock := llm.NewMockProvider("mock")
	mock.AddResponse(toolCall("c1", "multiply", 6, 7))
	mock.AddResponse(llm.Message{Content: "42"})

	var out bytes.Buffer
	r, _ := Find("agent")
	if err := r.Run(context.Background(), Deps{Provider: mock, Out: &out}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"-> multiply(", "<- multiply: 42", "Answer: 42"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
