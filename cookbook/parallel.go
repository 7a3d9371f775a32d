package cookbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
)

// Document is a titled text.
type Document struct {
	Title string
	Body  string
}

type summarizeDocs struct {
	core.BaseBatchNode[core.Shared, Document, string]
	provider llm.Provider
}

func (s *summarizeDocs) Prep(_ context.Context, shared core.Shared) ([]Document, error) {
	return core.GetOr[[]Document](shared, "documents", nil), nil
}

func (s *summarizeDocs) Exec(ctx context.Context, doc Document) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text in one short sentence.\n\nTitle: %s\n\n%s", doc.Title, doc.Body)
	summary, err := llm.Ask(ctx, s.provider, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

func (s *summarizeDocs) ExecFallback(_ context.Context, doc Document, err error) (string, error) {
	return fmt.Sprintf("(no summary for %s: %v)", doc.Title, err), nil
}

func (s *summarizeDocs) Post(_ context.Context, shared core.Shared, docs []Document, summaries []string) (core.Action, error) {
	out := make(map[string]string, len(docs))
	for i, d := range docs {
		out[d.Title] = summaries[i]
	}
	shared["summaries"] = out
	return core.ActionDefault, nil
}

// NewSummarizeFlow summarises shared["documents"] in parallel, at most
// concurrency at a time, into shared["summaries"] keyed by title. A document
// whose summary fails twice gets a placeholder instead of failing the run.
func NewSummarizeFlow(provider llm.Provider, concurrency int) *core.Flow[core.Shared] {
	node := core.NewParallelBatchNode[core.Shared, Document, string](&summarizeDocs{provider: provider},
		core.WithName("summarize"),
		core.WithMaxRetries(2),
		core.WithConcurrency(concurrency),
	)
	return core.NewFlow[core.Shared](node, core.WithName("parallel-summaries"))
}

// SampleDocuments is the data the catalog entry runs on.
func SampleDocuments() []Document {
	return []Document{
		{Title: "goroutines", Body: "Goroutines are functions that run concurrently with other functions. They are cheap to create and are multiplexed onto a small number of OS threads."},
		{Title: "channels", Body: "Channels are typed conduits through which goroutines send and receive values, synchronising execution without explicit locks."},
		{Title: "interfaces", Body: "Interfaces in Go are satisfied implicitly: a type implements an interface by implementing its methods, with no declaration of intent."},
		{Title: "errors", Body: "Go functions report failure by returning an error value, which callers check explicitly and may wrap with context."},
	}
}

func runParallel(ctx context.Context, deps Deps) error {
	docs := SampleDocuments()
	shared := core.Shared{"documents": docs}
	if _, err := NewSummarizeFlow(deps.Provider, deps.Concurrency).Run(ctx, shared); err != nil {
		return err
	}
	summaries := shared["summaries"].(map[string]string)
	for _, d := range docs {
		fmt.Fprintf(deps.Out, "%s: %s\n", d.Title, summaries[d.Title])
	}
	return nil
}
