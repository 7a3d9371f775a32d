// Package cookbook holds ready-made graphs built on the core engine. Each
// recipe exposes a constructor for its flow so it can be embedded elsewhere,
// and a catalog entry that seeds the state, runs the flow and prints the result.
package cookbook

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/tools"
	"github.com/alt-coder/brainyflow-go/tools/webfetch"
	"go.uber.org/zap"
)

// Deps carries the collaborators recipes need.
type Deps struct {
	Provider llm.Provider
	Fetcher  *webfetch.Fetcher
	// Search answers a web query with plain text. Defaults to fetching a
	// DuckDuckGo results page through Fetcher.
	Search SearchFunc
	// Remote serves tools the agent recipe does not register itself, such
	// as the tools of MCP servers.
	Remote tools.Executor
	Logger *zap.Logger
	In     io.Reader
	Out    io.Writer
	// Input overrides the recipe's default question, URL list or text.
	Input string
	// Concurrency caps parallel batches; zero means unbounded.
	Concurrency int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Provider == nil {
		d.Provider = llm.NewMockProvider("mock")
	}
	if d.Fetcher == nil {
		d.Fetcher = webfetch.New(webfetch.WithLogger(d.Logger))
	}
	if d.Search == nil {
		fetcher := d.Fetcher
		d.Search = func(ctx context.Context, query string) (string, error) {
			page, err := fetcher.Fetch(ctx, "https://html.duckduckgo.com/html/?q="+url.QueryEscape(query))
			if err != nil {
				return "", err
			}
			return page.Markdown, nil
		}
	}
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	return d
}

func (d Deps) inputOr(def string) string {
	if s := strings.TrimSpace(d.Input); s != "" {
		return s
	}
	return def
}

// Recipe is a runnable catalog entry.
type Recipe struct {
	Name        string
	Description string
	// UsesLLM marks recipes whose output depends on the provider.
	UsesLLM bool
	run     func(ctx context.Context, deps Deps) error
}

// Run executes the recipe, filling unset dependencies with defaults.
func (r Recipe) Run(ctx context.Context, deps Deps) error {
	deps = deps.withDefaults()
	deps.Logger.Debug("running recipe", zap.String("recipe", r.Name))
	if err := r.run(ctx, deps); err != nil {
		return fmt.Errorf("%s: %w", r.Name, err)
	}
	return nil
}

// Catalog lists every recipe sorted by name.
func Catalog() []Recipe {
	recipes := []Recipe{
		{Name: "agent", Description: "LLM tool-calling loop over local tools", UsesLLM: true, run: runAgent},
		{Name: "arithmetic", Description: "Three chained nodes computing (5+3)*2", run: runArithmetic},
		{Name: "batchflow", Description: "BatchFlow multiplying values by per-run factors", run: runBatchFlow},
		{Name: "chat", Description: "Interactive chat loop with bounded history", UsesLLM: true, run: runChat},
		{Name: "communication", Description: "Word statistics loop sharing state between nodes", run: runCommunication},
		{Name: "crawler", Description: "Parallel page fetch followed by LLM page analysis", UsesLLM: true, run: runCrawler},
		{Name: "hello", Description: "Single question answered by the LLM", UsesLLM: true, run: runHello},
		{Name: "majority", Description: "Ask the LLM several times and keep the majority answer", UsesLLM: true, run: runMajority},
		{Name: "mapreduce", Description: "Structured resume screening reduced to a summary", UsesLLM: true, run: runMapReduce},
		{Name: "nested", Description: "School, class and student batch flows computing grade averages", run: runNested},
		{Name: "parallel", Description: "Parallel batch node summarising texts", UsesLLM: true, run: runParallel},
		{Name: "supervisor", Description: "Research agent flow nested under a supervisor that can send it back", UsesLLM: true, run: runSupervisor},
	}
	slices.SortFunc(recipes, func(a, b Recipe) int { return strings.Compare(a.Name, b.Name) })
	return recipes
}

// Find looks a recipe up by name.
func Find(name string) (Recipe, bool) {
	for _, r := range Catalog() {
		if r.Name == name {
			return r, true
		}
	}
	return Recipe{}, false
}
