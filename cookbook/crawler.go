package cookbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/structured"
	"github.com/alt-coder/brainyflow-go/tools/webfetch"
	"go.uber.org/zap"
)

const maxAnalyzedChars = 4000

var defaultCrawlURLs = []string{
	"https://go.dev/doc/effective_go",
	"https://go.dev/blog/pipelines",
}

// PageAnalysis is what the model reports about a page.
type PageAnalysis struct {
	Summary     string   `yaml:"summary" description:"Two sentence summary of the page" validate:"required"`
	Topics      []string `yaml:"topics" description:"Main topics covered"`
	ContentType string   `yaml:"content_type" description:"Kind of page, e.g. article, documentation, product" validate:"required"`
}

// CrawledPage is a fetched page and, once analysed, its analysis.
type CrawledPage struct {
	URL      string
	Markdown string
	Err      error
	Analysis PageAnalysis
}

type fetchPages struct {
	core.BaseBatchNode[core.Shared, string, CrawledPage]
	fetcher *webfetch.Fetcher
}

func (f *fetchPages) Prep(_ context.Context, shared core.Shared) ([]string, error) {
	return core.GetOr[[]string](shared, "urls", nil), nil
}

func (f *fetchPages) Exec(ctx context.Context, url string) (CrawledPage, error) {
	page, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		return CrawledPage{}, err
	}
	return CrawledPage{URL: page.URL, Markdown: page.Markdown}, nil
}

// ExecFallback keeps a page that could not be fetched so the report lists it.
func (f *fetchPages) ExecFallback(_ context.Context, url string, err error) (CrawledPage, error) {
	return CrawledPage{URL: url, Err: err}, nil
}

func (f *fetchPages) Post(_ context.Context, shared core.Shared, _ []string, pages []CrawledPage) (core.Action, error) {
	shared["pages"] = pages
	return core.ActionDefault, nil
}

type analyzePages struct {
	core.BaseBatchNode[core.Shared, CrawledPage, CrawledPage]
	provider llm.Provider
	logger   *zap.Logger
}

func (a *analyzePages) Prep(_ context.Context, shared core.Shared) ([]CrawledPage, error) {
	return core.GetOr[[]CrawledPage](shared, "pages", nil), nil
}

func (a *analyzePages) Exec(ctx context.Context, page CrawledPage) (CrawledPage, error) {
	if page.Err != nil {
		page.Analysis = PageAnalysis{Summary: "N/A", ContentType: "unreachable"}
		return page, nil
	}
	content := page.Markdown
	if len(content) > maxAnalyzedChars {
		content = content[:maxAnalyzedChars]
	}
	analysis, err := structured.Extract[PageAnalysis](ctx, a.provider, content, "URL: "+page.URL)
	if err != nil {
		return CrawledPage{}, err
	}
	page.Analysis = analysis
	return page, nil
}

func (a *analyzePages) ExecFallback(_ context.Context, page CrawledPage, err error) (CrawledPage, error) {
	a.logger.Warn("page analysis failed", zap.String("url", page.URL), zap.Error(err))
	page.Analysis = PageAnalysis{Summary: "N/A", ContentType: "unknown"}
	return page, nil
}

func (a *analyzePages) Post(_ context.Context, shared core.Shared, _ []CrawledPage, analysed []CrawledPage) (core.Action, error) {
	shared["analyzed"] = analysed
	return core.ActionDefault, nil
}

type crawlReport struct {
	core.BaseNode[core.Shared, []CrawledPage, string]
}

func (crawlReport) Prep(_ context.Context, shared core.Shared) ([]CrawledPage, error) {
	return core.GetOr[[]CrawledPage](shared, "analyzed", nil), nil
}

func (crawlReport) Exec(_ context.Context, pages []CrawledPage) (string, error) {
	if len(pages) == 0 {
		return "No results to report", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis Report\nTotal pages analyzed: %d\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(&b, "\nPage: %s\n", p.URL)
		if p.Err != nil {
			fmt.Fprintf(&b, "Error: %v\n", p.Err)
		}
		fmt.Fprintf(&b, "Summary: %s\nTopics: %s\nContent Type: %s\n%s\n",
			p.Analysis.Summary, strings.Join(p.Analysis.Topics, ", "), p.Analysis.ContentType, strings.Repeat("-", 80))
	}
	return b.String(), nil
}

func (crawlReport) Post(_ context.Context, shared core.Shared, _ []CrawledPage, report string) (core.Action, error) {
	shared["report"] = report
	return core.ActionDefault, nil
}

// NewCrawlerFlow fetches shared["urls"] in parallel, analyses each page in
// order and writes a text report to shared["report"].
func NewCrawlerFlow(fetcher *webfetch.Fetcher, provider llm.Provider, logger *zap.Logger, concurrency int) *core.Flow[core.Shared] {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetch := core.NewParallelBatchNode[core.Shared, string, CrawledPage](&fetchPages{fetcher: fetcher},
		core.WithName("fetch"),
		core.WithMaxRetries(2),
		core.WithConcurrency(concurrency),
	)
	analyze := core.NewBatchNode[core.Shared, CrawledPage, CrawledPage](&analyzePages{provider: provider, logger: logger},
		core.WithName("analyze"),
		core.WithMaxRetries(2),
	)
	report := core.NewNode[core.Shared, []CrawledPage, string](crawlReport{}, core.WithName("report"))
	core.Chain[core.Shared](fetch, analyze, report)
	return core.NewFlow[core.Shared](fetch, core.WithName("crawler"))
}

func runCrawler(ctx context.Context, deps Deps) error {
	urls := defaultCrawlURLs
	if deps.Input != "" {
		urls = strings.Fields(strings.ReplaceAll(deps.Input, ",", " "))
	}
	shared := core.Shared{"urls": urls}
	if _, err := NewCrawlerFlow(deps.Fetcher, deps.Provider, deps.Logger, deps.Concurrency).Run(ctx, shared); err != nil {
		return err
	}
	fmt.Fprintln(deps.Out, shared["report"])
	return nil
}
