// Package webfetch downloads web pages and converts them to Markdown for LLM
// consumption.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "brainyflow-webfetch/1.0"
	MaxBodySize      = 10 * 1024 * 1024
	maxRedirects     = 10
)

// ErrTooLarge is returned when a page exceeds the body limit.
var ErrTooLarge = errors.New("webfetch: response body too large")

// Page is a fetched document.
type Page struct {
	// URL is the final address after redirects.
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Input is the argument of the fetch_page tool.
type Input struct {
	URL string `json:"url" description:"Address of the page, https:// is added when missing" validate:"required"`
}

// Fetcher retrieves pages over HTTP.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithMaxBodySize lowers or raises the response size limit.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) { f.maxBodySize = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher following at most ten redirects.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (>%d)", maxRedirects)
				}
				return nil
			},
		},
		userAgent:   DefaultUserAgent,
		maxBodySize: MaxBodySize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL and converts the HTML body to Markdown. Anything but
// 200 OK is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return Page{}, fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return Page{}, fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.maxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return Page{}, fmt.Errorf("convert html: %w", err)
	}

	final := resp.Request.URL.String()
	f.logger.Debug("page fetched",
		zap.String("url", final),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))
	return Page{URL: final, Markdown: strings.TrimSpace(markdown)}, nil
}

// Tool adapts Fetch to the signature expected by tools.Register.
func (f *Fetcher) Tool(ctx context.Context, in Input) (Page, error) {
	return f.Fetch(ctx, in.URL)
}
