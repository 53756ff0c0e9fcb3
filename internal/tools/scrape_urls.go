package tools

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/polaris-ai/agent-platform/internal/fetch"
)

const maxScrapeURLs = 5

// ScrapeURLsTool fetches web pages and returns their text content. URLs are
// fetched concurrently; a failure on one URL is reported inline and does not
// fail the batch.
type ScrapeURLsTool struct {
	fetcher fetch.Fetcher
}

// NewScrapeURLsTool creates the scrape_urls tool.
func NewScrapeURLsTool(f fetch.Fetcher) *ScrapeURLsTool {
	return &ScrapeURLsTool{fetcher: f}
}

func (t *ScrapeURLsTool) Name() string {
	return "scrape_urls"
}

func (t *ScrapeURLsTool) Description() string {
	return "Fetch one or more web pages and return their readable text content."
}

func (t *ScrapeURLsTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"urls": {
					Type:        genai.TypeArray,
					Description: "URLs to fetch, at most 5 per call",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"urls"},
		},
	}
}

func (t *ScrapeURLsTool) Validate(args map[string]any) error {
	urls, ok := GetStringSlice(args, "urls")
	if !ok || len(urls) == 0 {
		return NewValidationError("urls", "must be a non-empty array of URLs")
	}
	if len(urls) > maxScrapeURLs {
		return NewValidationError("urls", "must contain at most 5 URLs")
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return NewValidationError("urls", "every URL must start with http:// or https://")
		}
	}
	return nil
}

type scrapeResult struct {
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (t *ScrapeURLsTool) Execute(ctx context.Context, args map[string]any) Result {
	urls, _ := GetStringSlice(args, "urls")

	results := make([]scrapeResult, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			content, err := t.fetcher.Fetch(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = scrapeResult{URL: u, Error: err.Error()}
			} else {
				results[i] = scrapeResult{URL: u, Content: content}
			}
			return nil
		})
	}
	// Goroutines never return errors; failures land in the result slice.
	_ = g.Wait()

	return Ok(results)
}
