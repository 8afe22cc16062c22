package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/compass/pkg/crm"
	"github.com/gobwas/glob"
	"golang.org/x/net/html"
)

// WebSearchTool runs a query against the configured web search collaborator.
type WebSearchTool struct {
	searcher crm.WebSearcher
}

// NewWebSearchTool creates a web search tool.
func NewWebSearchTool(searcher crm.WebSearcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web and return a formatted list of results. Useful for finding job postings and company information."
}

func (t *WebSearchTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{
		"query": StringProperty("The search query"),
	}, []string{"query"})
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := StringArg(args, "query")
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	return t.searcher.Search(ctx, query)
}

// WebFetchTool downloads a page and returns its visible text. Fetches are
// restricted to an allow-list of domain patterns.
type WebFetchTool struct {
	client         *http.Client
	allowedDomains []glob.Glob
	maxBytes       int64
}

// NewWebFetchTool creates a web fetch tool. allowedDomains are glob patterns
// matched against the request host (e.g. "*.example.com"); an empty list
// allows any host.
func NewWebFetchTool(allowedDomains []string) (*WebFetchTool, error) {
	globs := make([]glob.Glob, 0, len(allowedDomains))
	for _, pattern := range allowedDomains {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid domain pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return &WebFetchTool{
		client:         &http.Client{Timeout: 30 * time.Second},
		allowedDomains: globs,
		maxBytes:       2 << 20, // 2 MiB page cap
	}, nil
}

func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

func (t *WebFetchTool) Description() string {
	return "Fetch a web page by URL and return its visible text content."
}

func (t *WebFetchTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{
		"url": StringProperty("Absolute URL to fetch, including protocol"),
	}, []string{"url"})
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, _ := StringArg(args, "url")
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}
	if !t.hostAllowed(parsed.Hostname()) {
		return "", fmt.Errorf("host %q is not in the allowed domain list", parsed.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, t.maxBytes)
	text, err := extractText(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "The page contained no visible text.", nil
	}
	return text, nil
}

func (t *WebFetchTool) hostAllowed(host string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}
	for _, g := range t.allowedDomains {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// extractText walks the HTML tree collecting text nodes, skipping script and
// style subtrees and collapsing whitespace runs.
func extractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				b.WriteString(trimmed)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimRight(b.String(), "\n"), nil
}
