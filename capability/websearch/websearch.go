// Package websearch implements the web-search capability using the
// DuckDuckGo HTML endpoint.
package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/diligence/capability"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/tool"
	"golang.org/x/net/html"
)

// DefaultBaseURL is the DuckDuckGo HTML search endpoint.
const DefaultBaseURL = "https://html.duckduckgo.com"

const (
	defaultMaxResults = 8
	maxResultsCap     = 25
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Options configures the searcher.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  logging.Logger
}

// Searcher queries DuckDuckGo and parses the result page.
type Searcher struct {
	http   *capability.HTTPClient
	logger logging.Logger
}

// New constructs a Searcher.
func New(optFns ...func(o *Options)) *Searcher {
	opts := Options{BaseURL: DefaultBaseURL, Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	hc := capability.NewHTTPClient(core.CapabilityWebSearch, opts.BaseURL, opts.Timeout)
	hc.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	return &Searcher{http: hc, logger: logging.ForComponent(opts.Logger, "websearch")}
}

// NewPort builds the web-search port.
func NewPort(optFns ...func(o *Options)) *tool.Set {
	s := New(optFns...)
	return tool.NewSet(core.CapabilityWebSearch, []*tool.Action{s.Action()}, func(o *tool.SetOptions) { o.Logger = s.logger })
}

// SearchArgs are the arguments of web_search.
type SearchArgs struct {
	Query      string `json:"query" jsonschema_description:"Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results (default 8)"`
}

// Action returns the web_search action.
func (s *Searcher) Action() *tool.Action {
	return tool.NewActionFromStruct("web_search", "Search the public web; returns ordered title, snippet and url", SearchArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			return s.Search(ctx, util.StringArg(args, "query"), util.IntArg(args, "max_results", defaultMaxResults))
		})
}

// Search runs query and returns at most maxResults hits in page order. An
// empty page is NotFound.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = defaultMaxResults
	}

	body, err := s.http.Get(ctx, "web_search", "/html/", url.Values{"q": {query}}, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}

	results, err := ParseResults(string(body), maxResults)
	if err != nil {
		return nil, core.NewCapabilityError(core.ErrorKindTransient, core.CapabilityWebSearch, "web_search", err)
	}
	s.logger.Debug("websearch.completed", "query", query, "results", len(results))
	if len(results) == 0 {
		return nil, core.NewCapabilityError(core.ErrorKindNotFound, core.CapabilityWebSearch, "web_search",
			fmt.Errorf("no results for %q", query))
	}
	return results, nil
}

// ParseResults extracts search results from a DuckDuckGo HTML page.
func ParseResults(page string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = attr(n, "href")
				r.Title = text(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	r.URL = unwrapRedirect(r.URL)
	return r
}

// unwrapRedirect resolves DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func unwrapRedirect(raw string) string {
	if !strings.Contains(raw, "duckduckgo.com/l/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
