// Package feed fetches news feeds and extracts headline strings.
//
// Feed bodies are untrusted text. Extraction first tries the gofeed universal
// parser and falls back to lenient pattern matching over <item> and <title>
// fragments, so malformed markup still yields headlines.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// DefaultMaxHeadlines bounds the headline set of one fetch.
const DefaultMaxHeadlines = 15

// maxBodyBytes caps how much of a feed body is read.
const maxBodyBytes = 8 << 20

// ErrNoHeadlines is wrapped by FetchError when a feed parses but is empty.
var ErrNoHeadlines = errors.New("feed: no headlines found")

// FetchError reports a feed that could not produce headlines.
type FetchError struct {
	URL        string
	StatusCode int // zero for transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves feeds over HTTP.
type Fetcher struct {
	client       *http.Client
	parser       *gofeed.Parser
	maxHeadlines int
	userAgent    string
}

// Option configures the fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithMaxHeadlines sets the headline bound.
func WithMaxHeadlines(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxHeadlines = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// NewFetcher creates a feed fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: 30 * time.Second},
		parser:       gofeed.NewParser(),
		maxHeadlines: DefaultMaxHeadlines,
		userAgent:    "moodpulse/1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and returns at most maxHeadlines headlines in feed order.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	headlines := f.Extract(body)
	if len(headlines) == 0 {
		return nil, &FetchError{URL: url, Err: ErrNoHeadlines}
	}
	return headlines, nil
}

// Extract returns cleaned headlines from a raw feed body.
// Extractors are tried in order; the first yielding a non-empty set wins.
func (f *Fetcher) Extract(body []byte) []string {
	extractors := []func([]byte) []string{f.parseFeed, extractItemTitles, extractBareTitles}
	for _, extract := range extractors {
		if out := f.clean(extract(body)); len(out) > 0 {
			return out
		}
	}
	return nil
}

func (f *Fetcher) clean(titles []string) []string {
	out := make([]string, 0, f.maxHeadlines)
	for _, t := range titles {
		h := CleanHeadline(t)
		if h == "" {
			continue
		}
		out = append(out, h)
		if len(out) == f.maxHeadlines {
			break
		}
	}
	return out
}

func (f *Fetcher) parseFeed(body []byte) []string {
	parsed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil || parsed == nil {
		return nil
	}
	titles := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		titles = append(titles, item.Title)
	}
	return titles
}

var (
	itemPattern  = regexp.MustCompile(`(?is)<item\b[^>]*>(.*?)</item>`)
	titlePattern = regexp.MustCompile(`(?is)<title\b[^>]*>(.*?)</title>`)
	cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	// A trailing " - Publisher" attribution, as Google News appends.
	sourceSuffix = regexp.MustCompile(`\s+[-–—]\s+[^-–—]+$`)
	spaces       = regexp.MustCompile(`\s+`)
)

// extractItemTitles takes the first <title> of every <item> block.
func extractItemTitles(body []byte) []string {
	var titles []string
	for _, m := range itemPattern.FindAllSubmatch(body, -1) {
		if t := titlePattern.FindSubmatch(m[1]); t != nil {
			titles = append(titles, string(t[1]))
		}
	}
	return titles
}

// extractBareTitles takes every <title> fragment except the first, which in
// RSS and Atom documents names the channel rather than an article.
func extractBareTitles(body []byte) []string {
	matches := titlePattern.FindAllSubmatch(body, -1)
	if len(matches) < 2 {
		return nil
	}
	titles := make([]string, 0, len(matches)-1)
	for _, m := range matches[1:] {
		titles = append(titles, string(m[1]))
	}
	return titles
}

// CleanHeadline unwraps CDATA, strips markup and entities, collapses
// whitespace and removes a trailing " - source" attribution.
func CleanHeadline(s string) string {
	s = cdataPattern.ReplaceAllString(s, "$1")
	s = html.UnescapeString(s)
	if strings.ContainsAny(s, "<>") {
		s = stripHTML(s)
	}
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if stripped := sourceSuffix.ReplaceAllString(s, ""); stripped != "" {
		s = stripped
	}
	return strings.TrimSpace(s)
}

// stripHTML removes tags using goquery.
func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return doc.Text()
}
