// Package research provides the optional web collaborators the chat
// pipeline augments prompts with. Everything here is best-effort: failures
// are returned to the caller, which logs and moves on without them.
package research

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// MaxSourceBytes caps the plain text kept from one fetched page.
const MaxSourceBytes = 6000

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractURLs returns all URL tokens found in a message.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Fetcher retrieves web pages and reduces them to bounded plain text.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher with a bounded timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Source is one fetched page reduced to plain text.
type Source struct {
	URL  string
	Text string
}

// FetchPage downloads one page and strips it to plain text, truncated to
// MaxSourceBytes.
func (f *Fetcher) FetchPage(url string) (*Source, error) {
	resp, err := f.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	// Read a little beyond the budget so truncation, not the reader, decides.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes*4))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", url, err)
	}

	text := StripHTML(string(body))
	if len(text) > MaxSourceBytes {
		text = text[:MaxSourceBytes]
	}
	return &Source{URL: url, Text: text}, nil
}

// FetchAll fetches every URL concurrently, dropping the ones that fail.
func (f *Fetcher) FetchAll(urls []string) []Source {
	results := make([]*Source, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			src, err := f.FetchPage(u)
			if err != nil {
				// Failures never suppress the pages that worked.
				log.Printf("[RESEARCH] %v", err)
				return nil
			}
			results[i] = src
			return nil
		})
	}
	_ = g.Wait()

	var out []Source
	for _, r := range results {
		if r != nil && r.Text != "" {
			out = append(out, *r)
		}
	}
	return out
}

// StripHTML reduces an HTML document to its visible text. Script and style
// contents are dropped; runs of whitespace collapse to single spaces.
func StripHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
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
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}
