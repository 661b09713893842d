package research

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ResearchPrefix marks a first line that requests a web search.
const ResearchPrefix = "RESEARCH:"

// SearchResult is one ranked web-search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher calls an external web-search API. An unconfigured searcher
// returns empty results, never errors.
type Searcher struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewSearcher creates a search client. Endpoint may be empty.
func NewSearcher(endpoint, apiKey string) *Searcher {
	return &Searcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Configured reports whether a search endpoint is set.
func (s *Searcher) Configured() bool {
	return s.endpoint != ""
}

// Search runs a query and returns ranked results.
func (s *Searcher) Search(query string) ([]SearchResult, error) {
	if !s.Configured() {
		return nil, nil
	}

	req, err := http.NewRequest(http.MethodGet, s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %v", err)
	}
	return payload.Results, nil
}

// SplitResearchQuery checks whether the first line of a message is a
// RESEARCH: directive. It returns the query, the message with that line
// removed, and whether the directive was present.
func SplitResearchQuery(message string) (query, rest string, ok bool) {
	first := message
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		first, rest = message[:i], strings.TrimSpace(message[i+1:])
	}
	trimmed := strings.TrimSpace(first)
	if len(trimmed) < len(ResearchPrefix) || !strings.EqualFold(trimmed[:len(ResearchPrefix)], ResearchPrefix) {
		return "", message, false
	}
	query = strings.TrimSpace(trimmed[len(ResearchPrefix):])
	if query == "" {
		return "", message, false
	}
	return query, rest, true
}

// FormatResults renders search hits as the numbered list the assembler
// injects into the prompt.
func FormatResults(results []SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
