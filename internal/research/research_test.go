package research

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("compare https://example.com/a and http://example.org/b please")
	assert.Equal(t, []string{"https://example.com/a", "http://example.org/b"}, urls)

	assert.Nil(t, ExtractURLs("no links here"))
}

func TestStripHTML(t *testing.T) {
	raw := `<html><head><title>ignored</title><style>body{color:red}</style></head>
	<body><h1>Hello</h1><script>alert(1)</script><p>World  of   copy</p></body></html>`
	assert.Equal(t, "Hello World of copy", StripHTML(raw))
}

func TestFetchPageTruncatesToBudget(t *testing.T) {
	big := strings.Repeat("padding words here ", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", big)
	}))
	defer srv.Close()

	src, err := NewFetcher().FetchPage(srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(src.Text), MaxSourceBytes)
	assert.True(t, strings.HasPrefix(src.Text, "padding words here"))
}

func TestFetchPageNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher().FetchPage(srv.URL)
	assert.Error(t, err)
}

func TestFetchAllDropsFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>useful content</p>")
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	sources := NewFetcher().FetchAll([]string{bad.URL, good.URL})
	require.Len(t, sources, 1)
	assert.Equal(t, good.URL, sources[0].URL)
	assert.Equal(t, "useful content", sources[0].Text)

	// The dropped URL shows up in the log, not in the results.
	assert.Contains(t, logged.String(), "[RESEARCH]")
	assert.Contains(t, logged.String(), bad.URL)
}

func TestSplitResearchQuery(t *testing.T) {
	query, rest, ok := SplitResearchQuery("RESEARCH: b2b pricing pages\nwrite a teardown")
	require.True(t, ok)
	assert.Equal(t, "b2b pricing pages", query)
	assert.Equal(t, "write a teardown", rest)

	query, rest, ok = SplitResearchQuery("research: lowercase works too")
	require.True(t, ok)
	assert.Equal(t, "lowercase works too", query)
	assert.Equal(t, "", rest)

	_, rest, ok = SplitResearchQuery("just a normal message")
	assert.False(t, ok)
	assert.Equal(t, "just a normal message", rest)
}

func TestSearcherUnconfigured(t *testing.T) {
	results, err := NewSearcher("", "").Search("anything")
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "b2b saas", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"results":[{"title":"T1","url":"https://a.test","snippet":"s1"}]}`)
	}))
	defer srv.Close()

	results, err := NewSearcher(srv.URL, "key-1").Search("b2b saas")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "T1", results[0].Title)

	formatted := FormatResults(results)
	assert.Equal(t, "1. T1\n   https://a.test\n   s1", formatted)
}
