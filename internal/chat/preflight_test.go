package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsClearLongMessage(t *testing.T) {
	long := strings.Repeat("I need a post about our launch and what it means. ", 5)
	assert.True(t, IsClear(long))
}

func TestIsClearMultiline(t *testing.T) {
	assert.True(t, IsClear("fix this\nHere is my draft\nIt goes on a bit"))
}

func TestIsClearWithURL(t *testing.T) {
	assert.True(t, IsClear("rewrite https://example.com/about"))
}

func TestIsClearPlatformMarkerRescues(t *testing.T) {
	assert.True(t, IsClear("write me a LinkedIn post"))
	assert.True(t, IsClear("draft a bio"))
}

func TestUnclearShortTaskMessage(t *testing.T) {
	assert.False(t, IsClear("help me write something"))
	assert.False(t, IsClear("can you improve this"))
	assert.False(t, IsClear("draft it for me"))
}

func TestClearWithoutTaskVerb(t *testing.T) {
	// No task verb: defaults to clear, even when short.
	assert.True(t, IsClear("thanks, that was great"))
}

func TestIsAffirmation(t *testing.T) {
	for _, msg := range []string{"yes", "Yes!", "yep", "spot on", "exactly right", "sounds good, go"} {
		assert.True(t, IsAffirmation(msg), msg)
	}
	for _, msg := range []string{"no", "not quite", "make it about dogs instead", "yesterday's post"} {
		assert.False(t, IsAffirmation(msg), msg)
	}
}

func TestRewriteBrief(t *testing.T) {
	out := rewriteBrief("So I'm getting a request to write a bio, aimed at clients, to win work.", "make it funnier")
	assert.Contains(t, out, "write a bio")
	assert.Contains(t, out, "make it funnier")
	assert.Contains(t, out, "overrides")
}
