package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubEmDashAndBannedWord(t *testing.T) {
	got := Scrub("This—really—works", []string{"really"})
	assert.Equal(t, "This: works", got)
}

func TestScrubIsFixedPoint(t *testing.T) {
	banned := []string{"really", "synergy"}
	once := Scrub("We really unlock synergy—fast", banned)
	twice := Scrub(once, banned)
	assert.Equal(t, once, twice)
}

func TestScrubWholeWordOnly(t *testing.T) {
	got := Scrub("The delver delved into it", []string{"delve"})
	assert.Equal(t, "The delver delved into it", got)

	got = Scrub("Let me delve into it", []string{"delve"})
	assert.Equal(t, "Let me into it", got)
}

func TestScrubCaseInsensitive(t *testing.T) {
	got := Scrub("Synergy. SYNERGY! synergy?", []string{"synergy"})
	assert.NotContains(t, got, "ynergy")
}

func TestScrubCollapsesSpaces(t *testing.T) {
	assert.Equal(t, "one two three", Scrub("one  two   three", nil))
}

func TestScrubDefaultSeedApplies(t *testing.T) {
	// No per-user list: the default seed still scrubs.
	got := Scrub("We delve into topics and unleash ideas", nil)
	assert.NotContains(t, got, "delve")
	assert.NotContains(t, got, "unleash")
}
