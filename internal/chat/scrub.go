package chat

import (
	"regexp"
	"strings"

	"github.com/copydesk-io/copydesk/internal/models"
)

var (
	spaceRuns        = regexp.MustCompile(` {2,}`)
	spaceBeforePunct = regexp.MustCompile(` +([,.:;!?])`)
	colonRuns        = regexp.MustCompile(`:[ :]*:`)
)

// Scrub is the deterministic cleanup applied to every generated or fallback
// reply: em-dashes become colons, banned words are removed whole-word and
// case-insensitively, and the resulting spacing is tidied. Pure transform;
// running it on its own output is a no-op.
func Scrub(text string, banned []string) string {
	if len(banned) == 0 {
		banned = models.DefaultBannedWords
	}

	out := strings.ReplaceAll(text, "—", ": ")

	for _, w := range banned {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			continue
		}
		out = re.ReplaceAllString(out, "")
	}

	out = spaceRuns.ReplaceAllString(out, " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = colonRuns.ReplaceAllString(out, ":")
	out = spaceRuns.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
