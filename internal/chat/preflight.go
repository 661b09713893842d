package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/copydesk-io/copydesk/internal/llm"
	"github.com/copydesk-io/copydesk/internal/research"
)

// Clarity thresholds. Tunable: the shape of the decision matters, the exact
// numbers do not.
const (
	clearLengthMin   = 220 // messages this long carry their own context
	unclearLengthMax = 140 // short task-verb messages below this are unclear
	clearNewlinesMin = 2
)

// taskVerbs signal intent without saying what for.
var taskVerbs = []string{
	"write", "draft", "rewrite", "fix", "improve", "edit", "create",
	"make", "polish", "punch up", "help",
}

// platformMarkers are the context words that rescue a short task message.
var platformMarkers = []string{
	"linkedin", "blog", "email", "bio", "newsletter", "twitter", "tweet",
	"instagram", "facebook", "landing page", "homepage", "website", "ad",
	"headline", "post", "article", "case study", "press release", "pitch",
}

// agreementPhrases resolve a pending preflight as a yes.
var agreementPhrases = []string{
	"yes", "yep", "yeah", "yup", "correct", "right", "exactly", "spot on",
	"that's it", "thats it", "sounds good", "sounds right", "go ahead",
	"go for it", "sure", "perfect", "on track", "bang on", "you got it",
}

// IsClear classifies a free-text message. Clear messages go straight to
// generation; unclear ones cost the user one confirmation round-trip.
func IsClear(message string) bool {
	trimmed := strings.TrimSpace(message)

	if len(trimmed) >= clearLengthMin {
		return true
	}
	if strings.Count(trimmed, "\n") >= clearNewlinesMin {
		return true
	}
	if len(research.ExtractURLs(trimmed)) > 0 {
		return true
	}

	lower := strings.ToLower(trimmed)
	hasVerb := false
	for _, v := range taskVerbs {
		if strings.Contains(lower, v) {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return true
	}
	for _, m := range platformMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return len(trimmed) >= unclearLengthMax
}

// IsAffirmation matches the reply to a pending preflight against the
// agreement lexicon.
func IsAffirmation(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.Trim(lower, ".!")
	for _, p := range agreementPhrases {
		if lower == p || strings.HasPrefix(lower, p+" ") || strings.HasPrefix(lower, p+",") {
			return true
		}
	}
	return false
}

// synthesizeAssumption produces the one-sentence working assumption for an
// unclear message. Uses the model when available, otherwise a fixed
// template, so the gate works with no credential configured.
func (p *Pipeline) synthesizeAssumption(ctx context.Context, message string) string {
	if p.model != nil && p.model.Configured() {
		system := `Paraphrase the user's request as exactly one sentence of the form ` +
			`"So I'm getting <what>, aimed at <who>, to <goal>." Fill unstated parts with ` +
			`your best guess. Output only the sentence.`
		out, err := p.model.Generate(ctx, system, nil, message)
		if err == nil {
			out = strings.TrimSpace(out)
			if out != "" && out != llm.NoResponse {
				return out
			}
		}
	}
	return fmt.Sprintf("So I'm getting a request to %s, aimed at your usual audience, to get it ready to publish.",
		strings.TrimRight(strings.TrimSpace(message), ".?!"))
}

// rewriteBrief folds the stored assumption and the user's correction into
// one effective brief for the rest of the pipeline.
func rewriteBrief(assumption, correction string) string {
	return fmt.Sprintf("%s\nAdjustment from the client, which overrides the above where they conflict: %s",
		assumption, strings.TrimSpace(correction))
}
