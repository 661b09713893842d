package chat

import "strings"

// Mode is a recognized structural directive shaping the output format.
type Mode string

const (
	ModeNone      Mode = ""
	ModeLightEdit Mode = "LIGHT EDIT"
	ModeEdit      Mode = "EDIT"
	ModeRewrite   Mode = "REWRITE"
	ModeRebuild   Mode = "REBUILD"
	ModeAssess    Mode = "ASSESS"
	ModeAnalyse   Mode = "ANALYSE"
	ModeDraft     Mode = "DRAFT"
	ModeOutline   Mode = "OUTLINE"
	ModePrompt    Mode = "PROMPT"
	ModeLongform  Mode = "LONGFORM"
)

const modePrefix = "MODE:"

var modeVocabulary = map[string]Mode{
	"LIGHT EDIT": ModeLightEdit,
	"EDIT":       ModeEdit,
	"REWRITE":    ModeRewrite,
	"REBUILD":    ModeRebuild,
	"ASSESS":     ModeAssess,
	"ANALYSE":    ModeAnalyse,
	"ANALYZE":    ModeAnalyse,
	"DRAFT":      ModeDraft,
	"OUTLINE":    ModeOutline,
	"HOW-TO":     ModeOutline,
	"HOW-TO:":    ModeOutline,
	"PROMPT":     ModePrompt,
	"LONGFORM":   ModeLongform,
}

// DetectMode inspects the first one or two tokens of the stripped message,
// or an explicit MODE: first line, against the fixed vocabulary. At most
// one mode per message.
func DetectMode(message string) Mode {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return ModeNone
	}

	// Explicit MODE: NAME as the first line wins, any case.
	firstLine := trimmed
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		firstLine = strings.TrimSpace(trimmed[:i])
	}
	if upper := strings.ToUpper(firstLine); strings.HasPrefix(upper, modePrefix) {
		name := strings.TrimSpace(upper[len(modePrefix):])
		if m, ok := modeVocabulary[name]; ok {
			return m
		}
		return ModeNone
	}

	tokens := strings.Fields(trimmed)
	if len(tokens) >= 2 {
		if m, ok := modeVocabulary[tokens[0]+" "+trimToken(tokens[1])]; ok {
			return m
		}
	}
	if m, ok := modeVocabulary[trimToken(tokens[0])]; ok {
		return m
	}
	return ModeNone
}

// trimToken drops trailing punctuation so "REWRITE:" still matches.
func trimToken(tok string) string {
	return strings.TrimRight(tok, ":,.")
}

// IsOutlineStyle reports whether the mode is an outline/how-to shape, which
// adds the no-sales block to the prompt.
func (m Mode) IsOutlineStyle() bool {
	return m == ModeOutline
}

// StripModeLine removes an explicit MODE: first line from the message so the
// directive does not leak into the draft.
func StripModeLine(message string) string {
	trimmed := strings.TrimSpace(message)
	firstLine := trimmed
	rest := ""
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		firstLine = strings.TrimSpace(trimmed[:i])
		rest = strings.TrimSpace(trimmed[i+1:])
	}
	if strings.HasPrefix(strings.ToUpper(firstLine), modePrefix) {
		return rest
	}
	return trimmed
}
