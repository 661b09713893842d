package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/copydesk-io/copydesk/internal/models"
)

// HistoryTurns is how many recent conversation turns ride along with each
// prompt.
const HistoryTurns = 4

// historyTurnCap truncates any single history turn to this many bytes.
const historyTurnCap = 1500

// stanceKey is the preference that, when set, injects the stance guardrail.
const stanceKey = "stance"

// PromptInput carries everything the assembler folds into one prompt.
type PromptInput struct {
	Account  *models.Account
	State    *models.UserState
	Voice    *models.VoiceProfile
	Mode     Mode
	Research string // formatted research block, or ""
	Stop     bool
}

// AssemblePrompt builds the ordered instruction blocks for the model. The
// order is fixed: later blocks override earlier ones in the model's eyes,
// and tests depend on it being stable.
func AssemblePrompt(in PromptInput) string {
	blocks := []string{personaRules}

	if brief := buildVoiceBrief(in.State, in.Voice); brief != "" {
		blocks = append(blocks, brief)
	}

	if in.State != nil {
		if stance := strings.TrimSpace(in.State.Preferences[stanceKey]); stance != "" && !strings.EqualFold(stance, "none") {
			blocks = append(blocks, fmt.Sprintf(
				"Business stance: %s. Hold this stance throughout. Do not argue against it or quietly soften it.", stance))
		}
	}

	if in.Research != "" {
		blocks = append(blocks, "Research material. Prefer this over guessing:\n"+in.Research)
	}

	if in.Mode != ModeNone {
		blocks = append(blocks, fmt.Sprintf(
			"Format mode: %s. Follow this shape. Do not pitch anything unless asked.", in.Mode))
	}

	if in.Mode.IsOutlineStyle() {
		blocks = append(blocks,
			"This is an outline/how-to piece: no calls-to-action, no sign-up prompts, no product plugs unless the client explicitly asked for one.")
	}

	if in.Stop {
		blocks = append(blocks,
			"Stop protocol: the client said STOP. Draft immediately from what you already have. You may end with at most one optional follow-up offer, nothing more.")
	}

	if in.Account != nil {
		blocks = append(blocks, fmt.Sprintf("You are writing for %s <%s>.", in.Account.Name, in.Account.Email))
	}

	return strings.Join(blocks, "\n\n")
}

// buildVoiceBrief synthesizes the client voice block from the learned
// profile and the user's own state. Returns "" when there is nothing to say.
func buildVoiceBrief(state *models.UserState, voice *models.VoiceProfile) string {
	var parts []string

	if voice != nil {
		if v := strings.TrimSpace(voice.StyleBrief); v != "" {
			parts = append(parts, "Voice notes learned from their own writing:\n"+v)
		}
		if v := strings.TrimSpace(voice.ToneNotes); v != "" {
			parts = append(parts, "Tone: "+v)
		}
	}

	if state != nil {
		if len(state.Audience) > 0 {
			keys := make([]string, 0, len(state.Audience))
			for k := range state.Audience {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var b strings.Builder
			b.WriteString("Audience:")
			for _, k := range keys {
				fmt.Fprintf(&b, "\n- %s: %s", k, state.Audience[k])
			}
			parts = append(parts, b.String())
		}
		if v := strings.TrimSpace(state.SelfProfile); v != "" {
			parts = append(parts, "About the client, in their words:\n"+v)
		}
		prefKeys := make([]string, 0, len(state.Preferences))
		for k := range state.Preferences {
			if k == stanceKey || k == "" || strings.TrimSpace(state.Preferences[k]) == "" {
				continue
			}
			prefKeys = append(prefKeys, k)
		}
		sort.Strings(prefKeys)
		for _, k := range prefKeys {
			parts = append(parts, fmt.Sprintf("Preference (%s): %s", k, state.Preferences[k]))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "Client voice brief:\n\n" + strings.Join(parts, "\n\n")
}

// BoundHistory trims each turn to the per-turn cap and keeps only the most
// recent HistoryTurns entries, preserving chronological order.
func BoundHistory(turns []models.ConversationTurn) []models.ConversationTurn {
	if len(turns) > HistoryTurns {
		turns = turns[len(turns)-HistoryTurns:]
	}
	out := make([]models.ConversationTurn, len(turns))
	for i, t := range turns {
		if len(t.Content) > historyTurnCap {
			t.Content = t.Content[:historyTurnCap]
		}
		out[i] = t
	}
	return out
}
