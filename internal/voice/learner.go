// Package voice passively learns a client's writing style from the messages
// they send. Learning runs detached from the request path: it may fail or
// lag without ever touching the chat reply.
package voice

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/llm"
	"github.com/copydesk-io/copydesk/internal/models"
)

// minSampleLen skips messages too short to say anything about voice.
const minSampleLen = 120

// styleBriefCap bounds the accumulated brief; oldest notes fall off the
// front when it is exceeded.
const styleBriefCap = 2400

// Learner folds writing samples into an account's VoiceProfile.
type Learner struct {
	store *database.Store
	model llm.Client
}

// NewLearner wires a learner to the store and model.
func NewLearner(store *database.Store, model llm.Client) *Learner {
	return &Learner{store: store, model: model}
}

// Learn processes one writing sample. Safe to call in a goroutine; all
// failures are logged and swallowed.
func (l *Learner) Learn(accountID, sample string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[VOICE] learner panic for %s: %v", accountID, r)
		}
	}()

	sample = strings.TrimSpace(sample)
	if len(sample) < minSampleLen {
		return
	}

	profile, err := l.store.GetVoiceProfile(accountID)
	if err != nil {
		log.Printf("[VOICE] failed to load profile for %s: %v", accountID, err)
		return
	}
	if !profile.CanLearn() {
		return
	}
	if profile == nil {
		profile = &models.VoiceProfile{AccountID: accountID}
	}

	note := observeStyle(sample)
	if note == "" {
		return
	}

	profile.StyleBrief = appendWithCap(profile.StyleBrief, note, styleBriefCap)
	profile.SampleCount++
	profile.LastLearned = time.Now().UTC()

	if l.model != nil && l.model.Configured() {
		if tone := l.describeTone(sample); tone != "" {
			profile.ToneNotes = tone // full replace
		}
	}

	if err := l.store.SaveVoiceProfile(profile); err != nil {
		log.Printf("[VOICE] failed to save profile for %s: %v", accountID, err)
	}
}

// observeStyle derives deterministic style observations from one sample.
func observeStyle(sample string) string {
	var notes []string

	sentences := strings.FieldsFunc(sample, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	words := len(strings.Fields(sample))
	if len(sentences) > 0 {
		avg := words / len(sentences)
		switch {
		case avg <= 10:
			notes = append(notes, "writes in short, punchy sentences")
		case avg >= 25:
			notes = append(notes, "writes in long, flowing sentences")
		}
	}

	lower := strings.ToLower(sample)
	for _, c := range []string{"don't", "can't", "won't", "it's", "i'm", "we're"} {
		if strings.Contains(lower, c) {
			notes = append(notes, "uses contractions freely")
			break
		}
	}
	if strings.Contains(sample, "?") {
		notes = append(notes, "asks the reader direct questions")
	}
	if strings.Count(sample, "!") >= 2 {
		notes = append(notes, "leans on exclamation for energy")
	}

	return strings.Join(notes, "; ")
}

// describeTone asks the model for a one-line tone description.
func (l *Learner) describeTone(sample string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := l.model.Generate(ctx,
		"Describe the tone of this writing in one short line, e.g. \"dry, confident, lightly ironic\". Output only the line.",
		nil, sample)
	if err != nil {
		log.Printf("[VOICE] tone description failed: %v", err)
		return ""
	}
	out = strings.TrimSpace(out)
	if out == llm.NoResponse {
		return ""
	}
	return out
}

// appendWithCap joins note onto brief, trimming whole lines off the front
// once the cap is exceeded.
func appendWithCap(brief, note string, limit int) string {
	if brief == "" {
		brief = note
	} else {
		brief = brief + "\n" + note
	}
	for len(brief) > limit {
		i := strings.IndexByte(brief, '\n')
		if i < 0 {
			return brief[len(brief)-limit:]
		}
		brief = brief[i+1:]
	}
	return brief
}
