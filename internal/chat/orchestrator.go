// Package chat implements the message-intake pipeline: one inbound message
// plus persisted per-user state in, a canned reply, a composed model prompt,
// or a state mutation out.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/llm"
	"github.com/copydesk-io/copydesk/internal/models"
	"github.com/copydesk-io/copydesk/internal/research"
)

// ErrUnauthorized maps to a 403 at the HTTP layer. Nothing is written when
// it is returned.
var ErrUnauthorized = errors.New("unauthorized")

// Archiver is the optional best-effort transcript sink.
type Archiver interface {
	ArchiveTurn(ctx context.Context, accountID string, role models.TurnRole, content string) error
}

// Learner is the detached voice-learning hook.
type Learner interface {
	Learn(accountID, sample string)
}

// Pipeline sequences one message through the intake stages.
type Pipeline struct {
	store    *database.Store
	model    llm.Client
	fetcher  *research.Fetcher
	searcher *research.Searcher
	archiver Archiver
	learner  Learner

	// Per-account mutual exclusion across the stateful stages. Two
	// concurrent messages for one account would otherwise race on
	// UserState with last-write-wins.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// In-memory MENU memory, best-effort freshness within one process.
	menuMu   sync.Mutex
	lastMenu map[string][]int
	rng      *rand.Rand
}

// NewPipeline wires the pipeline. archiver and learner may be nil.
func NewPipeline(store *database.Store, model llm.Client, fetcher *research.Fetcher, searcher *research.Searcher, archiver Archiver, learner Learner) *Pipeline {
	return &Pipeline{
		store:    store,
		model:    model,
		fetcher:  fetcher,
		searcher: searcher,
		archiver: archiver,
		learner:  learner,
		locks:    map[string]*sync.Mutex{},
		lastMenu: map[string][]int{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Authenticate resolves an account by identity and bearer token. Fails with
// ErrUnauthorized on unknown account, lapsed subscription, or token
// mismatch; performs no writes either way.
func (p *Pipeline) Authenticate(email, token string) (*models.Account, error) {
	acct, err := p.store.GetAccountByEmail(strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !acct.CanChat() || !auth.VerifyBearerToken(acct.TokenHash, token) {
		return nil, ErrUnauthorized
	}
	return acct, nil
}

// Handle authenticates and runs one message through the pipeline.
func (p *Pipeline) Handle(ctx context.Context, email, token, message string) (string, error) {
	acct, err := p.Authenticate(email, token)
	if err != nil {
		return "", err
	}
	return p.HandleMessage(ctx, acct, message)
}

// HandleMessage runs one message for an already-authenticated account.
func (p *Pipeline) HandleMessage(ctx context.Context, acct *models.Account, message string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CHAT] panic handling message for %s: %v", acct.ID, r)
			err = fmt.Errorf("panic in pipeline: %v", r)
		}
	}()

	lock := p.accountLock(acct.ID)
	lock.Lock()
	defer lock.Unlock()

	// Log the inbound turn. Best-effort: a full chat log is not worth
	// failing the reply over.
	p.logTurn(ctx, acct.ID, models.RoleUser, message)

	state, err := p.store.GetUserState(acct.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load user state: %v", err)
	}
	voiceProfile, err := p.store.GetVoiceProfile(acct.ID)
	if err != nil {
		log.Printf("[CHAT] failed to load voice profile for %s: %v", acct.ID, err)
		voiceProfile = nil
	}

	if p.learner != nil {
		go p.learner.Learn(acct.ID, message)
	}

	cmd := ParseCommand(message)
	if cmd != nil && cmd.Kind != CmdStop {
		// Any message resolves a pending preflight, commands included.
		if state.Pending != nil {
			state.Pending = nil
			if err := p.store.SaveUserState(state); err != nil {
				log.Printf("[CHAT] failed to clear pending preflight for %s: %v", acct.ID, err)
			}
		}
		reply, err := p.executeCommand(acct, state, cmd)
		if err != nil {
			return "", err
		}
		p.logTurn(ctx, acct.ID, models.RoleAssistant, reply)
		return reply, nil
	}

	effective := message

	// Preflight gate. A pending marker always resolves on this message; a
	// new unclear message costs exactly one clarifying round-trip.
	if state.Pending != nil {
		pending := state.Pending
		state.Pending = nil
		if err := p.store.SaveUserState(state); err != nil {
			log.Printf("[CHAT] failed to clear pending preflight for %s: %v", acct.ID, err)
		}
		if cmd == nil {
			if IsAffirmation(message) {
				effective = pending.Original
			} else {
				effective = rewriteBrief(pending.Assumption, message)
			}
		}
	} else if cmd == nil && !IsClear(message) {
		assumption := p.synthesizeAssumption(ctx, message)
		state.Pending = &models.PendingPreflight{
			Assumption: assumption,
			Original:   message,
			CreatedAt:  time.Now().UTC(),
		}
		if err := p.store.SaveUserState(state); err != nil {
			log.Printf("[CHAT] failed to persist pending preflight for %s: %v", acct.ID, err)
		}
		reply := assumption + " " + preflightQuestion
		p.logTurn(ctx, acct.ID, models.RoleAssistant, reply)
		return reply, nil
	}

	researchBlock, effective := p.gatherResearch(effective)

	mode := DetectMode(effective)
	if mode != ModeNone {
		effective = StripModeLine(effective)
	}

	stop := cmd != nil && cmd.Kind == CmdStop
	if stop {
		effective = stopDirective
	}

	history := p.recentHistory(acct.ID, message)

	system := AssemblePrompt(PromptInput{
		Account:  acct,
		State:    state,
		Voice:    voiceProfile,
		Mode:     mode,
		Research: researchBlock,
		Stop:     stop,
	})

	raw, err := p.model.Generate(ctx, system, history, effective)
	if err != nil {
		return "", fmt.Errorf("generation failed: %v", err)
	}
	reply = Scrub(raw, state.BannedWords)

	p.logTurn(ctx, acct.ID, models.RoleAssistant, reply)
	return reply, nil
}

// gatherResearch resolves the RESEARCH: directive and any URL tokens into
// one labeled block, returning the message with the directive line removed.
// Best-effort throughout: failures are logged, never surfaced.
func (p *Pipeline) gatherResearch(message string) (block, effective string) {
	var sections []string

	if query, rest, ok := research.SplitResearchQuery(message); ok {
		if p.searcher != nil && p.searcher.Configured() {
			results, err := p.searcher.Search(query)
			if err != nil {
				log.Printf("[CHAT] search failed for %q: %v", query, err)
			} else if len(results) > 0 {
				sections = append(sections,
					fmt.Sprintf("Web search results for %q:\n%s", query, research.FormatResults(results)))
			}
		}
		// The directive line is consumed here; the model never sees it.
		message = rest
	}

	if p.fetcher != nil {
		if urls := research.ExtractURLs(message); len(urls) > 0 {
			for _, src := range p.fetcher.FetchAll(urls) {
				sections = append(sections, fmt.Sprintf("Source %s:\n%s", src.URL, src.Text))
			}
		}
	}

	return strings.Join(sections, "\n\n"), message
}

// recentHistory reads back the most recent turns, excluding the inbound
// message that was just logged.
func (p *Pipeline) recentHistory(accountID, inbound string) []models.ConversationTurn {
	turns, err := p.store.RecentTurns(accountID, HistoryTurns+1)
	if err != nil {
		log.Printf("[CHAT] failed to load history for %s: %v", accountID, err)
		return nil
	}
	if n := len(turns); n > 0 && turns[n-1].Role == models.RoleUser && turns[n-1].Content == inbound {
		turns = turns[:n-1]
	}
	return BoundHistory(turns)
}

// logTurn appends to the conversation log and mirrors to the archive, both
// best-effort.
func (p *Pipeline) logTurn(ctx context.Context, accountID string, role models.TurnRole, content string) {
	if err := p.store.AppendTurn(accountID, role, content); err != nil {
		log.Printf("[CHAT] failed to log %s turn for %s: %v", role, accountID, err)
	}
	if p.archiver != nil {
		if err := p.archiver.ArchiveTurn(ctx, accountID, role, content); err != nil {
			log.Printf("[CHAT] failed to archive %s turn for %s: %v", role, accountID, err)
		}
	}
}

func (p *Pipeline) accountLock(accountID string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	if m, ok := p.locks[accountID]; ok {
		return m
	}
	m := &sync.Mutex{}
	p.locks[accountID] = m
	return m
}

// executeCommand runs a parsed directive's handler. State mutations the
// user asked for explicitly must not silently no-op, so persistence errors
// propagate.
func (p *Pipeline) executeCommand(acct *models.Account, state *models.UserState, cmd *Command) (string, error) {
	switch cmd.Kind {
	case CmdMenu:
		return p.menuReply(acct.ID), nil

	case CmdReviewAvatar:
		if len(state.Audience) == 0 {
			return "No avatar on file yet. Send AVATAR followed by a description of who you're writing for.", nil
		}
		keys := make([]string, 0, len(state.Audience))
		for k := range state.Audience {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("Here's the audience I'm writing for:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, state.Audience[k])
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case CmdSetAvatar:
		state.Audience = parseAudience(cmd.Payload)
		if err := p.store.SaveUserState(state); err != nil {
			return "", fmt.Errorf("failed to save avatar: %v", err)
		}
		return "Avatar saved. Everything I write now aims at them. Send REVIEW AVATAR any time to check it.", nil

	case CmdSetProfile:
		state.SelfProfile = cmd.Payload
		if err := p.store.SaveUserState(state); err != nil {
			return "", fmt.Errorf("failed to save profile: %v", err)
		}
		return "Got it. Your profile is updated.", nil

	case CmdAppendProfile:
		if state.SelfProfile == "" {
			state.SelfProfile = cmd.Payload
		} else {
			state.SelfProfile = state.SelfProfile + "\n" + cmd.Payload
		}
		if err := p.store.SaveUserState(state); err != nil {
			return "", fmt.Errorf("failed to update profile: %v", err)
		}
		return "Added to your profile.", nil

	case CmdBanWord:
		word := strings.ToLower(strings.TrimSpace(cmd.Payload))
		if !state.AddBannedWord(word) {
			return fmt.Sprintf("%q is already in the sin bin.", word), nil
		}
		if err := p.store.SaveUserState(state); err != nil {
			return "", fmt.Errorf("failed to update sin bin: %v", err)
		}
		return fmt.Sprintf("%q goes in the sin bin. You won't see it again.", word), nil

	case CmdUnbanWord:
		word := strings.ToLower(strings.TrimSpace(cmd.Payload))
		if !state.RemoveBannedWord(word) {
			return fmt.Sprintf("%q wasn't in the sin bin.", word), nil
		}
		if err := p.store.SaveUserState(state); err != nil {
			return "", fmt.Errorf("failed to update sin bin: %v", err)
		}
		return fmt.Sprintf("%q is out of the sin bin.", word), nil
	}
	return "", fmt.Errorf("unhandled command kind %d", cmd.Kind)
}

// menuReply returns a fresh random subset of suggestions, avoiding the
// previous subset for the account where possible.
func (p *Pipeline) menuReply(accountID string) string {
	p.menuMu.Lock()
	defer p.menuMu.Unlock()

	previous := map[int]bool{}
	for _, i := range p.lastMenu[accountID] {
		previous[i] = true
	}

	perm := p.rng.Perm(len(menuSuggestions))
	picked := make([]int, 0, menuSize)
	// First pass skips last time's picks; second pass fills up regardless.
	for _, i := range perm {
		if len(picked) == menuSize {
			break
		}
		if !previous[i] {
			picked = append(picked, i)
		}
	}
	for _, i := range perm {
		if len(picked) == menuSize {
			break
		}
		if previous[i] {
			picked = append(picked, i)
		}
	}
	p.lastMenu[accountID] = picked

	var b strings.Builder
	b.WriteString("A few places to start. Send one back, or MENU AGAIN for more:\n")
	for _, i := range picked {
		fmt.Fprintf(&b, "- %s\n", menuSuggestions[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
