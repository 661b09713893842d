package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel records what the pipeline sends and returns a canned reply.
type fakeModel struct {
	configured  bool
	reply       string
	err         error
	calls       int
	lastSystem  string
	lastHistory []models.ConversationTurn
	lastMessage string
}

func (f *fakeModel) Generate(ctx context.Context, system string, history []models.ConversationTurn, message string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastHistory = history
	f.lastMessage = message
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "Here's a draft for you.", nil
}

func (f *fakeModel) Configured() bool { return f.configured }

type testEnv struct {
	pipeline *Pipeline
	store    *database.Store
	model    *fakeModel
	acct     *models.Account
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := database.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	token, hash, err := auth.NewBearerToken()
	require.NoError(t, err)
	acct := &models.Account{
		ID:         uuid.NewString(),
		Email:      "sam@studio.test",
		Name:       "Sam",
		Subscribed: true,
		TokenHash:  hash,
	}
	require.NoError(t, store.CreateAccount(acct))

	model := &fakeModel{}
	return &testEnv{
		pipeline: NewPipeline(store, model, nil, nil, nil, nil),
		store:    store,
		model:    model,
		acct:     acct,
		token:    token,
	}
}

func (e *testEnv) handle(t *testing.T, message string) string {
	t.Helper()
	reply, err := e.pipeline.Handle(context.Background(), e.acct.Email, e.token, message)
	require.NoError(t, err)
	return reply
}

const clearMessage = "DRAFT a LinkedIn post about how we cut our onboarding time in half last quarter, aimed at operations leads, ending with a question"

func TestAuthGatePurity(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.Handle(context.Background(), env.acct.Email, "wrong-token", "hello")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.pipeline.Handle(context.Background(), "nobody@else.test", env.token, "hello")
	assert.ErrorIs(t, err, ErrUnauthorized)

	n, err := env.store.CountTurns(env.acct.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "auth failure must not log anything")
	assert.Zero(t, env.model.calls)
}

func TestLapsedSubscriptionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.acct.Subscribed = false
	require.NoError(t, env.store.UpdateAccount(env.acct))

	_, err := env.pipeline.Handle(context.Background(), env.acct.Email, env.token, "hello")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFreeTextGeneratesAndLogs(t *testing.T) {
	env := newTestEnv(t)

	reply := env.handle(t, clearMessage)
	assert.Equal(t, "Here's a draft for you.", reply)
	assert.Equal(t, 1, env.model.calls)
	assert.Contains(t, env.model.lastSystem, "You are CopyDesk")
	assert.Contains(t, env.model.lastSystem, env.acct.Email)

	n, err := env.store.CountTurns(env.acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // inbound + reply
}

func TestSinBinIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)

	first := env.handle(t, "SIN BIN: foo")
	assert.Contains(t, first, "sin bin")
	second := env.handle(t, "SIN BIN: FOO")
	assert.Contains(t, second, "already")

	state, err := env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	count := 0
	for _, w := range state.BannedWords {
		if strings.EqualFold(w, "foo") {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Zero(t, env.model.calls, "commands bypass generation")
}

func TestCommandsShortCircuit(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "AVATAR who: freelancers; pain: feast or famine")
	review := env.handle(t, "REVIEW AVATAR")
	assert.Contains(t, review, "freelancers")
	assert.Contains(t, review, "feast or famine")

	env.handle(t, "MY PROFILE I run a two-person studio")
	env.handle(t, "ADD TO MY PROFILE we specialise in fintech")
	state, err := env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "I run a two-person studio\nwe specialise in fintech", state.SelfProfile)

	assert.Zero(t, env.model.calls)
}

func TestPreflightSingleRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	reply := env.handle(t, "help me write something")
	assert.True(t, strings.HasSuffix(reply, preflightQuestion), reply)
	assert.Zero(t, env.model.calls, "unconfigured model falls back to the template paraphrase")

	state, err := env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Pending)
	assert.Equal(t, "help me write something", state.Pending.Original)

	// Next message resolves the marker, whatever it says, and does not
	// re-trigger the clarifier.
	env.handle(t, "make it for my website")
	assert.Equal(t, 1, env.model.calls)
	assert.Contains(t, env.model.lastMessage, "make it for my website")

	state, err = env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	assert.Nil(t, state.Pending)
}

func TestPreflightAffirmationResumesOriginal(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "help me write something")
	env.handle(t, "yes")

	assert.Equal(t, 1, env.model.calls)
	assert.Equal(t, "help me write something", env.model.lastMessage)
}

func TestPreflightCorrectionFoldsBrief(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "help me write something")
	state, _ := env.store.GetUserState(env.acct.ID)
	assumption := state.Pending.Assumption

	env.handle(t, "no, it's a eulogy for my cat")
	assert.Contains(t, env.model.lastMessage, assumption)
	assert.Contains(t, env.model.lastMessage, "eulogy for my cat")
}

func TestModeDetectionInPrompt(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "REWRITE this homepage paragraph: we help businesses grow with smart solutions")
	assert.Contains(t, env.model.lastSystem, "Format mode: REWRITE")
	assert.NotContains(t, env.model.lastSystem, "no calls-to-action")

	env.handle(t, "MODE: OUTLINE\nhow to plan a product launch week by week, with examples from our own launches")
	assert.Contains(t, env.model.lastSystem, "Format mode: OUTLINE")
	assert.Contains(t, env.model.lastSystem, "no calls-to-action")
	assert.NotContains(t, env.model.lastMessage, "MODE:")
}

func TestResearchDirectiveRemovedFromMessage(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "RESEARCH: best crm tools 2026\nContext about our product for the comparison piece")

	require.Equal(t, 1, env.model.calls)
	assert.NotContains(t, env.model.lastMessage, "RESEARCH:")
	assert.Contains(t, env.model.lastMessage, "Context about our product")
	assert.NotContains(t, env.model.lastSystem, "RESEARCH:")
}

func TestCommandResolvesPendingPreflight(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "help me write something")
	state, err := env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Pending)

	env.handle(t, "MENU")

	state, err = env.store.GetUserState(env.acct.ID)
	require.NoError(t, err)
	assert.Nil(t, state.Pending, "a command is still a message; it resolves the marker")
	assert.Zero(t, env.model.calls)
}

func TestStopProtocol(t *testing.T) {
	env := newTestEnv(t)

	env.handle(t, "STOP")
	assert.Equal(t, 1, env.model.calls)
	assert.Contains(t, env.model.lastSystem, "Stop protocol")
	assert.Equal(t, stopDirective, env.model.lastMessage)
}

func TestHistoryBounding(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		env.handle(t, clearMessage)
	}
	// 10 turns logged; the prompt carries exactly the 4 most recent,
	// excluding the message being handled.
	env.handle(t, clearMessage)

	require.Len(t, env.model.lastHistory, HistoryTurns)
	for i := 1; i < len(env.model.lastHistory); i++ {
		assert.Greater(t, env.model.lastHistory[i].ID, env.model.lastHistory[i-1].ID)
	}
	last := env.model.lastHistory[HistoryTurns-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
}

func TestScrubAppliedToReply(t *testing.T) {
	env := newTestEnv(t)
	env.model.reply = "This—really—works"

	env.handle(t, "SIN BIN: really")
	reply := env.handle(t, clearMessage)
	assert.Equal(t, "This: works", reply)
}

func TestGenerationFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.model.err = errors.New("upstream timeout")

	_, err := env.pipeline.Handle(context.Background(), env.acct.Email, env.token, clearMessage)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestMenuFreshness(t *testing.T) {
	env := newTestEnv(t)

	first := env.handle(t, "MENU")
	second := env.handle(t, "MENU AGAIN")
	assert.NotEqual(t, first, second)
	assert.Zero(t, env.model.calls)
}
