package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/billing"
	"github.com/copydesk-io/copydesk/internal/chat"
	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct{}

func (stubModel) Generate(ctx context.Context, system string, history []models.ConversationTurn, message string) (string, error) {
	return "Here you go.", nil
}

func (stubModel) Configured() bool { return false }

type testAPI struct {
	api   *Api
	store *database.Store
	acct  *models.Account
	token string
}

func setupTestAPI(t *testing.T, cfg *config.Config) *testAPI {
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

	pipeline := chat.NewPipeline(store, stubModel{}, nil, nil, nil, nil)
	sessions := auth.NewTokenManager("test-secret")
	api, err := NewApi(cfg, store, pipeline, billing.NewProcessor(store), sessions, nil)
	require.NoError(t, err)

	return &testAPI{api: api, store: store, acct: acct, token: token}
}

func defaultConfig() *config.Config {
	cfg := &config.Config{APIPort: 8081}
	cfg.Auth.SessionMinutes = 60
	return cfg
}

func (ta *testAPI) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ta.api.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatEndpoint(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/api/chat", map[string]string{
		"email":   ta.acct.Email,
		"token":   ta.token,
		"message": "DRAFT a LinkedIn post about shipping our new reporting feature ahead of schedule",
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Here you go.", decode(t, rec)["reply"])
}

func TestChatEndpointAuthFailure(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/api/chat", map[string]string{
		"email":   ta.acct.Email,
		"token":   "wrong",
		"message": "hello",
	}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, chat.AuthFailMessage, decode(t, rec)["error"])

	n, err := ta.store.CountTurns(ta.acct.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected requests must leave no trace")
}

func TestChatEndpointBadRequest(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/api/chat", map[string]string{"email": ta.acct.Email}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookProvisionAndReplay(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	evt := map[string]string{
		"id":          "evt_100",
		"type":        "checkout.completed",
		"customer_id": "cus_100",
		"email":       "new@client.test",
		"name":        "New Client",
	}

	rec := ta.do("POST", "/webhooks/billing", evt, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode(t, rec)
	assert.Equal(t, false, first["duplicate"])
	token, _ := first["token"].(string)
	require.NotEmpty(t, token, "provisioning must return the one-time token")

	// The provider retries; the replay is a no-op and the token is gone.
	rec = ta.do("POST", "/webhooks/billing", evt, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode(t, rec)
	assert.Equal(t, true, second["duplicate"])
	assert.Empty(t, second["token"])

	// The returned token actually works against the chat endpoint.
	rec = ta.do("POST", "/api/chat", map[string]string{
		"email":   "new@client.test",
		"token":   token,
		"message": "DRAFT a welcome email for my newsletter subscribers about what to expect each week",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookSecretEnforced(t *testing.T) {
	cfg := defaultConfig()
	cfg.WebhookSecret = "whsec_test"
	ta := setupTestAPI(t, cfg)

	evt := map[string]string{
		"id":          "evt_200",
		"type":        "checkout.completed",
		"customer_id": "cus_200",
		"email":       "other@client.test",
	}

	rec := ta.do("POST", "/webhooks/billing", evt, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do("POST", "/webhooks/billing", evt, map[string]string{"X-Webhook-Secret": "whsec_test"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookInvalidEvent(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/webhooks/billing", map[string]string{"type": "checkout.completed"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionExchangeAndExport(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	// Seed a couple of turns to export.
	require.NoError(t, ta.store.AppendTurn(ta.acct.ID, models.RoleUser, "hello"))
	require.NoError(t, ta.store.AppendTurn(ta.acct.ID, models.RoleAssistant, "hi there"))

	rec := ta.do("POST", "/auth/session", map[string]string{
		"email": ta.acct.Email,
		"token": ta.token,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session, _ := decode(t, rec)["session_token"].(string)
	require.NotEmpty(t, session)

	rec = ta.do("GET", "/api/export", nil, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", session),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	export := decode(t, rec)
	assert.Equal(t, ta.acct.ID, export["account_id"])
	turns, _ := export["turns"].([]interface{})
	assert.Len(t, turns, 2)
}

func TestChatWithSessionToken(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/auth/session", map[string]string{
		"email": ta.acct.Email,
		"token": ta.token,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session, _ := decode(t, rec)["session_token"].(string)
	require.NotEmpty(t, session)

	rec = ta.do("POST", "/api/chat", map[string]string{
		"message": "DRAFT a LinkedIn post about the hiring lessons from our last three engineering roles",
	}, map[string]string{"Authorization": fmt.Sprintf("Bearer %s", session)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Here you go.", decode(t, rec)["reply"])
}

func TestSessionExchangeRejectsBadCredential(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("POST", "/auth/session", map[string]string{
		"email": ta.acct.Email,
		"token": "wrong",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportRequiresSession(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())

	rec := ta.do("GET", "/api/export", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.do("GET", "/api/export", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeartbeat(t *testing.T) {
	ta := setupTestAPI(t, defaultConfig())
	rec := ta.do("GET", "/heartbeat", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
