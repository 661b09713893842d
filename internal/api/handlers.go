package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/billing"
	"github.com/copydesk-io/copydesk/internal/chat"
	"github.com/copydesk-io/copydesk/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ChatHandler runs one inbound message through the pipeline. Auth failures
// come back 403 with the fixed copy; anything else that breaks is an opaque
// 500 so internals never leak to the client.
func (api *Api) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	// A valid session JWT stands in for the raw bearer credential.
	if acct := api.accountFromSession(r); acct != nil {
		reply, err := api.pipeline.HandleMessage(r.Context(), acct, req.Message)
		if err != nil {
			log.Printf("[API] chat failed for %s: %v", acct.ID, err)
			writeError(w, http.StatusInternalServerError, chat.InternalErrMessage)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		return
	}

	if req.Email == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "email, token and message are required")
		return
	}

	reply, err := api.pipeline.Handle(r.Context(), req.Email, req.Token, req.Message)
	if errors.Is(err, chat.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, chat.AuthFailMessage)
		return
	}
	if err != nil {
		log.Printf("[API] chat failed for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, chat.InternalErrMessage)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// BillingWebhookHandler accepts payment-provider events. Replays of an
// already-seen event id return 200 with duplicate set, so the provider
// stops retrying.
func (api *Api) BillingWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if secret := api.Config.WebhookSecret; secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeError(w, http.StatusForbidden, "invalid webhook secret")
			return
		}
	}

	var evt models.BillingEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := api.billing.Process(&evt)
	if errors.Is(err, billing.ErrInvalidEvent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, billing.ErrUnknownAccount) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("[API] webhook event %s failed: %v", evt.ID, err)
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SessionHandler exchanges the long-lived bearer credential for a short
// portal session JWT.
func (api *Api) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if api.sessions == nil || !api.sessions.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "portal sessions are not configured")
		return
	}

	var req struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	acct, err := api.pipeline.Authenticate(req.Email, req.Token)
	if errors.Is(err, chat.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, chat.AuthFailMessage)
		return
	}
	if err != nil {
		log.Printf("[API] session exchange failed for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "session exchange failed")
		return
	}

	duration := time.Duration(api.Config.Auth.SessionMinutes) * time.Minute
	session, err := api.sessions.GenerateSession(acct.ID, acct.Email, duration)
	if err != nil {
		log.Printf("[API] failed to generate session for %s: %v", acct.ID, err)
		writeError(w, http.StatusInternalServerError, "session exchange failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_token": session,
		"expires_in":    int(duration.Seconds()),
	})
}

// SessionAuthMiddleware validates the Authorization bearer JWT and stashes
// the claims on the request context.
func (api *Api) SessionAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.sessions == nil || !api.sessions.Enabled() {
			writeError(w, http.StatusServiceUnavailable, "portal sessions are not configured")
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := api.sessions.ValidateSession(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountFromSession resolves a chat-capable account from an Authorization
// session JWT, or nil when none is presented or it does not check out.
func (api *Api) accountFromSession(r *http.Request) *models.Account {
	if api.sessions == nil || !api.sessions.Enabled() {
		return nil
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	claims, err := api.sessions.ValidateSession(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil
	}
	acct, err := api.store.GetAccountByEmail(claims.Email)
	if err != nil || acct.ID != claims.AccountID || !acct.CanChat() {
		return nil
	}
	return acct
}

func sessionFromContext(ctx context.Context) *auth.SessionClaims {
	claims, _ := ctx.Value(sessionContextKey).(*auth.SessionClaims)
	return claims
}

// ExportHandler returns the account's full transcript. With an archive
// bucket configured the export is uploaded and a presigned URL returned;
// otherwise the transcript comes back inline.
func (api *Api) ExportHandler(w http.ResponseWriter, r *http.Request) {
	claims := sessionFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	turns, err := api.store.AllTurns(claims.AccountID)
	if err != nil {
		log.Printf("[API] export failed for %s: %v", claims.AccountID, err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	export := map[string]interface{}{
		"account_id":  claims.AccountID,
		"email":       claims.Email,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"turns":       turns,
	}

	if api.archive != nil {
		body, err := json.Marshal(export)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		url, err := api.archive.StoreExport(r.Context(), claims.AccountID, body)
		if err != nil {
			log.Printf("[API] failed to store export for %s: %v", claims.AccountID, err)
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	writeJSON(w, http.StatusOK, export)
}
