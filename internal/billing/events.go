// Package billing turns payment-provider webhook events into account rows.
// Delivery is at-least-once; processing is idempotent by event id, and an
// existing bearer token is never replaced.
package billing

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/models"
	"github.com/google/uuid"
)

var (
	ErrInvalidEvent   = errors.New("invalid billing event")
	ErrUnknownAccount = errors.New("no account for billing event")
)

// Result reports what processing one event did.
type Result struct {
	Duplicate bool   `json:"duplicate"`
	AccountID string `json:"account_id,omitempty"`
	// Token carries the one-time plaintext bearer token when this event
	// provisioned a new account. Empty otherwise; it is never recoverable
	// after this response.
	Token string `json:"token,omitempty"`
}

// Processor applies billing events to the store.
type Processor struct {
	store *database.Store
}

// NewProcessor wires a processor to the store.
func NewProcessor(store *database.Store) *Processor {
	return &Processor{store: store}
}

// Process applies one event. Replaying an already-seen event id is a no-op.
func (p *Processor) Process(evt *models.BillingEvent) (*Result, error) {
	if evt == nil || evt.ID == "" || evt.Type == "" {
		return nil, ErrInvalidEvent
	}

	seen, err := p.store.IsEventProcessed(evt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event %s: %v", evt.ID, err)
	}
	if seen {
		log.Printf("[BILLING] event %s already processed, skipping", evt.ID)
		return &Result{Duplicate: true}, nil
	}

	var result *Result
	switch evt.Type {
	case models.EventCheckoutCompleted:
		result, err = p.applyCheckout(evt)
	case models.EventSubscriptionUpdated:
		result, err = p.applySubscriptionUpdate(evt)
	case models.EventSubscriptionDeleted:
		result, err = p.applyStatus(evt, false, models.SubscriptionCanceled)
	case models.EventInvoicePaid:
		result, err = p.applyStatus(evt, true, models.SubscriptionActive)
	case models.EventInvoicePaymentFailed:
		// Past due keeps access until the provider deletes the subscription.
		result, err = p.applyStatus(evt, true, models.SubscriptionPastDue)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, evt.Type)
	}
	if err != nil {
		return nil, err
	}

	// Marked only after a successful apply so a transient failure gets
	// retried by the provider. The insert races are safe: applies are
	// single-row upserts and the token is preserved by construction.
	if _, err := p.store.MarkEventProcessed(evt.ID, string(evt.Type)); err != nil {
		return nil, fmt.Errorf("failed to record event %s: %v", evt.ID, err)
	}
	return result, nil
}

// applyCheckout provisions or re-activates an account from a completed
// checkout. The bearer token is generated only when the account has none.
func (p *Processor) applyCheckout(evt *models.BillingEvent) (*Result, error) {
	// Emails are the identity key and are matched lowercased at auth time.
	email := strings.ToLower(strings.TrimSpace(evt.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: checkout event %s missing email", ErrInvalidEvent, evt.ID)
	}

	acct, err := p.store.GetAccountByEmail(email)
	if errors.Is(err, database.ErrNotFound) {
		token, hash, err := auth.NewBearerToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %v", err)
		}
		acct = &models.Account{
			ID:             uuid.NewString(),
			Email:          email,
			Name:           evt.Name,
			Subscribed:     true,
			TokenHash:      hash,
			CustomerID:     evt.CustomerID,
			SubscriptionID: evt.SubscriptionID,
			Status:         models.SubscriptionActive,
		}
		if err := p.store.CreateAccount(acct); err != nil {
			return nil, fmt.Errorf("failed to create account: %v", err)
		}
		if _, err := p.store.GetUserState(acct.ID); err != nil {
			return nil, fmt.Errorf("failed to create default state: %v", err)
		}
		log.Printf("[BILLING] provisioned account %s for %s", acct.ID, acct.Email)
		return &Result{AccountID: acct.ID, Token: token}, nil
	}
	if err != nil {
		return nil, err
	}

	// Re-checkout on an existing account: flip it back on, keep the token.
	acct.Subscribed = true
	acct.Status = models.SubscriptionActive
	acct.CustomerID = evt.CustomerID
	if evt.SubscriptionID != "" {
		acct.SubscriptionID = evt.SubscriptionID
	}
	if evt.Name != "" {
		acct.Name = evt.Name
	}
	result := &Result{AccountID: acct.ID}
	if acct.TokenHash == "" {
		token, hash, err := auth.NewBearerToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %v", err)
		}
		acct.TokenHash = hash
		result.Token = token
	}
	if err := p.store.UpdateAccount(acct); err != nil {
		return nil, fmt.Errorf("failed to update account: %v", err)
	}
	if _, err := p.store.GetUserState(acct.ID); err != nil {
		return nil, fmt.Errorf("failed to ensure state: %v", err)
	}
	return result, nil
}

// applySubscriptionUpdate toggles the subscription flag from the provider's
// reported status.
func (p *Processor) applySubscriptionUpdate(evt *models.BillingEvent) (*Result, error) {
	active := evt.Status == "active" || evt.Status == "trialing"
	status := models.SubscriptionStatus(evt.Status)
	return p.applyStatus(evt, active, status)
}

// applyStatus updates the flag/status of the account linked to the event's
// customer reference, falling back to email lookup.
func (p *Processor) applyStatus(evt *models.BillingEvent, subscribed bool, status models.SubscriptionStatus) (*Result, error) {
	acct, err := p.lookupAccount(evt)
	if err != nil {
		return nil, err
	}

	acct.Subscribed = subscribed
	acct.Status = status
	if evt.SubscriptionID != "" {
		acct.SubscriptionID = evt.SubscriptionID
	}
	if err := p.store.UpdateAccount(acct); err != nil {
		return nil, fmt.Errorf("failed to update account: %v", err)
	}
	log.Printf("[BILLING] account %s now subscribed=%v status=%s", acct.ID, subscribed, status)
	return &Result{AccountID: acct.ID}, nil
}

func (p *Processor) lookupAccount(evt *models.BillingEvent) (*models.Account, error) {
	if evt.CustomerID != "" {
		acct, err := p.store.GetAccountByCustomerID(evt.CustomerID)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	if email := strings.ToLower(strings.TrimSpace(evt.Email)); email != "" {
		acct, err := p.store.GetAccountByEmail(email)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: event %s (customer %q)", ErrUnknownAccount, evt.ID, evt.CustomerID)
}
