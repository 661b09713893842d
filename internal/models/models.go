package models

import (
	"strings"
	"time"
)

// SubscriptionStatus mirrors the payment provider's subscription state.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionNone     SubscriptionStatus = ""
)

// Account represents a provisioned subscriber. Accounts are created by the
// billing webhook, never by user registration.
type Account struct {
	ID             string             `json:"id" db:"id"`
	Email          string             `json:"email" db:"email"`
	Name           string             `json:"name" db:"name"`
	Subscribed     bool               `json:"subscribed" db:"subscribed"`
	TokenHash      string             `json:"-" db:"token_hash"` // bcrypt of the bearer token, never sent to client
	CustomerID     string             `json:"customer_id,omitempty" db:"customer_id"`
	SubscriptionID string             `json:"subscription_id,omitempty" db:"subscription_id"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// CanChat returns true if the account may use the chat API.
func (a *Account) CanChat() bool {
	return a.Subscribed
}

// DefaultBannedWords seeds every new UserState's sin bin.
var DefaultBannedWords = []string{"delve", "unleash"}

// PendingPreflight is the transient clarification marker stored inside
// UserState.Preferences. At most one exists per account.
type PendingPreflight struct {
	Assumption string    `json:"assumption"`
	Original   string    `json:"original"` // the triggering message, resumed on affirmation
	CreatedAt  time.Time `json:"created_at"`
}

// UserState holds the mutable per-account preferences the chat pipeline
// reads and writes. One row per account, created lazily with defaults.
type UserState struct {
	AccountID   string            `json:"account_id" db:"account_id"`
	Audience    map[string]string `json:"audience" db:"audience"`
	SelfProfile string            `json:"self_profile" db:"self_profile"`
	Preferences map[string]string `json:"preferences" db:"preferences"`
	Pending     *PendingPreflight `json:"pending,omitempty" db:"pending"`
	BannedWords []string          `json:"banned_words" db:"banned_words"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// NewUserState returns the safe defaults used when an account has no state
// row yet.
func NewUserState(accountID string) *UserState {
	return &UserState{
		AccountID:   accountID,
		Audience:    map[string]string{},
		Preferences: map[string]string{},
		BannedWords: append([]string(nil), DefaultBannedWords...),
	}
}

// HasBannedWord reports whether word is already in the sin bin,
// case-insensitively.
func (s *UserState) HasBannedWord(word string) bool {
	for _, w := range s.BannedWords {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// AddBannedWord adds word to the sin bin if not already present. Returns
// true if the set changed.
func (s *UserState) AddBannedWord(word string) bool {
	word = strings.TrimSpace(word)
	if word == "" || s.HasBannedWord(word) {
		return false
	}
	s.BannedWords = append(s.BannedWords, strings.ToLower(word))
	return true
}

// RemoveBannedWord removes word from the sin bin, case-insensitively.
// Returns true if a word was removed.
func (s *UserState) RemoveBannedWord(word string) bool {
	for i, w := range s.BannedWords {
		if strings.EqualFold(w, word) {
			s.BannedWords = append(s.BannedWords[:i], s.BannedWords[i+1:]...)
			return true
		}
	}
	return false
}

// VoiceLearnCap stops passive voice learning once this many samples have
// been folded into the profile.
const VoiceLearnCap = 12

// VoiceProfile is the learned stylistic summary of a user's own writing.
// Created and updated only by the voice-analysis path.
type VoiceProfile struct {
	AccountID   string    `json:"account_id" db:"account_id"`
	StyleBrief  string    `json:"style_brief" db:"style_brief"`
	ToneNotes   string    `json:"tone_notes" db:"tone_notes"`
	SampleCount int       `json:"sample_count" db:"sample_count"`
	LastLearned time.Time `json:"last_learned" db:"last_learned"`
}

// CanLearn reports whether passive learning is still open for this profile.
func (p *VoiceProfile) CanLearn() bool {
	return p == nil || p.SampleCount < VoiceLearnCap
}

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one append-only entry in an account's chat log.
type ConversationTurn struct {
	ID        int64     `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Role      TurnRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BillingEventType is the payment provider's event discriminator.
type BillingEventType string

const (
	EventCheckoutCompleted    BillingEventType = "checkout.completed"
	EventSubscriptionUpdated  BillingEventType = "subscription.updated"
	EventSubscriptionDeleted  BillingEventType = "subscription.deleted"
	EventInvoicePaid          BillingEventType = "invoice.paid"
	EventInvoicePaymentFailed BillingEventType = "invoice.payment_failed"
)

// BillingEvent is one webhook delivery from the payment provider.
// Deliveries are at-least-once; processing is idempotent by ID.
type BillingEvent struct {
	ID             string           `json:"id"`
	Type           BillingEventType `json:"type"`
	CustomerID     string           `json:"customer_id"`
	SubscriptionID string           `json:"subscription_id,omitempty"`
	Status         string           `json:"status,omitempty"`
	Email          string           `json:"email,omitempty"`
	Name           string           `json:"name,omitempty"`
}
