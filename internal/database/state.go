package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/copydesk-io/copydesk/internal/models"
)

// GetUserState loads the state row for an account, creating it with safe
// defaults if it does not exist yet.
func (s *Store) GetUserState(accountID string) (*models.UserState, error) {
	var (
		st          models.UserState
		audience    string
		preferences string
		pending     sql.NullString
		banned      string
	)
	err := s.db.QueryRow(s.rebind(
		`SELECT account_id, audience, self_profile, preferences, pending, banned_words, updated_at
		 FROM user_states WHERE account_id = ?`), accountID).
		Scan(&st.AccountID, &audience, &st.SelfProfile, &preferences, &pending, &banned, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		st := models.NewUserState(accountID)
		if err := s.SaveUserState(st); err != nil {
			return nil, fmt.Errorf("failed to create default state: %v", err)
		}
		return st, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(audience), &st.Audience); err != nil {
		st.Audience = map[string]string{}
	}
	if err := json.Unmarshal([]byte(preferences), &st.Preferences); err != nil {
		st.Preferences = map[string]string{}
	}
	if err := json.Unmarshal([]byte(banned), &st.BannedWords); err != nil {
		st.BannedWords = append([]string(nil), models.DefaultBannedWords...)
	}
	if pending.Valid && pending.String != "" {
		var p models.PendingPreflight
		if err := json.Unmarshal([]byte(pending.String), &p); err == nil {
			st.Pending = &p
		}
	}
	return &st, nil
}

// SaveUserState upserts the full state row for an account.
func (s *Store) SaveUserState(st *models.UserState) error {
	audience, err := json.Marshal(st.Audience)
	if err != nil {
		return err
	}
	preferences, err := json.Marshal(st.Preferences)
	if err != nil {
		return err
	}
	banned, err := json.Marshal(st.BannedWords)
	if err != nil {
		return err
	}
	var pending interface{}
	if st.Pending != nil {
		b, err := json.Marshal(st.Pending)
		if err != nil {
			return err
		}
		pending = string(b)
	}
	st.UpdatedAt = time.Now().UTC()

	// Same upsert syntax works on sqlite 3.24+ and postgres.
	_, err = s.db.Exec(s.rebind(
		`INSERT INTO user_states (account_id, audience, self_profile, preferences, pending, banned_words, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
			audience = excluded.audience,
			self_profile = excluded.self_profile,
			preferences = excluded.preferences,
			pending = excluded.pending,
			banned_words = excluded.banned_words,
			updated_at = excluded.updated_at`),
		st.AccountID, string(audience), st.SelfProfile, string(preferences), pending, string(banned), st.UpdatedAt)
	return err
}

// GetVoiceProfile loads an account's voice profile, or nil if none exists.
func (s *Store) GetVoiceProfile(accountID string) (*models.VoiceProfile, error) {
	var (
		p       models.VoiceProfile
		learned sql.NullTime
	)
	err := s.db.QueryRow(s.rebind(
		`SELECT account_id, style_brief, tone_notes, sample_count, last_learned
		 FROM voice_profiles WHERE account_id = ?`), accountID).
		Scan(&p.AccountID, &p.StyleBrief, &p.ToneNotes, &p.SampleCount, &learned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if learned.Valid {
		p.LastLearned = learned.Time
	}
	return &p, nil
}

// SaveVoiceProfile upserts an account's voice profile.
func (s *Store) SaveVoiceProfile(p *models.VoiceProfile) error {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO voice_profiles (account_id, style_brief, tone_notes, sample_count, last_learned)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
			style_brief = excluded.style_brief,
			tone_notes = excluded.tone_notes,
			sample_count = excluded.sample_count,
			last_learned = excluded.last_learned`),
		p.AccountID, p.StyleBrief, p.ToneNotes, p.SampleCount, p.LastLearned)
	return err
}
