package model

import "time"

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusWarming AccountStatus = "warming"
	AccountStatusError   AccountStatus = "error"
	AccountStatusPaused  AccountStatus = "paused"
)

// CanSend reports whether the status admits dispatch.
func (s AccountStatus) CanSend() bool {
	return s == AccountStatusActive || s == AccountStatusWarming
}

// Account is a sending identity. CredentialRef is opaque to the engine and
// resolved by the mail transport.
type Account struct {
	ID                int64         `json:"id"`
	TenantID          int64         `json:"tenant_id"`
	Email             string        `json:"email"`
	FromName          string        `json:"from_name"`
	CredentialRef     string        `json:"-"`
	SignatureHTML     string        `json:"signature_html"`
	DailyLimit        int           `json:"daily_limit"`
	SendsToday        int           `json:"sends_today"`
	CountersResetOn   string        `json:"counters_reset_on"`
	Status            AccountStatus `json:"status"`
	LastSentAt        *time.Time    `json:"last_sent_at,omitempty"`
	LastError         string        `json:"last_error,omitempty"`
	WarmupEnabled     bool          `json:"warmup_enabled"`
	WarmupDailyTarget int           `json:"warmup_daily_target"`
	WarmupRampDays    int           `json:"warmup_ramp_days"`
	WarmupScore       float64       `json:"warmup_score"`
	WarmupStartedAt   *time.Time    `json:"warmup_started_at,omitempty"`
}

// CampaignAccount links an account into a campaign's rotation.
type CampaignAccount struct {
	ID              int64  `json:"id"`
	CampaignID      int64  `json:"campaign_id"`
	AccountID       int64  `json:"account_id"`
	Weight          int    `json:"weight"`
	SendsToday      int    `json:"sends_today"`
	CountersResetOn string `json:"counters_reset_on"`
}

// LinkedAccount is the allocator's view of one account inside a campaign.
type LinkedAccount struct {
	AccountID  int64
	Status     AccountStatus
	SendsToday int
	DailyLimit int
	Weight     int
}

// Eligible reports whether the account may take one more send.
func (l LinkedAccount) Eligible() bool {
	return l.Status.CanSend() && l.SendsToday < l.DailyLimit
}
