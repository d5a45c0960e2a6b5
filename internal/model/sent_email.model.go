package model

import "time"

// SentEmail records one successful dispatch. Rows are never updated by the
// engine except for the engagement timestamps written elsewhere.
type SentEmail struct {
	ID           int64      `json:"id"`
	CampaignID   int64      `json:"campaign_id"`
	LeadID       int64      `json:"lead_id"`
	AccountID    int64      `json:"account_id"`
	StepID       int64      `json:"step_id"`
	MessageID    string     `json:"message_id"`
	Subject      string     `json:"subject"`
	BodyPreview  string     `json:"body_preview"`
	TrackingID   string     `json:"tracking_id"`
	VariantIndex int        `json:"variant_index"`
	SentAt       time.Time  `json:"sent_at"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty"`
	RepliedAt    *time.Time `json:"replied_at,omitempty"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty"`
}
