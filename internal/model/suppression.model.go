package model

import "time"

type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

type Unsubscribe struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	Email      string    `json:"email"`
	CampaignID *int64    `json:"campaign_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Bounce struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	Email      string     `json:"email"`
	BounceType BounceType `json:"bounce_type"`
	CampaignID *int64     `json:"campaign_id,omitempty"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
}
