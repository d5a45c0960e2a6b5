// Package events carries dispatch and warmup outcomes over a redis stream.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeSent        Type = "sent"
	TypeCompleted   Type = "completed"
	TypeBounced     Type = "bounced"
	TypeSuppressed  Type = "suppressed"
	TypeDeferred    Type = "deferred"
	TypeFailed      Type = "failed"
	TypeEscalated   Type = "escalated"
	TypeWarmupSent  Type = "warmup_sent"
	TypeWarmupReply Type = "warmup_reply"
)

type Event struct {
	Type         Type      `json:"type"`
	TenantID     int64     `json:"tenant_id,omitempty"`
	CampaignID   int64     `json:"campaign_id,omitempty"`
	LeadID       int64     `json:"lead_id,omitempty"`
	AccountID    int64     `json:"account_id,omitempty"`
	Step         int       `json:"step,omitempty"`
	VariantIndex int       `json:"variant_index,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher accepts outcome events. Publishing is best effort for callers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
