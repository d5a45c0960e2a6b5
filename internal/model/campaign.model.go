package model

import (
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// RotationStrategy selects the sending account for each dispatch.
type RotationStrategy string

const (
	RotationRoundRobin RotationStrategy = "round_robin"
	RotationWeighted   RotationStrategy = "weighted"
	RotationRandom     RotationStrategy = "random"
)

const DefaultSendDays = "mon,tue,wed,thu,fri"

type Campaign struct {
	ID               int64            `json:"id"`
	TenantID         int64            `json:"tenant_id"`
	Name             string           `json:"name"`
	Status           CampaignStatus   `json:"status"`
	RotationStrategy RotationStrategy `json:"rotation_strategy"`
	SendWindowStart  int              `json:"send_window_start"`
	SendWindowEnd    int              `json:"send_window_end"`
	SendDays         string           `json:"send_days"`
	Timezone         string           `json:"timezone"`
	DailyLimit       int              `json:"daily_limit"`
	StopOnReply      bool             `json:"stop_on_reply"`
	TrackOpens       bool             `json:"track_opens"`
	TrackClicks      bool             `json:"track_clicks"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Weekdays returns the allowed three-letter lower-case weekday names.
func (c *Campaign) Weekdays() []string {
	days := c.SendDays
	if strings.TrimSpace(days) == "" {
		days = DefaultSendDays
	}
	parts := strings.Split(days, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Variant is an alternative subject/body for a step. Empty fields fall back
// to the step's own.
type Variant struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

type Step struct {
	ID         int64     `json:"id"`
	CampaignID int64     `json:"campaign_id"`
	StepNumber int       `json:"step_number"`
	DelayDays  int       `json:"delay_days"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Content returns subject and body for a variant index, where 0 is the step
// itself and i>0 is Variants[i-1].
func (s *Step) Content(index int) (subject, body string) {
	subject, body = s.Subject, s.Body
	if index <= 0 || index > len(s.Variants) {
		return subject, body
	}
	v := s.Variants[index-1]
	if v.Subject != "" {
		subject = v.Subject
	}
	if v.Body != "" {
		body = v.Body
	}
	return subject, body
}
