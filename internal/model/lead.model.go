package model

import "time"

type LeadStatus string

const (
	LeadStatusActive       LeadStatus = "active"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
	LeadStatusBounced      LeadStatus = "bounced"
	LeadStatusReplied      LeadStatus = "replied"
)

type Lead struct {
	ID           int64             `json:"id"`
	TenantID     int64             `json:"tenant_id"`
	Email        string            `json:"email"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Company      string            `json:"company"`
	Title        string            `json:"title"`
	Website      string            `json:"website"`
	Phone        string            `json:"phone"`
	City         string            `json:"city"`
	State        string            `json:"state"`
	Country      string            `json:"country"`
	Industry     string            `json:"industry"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Status       LeadStatus        `json:"status"`
}

type CampaignLeadStatus string

const (
	CampaignLeadActive       CampaignLeadStatus = "active"
	CampaignLeadPaused       CampaignLeadStatus = "paused"
	CampaignLeadCompleted    CampaignLeadStatus = "completed"
	CampaignLeadUnsubscribed CampaignLeadStatus = "unsubscribed"
	CampaignLeadBounced      CampaignLeadStatus = "bounced"
	CampaignLeadReplied      CampaignLeadStatus = "replied"
)

// Terminal reports whether no further transition is allowed.
func (s CampaignLeadStatus) Terminal() bool {
	switch s {
	case CampaignLeadCompleted, CampaignLeadUnsubscribed, CampaignLeadBounced, CampaignLeadReplied:
		return true
	}
	return false
}

// CampaignLead is one lead's progress through one campaign.
type CampaignLead struct {
	ID          int64              `json:"id"`
	CampaignID  int64              `json:"campaign_id"`
	LeadID      int64              `json:"lead_id"`
	CurrentStep int                `json:"current_step"`
	Status      CampaignLeadStatus `json:"status"`
	LastSentAt  *time.Time         `json:"last_sent_at,omitempty"`
	NextSendAt  *time.Time         `json:"next_send_at,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
}

// DueLead is a dispatch candidate: the campaign-lead row and its campaign.
type DueLead struct {
	CampaignLead *CampaignLead
	Campaign     *Campaign
}

// DueCursor resumes a due scan after the last row seen. The zero value
// starts from the oldest due row.
type DueCursor struct {
	NextSendAt time.Time
	ID         int64
}

func (d DueLead) Cursor() DueCursor {
	c := DueCursor{ID: d.CampaignLead.ID}
	if d.CampaignLead.NextSendAt != nil {
		c.NextSendAt = *d.CampaignLead.NextSendAt
	}
	return c
}
