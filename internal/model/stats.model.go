package model

// CampaignStats combines the persisted send count with the outcome counters
// projected from the event stream.
type CampaignStats struct {
	CampaignID int64            `json:"campaign_id"`
	Sent       int64            `json:"sent"`
	Outcomes   map[string]int64 `json:"outcomes"`
	Variants   map[int]int64    `json:"variants"`
}

// UnsubscribeResult reports what redeeming an unsubscribe token changed.
type UnsubscribeResult struct {
	Email          string `json:"email"`
	LeadFound      bool   `json:"lead_found"`
	CampaignsEnded int64  `json:"campaigns_ended"`
}
