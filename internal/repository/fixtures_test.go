package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/stretchr/testify/require"
)

func seedCampaign(t *testing.T, db *pg.DB, status string) *CampaignEntity {
	c := &CampaignEntity{
		TenantID:         1,
		Name:             "q3 outbound",
		Status:           status,
		RotationStrategy: "round_robin",
		SendWindowStart:  9,
		SendWindowEnd:    17,
		SendDays:         "mon,tue,wed,thu,fri",
		Timezone:         "UTC",
		DailyLimit:       50,
	}
	require.NoError(t, db.Write(context.Background()).Create(c).Error)
	return c
}

func seedAccount(t *testing.T, db *pg.DB, email string, limit, sends int) *AccountEntity {
	a := &AccountEntity{
		TenantID:      1,
		Email:         email,
		CredentialRef: "cred-" + email,
		DailyLimit:    limit,
		SendsToday:    sends,
		Status:        "active",
	}
	require.NoError(t, db.Write(context.Background()).Create(a).Error)
	return a
}

func seedLead(t *testing.T, db *pg.DB, email string) *LeadEntity {
	l := &LeadEntity{TenantID: 1, Email: email, FirstName: "Sam", Status: "active"}
	require.NoError(t, db.Write(context.Background()).Create(l).Error)
	return l
}

func seedLink(t *testing.T, db *pg.DB, campaignID, leadID int64, step int, next *time.Time) *CampaignLeadEntity {
	cl := &CampaignLeadEntity{
		CampaignID:  campaignID,
		LeadID:      leadID,
		CurrentStep: step,
		Status:      "active",
		NextSendAt:  next,
	}
	require.NoError(t, db.Write(context.Background()).Create(cl).Error)
	return cl
}

func at(t time.Time) *time.Time {
	return &t
}
