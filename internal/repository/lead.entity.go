package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type LeadEntity struct {
	ID           int64             `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	TenantID     int64             `db:"tenant_id"     gorm:"column:tenant_id;not null;index:idx_leads_tenant_email"`
	Email        string            `db:"email"         gorm:"column:email;not null;index:idx_leads_tenant_email"`
	FirstName    string            `db:"first_name"    gorm:"column:first_name;not null;default:''"`
	LastName     string            `db:"last_name"     gorm:"column:last_name;not null;default:''"`
	Company      string            `db:"company"       gorm:"column:company;not null;default:''"`
	Title        string            `db:"title"         gorm:"column:title;not null;default:''"`
	Website      string            `db:"website"       gorm:"column:website;not null;default:''"`
	Phone        string            `db:"phone"         gorm:"column:phone;not null;default:''"`
	City         string            `db:"city"          gorm:"column:city;not null;default:''"`
	State        string            `db:"state"         gorm:"column:state;not null;default:''"`
	Country      string            `db:"country"       gorm:"column:country;not null;default:''"`
	Industry     string            `db:"industry"      gorm:"column:industry;not null;default:''"`
	CustomFields map[string]string `db:"custom_fields" gorm:"column:custom_fields;serializer:json"`
	Status       string            `db:"status"        gorm:"column:status;not null;default:active"`
	CreatedAt    time.Time         `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (LeadEntity) TableName() string {
	return "leads"
}

func toLeadModel(e *LeadEntity) *model.Lead {
	if e == nil {
		return nil
	}
	return &model.Lead{
		ID:           e.ID,
		TenantID:     e.TenantID,
		Email:        e.Email,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Company:      e.Company,
		Title:        e.Title,
		Website:      e.Website,
		Phone:        e.Phone,
		City:         e.City,
		State:        e.State,
		Country:      e.Country,
		Industry:     e.Industry,
		CustomFields: e.CustomFields,
		Status:       model.LeadStatus(e.Status),
	}
}

type CampaignLeadEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID  int64      `db:"campaign_id"  gorm:"column:campaign_id;not null;uniqueIndex:idx_campaign_leads_pair"`
	LeadID      int64      `db:"lead_id"      gorm:"column:lead_id;not null;uniqueIndex:idx_campaign_leads_pair;index"`
	CurrentStep int        `db:"current_step" gorm:"column:current_step;not null;default:0"`
	Status      string     `db:"status"       gorm:"column:status;not null;default:active;index:idx_campaign_leads_due"`
	LastSentAt  *time.Time `db:"last_sent_at" gorm:"column:last_sent_at"`
	NextSendAt  *time.Time `db:"next_send_at" gorm:"column:next_send_at;index:idx_campaign_leads_due"`
	LastError   string     `db:"last_error"   gorm:"column:last_error;not null;default:''"`
}

func (CampaignLeadEntity) TableName() string {
	return "campaign_leads"
}

func toCampaignLeadModel(e *CampaignLeadEntity) *model.CampaignLead {
	if e == nil {
		return nil
	}
	return &model.CampaignLead{
		ID:          e.ID,
		CampaignID:  e.CampaignID,
		LeadID:      e.LeadID,
		CurrentStep: e.CurrentStep,
		Status:      model.CampaignLeadStatus(e.Status),
		LastSentAt:  e.LastSentAt,
		NextSendAt:  e.NextSendAt,
		LastError:   e.LastError,
	}
}
