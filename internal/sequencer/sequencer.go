// Package sequencer advances one campaign lead through its steps.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/outreach-engine/internal/allocator"
	"github.com/nimasrn/outreach-engine/internal/mailer"
	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/render"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/internal/unsubscribe"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/prom"
)

const previewLength = 200

type CampaignRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	GetStep(ctx context.Context, campaignID int64, stepNumber int) (*model.Step, error)
	LinkedAccounts(ctx context.Context, campaignID int64) ([]model.LinkedAccount, error)
	IncrementLinkSends(ctx context.Context, campaignID, accountID int64) error
}

type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	ReserveSend(ctx context.Context, id int64) error
	ReleaseSend(ctx context.Context, id int64) error
	MarkSent(ctx context.Context, id int64, at time.Time) error
	RecordError(ctx context.Context, id int64, msg string, status model.AccountStatus) error
}

type LeadRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
	SetStatus(ctx context.Context, id int64, status model.LeadStatus) error
}

type CampaignLeadRepository interface {
	GetByID(ctx context.Context, id int64) (*model.CampaignLead, error)
	Advance(ctx context.Context, id int64, fromStep int, sentAt time.Time, next *time.Time) error
	Finish(ctx context.Context, id int64, status model.CampaignLeadStatus) error
	RecordError(ctx context.Context, id int64, msg string) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SentEmailRepository interface {
	Create(ctx context.Context, m *model.SentEmail) error
	Thread(ctx context.Context, leadID, campaignID int64) ([]*model.SentEmail, error)
}

type SuppressionRepository interface {
	IsSuppressed(ctx context.Context, tenantID int64, email string) (bool, error)
	AddBounce(ctx context.Context, tenantID int64, email string, bounceType model.BounceType, campaignID *int64, reason string) (*model.Bounce, error)
}

type TokenIssuer interface {
	Issue(tenantID int64, email string) (string, error)
}

type Config struct {
	FrontendURL string
	SendTimeout time.Duration
}

type Sequencer struct {
	campaigns   CampaignRepository
	accounts    AccountRepository
	leads       LeadRepository
	links       CampaignLeadRepository
	sent        SentEmailRepository
	suppression SuppressionRepository
	transport   mailer.Transport
	allocator   *allocator.Allocator
	renderer    *render.Renderer
	tokens      TokenIssuer
	config      Config

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type Deps struct {
	Campaigns   CampaignRepository
	Accounts    AccountRepository
	Leads       LeadRepository
	Links       CampaignLeadRepository
	Sent        SentEmailRepository
	Suppression SuppressionRepository
	Transport   mailer.Transport
	Allocator   *allocator.Allocator
	Renderer    *render.Renderer
	Tokens      TokenIssuer
}

func New(deps Deps, config Config) *Sequencer {
	if config.SendTimeout <= 0 {
		config.SendTimeout = 60 * time.Second
	}
	if deps.Allocator == nil {
		deps.Allocator = allocator.New(nil)
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewRenderer(nil)
	}
	return &Sequencer{
		campaigns:   deps.Campaigns,
		accounts:    deps.Accounts,
		leads:       deps.Leads,
		links:       deps.Links,
		sent:        deps.Sent,
		suppression: deps.Suppression,
		transport:   deps.Transport,
		allocator:   deps.Allocator,
		renderer:    deps.Renderer,
		tokens:      deps.Tokens,
		config:      config,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// WithRand replaces the variant source.
func (s *Sequencer) WithRand(rng *rand.Rand) *Sequencer {
	s.rng = rng
	return s
}

func (s *Sequencer) WithClock(now func() time.Time) *Sequencer {
	s.now = now
	return s
}

// Dispatch advances the campaign lead by at most one step. The returned
// error is set only for storage failures; send failures are outcomes.
func (s *Sequencer) Dispatch(ctx context.Context, campaignLeadID int64) (*Result, error) {
	link, err := s.links.GetByID(ctx, campaignLeadID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignLeadNotFound) {
			return &Result{Outcome: OutcomeSkipped}, nil
		}
		return nil, fmt.Errorf("load campaign lead: %w", err)
	}
	res := &Result{CampaignID: link.CampaignID, LeadID: link.LeadID, Step: link.CurrentStep + 1}
	if link.Status != model.CampaignLeadActive {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	campaign, err := s.campaigns.GetByID(ctx, link.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	res.TenantID = campaign.TenantID
	res.Strategy = string(campaign.RotationStrategy)

	lead, err := s.leads.GetByID(ctx, link.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			res.Outcome = OutcomeSkipped
			return res, nil
		}
		return nil, fmt.Errorf("load lead: %w", err)
	}

	suppressed, err := s.suppression.IsSuppressed(ctx, campaign.TenantID, lead.Email)
	if err != nil {
		return nil, fmt.Errorf("check suppression: %w", err)
	}
	if suppressed {
		return s.finish(ctx, res, link, model.CampaignLeadUnsubscribed, OutcomeSuppressed)
	}

	step, err := s.campaigns.GetStep(ctx, campaign.ID, res.Step)
	if errors.Is(err, repository.ErrStepNotFound) {
		return s.finish(ctx, res, link, model.CampaignLeadCompleted, OutcomeCompleted)
	}
	if err != nil {
		return nil, fmt.Errorf("load step: %w", err)
	}

	account, err := s.reserveAccount(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if account == nil {
		logger.Info("no account with capacity, deferring", "campaign_id", campaign.ID, "lead_id", lead.ID, "step", res.Step)
		res.Outcome = OutcomeDeferred
		return res, nil
	}
	res.AccountID = account.ID

	msg, err := s.compose(ctx, campaign, step, lead, account)
	if err != nil {
		s.release(ctx, account.ID)
		return nil, err
	}
	res.VariantIndex = msg.variantIndex

	start := s.now()
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.SendTimeout)
	sendResult, sendErr := s.transport.Send(sendCtx, msg.request)
	cancel()
	prom.AddDispatchSendDuration(s.now().Sub(start).Seconds(), res.Strategy)

	if sendErr != nil {
		return s.onFailure(ctx, res, link, lead, campaign, account, sendErr)
	}
	return s.onSuccess(ctx, res, link, step, lead, account, msg, sendResult)
}

// reserveAccount picks an account and takes one unit of its daily budget.
// A nil account means nothing had capacity.
func (s *Sequencer) reserveAccount(ctx context.Context, campaign *model.Campaign) (*model.Account, error) {
	linked, err := s.campaigns.LinkedAccounts(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("load linked accounts: %w", err)
	}

	for len(linked) > 0 {
		pick, ok := s.allocator.Pick(campaign.RotationStrategy, linked)
		if !ok {
			return nil, nil
		}
		err := s.accounts.ReserveSend(ctx, pick.AccountID)
		if err == nil {
			account, err := s.accounts.GetByID(ctx, pick.AccountID)
			if err != nil {
				s.release(ctx, pick.AccountID)
				return nil, fmt.Errorf("load account: %w", err)
			}
			return account, nil
		}
		if !errors.Is(err, repository.ErrDailyLimitReached) && !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("reserve send: %w", err)
		}
		// capacity was taken since the snapshot; drop the account and pick again
		linked = without(linked, pick.AccountID)
	}
	return nil, nil
}

// release gives back a reserved unit of an account's daily budget.
func (s *Sequencer) release(ctx context.Context, accountID int64) {
	if err := s.accounts.ReleaseSend(ctx, accountID); err != nil {
		logger.Warn("release reservation failed", "account_id", accountID, "error", err)
	}
}

func without(linked []model.LinkedAccount, accountID int64) []model.LinkedAccount {
	out := make([]model.LinkedAccount, 0, len(linked))
	for _, l := range linked {
		if l.AccountID != accountID {
			out = append(out, l)
		}
	}
	return out
}

type composed struct {
	request      *mailer.SendRequest
	variantIndex int
	subject      string
	body         string
}

func (s *Sequencer) compose(ctx context.Context, campaign *model.Campaign, step *model.Step, lead *model.Lead, account *model.Account) (*composed, error) {
	index := s.pickVariant(len(step.Variants))
	subject, body := step.Content(index)

	leadFields := render.LeadFieldsOf(lead)
	sender := render.SenderFieldsOf(account)
	subject = s.renderer.Render(subject, leadFields, sender)
	body = s.renderer.Render(body, leadFields, sender)

	token, err := s.tokens.Issue(campaign.TenantID, lead.Email)
	if err != nil {
		return nil, fmt.Errorf("issue unsubscribe token: %w", err)
	}
	body += Footer(unsubscribe.Link(s.config.FrontendURL, token))
	if account.SignatureHTML != "" {
		body += "<br>" + account.SignatureHTML
	}

	req := &mailer.SendRequest{
		CredentialRef: account.CredentialRef,
		From:          account.Email,
		FromName:      account.FromName,
		To:            lead.Email,
		Subject:       subject,
		HTMLBody:      body,
	}
	if step.StepNumber > 1 {
		thread, err := s.sent.Thread(ctx, lead.ID, campaign.ID)
		if err != nil {
			return nil, fmt.Errorf("load thread: %w", err)
		}
		req.InReplyTo, req.References = Threading(thread)
	}

	return &composed{request: req, variantIndex: index, subject: subject, body: body}, nil
}

// pickVariant draws uniformly from 0..k where 0 is the step's own content.
func (s *Sequencer) pickVariant(k int) int {
	if k <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(k + 1)
}

// Footer is the unsubscribe block appended to every campaign message.
func Footer(link string) string {
	return `<br><br><small style="color:#999;"><a href="` + link + `" style="color:#999;">Unsubscribe</a></small>`
}

// Threading derives In-Reply-To and References from the prior messages of a
// thread, oldest first. Nothing is set unless the latest message has an id.
func Threading(thread []*model.SentEmail) (inReplyTo, references string) {
	if len(thread) == 0 {
		return "", ""
	}
	last := thread[len(thread)-1]
	if last.MessageID == "" {
		return "", ""
	}
	ids := make([]string, 0, len(thread))
	for _, m := range thread {
		if m.MessageID != "" {
			ids = append(ids, m.MessageID)
		}
	}
	return last.MessageID, strings.Join(ids, " ")
}

func (s *Sequencer) onSuccess(ctx context.Context, res *Result, link *model.CampaignLead, step *model.Step, lead *model.Lead, account *model.Account, msg *composed, sendResult *mailer.SendResult) (*Result, error) {
	now := s.now().UTC()
	res.MessageID = sendResult.MessageID

	var next *time.Time
	following, err := s.campaigns.GetStep(ctx, link.CampaignID, step.StepNumber+1)
	switch {
	case err == nil:
		t := now.Add(time.Duration(following.DelayDays) * 24 * time.Hour)
		next = &t
	case errors.Is(err, repository.ErrStepNotFound):
		res.Finished = true
	default:
		return nil, fmt.Errorf("load following step: %w", err)
	}

	err = s.links.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.sent.Create(ctx, &model.SentEmail{
			CampaignID:   link.CampaignID,
			LeadID:       lead.ID,
			AccountID:    account.ID,
			StepID:       step.ID,
			MessageID:    sendResult.MessageID,
			Subject:      msg.subject,
			BodyPreview:  repository.Truncate(msg.body, previewLength),
			TrackingID:   uuid.NewString(),
			VariantIndex: msg.variantIndex,
			SentAt:       now,
		}); err != nil {
			return fmt.Errorf("record sent email: %w", err)
		}
		err := s.links.Advance(ctx, link.ID, link.CurrentStep, now, next)
		if errors.Is(err, repository.ErrConcurrentUpdate) {
			// the link left active/current_step while the relay was delivering;
			// the message still went out, so keep its record and counters
			logger.Warn("campaign lead changed during send, step not advanced", "campaign_lead_id", link.ID, "from_step", link.CurrentStep, "message_id", sendResult.MessageID)
			res.Finished = false
		} else if err != nil {
			return fmt.Errorf("advance campaign lead: %w", err)
		}
		if err := s.campaigns.IncrementLinkSends(ctx, link.CampaignID, account.ID); err != nil {
			return fmt.Errorf("increment link sends: %w", err)
		}
		return s.accounts.MarkSent(ctx, account.ID, now)
	})
	if err != nil {
		logger.Error("message sent but bookkeeping failed", "campaign_id", link.CampaignID, "lead_id", lead.ID, "account_id", account.ID, "message_id", sendResult.MessageID, "error", err)
		return nil, err
	}

	res.Outcome = OutcomeSent
	logger.Info("message sent", "campaign_id", link.CampaignID, "lead_id", lead.ID, "account_id", account.ID, "step", step.StepNumber, "variant", msg.variantIndex, "message_id", sendResult.MessageID)
	return res, nil
}

func (s *Sequencer) onFailure(ctx context.Context, res *Result, link *model.CampaignLead, lead *model.Lead, campaign *model.Campaign, account *model.Account, sendErr error) (*Result, error) {
	text := sendErr.Error()
	res.Err = sendErr

	s.release(ctx, account.ID)
	if err := s.accounts.RecordError(ctx, account.ID, text, ""); err != nil {
		logger.Warn("record account error failed", "account_id", account.ID, "error", err)
	}

	if !IsHardBounce(text) {
		if err := s.links.RecordError(ctx, link.ID, text); err != nil {
			logger.Warn("record link error failed", "campaign_lead_id", link.ID, "error", err)
		}
		res.Outcome = OutcomeFailed
		logger.Warn("send failed, will retry", "campaign_id", campaign.ID, "lead_id", lead.ID, "account_id", account.ID, "error", text)
		return res, nil
	}

	campaignID := campaign.ID
	err := s.links.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.links.Finish(ctx, link.ID, model.CampaignLeadBounced); err != nil && !errors.Is(err, repository.ErrTerminalState) {
			return err
		}
		if err := s.leads.SetStatus(ctx, lead.ID, model.LeadStatusBounced); err != nil {
			return err
		}
		_, err := s.suppression.AddBounce(ctx, campaign.TenantID, lead.Email, model.BounceHard, &campaignID, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record hard bounce: %w", err)
	}
	res.Outcome = OutcomeBounced
	logger.Warn("hard bounce", "campaign_id", campaign.ID, "lead_id", lead.ID, "account_id", account.ID, "error", text)
	return res, nil
}

func (s *Sequencer) finish(ctx context.Context, res *Result, link *model.CampaignLead, status model.CampaignLeadStatus, outcome Outcome) (*Result, error) {
	if err := s.links.Finish(ctx, link.ID, status); err != nil && !errors.Is(err, repository.ErrTerminalState) {
		return nil, fmt.Errorf("mark campaign lead %s: %w", status, err)
	}
	res.Outcome = outcome
	logger.Info("campaign lead finished", "campaign_id", link.CampaignID, "lead_id", link.LeadID, "status", string(status))
	return res, nil
}
