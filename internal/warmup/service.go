// Package warmup exchanges synthetic mail inside the pool of warmup-enabled
// accounts to build sending reputation before campaign traffic.
package warmup

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/outreach-engine/internal/events"
	"github.com/nimasrn/outreach-engine/internal/mailer"
	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/prom"
)

const minPoolSize = 2

type AccountRepository interface {
	ListWarmupPool(ctx context.Context) ([]*model.Account, error)
	FindWarmupByEmail(ctx context.Context, email string) (*model.Account, error)
	StartWarmup(ctx context.Context, id int64, at time.Time) error
	IncrementSends(ctx context.Context, id int64) error
	UpdateWarmupScore(ctx context.Context, id int64, score float64) error
}

type WarmupLogRepository interface {
	Create(ctx context.Context, m *model.WarmupLog) error
	CountSentSince(ctx context.Context, accountID int64, since time.Time) (int64, error)
	Stats(ctx context.Context, accountID int64) (model.WarmupStats, error)
	MarkReplied(ctx context.Context, senderID, receiverID int64, at time.Time) error
}

type Config struct {
	Interval         time.Duration
	MaxPerCycle      int
	PacingMin        time.Duration
	PacingMax        time.Duration
	ReplyProbability float64
	SendTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:         time.Hour,
		MaxPerCycle:      3,
		PacingMin:        10 * time.Second,
		PacingMax:        30 * time.Second,
		ReplyProbability: 0.5,
		SendTimeout:      60 * time.Second,
	}
}

// CycleReport summarizes one warmup cycle.
type CycleReport struct {
	Accounts int
	Sent     int
	Replied  int
	Failed   int
}

type WarmupService struct {
	accounts  AccountRepository
	logs      WarmupLogRepository
	transport mailer.Transport
	publisher events.Publisher
	config    Config

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	mu    sync.Mutex
	rng   *rand.Rand
}

func NewWarmupService(accounts AccountRepository, logs WarmupLogRepository, transport mailer.Transport, publisher events.Publisher, config Config) *WarmupService {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MaxPerCycle <= 0 {
		config.MaxPerCycle = def.MaxPerCycle
	}
	if config.PacingMax < config.PacingMin {
		config.PacingMax = config.PacingMin
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = def.SendTimeout
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WarmupService{
		accounts:  accounts,
		logs:      logs,
		transport: transport,
		publisher: publisher,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		sleep:     sleepCtx,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *WarmupService) WithClock(now func() time.Time) *WarmupService {
	s.now = now
	return s
}

func (s *WarmupService) WithSleep(sleep func(ctx context.Context, d time.Duration) bool) *WarmupService {
	s.sleep = sleep
	return s
}

func (s *WarmupService) WithRand(rng *rand.Rand) *WarmupService {
	s.rng = rng
	return s
}

func (s *WarmupService) Start() error {
	logger.Info("Starting Warmup Service...", "interval", s.config.Interval, "max_per_cycle", s.config.MaxPerCycle)
	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *WarmupService) Stop() {
	logger.Info("Shutting down Warmup Service...")
	s.cancel()
	s.wg.Wait()
	logger.Info("Warmup Service stopped")
}

func (s *WarmupService) run() {
	defer s.wg.Done()

	for s.ctx.Err() == nil {
		report, err := s.RunCycle(s.ctx)
		if err != nil {
			logger.Error("warmup cycle failed", "error", err)
		} else {
			logger.Info("warmup cycle finished",
				"accounts", report.Accounts,
				"sent", report.Sent,
				"replied", report.Replied,
				"failed", report.Failed)
		}
		s.sleep(s.ctx, s.config.Interval)
	}
}

// RunCycle sends today's remaining warmup quota for every pool account,
// answers warmup mail in their inboxes and refreshes their scores. Failures
// of one account are logged and never stop the others.
func (s *WarmupService) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}

	pool, err := s.accounts.ListWarmupPool(ctx)
	if err != nil {
		return report, err
	}
	if len(pool) < minPoolSize {
		logger.Info("warmup needs at least two pool accounts, skipping", "pool", len(pool))
		return report, nil
	}

	for _, account := range pool {
		if ctx.Err() != nil {
			break
		}
		report.Accounts++
		if err := s.cycleAccount(ctx, account, pool, report); err != nil {
			logger.Error("warmup failed for account", "account_id", account.ID, "email", account.Email, "error", err)
		}
	}
	return report, nil
}

func (s *WarmupService) cycleAccount(ctx context.Context, account *model.Account, pool []*model.Account, report *CycleReport) error {
	now := s.now().UTC()
	if account.WarmupStartedAt == nil {
		if err := s.accounts.StartWarmup(ctx, account.ID, now); err != nil {
			return err
		}
		account.WarmupStartedAt = &now
	}

	target := DailyTarget(account.WarmupStartedAt, account.WarmupDailyTarget, account.WarmupRampDays, now)
	sentToday, err := s.logs.CountSentSince(ctx, account.ID, startOfDay(now))
	if err != nil {
		return err
	}

	if remaining := target - int(sentToday); remaining > 0 {
		s.sendBatch(ctx, account, s.targets(account, pool, remaining), report)
	}

	s.receive(ctx, account, report)

	return s.refreshScore(ctx, account)
}

// targets picks up to n random pool members other than the account itself.
func (s *WarmupService) targets(account *model.Account, pool []*model.Account, n int) []*model.Account {
	others := make([]*model.Account, 0, len(pool)-1)
	for _, a := range pool {
		if a.ID != account.ID {
			others = append(others, a)
		}
	}
	s.mu.Lock()
	s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	s.mu.Unlock()
	return others[:min(n, s.config.MaxPerCycle, len(others))]
}

func (s *WarmupService) sendBatch(ctx context.Context, account *model.Account, targets []*model.Account, report *CycleReport) {
	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		subject, body := pick(s.rng, subjects), pick(s.rng, bodies)
		s.mu.Unlock()

		res, err := s.send(ctx, &mailer.SendRequest{
			CredentialRef: account.CredentialRef,
			From:          account.Email,
			FromName:      account.FromName,
			To:            target.Email,
			Subject:       subject,
			HTMLBody:      paragraph(body),
		})
		if err != nil {
			report.Failed++
			prom.IncWarmupSend("sent", "failed")
			logger.Warn("warmup send failed", "from", account.Email, "to", target.Email, "error", err)
		} else if err := s.recordSent(ctx, account, target, subject, res.MessageID); err != nil {
			logger.Error("warmup sent but not logged", "account_id", account.ID, "receiver_id", target.ID, "error", err)
		} else {
			report.Sent++
			prom.IncWarmupSend("sent", "ok")
			logger.Info("warmup sent", "from", account.Email, "to", target.Email)
		}

		if !s.sleep(ctx, s.pacing()) {
			return
		}
	}
}

func (s *WarmupService) recordSent(ctx context.Context, account, target *model.Account, subject, messageID string) error {
	if err := s.logs.Create(ctx, &model.WarmupLog{
		SenderAccountID:   account.ID,
		ReceiverAccountID: target.ID,
		Direction:         model.WarmupSent,
		Subject:           subject,
		MessageID:         messageID,
		SentAt:            s.now().UTC(),
	}); err != nil {
		return err
	}
	if err := s.accounts.IncrementSends(ctx, account.ID); err != nil {
		return err
	}
	s.publish(ctx, events.TypeWarmupSent, account.ID, target.Email)
	return nil
}

// receive drains the account's unread mail. Messages from pool accounts are
// pulled out of spam and, by chance, answered in thread.
func (s *WarmupService) receive(ctx context.Context, account *model.Account, report *CycleReport) {
	box := mailer.Mailbox{CredentialRef: account.CredentialRef, Address: account.Email}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.SendTimeout)
	inbox, err := s.transport.FetchUnread(fetchCtx, box)
	cancel()
	if err != nil {
		logger.Warn("warmup inbox fetch failed", "account_id", account.ID, "error", err)
		return
	}

	for _, msg := range inbox {
		if ctx.Err() != nil {
			return
		}
		sender, err := s.accounts.FindWarmupByEmail(ctx, msg.From)
		if err != nil {
			if !errors.Is(err, repository.ErrAccountNotFound) {
				logger.Warn("warmup sender lookup failed", "from", msg.From, "error", err)
			}
			continue
		}
		if sender.ID == account.ID {
			continue
		}

		if _, err := s.transport.MoveFromSpam(ctx, box, msg.Subject); err != nil {
			logger.Warn("warmup spam rescue failed", "account_id", account.ID, "subject", msg.Subject, "error", err)
		}

		// replies are not answered again
		if msg.InReplyTo != "" || !s.chance(s.config.ReplyProbability) {
			continue
		}
		if err := s.reply(ctx, account, sender, msg); err != nil {
			report.Failed++
			prom.IncWarmupSend("reply", "failed")
			logger.Warn("warmup reply failed", "from", account.Email, "to", sender.Email, "error", err)
			continue
		}
		report.Replied++
		prom.IncWarmupSend("reply", "ok")
		logger.Info("warmup reply", "from", account.Email, "to", sender.Email)
	}
}

func (s *WarmupService) reply(ctx context.Context, account, sender *model.Account, msg mailer.InboundMessage) error {
	s.mu.Lock()
	body := pick(s.rng, replies)
	s.mu.Unlock()

	references := msg.MessageID
	if msg.References != "" {
		references = strings.TrimSpace(msg.References + " " + msg.MessageID)
	}
	subject := "Re: " + msg.Subject

	res, err := s.send(ctx, &mailer.SendRequest{
		CredentialRef: account.CredentialRef,
		From:          account.Email,
		FromName:      account.FromName,
		To:            sender.Email,
		Subject:       subject,
		HTMLBody:      paragraph(body),
		InReplyTo:     msg.MessageID,
		References:    references,
	})
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.logs.MarkReplied(ctx, sender.ID, account.ID, now); err != nil && !errors.Is(err, repository.ErrWarmupLogNotFound) {
		return err
	}
	if err := s.logs.Create(ctx, &model.WarmupLog{
		SenderAccountID:   account.ID,
		ReceiverAccountID: sender.ID,
		Direction:         model.WarmupReply,
		Subject:           subject,
		MessageID:         res.MessageID,
		SentAt:            now,
	}); err != nil {
		return err
	}
	s.publish(ctx, events.TypeWarmupReply, account.ID, sender.Email)
	return nil
}

func (s *WarmupService) refreshScore(ctx context.Context, account *model.Account) error {
	stats, err := s.logs.Stats(ctx, account.ID)
	if err != nil {
		return err
	}
	if stats.Sent == 0 {
		return nil
	}
	score := Score(stats.Sent, stats.Replied)
	if err := s.accounts.UpdateWarmupScore(ctx, account.ID, score); err != nil {
		return err
	}
	prom.SetWarmupScore(account.Email, score)
	return nil
}

func (s *WarmupService) send(ctx context.Context, req *mailer.SendRequest) (*mailer.SendResult, error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.SendTimeout)
	defer cancel()
	return s.transport.Send(sendCtx, req)
}

func (s *WarmupService) publish(ctx context.Context, t events.Type, accountID int64, detail string) {
	ev := events.Event{Type: t, AccountID: accountID, Detail: detail, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("failed to publish warmup event", "type", t, "account_id", accountID, "error", err)
	}
}

func (s *WarmupService) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func (s *WarmupService) pacing() time.Duration {
	span := s.config.PacingMax - s.config.PacingMin
	if span <= 0 {
		return s.config.PacingMin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.PacingMin + time.Duration(s.rng.Int63n(int64(span)+1))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
