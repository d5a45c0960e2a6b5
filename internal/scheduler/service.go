// Package scheduler runs the dispatch loop: it resets daily counters at the
// UTC day boundary, selects due campaign leads, checks their send window and
// hands each one to the sequencer with randomized pacing in between.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/nimasrn/outreach-engine/internal/events"
	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/sequencer"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/prom"
)

const dayLayout = "2006-01-02"

type Dispatcher interface {
	Dispatch(ctx context.Context, campaignLeadID int64) (*sequencer.Result, error)
}

type CampaignLeadRepository interface {
	ListDue(ctx context.Context, now time.Time, after model.DueCursor, limit int) ([]model.DueLead, error)
	Pause(ctx context.Context, id int64, msg string) error
}

type CounterResetter interface {
	ResetDailyCounters(ctx context.Context, day string) (int64, error)
}

type DispatchGuard interface {
	Acquire(ctx context.Context, campaignLeadID int64) (func(), error)
	RecordFailure(ctx context.Context, campaignLeadID int64) (int64, bool, error)
	Clear(ctx context.Context, campaignLeadID int64) error
}

type Config struct {
	BatchSize      int
	PacingMin      time.Duration
	PacingMax      time.Duration
	IdleInterval   time.Duration
	ErrorBackoff   time.Duration
	ReportInterval time.Duration

	// MaxPages bounds how many pages of due leads one cycle reads while
	// looking past leads that are outside their window or locked.
	MaxPages int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      20,
		PacingMin:      30 * time.Second,
		PacingMax:      90 * time.Second,
		IdleInterval:   time.Minute,
		ErrorBackoff:   30 * time.Second,
		ReportInterval: 30 * time.Second,
		MaxPages:       5,
	}
}

// DispatchService is the long-running dispatch loop.
type DispatchService struct {
	links      CampaignLeadRepository
	counters   CounterResetter
	dispatcher Dispatcher
	guard      DispatchGuard
	publisher  events.Publisher
	config     Config
	metrics    *ServiceMetrics

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	mu    sync.Mutex
	rng   *rand.Rand

	lastReset string
}

func NewDispatchService(links CampaignLeadRepository, counters CounterResetter, dispatcher Dispatcher, guard DispatchGuard, publisher events.Publisher, config Config) *DispatchService {
	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.PacingMax < config.PacingMin {
		config.PacingMax = config.PacingMin
	}
	if config.IdleInterval <= 0 {
		config.IdleInterval = def.IdleInterval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = def.ReportInterval
	}
	if config.MaxPages <= 0 {
		config.MaxPages = def.MaxPages
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DispatchService{
		links:      links,
		counters:   counters,
		dispatcher: dispatcher,
		guard:      guard,
		publisher:  publisher,
		config:     config,
		metrics:    NewServiceMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
		sleep:      sleepCtx,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *DispatchService) WithClock(now func() time.Time) *DispatchService {
	s.now = now
	return s
}

// WithSleep replaces the interruptible sleep. The func returns false when the
// context ended before the duration elapsed.
func (s *DispatchService) WithSleep(sleep func(ctx context.Context, d time.Duration) bool) *DispatchService {
	s.sleep = sleep
	return s
}

func (s *DispatchService) WithRand(rng *rand.Rand) *DispatchService {
	s.rng = rng
	return s
}

func (s *DispatchService) Metrics() *ServiceMetrics {
	return s.metrics
}

func (s *DispatchService) Start() error {
	logger.Info("Starting Dispatch Service...",
		"batch_size", s.config.BatchSize,
		"pacing_min", s.config.PacingMin,
		"pacing_max", s.config.PacingMax)

	s.wg.Add(2)
	go s.run()
	go s.metricsReporter()
	return nil
}

// Stop cancels the loop and waits for it. A send already handed to the
// transport finishes first.
func (s *DispatchService) Stop() {
	logger.Info("Shutting down Dispatch Service...")
	s.cancel()
	s.wg.Wait()
	s.reportMetrics()
	logger.Info("Dispatch Service stopped")
}

func (s *DispatchService) run() {
	defer s.wg.Done()

	for s.ctx.Err() == nil {
		attempted, err := s.RunCycle(s.ctx)
		if err != nil {
			s.metrics.RecordError()
			logger.Error("dispatch cycle failed", "error", err, "backoff", s.config.ErrorBackoff)
			s.sleep(s.ctx, s.config.ErrorBackoff)
			continue
		}
		if attempted == 0 {
			s.sleep(s.ctx, s.config.IdleInterval)
		}
	}
}

// RunCycle performs one pass: the day-boundary reset, up to BatchSize
// dispatch attempts and pacing after every attempt. Leads outside their
// window or locked elsewhere are skipped and the scan pages past them, up to
// MaxPages pages. It returns the number of leads handed to the sequencer.
func (s *DispatchService) RunCycle(ctx context.Context) (int, error) {
	s.metrics.RecordCycle()
	now := s.now().UTC()

	if err := s.resetIfNewDay(ctx, now); err != nil {
		return 0, err
	}

	attempted := 0
	var cursor model.DueCursor
scan:
	for page := 0; page < s.config.MaxPages; page++ {
		due, err := s.links.ListDue(ctx, now, cursor, s.config.BatchSize)
		if err != nil {
			return attempted, err
		}
		if len(due) == 0 {
			break
		}
		logger.Info("found due campaign leads", "count", len(due), "page", page)

		for _, d := range due {
			if ctx.Err() != nil {
				break scan
			}
			cursor = d.Cursor()
			if !InSendWindow(d.Campaign, now) {
				s.metrics.RecordOutOfWindow()
				logger.Debug("outside send window", "campaign_id", d.Campaign.ID, "campaign_lead_id", d.CampaignLead.ID)
				continue
			}
			if !s.dispatchOne(ctx, d) {
				continue
			}
			attempted++
			if !s.sleep(ctx, s.pacing()) || attempted >= s.config.BatchSize {
				break scan
			}
		}
		if len(due) < s.config.BatchSize {
			break
		}
	}
	return attempted, nil
}

// resetIfNewDay zeroes daily send counters once per UTC date. The stored
// marker makes a repeated call on the same date a no-op.
func (s *DispatchService) resetIfNewDay(ctx context.Context, now time.Time) error {
	day := now.Format(dayLayout)
	if s.lastReset == day {
		return nil
	}
	rows, err := s.counters.ResetDailyCounters(ctx, day)
	if err != nil {
		return err
	}
	s.lastReset = day
	if rows > 0 {
		prom.IncDispatchReset()
		logger.Info("daily send counters reset", "day", day, "rows", rows)
	}
	return nil
}

// dispatchOne returns false when the lead was not handed to the sequencer.
func (s *DispatchService) dispatchOne(ctx context.Context, d model.DueLead) bool {
	id := d.CampaignLead.ID

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, id)
		if err != nil {
			if errors.Is(err, ErrLeadLocked) {
				logger.Debug("campaign lead locked elsewhere", "campaign_lead_id", id)
			} else {
				logger.Warn("dispatch lock unavailable", "campaign_lead_id", id, "error", err)
			}
			return false
		}
		defer release()
	}

	start := time.Now()
	res, err := s.dispatcher.Dispatch(ctx, id)
	if err != nil {
		s.metrics.RecordError()
		prom.IncDispatchAttempt("error")
		logger.Error("dispatch failed", "campaign_id", d.Campaign.ID, "campaign_lead_id", id, "lead_id", d.CampaignLead.LeadID, "error", err)
		return true
	}

	s.metrics.RecordOutcome(string(res.Outcome), time.Since(start))
	prom.IncDispatchAttempt(string(res.Outcome))
	s.afterOutcome(ctx, id, res)
	return true
}

func (s *DispatchService) afterOutcome(ctx context.Context, id int64, res *sequencer.Result) {
	switch res.Outcome {
	case sequencer.OutcomeSkipped:
		return
	case sequencer.OutcomeDeferred:
		s.publish(ctx, events.TypeDeferred, res, "")
		return
	case sequencer.OutcomeFailed:
		s.publish(ctx, events.TypeFailed, res, errText(res.Err))
		s.onTransientFailure(ctx, id, res)
		return
	}

	if s.guard != nil {
		if err := s.guard.Clear(ctx, id); err != nil {
			logger.Warn("failed to clear failure counter", "campaign_lead_id", id, "error", err)
		}
	}

	switch res.Outcome {
	case sequencer.OutcomeSent:
		s.publish(ctx, events.TypeSent, res, res.MessageID)
		if res.Finished {
			s.publish(ctx, events.TypeCompleted, res, "")
		}
	case sequencer.OutcomeCompleted:
		s.publish(ctx, events.TypeCompleted, res, "")
	case sequencer.OutcomeSuppressed:
		s.publish(ctx, events.TypeSuppressed, res, "")
	case sequencer.OutcomeBounced:
		s.publish(ctx, events.TypeBounced, res, errText(res.Err))
	}
}

// onTransientFailure pauses a lead after too many consecutive failures.
func (s *DispatchService) onTransientFailure(ctx context.Context, id int64, res *sequencer.Result) {
	if s.guard == nil {
		return
	}
	count, escalate, err := s.guard.RecordFailure(ctx, id)
	if err != nil {
		logger.Warn("failed to count transient failure", "campaign_lead_id", id, "error", err)
		return
	}
	if !escalate {
		logger.Info("transient send failure", "campaign_lead_id", id, "failures", count)
		return
	}

	if err := s.links.Pause(ctx, id, errText(res.Err)); err != nil {
		logger.Error("failed to pause campaign lead", "campaign_lead_id", id, "error", err)
		return
	}
	if err := s.guard.Clear(ctx, id); err != nil {
		logger.Warn("failed to clear failure counter", "campaign_lead_id", id, "error", err)
	}
	prom.IncDispatchAttempt("escalated")
	logger.Warn("campaign lead paused after repeated failures", "campaign_id", res.CampaignID, "lead_id", res.LeadID, "campaign_lead_id", id, "failures", count)
	s.publish(ctx, events.TypeEscalated, res, errText(res.Err))
}

func (s *DispatchService) publish(ctx context.Context, t events.Type, res *sequencer.Result, detail string) {
	ev := events.Event{
		Type:         t,
		TenantID:     res.TenantID,
		CampaignID:   res.CampaignID,
		LeadID:       res.LeadID,
		AccountID:    res.AccountID,
		Step:         res.Step,
		VariantIndex: res.VariantIndex,
		Detail:       detail,
		OccurredAt:   s.now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("failed to publish outcome event", "type", t, "campaign_id", res.CampaignID, "error", err)
	}
}

// pacing draws uniformly from [PacingMin, PacingMax].
func (s *DispatchService) pacing() time.Duration {
	span := s.config.PacingMax - s.config.PacingMin
	if span <= 0 {
		return s.config.PacingMin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.PacingMin + time.Duration(s.rng.Int63n(int64(span)+1))
}

func (s *DispatchService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *DispatchService) reportMetrics() {
	logger.Info("dispatch metrics", "stats", s.metrics.GetStats())
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sleepCtx waits for d or until ctx is done.
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
