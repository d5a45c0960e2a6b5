package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/outreach-engine/internal/events"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/internal/sequencer"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday, inside the default 9-17 window.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type dispatchFunc func(ctx context.Context, id int64) (*sequencer.Result, error)

func (f dispatchFunc) Dispatch(ctx context.Context, id int64) (*sequencer.Result, error) {
	return f(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingSleep struct {
	mu   sync.Mutex
	naps []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.naps = append(r.naps, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

type harness struct {
	db        *pg.DB
	service   *DispatchService
	publisher *recordingPublisher
	naps      *recordingSleep
	guard     *Guard
	campaign  *repository.CampaignEntity
	calls     []int64
	mu        sync.Mutex
}

func newHarness(t *testing.T, result func(id int64) (*sequencer.Result, error)) *harness {
	db := repository.NewTestDB(t)
	_, adapter := setupTestRedis(t)

	h := &harness{
		db:        db,
		publisher: &recordingPublisher{},
		naps:      &recordingSleep{},
		guard:     NewGuard(adapter, GuardConfig{MaxFailures: 3, FailureTTL: time.Hour}),
	}
	h.campaign = &repository.CampaignEntity{
		TenantID:         1,
		Name:             "launch",
		Status:           "active",
		RotationStrategy: "round_robin",
		SendWindowStart:  9,
		SendWindowEnd:    17,
		SendDays:         "mon,tue,wed,thu,fri",
		Timezone:         "UTC",
		DailyLimit:       50,
	}
	require.NoError(t, db.Write(context.Background()).Create(h.campaign).Error)

	dispatcher := dispatchFunc(func(_ context.Context, id int64) (*sequencer.Result, error) {
		h.mu.Lock()
		h.calls = append(h.calls, id)
		h.mu.Unlock()
		return result(id)
	})

	h.service = NewDispatchService(
		repository.NewCampaignLeadRepository(db),
		repository.NewAccountRepository(db),
		dispatcher,
		h.guard,
		h.publisher,
		Config{BatchSize: 10, PacingMin: 30 * time.Second, PacingMax: 90 * time.Second},
	).WithClock(func() time.Time { return testNow }).
		WithSleep(h.naps.sleep).
		WithRand(rand.New(rand.NewSource(3)))
	return h
}

func (h *harness) enroll(t *testing.T, email string) *repository.CampaignLeadEntity {
	ctx := context.Background()
	lead := &repository.LeadEntity{TenantID: 1, Email: email, Status: "active"}
	require.NoError(t, h.db.Write(ctx).Create(lead).Error)
	next := testNow.Add(-time.Hour)
	link := &repository.CampaignLeadEntity{CampaignID: h.campaign.ID, LeadID: lead.ID, Status: "active", NextSendAt: &next}
	require.NoError(t, h.db.Write(ctx).Create(link).Error)
	return link
}

func (h *harness) link(t *testing.T, id int64) *repository.CampaignLeadEntity {
	var e repository.CampaignLeadEntity
	require.NoError(t, h.db.Read(context.Background()).Where("id = ?", id).First(&e).Error)
	return &e
}

func (h *harness) dispatched() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.calls...)
}

func sentResult(id int64) (*sequencer.Result, error) {
	return &sequencer.Result{Outcome: sequencer.OutcomeSent, CampaignID: 1, LeadID: id, Step: 1, MessageID: "<m@relay>"}, nil
}

func TestRunCycle_DispatchesDueLeadsWithPacing(t *testing.T) {
	h := newHarness(t, sentResult)
	a := h.enroll(t, "a@x.io")
	b := h.enroll(t, "b@x.io")

	n, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{a.ID, b.ID}, h.dispatched())

	require.Len(t, h.naps.naps, 2)
	for _, d := range h.naps.naps {
		assert.GreaterOrEqual(t, d, 30*time.Second)
		assert.LessOrEqual(t, d, 90*time.Second)
	}
	assert.Equal(t, []events.Type{events.TypeSent, events.TypeSent}, h.publisher.types())
	assert.Equal(t, int64(2), h.service.Metrics().Outcome("sent"))
}

func TestRunCycle_NothingDue(t *testing.T) {
	h := newHarness(t, sentResult)

	n, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.naps.naps)
}

func TestRunCycle_OutsideWindowWritesNothing(t *testing.T) {
	h := newHarness(t, sentResult)
	link := h.enroll(t, "a@x.io")
	evening := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	h.service.WithClock(func() time.Time { return evening })

	n, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.dispatched())
	assert.Empty(t, h.publisher.types())

	after := h.link(t, link.ID)
	require.NotNil(t, after.NextSendAt)
	assert.True(t, link.NextSendAt.Equal(*after.NextSendAt))
	assert.Equal(t, "active", after.Status)
}

func TestRunCycle_CampaignTimezone(t *testing.T) {
	h := newHarness(t, sentResult)
	require.NoError(t, h.db.Write(context.Background()).
		Model(&repository.CampaignEntity{}).
		Where("id = ?", h.campaign.ID).
		Update("timezone", "America/Los_Angeles").Error)
	h.enroll(t, "a@x.io")

	// 10:00 UTC is 02:00 in Los Angeles.
	n, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// 18:00 UTC is 10:00 in Los Angeles.
	h.service.WithClock(func() time.Time { return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC) })
	n, err = h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunCycle_PagesPastOutOfWindowLeads(t *testing.T) {
	h := newHarness(t, sentResult)
	ctx := context.Background()
	h.service.config.BatchSize = 3

	// the oldest due leads belong to a campaign that is asleep in Los Angeles
	require.NoError(t, h.db.Write(ctx).
		Model(&repository.CampaignEntity{}).
		Where("id = ?", h.campaign.ID).
		Update("timezone", "America/Los_Angeles").Error)
	for i := 0; i < 7; i++ {
		h.enroll(t, fmt.Sprintf("la%d@x.io", i))
	}

	london := &repository.CampaignEntity{
		TenantID: 1, Name: "emea", Status: "active", RotationStrategy: "round_robin",
		SendWindowStart: 9, SendWindowEnd: 17, SendDays: "mon,tue,wed,thu,fri", Timezone: "Europe/London", DailyLimit: 50,
	}
	require.NoError(t, h.db.Write(ctx).Create(london).Error)
	lead := &repository.LeadEntity{TenantID: 1, Email: "uk@x.io", Status: "active"}
	require.NoError(t, h.db.Write(ctx).Create(lead).Error)
	next := testNow.Add(-time.Minute)
	inWindow := &repository.CampaignLeadEntity{CampaignID: london.ID, LeadID: lead.ID, Status: "active", NextSendAt: &next}
	require.NoError(t, h.db.Write(ctx).Create(inWindow).Error)

	n, err := h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{inWindow.ID}, h.dispatched())
	assert.Equal(t, int64(7), h.service.Metrics().GetStats()["out_of_window"])

	// a single page only sees the sleeping campaign
	h.service.config.MaxPages = 1
	n, err = h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunCycle_ResetsCountersOncePerDay(t *testing.T) {
	h := newHarness(t, sentResult)
	ctx := context.Background()
	account := &repository.AccountEntity{TenantID: 1, Email: "s@x.io", CredentialRef: "c", DailyLimit: 10, SendsToday: 7, Status: "active"}
	require.NoError(t, h.db.Write(ctx).Create(account).Error)

	sends := func() int {
		var e repository.AccountEntity
		require.NoError(t, h.db.Read(ctx).Where("id = ?", account.ID).First(&e).Error)
		return e.SendsToday
	}

	_, err := h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sends())

	require.NoError(t, h.db.Write(ctx).Model(&repository.AccountEntity{}).Where("id = ?", account.ID).Update("sends_today", 4).Error)

	_, err = h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sends(), "second cycle on the same day must not reset")

	// a fresh service on the same day finds the stored marker
	fresh := NewDispatchService(
		repository.NewCampaignLeadRepository(h.db),
		repository.NewAccountRepository(h.db),
		dispatchFunc(func(_ context.Context, id int64) (*sequencer.Result, error) { return sentResult(id) }),
		nil, nil, Config{},
	).WithClock(func() time.Time { return testNow }).WithSleep(h.naps.sleep)
	_, err = fresh.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sends())

	h.service.WithClock(func() time.Time { return testNow.Add(24 * time.Hour) })
	_, err = h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sends())
}

func TestRunCycle_EscalatesAfterConsecutiveFailures(t *testing.T) {
	failure := errors.New("421 try again later")
	h := newHarness(t, func(id int64) (*sequencer.Result, error) {
		return &sequencer.Result{Outcome: sequencer.OutcomeFailed, CampaignID: 1, LeadID: id, Err: failure}, nil
	})
	link := h.enroll(t, "a@x.io")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.service.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, "active", h.link(t, link.ID).Status)
	}

	_, err := h.service.RunCycle(ctx)
	require.NoError(t, err)

	after := h.link(t, link.ID)
	assert.Equal(t, "paused", after.Status)
	assert.Equal(t, "421 try again later", after.LastError)
	require.NotNil(t, after.NextSendAt)

	count, err := h.guard.Failures(ctx, link.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Contains(t, h.publisher.types(), events.TypeEscalated)

	// paused leads are no longer due
	n, err := h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunCycle_SuccessClearsFailureCount(t *testing.T) {
	var mu sync.Mutex
	fail := true
	h := newHarness(t, func(id int64) (*sequencer.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return &sequencer.Result{Outcome: sequencer.OutcomeFailed, Err: errors.New("timeout")}, nil
		}
		return sentResult(id)
	})
	link := h.enroll(t, "a@x.io")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.service.RunCycle(ctx)
		require.NoError(t, err)
	}
	count, err := h.guard.Failures(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	mu.Lock()
	fail = false
	mu.Unlock()
	_, err = h.service.RunCycle(ctx)
	require.NoError(t, err)

	count, err = h.guard.Failures(ctx, link.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunCycle_SkipsLockedLead(t *testing.T) {
	h := newHarness(t, sentResult)
	link := h.enroll(t, "a@x.io")
	ctx := context.Background()

	release, err := h.guard.Acquire(ctx, link.ID)
	require.NoError(t, err)
	defer release()

	n, err := h.service.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.dispatched())
}

func TestRunCycle_DispatchErrorDoesNotStopBatch(t *testing.T) {
	h := newHarness(t, func(id int64) (*sequencer.Result, error) {
		return nil, errors.New("database is locked")
	})
	h.enroll(t, "a@x.io")
	h.enroll(t, "b@x.io")

	n, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, h.publisher.types())
}

func TestRunCycle_LastStepPublishesCompleted(t *testing.T) {
	h := newHarness(t, func(id int64) (*sequencer.Result, error) {
		return &sequencer.Result{Outcome: sequencer.OutcomeSent, CampaignID: 1, LeadID: id, Finished: true}, nil
	})
	h.enroll(t, "a@x.io")

	_, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []events.Type{events.TypeSent, events.TypeCompleted}, h.publisher.types())
}

func TestDispatchService_StartStop(t *testing.T) {
	h := newHarness(t, sentResult)
	h.enroll(t, "a@x.io")
	h.service.WithSleep(sleepCtx)
	h.service.config.PacingMin = time.Millisecond
	h.service.config.PacingMax = time.Millisecond
	h.service.config.IdleInterval = 5 * time.Millisecond

	require.NoError(t, h.service.Start())
	require.Eventually(t, func() bool { return len(h.dispatched()) > 0 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		h.service.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}
