package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/prom"
	"github.com/nimasrn/outreach-engine/pkg/redis"
)

// Handler processes one event. A returned error leaves the entry pending so
// it is claimed again after the visibility timeout.
type Handler func(ctx context.Context, ev Event) error

type StreamConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxDeliveries     int64
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
}

// Stream publishes events to a redis stream and consumes them through a
// consumer group. Entries delivered MaxDeliveries times go to <name>:dlq.
type Stream struct {
	adapter redis.RedisAdapter
	config  StreamConfig
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Publisher = (*Stream)(nil)

func NewStream(adapter redis.RedisAdapter, config StreamConfig) (*Stream, error) {
	if config.Name == "" {
		return nil, errors.New("stream name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}

	// BUSYGROUP means the group survived a restart.
	err := adapter.XGroupCreateMkStream(config.Name, config.ConsumerGroup, "0")
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", config.ConsumerGroup, config.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{adapter: adapter, config: config, ctx: ctx, cancel: cancel}, nil
}

func (s *Stream) Publish(_ context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.adapter.XAdd(s.config.Name, map[string]interface{}{
		"type": string(ev.Type),
		"data": string(data),
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	prom.IncEventPublished(string(ev.Type))

	if s.config.MaxLen > 0 {
		_ = s.adapter.XTrimApprox(s.config.Name, s.config.MaxLen)
	}
	return nil
}

// Consume starts the consumer loop in the background.
func (s *Stream) Consume(handler Handler) error {
	if handler == nil {
		return errors.New("event handler is required")
	}
	s.handler = handler
	s.wg.Add(1)
	go s.consumeLoop()
	return nil
}

func (s *Stream) consumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll handles one batch of new entries and reclaims stale pending ones.
func (s *Stream) Poll() {
	s.readNew()
	s.claimStale()
}

func (s *Stream) readNew() {
	msgs, err := s.adapter.XReadGroup(s.config.ConsumerGroup, s.config.ConsumerName, s.config.Name, ">", s.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) {
			logger.Warn("event stream read failed", "stream", s.config.Name, "error", err)
		}
		return
	}
	for _, m := range msgs {
		s.handle(m)
	}
}

func (s *Stream) claimStale() {
	pending, err := s.adapter.XPendingExt(s.config.Name, s.config.ConsumerGroup, "-", "+", s.config.BatchSize)
	if err != nil || len(pending) == 0 {
		return
	}

	var ids []string
	for _, p := range pending {
		if p.Idle < s.config.VisibilityTimeout {
			continue
		}
		if p.RetryCount >= s.config.MaxDeliveries {
			s.deadLetter(p.ID, p.RetryCount)
			continue
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := s.adapter.XClaim(s.config.Name, s.config.ConsumerGroup, s.config.ConsumerName, s.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("event stream claim failed", "stream", s.config.Name, "error", err)
		return
	}
	for _, m := range msgs {
		s.handle(m)
	}
}

func (s *Stream) handle(m redis.StreamMessage) {
	ev, err := decode(m)
	if err != nil {
		logger.Warn("dropping malformed event", "stream", s.config.Name, "id", m.ID, "error", err)
		_ = s.adapter.XAck(s.config.Name, s.config.ConsumerGroup, m.ID)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.VisibilityTimeout)
	defer cancel()

	if err := s.handler(ctx, ev); err != nil {
		logger.Warn("event handler failed", "stream", s.config.Name, "id", m.ID, "type", string(ev.Type), "error", err)
		return
	}
	_ = s.adapter.XAck(s.config.Name, s.config.ConsumerGroup, m.ID)
}

func (s *Stream) deadLetter(id string, deliveries int64) {
	_, _ = s.adapter.XAdd(s.config.Name+":dlq", map[string]interface{}{
		"original_id": id,
		"deliveries":  deliveries,
		"failed_at":   time.Now().Unix(),
	})
	_ = s.adapter.XAck(s.config.Name, s.config.ConsumerGroup, id)
	logger.Warn("event moved to dead letter stream", "stream", s.config.Name, "id", id, "deliveries", deliveries)
}

func decode(m redis.StreamMessage) (Event, error) {
	var ev Event
	raw, ok := m.Values["data"].(string)
	if !ok {
		return ev, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for event stream to stop")
	}
}

type StreamStats struct {
	Length  int64
	Pending int64
}

func (s *Stream) Stats() (*StreamStats, error) {
	n, err := s.adapter.XLen(s.config.Name)
	if err != nil {
		return nil, err
	}
	stats := &StreamStats{Length: n}
	if p, err := s.adapter.XPending(s.config.Name, s.config.ConsumerGroup); err == nil && p != nil {
		stats.Pending = p.Count
	}
	return stats, nil
}
