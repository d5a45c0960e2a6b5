package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	pathSend     = "/api/v1/mail/send"
	pathUnread   = "/api/v1/mail/unread"
	pathSpamMove = "/api/v1/mail/spam/move"
	pathHealth   = "/health"
)

type RelayConfig struct {
	Name   string
	URL    string
	Weight int
}

type Config struct {
	Relays                  []RelayConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func DefaultConfig(urls ...string) *Config {
	cfg := &Config{
		Timeout:                 30 * time.Second,
		MaxRetries:              2,
		RetryDelay:              time.Second,
		MaxConns:                64,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   time.Minute,
	}
	for i, u := range urls {
		if u == "" {
			continue
		}
		cfg.Relays = append(cfg.Relays, RelayConfig{Name: fmt.Sprintf("relay-%d", i+1), URL: u, Weight: 100 - i*10})
	}
	return cfg
}

// RelayClient sends mail through the best scoring relay and fails over to the
// next one on transport errors.
type RelayClient struct {
	config *Config
	relays []*Relay
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ Transport = (*RelayClient)(nil)

func NewRelayClient(config *Config) (*RelayClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Relays) == 0 {
		return nil, errors.New("at least one relay is required")
	}

	c := &RelayClient{
		config: config,
		relays: make([]*Relay, 0, len(config.Relays)),
		stopCh: make(chan struct{}),
	}
	for _, rc := range config.Relays {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
		c.relays = append(c.relays, NewRelay(rc.Name, rc.URL, rc.Weight, httpClient))
		logger.Info("mail relay registered", "name", rc.Name, "url", rc.URL, "weight", rc.Weight)
	}

	if config.HealthCheckInterval > 0 {
		c.wg.Add(1)
		go c.healthChecker()
	}
	return c, nil
}

// best returns the available relay with the highest score.
func (c *RelayClient) best() (*Relay, error) {
	var best *Relay
	var bestScore float64
	for _, r := range c.relays {
		if s := r.Score(); s > bestScore {
			best, bestScore = r, s
		}
	}
	if best == nil {
		return nil, ErrNoAvailableRelays
	}
	return best, nil
}

func (c *RelayClient) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	var result SendResult
	if err := c.call(ctx, pathSend, req, &result); err != nil {
		return nil, err
	}
	if result.MessageID == "" {
		return nil, &SendError{Reason: "relay returned no message id"}
	}
	return &result, nil
}

func (c *RelayClient) FetchUnread(ctx context.Context, box Mailbox) ([]InboundMessage, error) {
	var result struct {
		Messages []InboundMessage `json:"messages"`
	}
	if err := c.call(ctx, pathUnread, box, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (c *RelayClient) MoveFromSpam(ctx context.Context, box Mailbox, subject string) (bool, error) {
	body := struct {
		Mailbox
		Subject string   `json:"subject"`
		Folders []string `json:"folders"`
	}{box, subject, SpamFolders}

	var result struct {
		Moved bool `json:"moved"`
	}
	if err := c.call(ctx, pathSpamMove, body, &result); err != nil {
		return false, err
	}
	return result.Moved, nil
}

// call posts payload to the best relay, retrying transient failures on the
// next best one. Permanent rejections return immediately.
func (c *RelayClient) call(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		relay, err := c.best()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, relay, fasthttp.MethodPost, path, body)
		if err != nil {
			if IsPermanent(err) {
				relay.metrics.RecordSuccess(time.Since(start).Milliseconds())
				return err
			}
			relay.metrics.RecordFailure()
			c.checkCircuitBreaker(relay)
			logger.Warn("mail relay request failed", "relay", relay.name, "path", path, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		relay.metrics.RecordSuccess(time.Since(start).Milliseconds())

		if err := json.Unmarshal(resp, out); err != nil {
			return fmt.Errorf("unmarshal relay response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *RelayClient) doRequest(ctx context.Context, relay *Relay, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(relay.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := relay.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("relay %s: %w", relay.name, err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusOK || code == fasthttp.StatusAccepted:
		out := make([]byte, len(resp.Body()))
		copy(out, resp.Body())
		return out, nil
	case code == fasthttp.StatusUnprocessableEntity:
		return nil, &SendError{Permanent: true, Reason: relayReason(resp.Body())}
	default:
		return nil, &SendError{Reason: fmt.Sprintf("relay %s status %d: %s", relay.name, code, relayReason(resp.Body()))}
	}
}

func relayReason(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

func (c *RelayClient) checkCircuitBreaker(relay *Relay) {
	fails := relay.metrics.ConsecutiveFails.Load()
	if c.config.CircuitBreakerThreshold <= 0 || fails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	relay.SetState(StateCircuitOpen)
	relay.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
	logger.Warn("mail relay circuit opened", "relay", relay.name, "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *RelayClient) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkHealth()
		case <-c.stopCh:
			return
		}
	}
}

func (c *RelayClient) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	for _, relay := range c.relays {
		old := relay.State()
		if old == StateCircuitOpen {
			continue
		}
		next := StateUnhealthy
		if c.healthy(ctx, relay) {
			next = StateHealthy
			if relay.metrics.SuccessRate() < 0.8 {
				next = StateDegraded
			}
		}
		if next != old {
			relay.SetState(next)
			logger.Info("mail relay state changed", "relay", relay.name, "old_state", old.String(), "new_state", next.String())
		}
	}
}

func (c *RelayClient) healthy(ctx context.Context, relay *Relay) bool {
	resp, err := c.doRequest(ctx, relay, fasthttp.MethodGet, pathHealth, nil)
	if err != nil {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	return json.Unmarshal(resp, &health) == nil && health.Status == "healthy"
}

type RelayStats struct {
	Name             string
	State            string
	Score            float64
	Requests         int64
	Failed           int64
	SuccessRate      float64
	AvgLatencyMs     int64
	ConsecutiveFails int32
}

func (c *RelayClient) Stats() []RelayStats {
	out := make([]RelayStats, 0, len(c.relays))
	for _, r := range c.relays {
		out = append(out, RelayStats{
			Name:             r.name,
			State:            r.State().String(),
			Score:            r.Score(),
			Requests:         r.metrics.Requests.Load(),
			Failed:           r.metrics.Failed.Load(),
			SuccessRate:      r.metrics.SuccessRate(),
			AvgLatencyMs:     r.metrics.AvgLatencyMs(),
			ConsecutiveFails: r.metrics.ConsecutiveFails.Load(),
		})
	}
	return out
}

func (c *RelayClient) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	logger.Info("mail relay client closed")
	return nil
}
